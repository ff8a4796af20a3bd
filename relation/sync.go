package relation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ConductionNL/taalhuizen-service-sub000/errors"
	"github.com/ConductionNL/taalhuizen-service-sub000/objectstore"
	"github.com/ConductionNL/taalhuizen-service-sub000/pkg/retry"
	"github.com/ConductionNL/taalhuizen-service-sub000/status"
)

// Action is the direction of a relation mutation.
type Action string

const (
	ActionLink   Action = "LINK"
	ActionUnlink Action = "UNLINK"
)

// Store is the slice of the object store the syncer needs. The
// production implementation is *objectstore.Client.
type Store interface {
	Get(ctx context.Context, ref objectstore.EntityRef) (objectstore.PropertyBag, error)
	Update(ctx context.Context, ref objectstore.EntityRef, body objectstore.PropertyBag) (objectstore.PropertyBag, error)
	Exists(ctx context.Context, ref objectstore.EntityRef) (bool, error)
}

// Operation is the unit of work handed to Apply: one relation
// mutation between two existing entities.
type Operation struct {
	Action Action                `json:"action"`
	Kind   string                `json:"kind"`
	Owner  objectstore.EntityRef `json:"owner"`
	Target objectstore.EntityRef `json:"target"`
}

// Result carries the post-mutation snapshots of both sides. Target is
// nil for one-sided kinds.
type Result struct {
	Owner  objectstore.PropertyBag
	Target objectstore.PropertyBag
	// Status holds the derived status when the kind touches a
	// participation, empty otherwise.
	Status status.Status
	// Changed reports whether any write happened. False means the
	// relation was already in the requested state.
	Changed bool
}

// SideError reports a mutation that succeeded on the owner side but
// failed on the target side. The store ends up asymmetric; the caller
// decides whether to retry or compensate, the syncer never rolls back
// a write that already succeeded.
type SideError struct {
	Side         string
	Kind         string
	OwnerApplied bool
	Err          error
}

func (e *SideError) Error() string {
	if e.OwnerApplied {
		return fmt.Sprintf("relation %s applied on owner side only, %s side failed: %v", e.Kind, e.Side, e.Err)
	}
	return fmt.Sprintf("relation %s failed on %s side: %v", e.Kind, e.Side, e.Err)
}

func (e *SideError) Unwrap() error {
	return e.Err
}

// AsSideError extracts a SideError from an error chain.
func AsSideError(err error) *SideError {
	var se *SideError
	if errors.As(err, &se) {
		return se
	}
	return nil
}

// Syncer keeps bidirectional relations consistent across two remote
// entities. Every mutation is a read-modify-write on each side, with
// the owner written first. There is no cross-resource transaction and
// no locking; concurrent writers to the same entity can lose updates
// unless the store's optimistic locking is enabled, in which case
// conflicted writes are re-read and replayed.
type Syncer struct {
	store         Store
	guard         *Guard
	logger        *slog.Logger
	clock         status.Clock
	publisher     Publisher
	metrics       *syncMetrics
	conflictRetry bool
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithPublisher attaches a change event publisher. Publishing is best
// effort: a publish failure is logged, never surfaced.
func WithPublisher(p Publisher) Option {
	return func(s *Syncer) { s.publisher = p }
}

// WithClock overrides the wall clock used for status derivation.
func WithClock(c status.Clock) Option {
	return func(s *Syncer) { s.clock = c }
}

// WithMetrics registers the syncer's metrics on the given registerer.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *Syncer) { s.metrics = newSyncMetrics(reg) }
}

// WithConflictRetry replays a side's read-modify-write when the store
// rejects the update with a version conflict. Only useful when the
// store client sends If-Match headers.
func WithConflictRetry() Option {
	return func(s *Syncer) { s.conflictRetry = true }
}

// NewSyncer builds a syncer over the given store.
func NewSyncer(store Store, logger *slog.Logger, opts ...Option) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Syncer{
		store:  store,
		guard:  NewGuard(store, logger),
		logger: logger.With("component", "relation.syncer"),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply dispatches an operation by action.
func (s *Syncer) Apply(ctx context.Context, op Operation, catalog *Catalog) (*Result, error) {
	kind, err := catalog.Get(op.Kind)
	if err != nil {
		return nil, err
	}
	switch op.Action {
	case ActionLink:
		return s.Link(ctx, op.Owner, op.Target, kind)
	case ActionUnlink:
		return s.Unlink(ctx, op.Owner, op.Target, kind)
	default:
		return nil, errors.NewValidation("action", "unknown action %q", op.Action)
	}
}

// Link establishes the relation between owner and target on both
// sides. Both entities must exist; a dangling reference fails the
// whole operation before any write. Re-linking an already linked pair
// is a no-op. Single-valued owner properties pointing at a different
// target are overwritten, except where the kind's exclusivity
// precondition forbids it.
func (s *Syncer) Link(ctx context.Context, owner, target objectstore.EntityRef, kind Kind) (res *Result, err error) {
	defer func() { s.metrics.recordOperation(ActionLink, kind.Name, err) }()
	return s.mutate(ctx, ActionLink, owner, target, kind)
}

// Unlink removes the relation from both sides. Unlinking a pair that
// is not linked is a no-op. A single-valued owner property is cleared
// only when it actually points at the given target.
func (s *Syncer) Unlink(ctx context.Context, owner, target objectstore.EntityRef, kind Kind) (res *Result, err error) {
	defer func() { s.metrics.recordOperation(ActionUnlink, kind.Name, err) }()
	return s.mutate(ctx, ActionUnlink, owner, target, kind)
}

// Precondition checks the kind's exclusivity rule against the owner's
// current snapshot without mutating anything. Link runs the same
// check internally; this entry point lets callers validate before
// building a larger request.
func (s *Syncer) Precondition(ctx context.Context, owner objectstore.EntityRef, kind Kind) error {
	if len(kind.ExclusiveWith) == 0 {
		return nil
	}
	bag, err := s.store.Get(ctx, owner)
	if err != nil {
		return errors.Wrap(err, "relation.syncer", "Precondition", "read owner "+owner.Canonical())
	}
	return checkExclusive(bag, kind, "")
}

func (s *Syncer) mutate(ctx context.Context, action Action, owner, target objectstore.EntityRef, kind Kind) (*Result, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	if err := s.guard.CheckAll(ctx,
		Reference{Field: "owner", Ref: owner},
		Reference{Field: "target", Ref: target},
	); err != nil {
		return nil, err
	}

	add := action == ActionLink
	ownerCanonical := owner.Canonical()
	targetCanonical := target.Canonical()

	ownerBag, ownerChanged, err := s.applySide(ctx, sideMutation{
		ref:       owner,
		property:  kind.OwnerProperty,
		isArray:   kind.OwnerIsArray,
		other:     targetCanonical,
		add:       add,
		exclusive: add,
		kind:      kind,
	})
	if err != nil {
		return nil, &SideError{Side: "owner", Kind: kind.Name, Err: err}
	}

	var targetBag objectstore.PropertyBag
	targetChanged := false
	if !kind.OneSided() {
		targetBag, targetChanged, err = s.applySide(ctx, sideMutation{
			ref:      target,
			property: kind.TargetProperty,
			isArray:  kind.TargetIsArray,
			other:    ownerCanonical,
			add:      add,
			kind:     kind,
		})
		if err != nil {
			s.metrics.recordSideFailure(kind.Name, "target")
			s.logger.Error("target side failed after owner side succeeded",
				"kind", kind.Name,
				"owner", ownerCanonical,
				"target", targetCanonical,
				"error", err)
			return nil, &SideError{Side: "target", Kind: kind.Name, OwnerApplied: ownerChanged, Err: err}
		}
	}

	result := &Result{
		Owner:   ownerBag,
		Target:  targetBag,
		Changed: ownerChanged || targetChanged,
	}

	if !result.Changed {
		s.metrics.recordNoop(action, kind.Name)
		s.logger.Debug("relation already in requested state",
			"action", string(action),
			"kind", kind.Name,
			"owner", ownerCanonical,
			"target", targetCanonical)
		if kind.StatusSide != StatusNone {
			result.Status = status.Current(s.statusBag(result, kind))
		}
		return result, nil
	}

	if kind.StatusSide != StatusNone {
		ref := owner
		if kind.StatusSide == StatusTarget {
			ref = target
		}
		derived, err := s.refreshStatus(ctx, result, kind, ref)
		if err != nil {
			return nil, err
		}
		result.Status = derived
	}

	s.publish(newChangeEvent(action, kind, ownerCanonical, targetCanonical, string(result.Status), s.clock()))

	s.logger.Info("relation updated",
		"action", string(action),
		"kind", kind.Name,
		"owner", ownerCanonical,
		"target", targetCanonical,
		"status", string(result.Status))

	return result, nil
}

// sideMutation describes one side's read-modify-write.
type sideMutation struct {
	ref       objectstore.EntityRef
	property  string
	isArray   bool
	other     string
	add       bool
	exclusive bool
	kind      Kind
}

// applySide reads the side's snapshot, applies the mutation in memory
// and writes the full bag back. With conflict retry enabled the whole
// cycle is replayed on a version conflict, so the mutation lands on
// the snapshot that actually wins.
func (s *Syncer) applySide(ctx context.Context, m sideMutation) (objectstore.PropertyBag, bool, error) {
	var (
		bag     objectstore.PropertyBag
		changed bool
	)

	cycle := func() error {
		fetched, err := s.store.Get(ctx, m.ref)
		if err != nil {
			return retry.NonRetryable(err)
		}

		if m.exclusive && len(m.kind.ExclusiveWith) > 0 {
			if err := checkExclusive(fetched, m.kind, m.other); err != nil {
				return retry.NonRetryable(err)
			}
		}

		bag = fetched
		changed = mutateProperty(bag, m.property, m.isArray, m.other, m.add)
		if !changed {
			return nil
		}

		updated, err := s.store.Update(ctx, m.ref, bag)
		if err != nil {
			if s.conflictRetry && errors.Is(err, errors.ErrConflict) {
				return err
			}
			return retry.NonRetryable(err)
		}
		if updated != nil {
			bag = updated
		}
		return nil
	}

	var err error
	if s.conflictRetry {
		err = retry.Do(ctx, retry.Conflicts(), cycle)
	} else {
		err = cycle()
	}
	if err != nil {
		return nil, false, unwrapNonRetryable(err)
	}
	return bag, changed, nil
}

// mutateProperty applies the add or remove to a bag in place and
// reports whether anything changed.
func mutateProperty(bag objectstore.PropertyBag, property string, isArray bool, canonical string, add bool) bool {
	if isArray {
		list := bag.StringList(property)
		if add {
			for _, v := range list {
				if v == canonical {
					return false
				}
			}
			bag[property] = append(list, canonical)
			return true
		}
		kept := make([]string, 0, len(list))
		for _, v := range list {
			if v != canonical {
				kept = append(kept, v)
			}
		}
		if len(kept) == len(list) {
			return false
		}
		bag[property] = kept
		return true
	}

	current, _ := bag.GetString(property)
	if add {
		if current == canonical {
			return false
		}
		// Last write wins on single-valued properties
		bag[property] = canonical
		return true
	}
	if current != canonical {
		return false
	}
	bag[property] = nil
	return true
}

// checkExclusive enforces the kind's mutual exclusivity rule against
// an owner snapshot. Re-linking the identical target passes, so
// repeated links stay idempotent.
func checkExclusive(bag objectstore.PropertyBag, kind Kind, targetCanonical string) error {
	for _, prop := range kind.ExclusiveWith {
		value, ok := bag.GetString(prop)
		if !ok || value == "" {
			continue
		}
		if prop == kind.OwnerProperty && value == targetCanonical {
			continue
		}
		return errors.NewValidation(kind.OwnerProperty, "%s", kind.exclusiveMessage())
	}
	return nil
}

// refreshStatus re-derives the participation status on the affected
// side and persists it only when it differs from the stored value.
func (s *Syncer) refreshStatus(ctx context.Context, result *Result, kind Kind, ref objectstore.EntityRef) (status.Status, error) {
	bag := s.statusBag(result, kind)
	if bag == nil {
		return "", nil
	}

	derived := status.Derive(bag, s.clock)
	current := status.Current(bag)
	if derived == current {
		return derived, nil
	}

	bag[status.PropertyStatus] = string(derived)
	updated, err := s.store.Update(ctx, ref, bag)
	if err != nil {
		return "", errors.Wrap(err, "relation.syncer", "refreshStatus", "persist status "+ref.Canonical())
	}
	if updated != nil {
		s.setStatusBag(result, kind, updated)
	}
	s.metrics.recordStatusUpdate(string(current), string(derived))
	s.logger.Info("participation status changed",
		"participation", ref.Canonical(),
		"from", string(current),
		"to", string(derived))
	return derived, nil
}

func (s *Syncer) statusBag(result *Result, kind Kind) objectstore.PropertyBag {
	if kind.StatusSide == StatusTarget {
		return result.Target
	}
	return result.Owner
}

func (s *Syncer) setStatusBag(result *Result, kind Kind, bag objectstore.PropertyBag) {
	if kind.StatusSide == StatusTarget {
		result.Target = bag
	} else {
		result.Owner = bag
	}
}

func (s *Syncer) publish(event ChangeEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(event); err != nil {
		s.logger.Warn("event publish failed",
			"event", event.ID,
			"kind", event.Kind,
			"error", err)
	}
}

func unwrapNonRetryable(err error) error {
	var nre *retry.NonRetryableError
	if errors.As(err, &nre) {
		return nre.Err
	}
	return err
}
