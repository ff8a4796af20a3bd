package relation

import (
	"context"
	"log/slog"

	"github.com/ConductionNL/taalhuizen-service-sub000/errors"
	"github.com/ConductionNL/taalhuizen-service-sub000/objectstore"
)

// ExistenceChecker is the slice of the object store the guard needs.
type ExistenceChecker interface {
	Exists(ctx context.Context, ref objectstore.EntityRef) (bool, error)
}

// Guard verifies that entities referenced by an operation actually
// exist in the remote store before any write happens. It is the
// fail-fast front door of every relation mutation: a dangling
// reference must never reach a write.
type Guard struct {
	store  ExistenceChecker
	logger *slog.Logger
}

// NewGuard returns a guard backed by the given store.
func NewGuard(store ExistenceChecker, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		store:  store,
		logger: logger.With("component", "relation.guard"),
	}
}

// Check resolves a single reference. A missing entity yields a
// ValidationError on the given field with the stable wire text
// "Invalid request, <id> is not an existing <collection>!". Store
// trouble is reported as-is so transient failures stay retryable and
// are never mistaken for a missing entity.
func (g *Guard) Check(ctx context.Context, ref objectstore.EntityRef, field string) error {
	if err := ref.Validate(); err != nil {
		return errors.WrapFatal(err, "relation.guard", "Check", "validate reference")
	}

	exists, err := g.store.Exists(ctx, ref)
	if err != nil {
		return errors.Wrap(err, "relation.guard", "Check", "resolve "+ref.Canonical())
	}
	if !exists {
		g.logger.Debug("reference does not resolve",
			"field", field,
			"ref", ref.Canonical())
		return errors.NewValidation(field, "Invalid request, %s is not an existing %s!", ref.ID, ref.Collection)
	}
	return nil
}

// Reference pairs an entity reference with the request field it came
// from, so validation failures name the offending field.
type Reference struct {
	Field string
	Ref   objectstore.EntityRef
}

// CheckAll resolves several references in order and stops at the
// first failure.
func (g *Guard) CheckAll(ctx context.Context, refs ...Reference) error {
	for _, r := range refs {
		if err := g.Check(ctx, r.Ref, r.Field); err != nil {
			return err
		}
	}
	return nil
}
