package relation

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ConductionNL/taalhuizen-service-sub000/errors"
)

// StatusSide names which side of a relation is a participation whose
// lifecycle status must be re-derived after a mutation.
type StatusSide string

const (
	// StatusNone means neither side carries a derived status.
	StatusNone StatusSide = ""
	// StatusOwner means the owner side is a participation.
	StatusOwner StatusSide = "owner"
	// StatusTarget means the target side is a participation.
	StatusTarget StatusSide = "target"
)

// Kind declares, for one relation type, which property on each side
// holds the linkage and its cardinality. The synchronizer is entirely
// kind-driven: one implementation serves every entity pair, and new
// pairs are added by declaring a Kind, not by writing code.
type Kind struct {
	// Name identifies the kind in catalogs, events and metrics.
	Name string `json:"name" yaml:"name"`

	// OwnerProperty is the property on the owner bag referencing the
	// target.
	OwnerProperty string `json:"ownerProperty" yaml:"ownerProperty"`

	// TargetProperty is the property on the target bag referencing the
	// owner. Empty declares the relation one-sided: only the owner
	// carries a reference.
	TargetProperty string `json:"targetProperty,omitempty" yaml:"targetProperty,omitempty"`

	// OwnerIsArray declares the owner property's cardinality. A
	// single-valued property is overwritten last-write-wins when
	// already set to a different value; see Syncer.Link.
	OwnerIsArray bool `json:"ownerIsArray" yaml:"ownerIsArray"`

	// TargetIsArray declares the target property's cardinality.
	TargetIsArray bool `json:"targetIsArray" yaml:"targetIsArray"`

	// StatusSide names which side, if any, gets its status re-derived
	// after every mutation of this relation.
	StatusSide StatusSide `json:"statusSide,omitempty" yaml:"statusSide,omitempty"`

	// ExclusiveWith lists owner-side single-valued properties that may
	// not be combined; Precondition rejects a link while any of them
	// is set. The owner property itself is typically included so
	// re-linking also goes through the precondition.
	ExclusiveWith []string `json:"exclusiveWith,omitempty" yaml:"exclusiveWith,omitempty"`

	// ExclusiveMessage is the user-facing text for a precondition
	// failure. Stable wire text; do not reword casually.
	ExclusiveMessage string `json:"exclusiveMessage,omitempty" yaml:"exclusiveMessage,omitempty"`
}

// Validate checks the kind declaration for internal consistency. A
// malformed kind is a programmer or operator error, never end-user
// input, so failures classify fatal.
func (k Kind) Validate() error {
	if k.Name == "" {
		return fmt.Errorf("%w: kind name is required", errors.ErrUnknownKind)
	}
	if k.OwnerProperty == "" {
		return fmt.Errorf("%w: kind %q has no owner property", errors.ErrUnknownKind, k.Name)
	}
	if k.OwnerProperty == k.TargetProperty {
		return fmt.Errorf("%w: kind %q uses the same property on both sides", errors.ErrUnknownKind, k.Name)
	}
	switch k.StatusSide {
	case StatusNone, StatusOwner, StatusTarget:
	default:
		return fmt.Errorf("%w: kind %q has invalid status side %q", errors.ErrUnknownKind, k.Name, k.StatusSide)
	}
	return nil
}

// OneSided reports whether only the owner carries a reference.
func (k Kind) OneSided() bool {
	return k.TargetProperty == ""
}

// exclusiveMessage returns the precondition failure text.
func (k Kind) exclusiveMessage() string {
	if k.ExclusiveMessage != "" {
		return k.ExclusiveMessage
	}
	return fmt.Sprintf("this entity already has one of %s set", strings.Join(k.ExclusiveWith, " or "))
}

// The mentor/group exclusivity text is stable wire text surfaced to
// end clients.
const mentorGroupExclusiveMessage = "this participation already has a mentor or group set"

// Built-in relation kinds covering the taalhuizen entity graph.
var (
	// ParticipantLearningNeed links a participant to one of their
	// learning needs (both sides array-valued).
	ParticipantLearningNeed = Kind{
		Name:           "participant-learning-need",
		OwnerProperty:  "learningNeeds",
		TargetProperty: "participants",
		OwnerIsArray:   true,
		TargetIsArray:  true,
	}

	// ParticipationLearningNeed attaches a participation to the
	// learning need it serves.
	ParticipationLearningNeed = Kind{
		Name:           "participation-learning-need",
		OwnerProperty:  "learningNeed",
		TargetProperty: "participations",
		OwnerIsArray:   false,
		TargetIsArray:  true,
		StatusSide:     StatusOwner,
	}

	// ParticipationMentor attaches an employee as the participation's
	// mentor. Mutually exclusive with a group placement.
	ParticipationMentor = Kind{
		Name:             "participation-mentor",
		OwnerProperty:    "mentor",
		TargetProperty:   "participations",
		OwnerIsArray:     false,
		TargetIsArray:    true,
		StatusSide:       StatusOwner,
		ExclusiveWith:    []string{"mentor", "group"},
		ExclusiveMessage: mentorGroupExclusiveMessage,
	}

	// ParticipationGroup places the participation in a group.
	// Mutually exclusive with a mentor.
	ParticipationGroup = Kind{
		Name:             "participation-group",
		OwnerProperty:    "group",
		TargetProperty:   "participations",
		OwnerIsArray:     false,
		TargetIsArray:    true,
		StatusSide:       StatusOwner,
		ExclusiveWith:    []string{"mentor", "group"},
		ExclusiveMessage: mentorGroupExclusiveMessage,
	}

	// ParticipationProvider records which organization provides the
	// learning offer.
	ParticipationProvider = Kind{
		Name:           "participation-provider",
		OwnerProperty:  "provider",
		TargetProperty: "participations",
		OwnerIsArray:   false,
		TargetIsArray:  true,
		StatusSide:     StatusOwner,
	}

	// ResultParticipation attaches a test result to the participation
	// it was measured in.
	ResultParticipation = Kind{
		Name:           "result-participation",
		OwnerProperty:  "participation",
		TargetProperty: "results",
		OwnerIsArray:   false,
		TargetIsArray:  true,
		StatusSide:     StatusTarget,
	}
)

// Catalog is a registry of relation kinds, keyed by name. Safe for
// concurrent use.
type Catalog struct {
	mu    sync.RWMutex
	kinds map[string]Kind
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{kinds: make(map[string]Kind)}
}

// DefaultCatalog returns a catalog holding the built-in kinds.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	for _, k := range []Kind{
		ParticipantLearningNeed,
		ParticipationLearningNeed,
		ParticipationMentor,
		ParticipationGroup,
		ParticipationProvider,
		ResultParticipation,
	} {
		// Built-ins are known valid
		_ = c.Register(k)
	}
	return c
}

// Register adds a kind to the catalog, replacing any previous kind of
// the same name.
func (c *Catalog) Register(k Kind) error {
	if err := k.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kinds[k.Name] = k
	return nil
}

// Get resolves a kind by name.
func (c *Catalog) Get(name string) (Kind, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	k, ok := c.kinds[name]
	if !ok {
		return Kind{}, fmt.Errorf("%w: %q", errors.ErrUnknownKind, name)
	}
	return k, nil
}

// Names returns the registered kind names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.kinds))
	for name := range c.kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
