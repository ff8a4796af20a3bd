package objectstore

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ConductionNL/taalhuizen-service-sub000/errors"
)

// StoreKind identifies which backing layer a reference resolves
// against: the generic EAV store or one of the upstream REST services.
type StoreKind string

const (
	// StoreEAV addresses the generic entity-attribute-value store.
	StoreEAV StoreKind = "eav"
	// StoreREST addresses an upstream REST microservice directly.
	StoreREST StoreKind = "rest"
)

// EntityRef is the canonical, location-independent identity of a
// stored entity. Two refs are equal iff their canonical URLs are
// equal; the canonical URL deliberately drops the component namespace
// because the same logical entity keeps its identity regardless of
// which component gateway serves it.
type EntityRef struct {
	StoreKind  StoreKind `json:"storeKind" yaml:"storeKind"`
	Component  string    `json:"component" yaml:"component"`
	Collection string    `json:"collection" yaml:"collection"`
	ID         string    `json:"id" yaml:"id"`

	// CanonicalURL overrides the derived canonical form when the
	// caller already resolved one (e.g. from a stored @id value).
	CanonicalURL string `json:"canonicalUrl,omitempty" yaml:"canonicalUrl,omitempty"`
}

// NewRef builds an EAV-backed reference.
func NewRef(component, collection, id string) EntityRef {
	return EntityRef{
		StoreKind:  StoreEAV,
		Component:  component,
		Collection: collection,
		ID:         id,
	}
}

// Canonical returns the canonical URL for this ref: /{collection}/{id}.
func (r EntityRef) Canonical() string {
	if r.CanonicalURL != "" {
		return r.CanonicalURL
	}
	return "/" + r.Collection + "/" + r.ID
}

// Equal reports whether two refs identify the same logical entity.
func (r EntityRef) Equal(other EntityRef) bool {
	return r.Canonical() == other.Canonical()
}

// Validate checks the ref carries enough to be resolved.
func (r EntityRef) Validate() error {
	if r.Collection == "" || r.ID == "" {
		return fmt.Errorf("%w: collection=%q id=%q", errors.ErrMalformedRef, r.Collection, r.ID)
	}
	if r.StoreKind != "" && r.StoreKind != StoreEAV && r.StoreKind != StoreREST {
		return fmt.Errorf("%w: unknown store kind %q", errors.ErrMalformedRef, r.StoreKind)
	}
	return nil
}

// path returns the request path on the remote store:
// /{component}/{collection}/{id}. Refs without a component fall back
// to the canonical form, which the store also accepts.
func (r EntityRef) path() string {
	if r.Component == "" {
		return r.Canonical()
	}
	return "/" + r.Component + "/" + r.Collection + "/" + r.ID
}

// ParseRef resolves a reference string into an EntityRef. Accepted
// shapes, all producing the same canonical identity:
//
//	/edu/participations/P1       component-scoped path
//	/participations/P1           canonical path
//	https://host/edu/participations/P1
//
// GraphQL clients hand the surrounding resolvers opaque global ids;
// those resolvers strip them down to one of the shapes above before
// calling into this package.
func ParseRef(raw string) (EntityRef, error) {
	s := raw
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return EntityRef{}, fmt.Errorf("%w: %q", errors.ErrMalformedRef, raw)
		}
		s = u.Path
	}

	parts := strings.Split(strings.Trim(s, "/"), "/")
	switch len(parts) {
	case 2:
		if parts[0] == "" || parts[1] == "" {
			return EntityRef{}, fmt.Errorf("%w: %q", errors.ErrMalformedRef, raw)
		}
		return EntityRef{StoreKind: StoreEAV, Collection: parts[0], ID: parts[1]}, nil
	case 3:
		if parts[0] == "" || parts[1] == "" || parts[2] == "" {
			return EntityRef{}, fmt.Errorf("%w: %q", errors.ErrMalformedRef, raw)
		}
		return EntityRef{StoreKind: StoreEAV, Component: parts[0], Collection: parts[1], ID: parts[2]}, nil
	default:
		return EntityRef{}, fmt.Errorf("%w: %q", errors.ErrMalformedRef, raw)
	}
}
