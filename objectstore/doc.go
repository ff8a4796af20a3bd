// Package objectstore is a thin generic client for the remote EAV
// object store that persists every taalhuizen domain entity as an
// untyped property bag.
//
// # Addressing
//
// The store groups entities into named collections, each scoped to an
// owning component namespace:
//
//	/{component}/{collection}/{id}     e.g. /edu/participations/P1
//
// The same logical entity may be addressed by a local opaque id, by a
// collection-scoped id, or by a fully qualified URL depending on
// caller context, and the store additionally reports a store-internal
// resource URL (@id) distinct from the domain id. EntityRef absorbs
// that duality: every ref normalizes to one canonical URL of the form
// /{collection}/{id}, and two refs are equal iff their canonical URLs
// are equal. Reference-array membership comparisons throughout the
// synchronization core use only canonical URLs.
//
// # Operations and failure semantics
//
// Get, Create, Update, Delete, Exists and Query map 1:1 onto the
// store's REST JSON API. A 404 surfaces as errors.ErrNotFound; any
// other non-2xx response, network failure or malformed body surfaces
// as a single errors.TransportError. Exists never fails on absence;
// it translates NotFound into false.
//
// Update has overwrite semantics mirroring the remote API: the client
// does not auto-merge, callers re-fetch and merge when partial update
// is required. Idempotent reads (Get, Exists, Query) are retried with
// jittered backoff; writes are never blindly retried because the
// store has no compare-and-swap. With optimistic locking enabled the
// client echoes the entity version back via If-Match and reports a
// conflict as errors.ErrConflict instead.
//
// All calls honor the caller's context deadline and are paced by a
// client-side rate limiter so a fan-out of link operations cannot
// stampede the store.
package objectstore
