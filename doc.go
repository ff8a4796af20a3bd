// Package taalhuizen keeps bidirectional references consistent between
// case-management entities stored in a remote EAV object store.
//
// # Problem
//
// The surrounding platform persists every domain entity (learning
// needs, participations, participants, organizations, employees,
// groups, test results) as an untyped property bag in a generic
// object store reachable only over a REST JSON API. Entities that are
// logically related must each carry a reference to the other in one
// of their properties, but the store offers no transactions, no
// foreign keys and no compare-and-swap. Keeping those mutual
// references consistent is therefore a client-side protocol, not a
// storage feature.
//
// # Layers
//
// The service is organized as a small set of layers, leaves first:
//
//	┌─────────────────────────────────────┐
//	│        gateway/http + cmd           │  operational surface
//	└─────────────────────────────────────┘
//	           ↓ invokes
//	┌─────────────────────────────────────┐
//	│          relation.Syncer            │  link/unlink protocol,
//	│   (guard, kind table, events)       │  idempotent RMW per side
//	└─────────────────────────────────────┘
//	           ↓ reads/writes via          ↓ recomputes with
//	┌──────────────────────┐  ┌───────────────────────┐
//	│  objectstore.Client  │  │     status.Derive     │
//	│  (remote EAV store)  │  │   (pure, clock-fed)   │
//	└──────────────────────┘  └───────────────────────┘
//
// The synchronizer is relation-kind driven: a declarative
// relation.Kind names the property and cardinality on each side, so one
// implementation serves every entity pair. It guarantees idempotent
// add/remove semantics and never creates or deletes entities; it only
// rewrites reference properties and, transitively, a participation's
// derived status.
//
// What it deliberately does not guarantee: the two sides of a link are
// not written transactionally, and concurrent writers to the same
// entity can lose updates. Both are documented properties of the
// protocol, surfaced as typed errors and regression-guarded in tests,
// not hidden.
package taalhuizen
