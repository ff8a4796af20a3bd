// Package relation keeps cross-resource relations consistent in a
// store that offers no transactions spanning resources.
//
// Entities such as participants, learning needs, participations,
// employees and groups live as property bags behind a REST interface
// and reference each other by canonical URL. A relation is therefore
// two properties that must agree: the owner's property pointing at the
// target and the target's property pointing back. Nothing in the store
// enforces that agreement, so this package does.
//
// A Kind declares the two properties and their cardinality; the Syncer
// applies LINK and UNLINK operations kind-driven: guard both entities
// for existence, read-modify-write the owner, mirror on the target,
// and re-derive the participation status when the kind touches one.
// Repeating an operation is always a no-op, which makes retries safe
// and heals an earlier half-applied mutation.
//
// Failure semantics are deliberate. When the owner write lands and the
// target write fails, the half-applied state is surfaced as a
// SideError rather than rolled back, because the rollback itself could
// fail and silently hide the asymmetry. Mutual exclusivity (a
// participation holds a mentor or a group, never both) is a fail-fast
// precondition checked against the owner snapshot before any write.
package relation
