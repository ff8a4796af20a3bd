// Package errors provides standardized error handling for the
// taalhuizen synchronization core.
//
// # Overview
//
// The package implements a three-class error classification system:
// Transient (temporary, retryable), Invalid (bad input, non-retryable),
// and Fatal (unrecoverable, stop processing). On top of that it defines
// the two typed failures the synchronization protocol surfaces to its
// callers:
//
//   - ValidationError: a precondition failure with a stable,
//     user-facing message and the name of the offending field. Produced
//     when a referenced entity does not exist, when a mutually
//     exclusive relation is already set, or when a relation kind is
//     malformed. Always recoverable by the caller correcting input;
//     never retried automatically.
//   - TransportError: any network or server-side failure talking to
//     the remote object store. Carries the HTTP status when one was
//     received. Classified transient.
//
// NotFound from the store is represented by the ErrNotFound sentinel
// and is always converted to a ValidationError at the existence-guard
// boundary before it can reach an end client; raw transport errors are
// never leaked as validation outcomes.
//
// # Classification
//
//   - Transient: TransportError, ErrConflict, ErrStoreUnavailable,
//     context cancellation/deadline (retry may help)
//   - Invalid: ValidationError, ErrNotFound (do not retry)
//   - Fatal: ErrUnknownKind, ErrMalformedRef, config errors
//     (programmer or operator error, fail fast)
//
// Classification integrates with errors.Is/errors.As and survives
// wrapping chains.
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// via the Wrap family of functions:
//
//	errors.WrapTransient(err, "Client", "Get", "fetch entity")
//	errors.WrapInvalid(err, "Syncer", "Link", "precondition")
//	errors.WrapFatal(err, "Catalog", "Load", "schema validation")
//
// The generic Wrap() preserves the original error's classification.
//
// # Retry Integration
//
// RetryConfig bridges classification into the pkg/retry framework: the
// objectstore client retries idempotent reads (get, exists, query)
// through it, while writes are never blindly retried because the
// remote store has no compare-and-swap unless optimistic locking is
// enabled.
package errors
