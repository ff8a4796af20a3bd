// Package errors provides the error taxonomy shared by the taalhuizen
// synchronization core: typed validation and transport failures,
// standard sentinel errors, and a three-class classification scheme
// that drives retry decisions.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ConductionNL/taalhuizen-service-sub000/pkg/retry"
)

// Is reports whether any error in err's chain matches target.
// Re-exported so callers need only one errors import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// Re-exported so callers need only one errors import.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// New returns an error with the supplied text. Re-exported from the
// standard library.
func New(text string) error {
	return errors.New(text)
}

// ErrorClass represents the classification of errors for handling purposes.
type ErrorClass int

const (
	// ErrorTransient represents temporary errors that may be retried
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to invalid input or configuration
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors that should stop processing
	ErrorFatal
)

// String returns the string representation of ErrorClass.
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions.
var (
	// Object store outcomes
	ErrNotFound         = errors.New("entity not found")
	ErrConflict         = errors.New("entity version conflict")
	ErrStoreUnavailable = errors.New("object store unavailable")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("missing required configuration")

	// Programmer errors in the synchronization core. These indicate a
	// caller bug, not bad end-user input, and are never retried.
	ErrUnknownKind  = errors.New("unknown relation kind")
	ErrMalformedRef = errors.New("entity reference missing required fields")
)

// ValidationError is a precondition failure surfaced verbatim to end
// clients: a missing referenced entity, a mutually exclusive relation
// already set, a malformed relation kind. Field names the offending
// input field; Message is the stable human-readable text.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (ve *ValidationError) Error() string {
	return ve.Message
}

// NewValidation creates a ValidationError for a field with a formatted message.
func NewValidation(field, format string, args ...any) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// AsValidation extracts a ValidationError from an error chain, or nil.
func AsValidation(err error) *ValidationError {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve
	}
	return nil
}

// TransportError wraps any network or server-side failure talking to
// the object store: timeouts, 5xx responses, malformed bodies. The
// synchronization core never retries these itself; retry policy
// belongs to the objectstore client (idempotent reads only) or the
// caller.
type TransportError struct {
	Cause      error
	StatusCode int // zero when the failure happened below HTTP
}

// Error implements the error interface.
func (te *TransportError) Error() string {
	if te.StatusCode != 0 {
		return fmt.Sprintf("object store transport failure (status %d): %v", te.StatusCode, te.Cause)
	}
	return fmt.Sprintf("object store transport failure: %v", te.Cause)
}

// Unwrap returns the underlying cause.
func (te *TransportError) Unwrap() error {
	return te.Cause
}

// NewTransport wraps err as a TransportError with an optional HTTP status.
func NewTransport(err error, statusCode int) *TransportError {
	return &TransportError{Cause: err, StatusCode: statusCode}
}

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// ClassifiedError wraps an error with its classification.
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface.
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error.
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// IsTransient checks if an error is transient and should be retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}

	// Validation failures are never transient, whatever their text says
	if AsValidation(err) != nil {
		return false
	}

	if IsTransport(err) {
		return true
	}

	if errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return true
	}

	// Fall back to message inspection for errors from third-party code
	errStr := strings.ToLower(err.Error())
	transientPatterns := []string{
		"timeout",
		"connection",
		"network",
		"temporary",
		"unavailable",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// IsFatal checks if an error is fatal and should stop processing.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}

	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingConfig) ||
		errors.Is(err, ErrUnknownKind) ||
		errors.Is(err, ErrMalformedRef)
}

// IsInvalid checks if an error is due to invalid input.
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}

	if AsValidation(err) != nil {
		return true
	}

	return errors.Is(err, ErrNotFound)
}

// Classify returns the error class for an error.
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorTransient // Default for nil
	}

	if IsFatal(err) {
		return ErrorFatal
	}
	if IsInvalid(err) {
		return ErrorInvalid
	}
	if IsTransient(err) {
		return ErrorTransient
	}

	// Default to transient for unknown errors to allow retry
	return ErrorTransient
}

// newClassified creates a new classified error.
// This is an internal helper - use WrapTransient(), WrapFatal(), or WrapInvalid() instead.
func newClassified(class ErrorClass, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps an error as transient with context.
func WrapTransient(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorTransient, wrappedErr, component, method, wrappedErr.Error())
}

// WrapFatal wraps an error as fatal with context.
func WrapFatal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorFatal, wrappedErr, component, method, wrappedErr.Error())
}

// WrapInvalid wraps an error as invalid with context.
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorInvalid, wrappedErr, component, method, wrappedErr.Error())
}

// RetryConfig defines configuration for retry operations.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig returns a sensible default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

// ShouldRetry determines if an error should be retried based on config.
func (rc RetryConfig) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= rc.MaxRetries {
		return false
	}
	return IsTransient(err)
}

// ToRetryConfig converts to the retry framework's Config type. The
// conversion adds 1 to MaxRetries (converting "additional attempts"
// to "total attempts") and enables jitter.
func (rc RetryConfig) ToRetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:  rc.MaxRetries + 1,
		InitialDelay: rc.InitialDelay,
		MaxDelay:     rc.MaxDelay,
		Multiplier:   rc.BackoffFactor,
		AddJitter:    true,
	}
}
