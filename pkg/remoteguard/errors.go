package remoteguard

import (
	"github.com/LavishGent/remoteguard/internal/resilience"
	"github.com/LavishGent/remoteguard/internal/types"
)

type (
	// RemoteError is the classified error a remote operation returns.
	RemoteError = types.RemoteError
	// ValidationError reports invalid input before any remote call.
	ValidationError = types.ValidationError
	// CircuitOpenError is returned while the breaker rejects calls.
	CircuitOpenError = types.CircuitOpenError
	// CancellationError is caller cancellation or an expired per-call deadline.
	CancellationError = types.CancellationError
	// RetryExhaustedError wraps the last error after every attempt failed.
	RetryExhaustedError = types.RetryExhaustedError
	// CombinedFailureError is returned when both primary and fallback failed.
	CombinedFailureError = types.CombinedFailureError
	// CacheError represents a cache layer failure.
	CacheError = types.CacheError
)

var (
	ErrCircuitOpen         = types.ErrCircuitOpen
	ErrCancelled           = types.ErrCancelled
	ErrTimeout             = types.ErrTimeout
	ErrValidation          = types.ErrValidation
	ErrInvalidKey          = types.ErrInvalidKey
	ErrCacheMiss           = types.ErrCacheMiss
	ErrRedisUnavailable    = types.ErrRedisUnavailable
	ErrClosed              = types.ErrClosed
	ErrBulkheadFull        = types.ErrBulkheadFull
	ErrBulkheadTimeout     = types.ErrBulkheadTimeout
	ErrSerializationFailed = types.ErrSerializationFailed
)

// NewRemoteError creates a classified remote error from a status code and an
// optional machine error code.
func NewRemoteError(status int, code, message string) *RemoteError {
	return types.NewRemoteError(status, code, message)
}

func NewValidationError(field, message string) *ValidationError {
	return types.NewValidationError(field, message)
}

// Classify returns the failure class of err.
func Classify(err error) ErrorClass {
	return resilience.Classify(err)
}

// Kind returns the coarse failure kind of err.
func Kind(err error) ErrorKind {
	return resilience.Kind(err)
}

// IsRetryable returns true if another attempt could succeed.
func IsRetryable(err error) bool {
	return resilience.IsRetryable(err)
}

// ShouldFallback returns true if a fallback may replace the failed call.
func ShouldFallback(err error) bool {
	return resilience.ShouldFallback(err)
}

// IsCancellation returns true for caller cancellation and per-call timeouts.
func IsCancellation(err error) bool {
	return resilience.IsCancellation(err)
}

func IsTimeout(err error) bool          { return types.IsTimeout(err) }
func IsCircuitOpen(err error) bool      { return types.IsCircuitOpen(err) }
func IsValidation(err error) bool       { return types.IsValidation(err) }
func IsCombinedFailure(err error) bool  { return types.IsCombinedFailure(err) }
func IsCacheMiss(err error) bool        { return types.IsCacheMiss(err) }
func IsBulkheadError(err error) bool    { return types.IsBulkheadError(err) }
func IsRedisUnavailable(err error) bool { return types.IsRedisUnavailable(err) }
