package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	ErrCircuitOpen         = errors.New("remoteguard: circuit breaker open")
	ErrCancelled           = errors.New("remoteguard: operation cancelled")
	ErrTimeout             = errors.New("remoteguard: operation timed out")
	ErrValidation          = errors.New("remoteguard: validation failed")
	ErrInvalidKey          = errors.New("remoteguard: invalid cache key")
	ErrCacheMiss           = errors.New("remoteguard: cache entry not found")
	ErrRedisUnavailable    = errors.New("remoteguard: redis unavailable")
	ErrClosed              = errors.New("remoteguard: closed")
	ErrBulkheadFull        = errors.New("remoteguard: bulkhead at capacity")
	ErrBulkheadTimeout     = errors.New("remoteguard: bulkhead timeout")
	ErrSerializationFailed = errors.New("remoteguard: serialization failed")
	ErrShutdownTimeout     = errors.New("remoteguard: shutdown timeout waiting for background operations")
)

// ErrorKind is the coarse failure taxonomy. Retryability and fallback
// eligibility are decided from the kind and class, never from Go types.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindTransient
	KindPermanent
	KindCircuitOpen
	KindCancellation
	KindCombined
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindCircuitOpen:
		return "circuit-open"
	case KindCancellation:
		return "cancellation"
	case KindCombined:
		return "combined"
	default:
		return "unknown"
	}
}

// ErrorClass is the fine-grained failure class used for messages and guidance.
type ErrorClass int

const (
	ClassUnknown ErrorClass = iota
	ClassValidation
	ClassBadRequest
	ClassAuthentication
	ClassAuthorization
	ClassNotFound
	ClassUnprocessable
	ClassRequestTimeout
	ClassRateLimit
	ClassServer
	ClassNetwork
	ClassTimeout
	ClassUnavailable
	ClassCancelled
)

func (c ErrorClass) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassBadRequest:
		return "bad-request"
	case ClassAuthentication:
		return "authentication"
	case ClassAuthorization:
		return "authorization"
	case ClassNotFound:
		return "not-found"
	case ClassUnprocessable:
		return "unprocessable"
	case ClassRequestTimeout:
		return "request-timeout"
	case ClassRateLimit:
		return "rate-limit"
	case ClassServer:
		return "server"
	case ClassNetwork:
		return "network"
	case ClassTimeout:
		return "timeout"
	case ClassUnavailable:
		return "unavailable"
	case ClassCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Kind maps a class onto the coarse taxonomy.
func (c ErrorClass) Kind() ErrorKind {
	switch c {
	case ClassValidation:
		return KindValidation
	case ClassBadRequest, ClassAuthentication, ClassAuthorization, ClassNotFound, ClassUnprocessable:
		return KindPermanent
	case ClassRequestTimeout, ClassRateLimit, ClassServer, ClassNetwork, ClassTimeout:
		return KindTransient
	case ClassUnavailable:
		return KindCircuitOpen
	case ClassCancelled:
		return KindCancellation
	default:
		return KindUnknown
	}
}

// ClassForStatus maps an HTTP status code to an error class.
func ClassForStatus(status int) ErrorClass {
	switch {
	case status == http.StatusBadRequest:
		return ClassBadRequest
	case status == http.StatusUnauthorized:
		return ClassAuthentication
	case status == http.StatusForbidden:
		return ClassAuthorization
	case status == http.StatusNotFound:
		return ClassNotFound
	case status == http.StatusRequestTimeout:
		return ClassRequestTimeout
	case status == http.StatusUnprocessableEntity:
		return ClassUnprocessable
	case status == http.StatusTooManyRequests:
		return ClassRateLimit
	case status >= 500 && status <= 599:
		return ClassServer
	default:
		return ClassUnknown
	}
}

// RemoteError is the classified failure a remote operation reports.
type RemoteError struct {
	Headers    map[string][]string
	Cause      error
	Code       string
	Message    string
	StatusCode int
}

// NewRemoteError creates a RemoteError for an HTTP status with an optional machine code.
func NewRemoteError(status int, code, message string) *RemoteError {
	return &RemoteError{
		StatusCode: status,
		Code:       code,
		Message:    message,
	}
}

func (e *RemoteError) Error() string {
	var b strings.Builder
	b.WriteString("remote error")
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " %d", e.StatusCode)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " [%s]", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *RemoteError) Unwrap() error {
	return e.Cause
}

// WithHeaders attaches response headers and returns the receiver.
func (e *RemoteError) WithHeaders(headers map[string][]string) *RemoteError {
	e.Headers = headers
	return e
}

// WithCause sets the underlying cause and returns the receiver.
func (e *RemoteError) WithCause(cause error) *RemoteError {
	e.Cause = cause
	return e
}

// Class returns the class derived from the status code.
func (e *RemoteError) Class() ErrorClass {
	return ClassForStatus(e.StatusCode)
}

// Kind returns the taxonomy kind derived from the status code.
func (e *RemoteError) Kind() ErrorKind {
	return e.Class().Kind()
}

// ValidationError reports invalid input detected before any remote call.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return "validation failed: " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// CircuitOpenError is returned when the breaker short-circuits a call.
type CircuitOpenError struct {
	NextAttemptTime time.Time
	Name            string
}

func (e *CircuitOpenError) Error() string {
	name := e.Name
	if name == "" {
		name = "remote service"
	}
	if e.NextAttemptTime.IsZero() {
		return fmt.Sprintf("circuit breaker is open: %s is temporarily unavailable", name)
	}
	return fmt.Sprintf("circuit breaker is open: %s is temporarily unavailable, next attempt at %s",
		name, e.NextAttemptTime.Format(time.RFC3339))
}

func (e *CircuitOpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}

// CancellationError is returned when the caller cancels or a per-call deadline expires.
type CancellationError struct {
	Cause   error
	After   time.Duration
	Timeout bool
}

// NewCancellationError builds a CancellationError from a context error.
func NewCancellationError(cause error) *CancellationError {
	return &CancellationError{Cause: cause}
}

// NewTimeoutError builds a CancellationError for an expired per-call deadline.
func NewTimeoutError(after time.Duration, cause error) *CancellationError {
	return &CancellationError{Cause: cause, After: after, Timeout: true}
}

func (e *CancellationError) Error() string {
	if e.Timeout {
		if e.After > 0 {
			return fmt.Sprintf("operation timed out after %s", e.After)
		}
		return "operation timed out"
	}
	return "operation cancelled"
}

func (e *CancellationError) Unwrap() error {
	return e.Cause
}

func (e *CancellationError) Is(target error) bool {
	if target == ErrCancelled {
		return true
	}
	return e.Timeout && target == ErrTimeout
}

// RetryExhaustedError wraps the last failure after every attempt was used.
type RetryExhaustedError struct {
	Err      error
	Attempts int
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("operation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}

// CombinedFailureError is returned when both the primary and the fallback failed.
type CombinedFailureError struct {
	PrimaryErr  error
	FallbackErr error
	Operation   string
}

func (e *CombinedFailureError) Error() string {
	return fmt.Sprintf("%s failed: primary error: %v; fallback error: %v",
		e.Operation, e.PrimaryErr, e.FallbackErr)
}

func (e *CombinedFailureError) Unwrap() []error {
	return []error{e.PrimaryErr, e.FallbackErr}
}

// CacheError adds operation context to a cache layer failure.
type CacheError struct {
	Err   error
	Op    string
	Key   string
	Layer string
}

func (e *CacheError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("cache %s on %s [%s]: %v", e.Op, e.Layer, e.Key, e.Err)
	}
	return fmt.Sprintf("cache %s on %s: %v", e.Op, e.Layer, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

func NewCacheError(op, key, layer string, err error) *CacheError {
	return &CacheError{
		Op:    op,
		Key:   key,
		Layer: layer,
		Err:   err,
	}
}

func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

func IsRedisUnavailable(err error) bool {
	return errors.Is(err, ErrRedisUnavailable)
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

func IsBulkheadError(err error) bool {
	return errors.Is(err, ErrBulkheadFull) || errors.Is(err, ErrBulkheadTimeout)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidKey)
}

func IsCombinedFailure(err error) bool {
	var combined *CombinedFailureError
	return errors.As(err, &combined)
}

// IsTimeout reports whether err is a per-call deadline expiry raised by the core.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
