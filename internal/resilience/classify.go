package resilience

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"syscall"

	"github.com/LavishGent/remoteguard/internal/types"
)

// Classify maps any error onto an ErrorClass. Cancellation is checked first,
// then the breaker and bulkhead, validation, remote status codes and finally
// transport failures.
func Classify(err error) types.ErrorClass {
	if err == nil {
		return types.ClassUnknown
	}

	var cancelErr *types.CancellationError
	if errors.As(err, &cancelErr) {
		if cancelErr.Timeout {
			return types.ClassTimeout
		}
		return types.ClassCancelled
	}
	if errors.Is(err, context.Canceled) {
		return types.ClassCancelled
	}

	if types.IsCircuitOpen(err) || types.IsBulkheadError(err) {
		return types.ClassUnavailable
	}

	if types.IsValidation(err) {
		return types.ClassValidation
	}

	var remoteErr *types.RemoteError
	if errors.As(err, &remoteErr) {
		if class := remoteErr.Class(); class != types.ClassUnknown {
			return class
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return types.ClassTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return types.ClassTimeout
	}
	if errors.Is(err, syscall.ETIMEDOUT) {
		return types.ClassTimeout
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return types.ClassNetwork
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return types.ClassNetwork
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return types.ClassNetwork
	}

	return types.ClassUnknown
}

// Kind maps an error onto the coarse taxonomy.
func Kind(err error) types.ErrorKind {
	switch {
	case err == nil:
		return types.KindUnknown
	case types.IsCombinedFailure(err):
		return types.KindCombined
	case IsCancellation(err):
		return types.KindCancellation
	}
	return Classify(err).Kind()
}

// IsCancellation reports caller cancellation or an expired per-call deadline.
// Such errors are never retried, never counted by a breaker and never fall back.
func IsCancellation(err error) bool {
	return errors.Is(err, types.ErrCancelled) || errors.Is(err, context.Canceled)
}

// IsRetryable reports whether another attempt could succeed.
func IsRetryable(err error) bool {
	if err == nil || IsCancellation(err) || types.IsCombinedFailure(err) {
		return false
	}

	switch Classify(err) {
	case types.ClassRequestTimeout, types.ClassRateLimit, types.ClassTimeout, types.ClassNetwork:
		return true
	case types.ClassServer:
		return retryableStatus(statusCode(err))
	default:
		return false
	}
}

// ShouldFallback reports whether a fallback path may replace the failed call.
// 404 and 429 never fall back. Transport timeouts (408, net.Error timeouts) do,
// but a CancellationError never does, and that includes the per-call deadline
// set through WithTimeout or execution.defaultTimeout: an expired deadline
// means the caller's time budget is spent. Callers that want a fallback after
// a slow primary should leave the per-call deadline unset and let the remote
// operation surface its own timeout.
func ShouldFallback(err error) bool {
	if err == nil || IsCancellation(err) || types.IsCombinedFailure(err) {
		return false
	}

	switch Classify(err) {
	case types.ClassAuthentication, types.ClassAuthorization, types.ClassServer,
		types.ClassRequestTimeout, types.ClassNetwork, types.ClassTimeout, types.ClassUnavailable:
		return true
	default:
		return false
	}
}

func retryableStatus(status int) bool {
	switch status {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func statusCode(err error) int {
	if remoteErr, ok := asRemoteError(err); ok {
		return remoteErr.StatusCode
	}
	return 0
}

func asRemoteError(err error) (*types.RemoteError, bool) {
	var remoteErr *types.RemoteError
	ok := errors.As(err, &remoteErr)
	return remoteErr, ok
}
