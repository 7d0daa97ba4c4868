package resilience

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/LavishGent/remoteguard/internal/metrics"
	"github.com/LavishGent/remoteguard/internal/types"
)

// Operation is a remote call guarded by the resilience core.
type Operation[T any] func(ctx context.Context) (T, error)

// ErrorHandler runs operations with retry and classifies their failures.
type ErrorHandler struct {
	logger  *slog.Logger
	metrics types.MetricsRecorder
	now     func() time.Time
	random  func() float64
	sleep   func(ctx context.Context, d time.Duration) error
}

// HandlerOption configures an ErrorHandler.
type HandlerOption func(*ErrorHandler)

// WithHandlerLogger sets the logger retry attempts are reported to.
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *ErrorHandler) {
		if logger != nil {
			h.logger = logger.With("component", "error-handler")
		}
	}
}

// WithHandlerMetrics sets the recorder that receives RecordRetry.
func WithHandlerMetrics(recorder types.MetricsRecorder) HandlerOption {
	return func(h *ErrorHandler) {
		if recorder != nil {
			h.metrics = recorder
		}
	}
}

// NewErrorHandler creates a handler that logs to slog.Default and records no
// metrics unless configured otherwise.
func NewErrorHandler(opts ...HandlerOption) *ErrorHandler {
	h := &ErrorHandler{
		logger:  slog.Default().With("component", "error-handler"),
		metrics: metrics.NewNoOpRecorder(),
		now:     time.Now,
		random:  rand.Float64,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ExecuteWithRetry invokes op until it succeeds, fails with a non-retryable
// error, or policy.MaxAttempts is used up.
func ExecuteWithRetry[T any](ctx context.Context, h *ErrorHandler, policy RetryPolicy, op Operation[T]) (T, error) {
	return executeWithRetry(ctx, h, policy, "", op)
}

func executeWithRetry[T any](ctx context.Context, h *ErrorHandler, policy RetryPolicy, name string, op Operation[T]) (T, error) {
	var zero T
	if h == nil {
		h = NewErrorHandler()
	}
	policy = policy.Normalize()

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, types.NewCancellationError(err)
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, types.NewCancellationError(ctxErr)
		}
		if IsCancellation(err) || !IsRetryable(err) {
			return zero, err
		}

		lastErr = err
		if attempt == policy.MaxAttempts {
			break
		}

		delay := h.CalculateDelay(attempt, policy, err)
		h.logger.Warn("Retrying after transient failure",
			"operation", name,
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"delay", delay,
			"class", Classify(err).String(),
			"error", err,
		)
		h.metrics.RecordRetry(name, attempt, delay)

		if err := h.sleep(ctx, delay); err != nil {
			return zero, types.NewCancellationError(err)
		}
	}

	return zero, &types.RetryExhaustedError{Attempts: policy.MaxAttempts, Err: lastErr}
}

// CalculateDelay returns the wait before the attempt after the given one.
// Ordinary failures back off exponentially with ±50% jitter and never exceed
// MaxDelay. Rate-limit failures wait at least 2^attempt seconds, longer when
// the server says so, up to 15 minutes.
func (h *ErrorHandler) CalculateDelay(attempt int, policy RetryPolicy, err error) time.Duration {
	policy = policy.Normalize()
	if attempt < 1 {
		attempt = 1
	}

	if Classify(err) == types.ClassRateLimit {
		return h.rateLimitDelay(attempt, policy, err)
	}

	maxDelay := float64(policy.MaxDelay)
	delay := float64(policy.BaseDelay) * math.Pow(policy.BackoffMultiplier, float64(attempt-1))
	if delay > maxDelay {
		delay = maxDelay
	}
	if policy.Jitter {
		delay += delay * (h.random() - 0.5)
	}
	if delay > maxDelay {
		delay = maxDelay
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

func (h *ErrorHandler) rateLimitDelay(attempt int, policy RetryPolicy, err error) time.Duration {
	// 2^10s already exceeds the cap.
	exp := min(attempt, 10)
	delay := time.Duration(1<<exp) * time.Second

	if wait := h.serverWait(err); wait > delay {
		delay = wait
	}
	if delay > maxRateLimitWait {
		delay = maxRateLimitWait
	}
	if policy.Jitter {
		delay += time.Duration(float64(delay) * 0.5 * h.random())
	}
	if delay > maxRateLimitWait {
		delay = maxRateLimitWait
	}
	return delay
}

// serverWait is the wait requested by the server through Retry-After or rate-limit headers.
func (h *ErrorHandler) serverWait(err error) time.Duration {
	remoteErr, ok := asRemoteError(err)
	if !ok || len(remoteErr.Headers) == 0 {
		return 0
	}
	now := h.now()
	if d, ok := parseRetryAfter(remoteErr.Headers, now); ok {
		return d
	}
	info := ExtractRateLimitInfo(remoteErr.Headers)
	if info.ResetTime == 0 {
		return 0
	}
	return rateLimitWait(info, now)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
