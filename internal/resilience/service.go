package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/LavishGent/remoteguard/internal/config"
	"github.com/LavishGent/remoteguard/internal/metrics"
	"github.com/LavishGent/remoteguard/internal/types"
)

const defaultOperationName = "remote-call"

// Service composes the circuit breaker, retry, rate limiting, bulkheading
// and per-call deadlines around remote operations.
type Service struct {
	logger    *slog.Logger
	metrics   types.MetricsRecorder
	breaker   CircuitBreakerExecutor
	handler   *ErrorHandler
	limiter   *rate.Limiter
	bulkhead  BulkheadExecutor
	now       func() time.Time
	operation string
	policy    RetryPolicy
	timeout   time.Duration
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger for the service and its default error handler.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the recorder for executions, errors and breaker transitions.
func WithMetrics(recorder types.MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithCircuitBreaker replaces the breaker built from configuration.
func WithCircuitBreaker(breaker CircuitBreakerExecutor) ServiceOption {
	return func(s *Service) {
		if breaker != nil {
			s.breaker = breaker
		}
	}
}

// WithErrorHandler replaces the retry handler built from configuration.
func WithErrorHandler(handler *ErrorHandler) ServiceOption {
	return func(s *Service) {
		if handler != nil {
			s.handler = handler
		}
	}
}

// WithRateLimiter installs a client-side limiter waited on before every attempt.
func WithRateLimiter(limiter *rate.Limiter) ServiceOption {
	return func(s *Service) {
		s.limiter = limiter
	}
}

// WithBulkhead replaces the bulkhead built from config.
func WithBulkhead(bulkhead BulkheadExecutor) ServiceOption {
	return func(s *Service) {
		if bulkhead != nil {
			s.bulkhead = bulkhead
		}
	}
}

// WithClock replaces the time source used for latency measurement and by the
// breaker built from configuration.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService builds a Service from configuration. A nil cfg uses DefaultConfig.
func NewService(cfg *config.Config, opts ...ServiceOption) *Service {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	s := &Service{
		logger:    slog.Default(),
		metrics:   metrics.NewNoOpRecorder(),
		now:       time.Now,
		operation: cfg.Execution.OperationName,
		policy:    RetryPolicyFromConfig(cfg.Retry),
		timeout:   cfg.Execution.DefaultTimeout,
	}
	if s.operation == "" {
		s.operation = defaultOperationName
	}

	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "resilient-execution")

	if s.handler == nil {
		s.handler = NewErrorHandler(WithHandlerLogger(s.logger), WithHandlerMetrics(s.metrics))
	}
	if s.breaker == nil {
		if cfg.CircuitBreaker.Enabled {
			s.breaker = NewCircuitBreaker(CircuitBreakerOptionsFromConfig(cfg.CircuitBreaker), WithBreakerClock(s.now))
		} else {
			s.breaker = NewDisabledCircuitBreaker()
		}
	}
	if s.limiter == nil && cfg.RateLimit.Enabled {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)
	}
	if s.bulkhead == nil {
		if cfg.Bulkhead.Enabled {
			s.bulkhead = NewBulkhead(cfg.Bulkhead)
		} else {
			s.bulkhead = NewDisabledBulkhead()
		}
	}

	name := s.breaker.Stats().Name
	s.breaker.SetOnStateChange(func(from, to State) {
		level := slog.LevelInfo
		if to == StateOpen {
			level = slog.LevelWarn
		}
		s.logger.Log(context.Background(), level, "Circuit breaker state changed",
			"breaker", name,
			"from", from.String(),
			"to", to.String(),
		)
		s.metrics.RecordCircuitBreakerStateChange(name, from.String(), to.String())
	})

	return s
}

// execSettings are the per-call settings resolved from ExecOptions.
type execSettings struct {
	policy    RetryPolicy
	timeout   time.Duration
	operation string
}

// ExecOption overrides a Service default for one call.
type ExecOption func(*execSettings)

// WithPolicy overrides the retry policy for one call.
func WithPolicy(policy RetryPolicy) ExecOption {
	return func(e *execSettings) {
		e.policy = policy
	}
}

// WithTimeout sets the overall deadline covering every attempt and retry
// delay. Zero or negative disables the per-call deadline.
func WithTimeout(timeout time.Duration) ExecOption {
	return func(e *execSettings) {
		e.timeout = timeout
	}
}

// WithOperationName names the call in logs and metrics. An empty name keeps
// the default.
func WithOperationName(name string) ExecOption {
	return func(e *execSettings) {
		if name != "" {
			e.operation = name
		}
	}
}

func (s *Service) settings(opts []ExecOption) execSettings {
	settings := execSettings{policy: s.policy, timeout: s.timeout, operation: s.operation}
	for _, opt := range opts {
		opt(&settings)
	}
	return settings
}

// Execute runs op through the bulkhead, the circuit breaker and the retry
// loop under a deadline derived from ctx. An expired deadline yields a
// CancellationError with Timeout set.
func Execute[T any](ctx context.Context, s *Service, op Operation[T], opts ...ExecOption) (T, error) {
	settings := s.settings(opts)
	return execute(ctx, s, settings, op)
}

func execute[T any](ctx context.Context, s *Service, settings execSettings, op Operation[T]) (T, error) {
	var result T
	if op == nil {
		return result, types.NewValidationError("operation", "must not be nil")
	}

	callCtx := ctx
	if settings.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, settings.timeout)
		defer cancel()
	}

	start := s.now()
	err := s.bulkhead.ExecuteCtx(callCtx, func(bctx context.Context) error {
		return s.breaker.Execute(bctx, func(cbctx context.Context) error {
			r, err := executeWithRetry(cbctx, s.handler, settings.policy, settings.operation, rateLimited(s.limiter, op))
			result = r
			return err
		})
	})
	err = s.timeoutAware(ctx, callCtx, settings.timeout, err)
	latency := s.now().Sub(start)

	s.metrics.RecordExecution(settings.operation, err == nil, latency)
	if err != nil {
		var zero T
		result = zero
		class := Classify(err)
		s.metrics.RecordError(settings.operation, class)
		s.logger.Debug("Remote operation failed",
			"operation", settings.operation,
			"class", class.String(),
			"latency", latency,
			"error", err,
		)
	}
	return result, err
}

// rateLimited waits on the limiter before each attempt.
func rateLimited[T any](limiter *rate.Limiter, op Operation[T]) Operation[T] {
	if limiter == nil {
		return op
	}
	return func(ctx context.Context) (T, error) {
		if err := limiter.Wait(ctx); err != nil {
			var zero T
			if ctxErr := ctx.Err(); ctxErr != nil {
				return zero, types.NewCancellationError(ctxErr)
			}
			// The wait would outlast the deadline.
			return zero, types.NewTimeoutError(0, err)
		}
		return op(ctx)
	}
}

// timeoutAware separates caller cancellation from the per-call deadline.
func (s *Service) timeoutAware(parent, callCtx context.Context, timeout time.Duration, err error) error {
	if err == nil {
		return nil
	}
	if parentErr := parent.Err(); parentErr != nil {
		if errors.Is(parentErr, context.DeadlineExceeded) {
			return types.NewTimeoutError(0, parentErr)
		}
		return types.NewCancellationError(parentErr)
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return types.NewTimeoutError(timeout, context.DeadlineExceeded)
	}
	return err
}

// CircuitBreakerStats returns the breaker's latest statistics.
func (s *Service) CircuitBreakerStats() CircuitBreakerStats {
	return s.breaker.Stats()
}

// ResetCircuitBreaker forces the breaker closed.
func (s *Service) ResetCircuitBreaker() {
	s.breaker.Reset()
}

// CircuitState returns the breaker state without building a full snapshot.
func (s *Service) CircuitState() State {
	return s.breaker.State()
}

// BulkheadStats returns the bulkhead counters. A disabled bulkhead reports zeros.
func (s *Service) BulkheadStats() BulkheadStats {
	return s.bulkhead.Stats()
}

// Handler returns the retry handler used by the service.
func (s *Service) Handler() *ErrorHandler {
	return s.handler
}
