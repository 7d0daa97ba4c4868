// Package fallback substitutes a fallback result when a remote call fails in
// a way a fallback can help with, and keeps the last good analysis per key.
package fallback

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/LavishGent/remoteguard/internal/metrics"
	"github.com/LavishGent/remoteguard/internal/resilience"
	"github.com/LavishGent/remoteguard/internal/types"
)

// AnalysisCache is the store behind the orchestrator. It is satisfied by
// *cache.Manager.
type AnalysisCache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Entries(ctx context.Context) (map[string][]byte, error)
	Decode(data []byte, dest any) error
	Counters() (hits, misses int64)
	Level() types.CacheLevel
}

// FallbackResult is the outcome of a call that may have used its fallback.
type FallbackResult[T any] struct {
	CachedAt       time.Time
	Value          T
	PrimaryErr     error
	Warnings       []string
	UsedFallback   bool
	UsedCachedData bool
}

// Orchestrator pairs primary operations with fallbacks.
type Orchestrator struct {
	cache          AnalysisCache
	logger         *slog.Logger
	metrics        types.MetricsRecorder
	now            func() time.Time
	shouldFallback func(error) bool
	calls          map[string]*sharedCall
	group          singleflight.Group
	callsMu        sync.Mutex
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithMetrics(recorder types.MetricsRecorder) Option {
	return func(o *Orchestrator) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithClock sets the time source used to stamp cached entries.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithFallbackPredicate replaces resilience.ShouldFallback. Cancellation
// never falls back regardless of the predicate.
func WithFallbackPredicate(fn func(error) bool) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.shouldFallback = fn
		}
	}
}

// New creates an orchestrator over the given analysis cache.
func New(cache AnalysisCache, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cache:          cache,
		logger:         slog.Default(),
		metrics:        metrics.NewNoOpRecorder(),
		now:            time.Now,
		shouldFallback: resilience.ShouldFallback,
		calls:          make(map[string]*sharedCall),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "fallback-orchestrator")
	return o
}

// ExecuteWithFallback runs primary and, when its failure is fallback-eligible,
// fallback. When both fail the result is a CombinedFailureError naming
// operationName.
func ExecuteWithFallback[T any](
	ctx context.Context,
	o *Orchestrator,
	primary resilience.Operation[T],
	fallback resilience.Operation[T],
	operationName string,
) (FallbackResult[T], error) {
	var result FallbackResult[T]
	if primary == nil || fallback == nil {
		return result, types.NewValidationError("operation", "primary and fallback operations are required")
	}

	value, err := primary(ctx)
	if err == nil {
		result.Value = value
		return result, nil
	}

	if passErr := o.passThrough(ctx, err); passErr != nil {
		return result, passErr
	}

	o.logger.Warn("Primary operation failed, using fallback",
		"operation", operationName,
		"error_class", resilience.Classify(err).String(),
		"error", err,
	)

	value, fbErr := fallback(ctx)
	if fbErr != nil {
		return result, o.fallbackFailed(ctx, operationName, false, err, fbErr)
	}

	o.metrics.RecordFallback(operationName, false, true)
	result.Value = value
	result.UsedFallback = true
	result.PrimaryErr = err
	result.Warnings = []string{"Primary operation failed: " + resilience.TranslateError(err)}
	return result, nil
}

// passThrough returns the error the caller must see unchanged, or nil when
// the fallback should run.
func (o *Orchestrator) passThrough(ctx context.Context, err error) error {
	if resilience.IsCancellation(err) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return types.NewCancellationError(ctxErr)
	}
	if !o.shouldFallback(err) {
		return err
	}
	return nil
}

func (o *Orchestrator) fallbackFailed(ctx context.Context, operation string, usedCache bool, primaryErr, fallbackErr error) error {
	if resilience.IsCancellation(fallbackErr) {
		return fallbackErr
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return types.NewCancellationError(ctxErr)
	}

	o.metrics.RecordFallback(operation, usedCache, false)
	o.logger.Error("Fallback failed after primary failure",
		"operation", operation,
		"primary_error", primaryErr,
		"fallback_error", fallbackErr,
	)
	return &types.CombinedFailureError{
		Operation:   operation,
		PrimaryErr:  primaryErr,
		FallbackErr: fallbackErr,
	}
}

// CreateUserGuidance builds presentation guidance for err.
func (o *Orchestrator) CreateUserGuidance(err error, operationContext string) UserGuidance {
	return CreateUserGuidance(err, operationContext)
}
