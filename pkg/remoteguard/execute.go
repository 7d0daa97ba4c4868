package remoteguard

import (
	"context"

	"github.com/LavishGent/remoteguard/internal/fallback"
	"github.com/LavishGent/remoteguard/internal/resilience"
)

// Execute runs op through the client's rate limiter, bulkhead, circuit
// breaker and retry loop under a per-call deadline.
func Execute[T any](ctx context.Context, c *Client, op Operation[T], opts ...ExecOption) (T, error) {
	return resilience.Execute(ctx, c.service, op, opts...)
}

// ExecutePartial runs op for every input in order. With continueOnFailure
// every input is attempted; without it the batch stops at the first failure.
func ExecutePartial[In, Out any](
	ctx context.Context,
	c *Client,
	inputs []In,
	op func(ctx context.Context, input In) (Out, error),
	continueOnFailure bool,
	opts ...ExecOption,
) (*PartialResult[In, Out], error) {
	return resilience.ExecutePartial(ctx, c.service, inputs, op, continueOnFailure, opts...)
}

// ExecutePartialConcurrent runs op for every input with at most limit calls
// in flight. Results keep input order.
func ExecutePartialConcurrent[In, Out any](
	ctx context.Context,
	c *Client,
	inputs []In,
	op func(ctx context.Context, input In) (Out, error),
	limit int,
	opts ...ExecOption,
) (*PartialResult[In, Out], error) {
	return resilience.ExecutePartialConcurrent(ctx, c.service, inputs, op, limit, opts...)
}

// ExecuteWithFallback runs primary through the resilient path and falls back
// when the failure is fallback-eligible. The fallback runs unguarded.
func ExecuteWithFallback[T any](
	ctx context.Context,
	c *Client,
	primary, fallbackOp Operation[T],
	operationName string,
	opts ...ExecOption,
) (FallbackResult[T], error) {
	if primary == nil {
		return fallback.ExecuteWithFallback(ctx, c.orchestrator, nil, fallbackOp, operationName)
	}
	opts = append([]ExecOption{WithOperationName(operationName)}, opts...)
	return fallback.ExecuteWithFallback(ctx, c.orchestrator, guarded(c, primary, opts), fallbackOp, operationName)
}

// ExecuteAnalysisWithFallback runs primary through the resilient path, caches
// its result under key and, on an eligible failure, hands the cached entry to
// fallbackOp.
func ExecuteAnalysisWithFallback[T any](
	ctx context.Context,
	c *Client,
	key string,
	primary Operation[T],
	fallbackOp AnalysisFallback[T],
	opts ...ExecOption,
) (FallbackResult[T], error) {
	if primary == nil {
		return fallback.ExecuteAnalysisWithFallback(ctx, c.orchestrator, key, nil, fallbackOp)
	}
	return fallback.ExecuteAnalysisWithFallback(ctx, c.orchestrator, key, guarded(c, primary, opts), fallbackOp)
}

// CachedEntryFor returns the cached analysis for key, or ErrCacheMiss.
func CachedEntryFor[T any](ctx context.Context, c *Client, key string) (*CachedEntry[T], error) {
	return fallback.CachedEntryFor[T](ctx, c.orchestrator, key)
}

func guarded[T any](c *Client, op Operation[T], opts []ExecOption) Operation[T] {
	return func(ctx context.Context) (T, error) {
		return resilience.Execute(ctx, c.service, op, opts...)
	}
}
