package resilience

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/LavishGent/remoteguard/internal/types"
)

// OperationResult is the outcome of one input of a batch.
type OperationResult[In, Out any] struct {
	Input     In
	Result    Out
	Err       error
	IsSuccess bool
}

// PartialResult collects per-input outcomes in input order.
type PartialResult[In, Out any] struct {
	Results      []OperationResult[In, Out]
	SuccessCount int
	FailureCount int
}

// AllSucceeded reports whether no input failed. An empty batch succeeds.
func (p *PartialResult[In, Out]) AllSucceeded() bool {
	return p.FailureCount == 0 && p.SuccessCount > 0
}

// HasAnySuccess reports whether at least one input succeeded.
func (p *PartialResult[In, Out]) HasAnySuccess() bool {
	return p.SuccessCount > 0
}

// SuccessfulResults returns the outputs of successful inputs in input order.
func (p *PartialResult[In, Out]) SuccessfulResults() []Out {
	out := make([]Out, 0, p.SuccessCount)
	for _, r := range p.Results {
		if r.IsSuccess {
			out = append(out, r.Result)
		}
	}
	return out
}

// Failures returns the failed results in input order.
func (p *PartialResult[In, Out]) Failures() []OperationResult[In, Out] {
	failures := make([]OperationResult[In, Out], 0, p.FailureCount)
	for _, r := range p.Results {
		if !r.IsSuccess {
			failures = append(failures, r)
		}
	}
	return failures
}

func (p *PartialResult[In, Out]) record(r OperationResult[In, Out]) {
	p.Results = append(p.Results, r)
	if r.IsSuccess {
		p.SuccessCount++
	} else {
		p.FailureCount++
	}
}

// ExecutePartial runs op for each input in order through the service's
// resilient path. With continueOnFailure every input is attempted, breaker
// rejections included; otherwise the batch stops after the first failure.
// Caller cancellation stops the batch and returns what was gathered along
// with the cancellation error.
func ExecutePartial[In, Out any](
	ctx context.Context,
	s *Service,
	inputs []In,
	op func(ctx context.Context, input In) (Out, error),
	continueOnFailure bool,
	opts ...ExecOption,
) (*PartialResult[In, Out], error) {
	settings := s.settings(opts)
	result := &PartialResult[In, Out]{Results: make([]OperationResult[In, Out], 0, len(inputs))}

	for i, input := range inputs {
		out, err := execute(ctx, s, settings, func(ctx context.Context) (Out, error) {
			return op(ctx, input)
		})
		if err != nil && ctx.Err() != nil {
			s.logger.Info("Batch cancelled",
				"operation", settings.operation,
				"completed", i,
				"total", len(inputs),
			)
			return result, err
		}

		result.record(OperationResult[In, Out]{Input: input, Result: out, Err: err, IsSuccess: err == nil})
		if err != nil && !continueOnFailure {
			s.logger.Debug("Batch stopped at first failure",
				"operation", settings.operation,
				"index", i,
				"error", err,
			)
			break
		}
	}

	if result.FailureCount > 0 {
		s.logger.Warn("Batch completed with failures",
			"operation", settings.operation,
			"succeeded", result.SuccessCount,
			"failed", result.FailureCount,
			"total", len(inputs),
		)
	}
	return result, nil
}

// ExecutePartialConcurrent attempts every input with at most limit running at
// once. Results keep input order. A non-positive limit means unbounded.
func ExecutePartialConcurrent[In, Out any](
	ctx context.Context,
	s *Service,
	inputs []In,
	op func(ctx context.Context, input In) (Out, error),
	limit int,
	opts ...ExecOption,
) (*PartialResult[In, Out], error) {
	settings := s.settings(opts)
	results := make([]OperationResult[In, Out], len(inputs))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, input := range inputs {
		g.Go(func() error {
			out, err := execute(ctx, s, settings, func(ctx context.Context) (Out, error) {
				return op(ctx, input)
			})
			results[i] = OperationResult[In, Out]{Input: input, Result: out, Err: err, IsSuccess: err == nil}
			return nil
		})
	}
	_ = g.Wait()

	result := &PartialResult[In, Out]{Results: make([]OperationResult[In, Out], 0, len(inputs))}
	for _, r := range results {
		result.record(r)
	}
	if err := ctx.Err(); err != nil {
		return result, types.NewCancellationError(err)
	}
	return result, nil
}
