package resilience

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LavishGent/remoteguard/internal/config"
	"github.com/LavishGent/remoteguard/internal/types"
)

// lookup fails with 404 for odd inputs.
func lookup(_ context.Context, id int) (string, error) {
	if id%2 == 1 {
		return "", types.NewRemoteError(404, "ProjectNotFound", fmt.Sprintf("project %d", id))
	}
	return fmt.Sprintf("project-%d", id), nil
}

func TestExecutePartial(t *testing.T) {
	inputs := []int{0, 1, 2, 3, 4}

	t.Run("continue on failure attempts every input", func(t *testing.T) {
		s, _ := newTestService(t, func(cfg *config.Config) { cfg.CircuitBreaker.Enabled = false })

		res, err := ExecutePartial(context.Background(), s, inputs, lookup, true)

		require.NoError(t, err)
		assert.Equal(t, len(inputs), res.SuccessCount+res.FailureCount)
		assert.Equal(t, 3, res.SuccessCount)
		assert.Equal(t, 2, res.FailureCount)
		assert.Equal(t, []string{"project-0", "project-2", "project-4"}, res.SuccessfulResults())
		for i, r := range res.Results {
			assert.Equal(t, inputs[i], r.Input)
		}
		failures := res.Failures()
		require.Len(t, failures, 2)
		assert.Equal(t, 1, failures[0].Input)
		assert.True(t, res.HasAnySuccess())
		assert.False(t, res.AllSucceeded())
	})

	t.Run("stop at and include first failure", func(t *testing.T) {
		s, _ := newTestService(t, nil)

		res, err := ExecutePartial(context.Background(), s, inputs, lookup, false)

		require.NoError(t, err)
		require.Len(t, res.Results, 2)
		assert.True(t, res.Results[0].IsSuccess)
		assert.False(t, res.Results[1].IsSuccess)
		assert.Equal(t, 1, res.FailureCount)
	})

	t.Run("breaker rejections are recorded and do not abort", func(t *testing.T) {
		s, _ := newTestService(t, func(cfg *config.Config) {
			cfg.CircuitBreaker.FailureThreshold = 1
			cfg.CircuitBreaker.OpenTimeout = time.Hour
		})
		var calls atomic.Int32

		res, err := ExecutePartial(context.Background(), s, inputs, func(ctx context.Context, id int) (string, error) {
			calls.Add(1)
			return lookup(ctx, id)
		}, true)

		require.NoError(t, err)
		assert.Equal(t, len(inputs), res.SuccessCount+res.FailureCount)
		assert.Equal(t, int32(2), calls.Load())
		for _, f := range res.Failures()[1:] {
			assert.True(t, types.IsCircuitOpen(f.Err))
		}
	})

	t.Run("all succeed", func(t *testing.T) {
		s, _ := newTestService(t, nil)

		res, err := ExecutePartial(context.Background(), s, []int{0, 2, 4}, lookup, false)

		require.NoError(t, err)
		assert.True(t, res.AllSucceeded())
	})

	t.Run("empty input", func(t *testing.T) {
		s, _ := newTestService(t, nil)

		res, err := ExecutePartial(context.Background(), s, nil, lookup, true)

		require.NoError(t, err)
		assert.Empty(t, res.Results)
		assert.False(t, res.AllSucceeded())
		assert.False(t, res.HasAnySuccess())
	})

	t.Run("caller cancellation stops the batch", func(t *testing.T) {
		s, _ := newTestService(t, nil)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		res, err := ExecutePartial(ctx, s, inputs, func(ctx context.Context, id int) (string, error) {
			if id == 2 {
				cancel()
				return "", ctx.Err()
			}
			return lookup(ctx, id)
		}, true)

		assert.True(t, IsCancellation(err))
		require.NotNil(t, res)
		assert.Len(t, res.Results, 2)
	})

	t.Run("per-item timeout is recorded as a failure", func(t *testing.T) {
		s, _ := newTestService(t, func(cfg *config.Config) { cfg.CircuitBreaker.Enabled = false })

		res, err := ExecutePartial(context.Background(), s, []int{0, 2}, func(ctx context.Context, id int) (string, error) {
			if id == 2 {
				<-ctx.Done()
				return "", ctx.Err()
			}
			return "ok", nil
		}, true, WithTimeout(10*time.Millisecond))

		require.NoError(t, err)
		assert.Equal(t, 1, res.FailureCount)
		assert.True(t, types.IsTimeout(res.Results[1].Err))
	})
}

func TestExecutePartialConcurrent(t *testing.T) {
	s, _ := newTestService(t, func(cfg *config.Config) { cfg.CircuitBreaker.Enabled = false })
	inputs := make([]int, 40)
	for i := range inputs {
		inputs[i] = i
	}

	var active, maxActive atomic.Int32
	res, err := ExecutePartialConcurrent(context.Background(), s, inputs, func(ctx context.Context, id int) (string, error) {
		current := active.Add(1)
		defer active.Add(-1)
		for {
			old := maxActive.Load()
			if current <= old || maxActive.CompareAndSwap(old, current) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		return lookup(ctx, id)
	}, 4)

	require.NoError(t, err)
	assert.LessOrEqual(t, maxActive.Load(), int32(4))
	assert.Equal(t, 20, res.SuccessCount)
	assert.Equal(t, 20, res.FailureCount)
	for i, r := range res.Results {
		assert.Equal(t, i, r.Input)
	}
}
