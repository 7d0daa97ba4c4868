package fallback

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LavishGent/remoteguard/internal/types"
)

func TestExecuteAnalysisWithFallback(t *testing.T) {
	ctx := context.Background()

	t.Run("success caches the result", func(t *testing.T) {
		o, clock := newTestOrchestrator(t)

		res, err := ExecuteAnalysisWithFallback(ctx, o, "project-1", returns(report{Project: "project-1", Issues: 4}), noFallback(t))
		require.NoError(t, err)
		assert.False(t, res.UsedFallback)

		entry, err := CachedEntryFor[report](ctx, o, "project-1")
		require.NoError(t, err)
		assert.Equal(t, "project-1", entry.Key)
		assert.Equal(t, 4, entry.Value.Issues)
		assert.True(t, entry.CachedAt.Equal(clock.Now()))
	})

	t.Run("later success overwrites the entry", func(t *testing.T) {
		o, clock := newTestOrchestrator(t)

		_, err := ExecuteAnalysisWithFallback(ctx, o, "p", returns(report{Issues: 1}), noFallback(t))
		require.NoError(t, err)
		clock.Advance(time.Hour)
		_, err = ExecuteAnalysisWithFallback(ctx, o, "p", returns(report{Issues: 2}), noFallback(t))
		require.NoError(t, err)

		entry, err := CachedEntryFor[report](ctx, o, "p")
		require.NoError(t, err)
		assert.Equal(t, 2, entry.Value.Issues)
		assert.True(t, entry.CachedAt.Equal(clock.Now()))
	})

	t.Run("fallback receives cached data then none after clear", func(t *testing.T) {
		rec := &fallbackRecorder{}
		o, clock := newTestOrchestrator(t, WithMetrics(rec))
		cachedAt := clock.Now()

		_, err := ExecuteAnalysisWithFallback(ctx, o, "p", returns(report{Project: "p", Issues: 9}), noFallback(t))
		require.NoError(t, err)

		var seen *CachedEntry[report]
		fb := func(_ context.Context, cached *CachedEntry[report]) (report, error) {
			seen = cached
			if cached == nil {
				return report{Project: "manual"}, nil
			}
			return cached.Value, nil
		}

		res, err := ExecuteAnalysisWithFallback(ctx, o, "p", fails(errServer), fb)
		require.NoError(t, err)
		require.NotNil(t, seen)
		assert.True(t, res.UsedFallback)
		assert.True(t, res.UsedCachedData)
		assert.Equal(t, 9, res.Value.Issues)
		assert.True(t, res.CachedAt.Equal(cachedAt))
		assert.Equal(t, []string{"Using cached data from " + cachedAt.Format(time.RFC3339)}, res.Warnings)

		require.NoError(t, o.ClearCache(ctx, "p"))

		res, err = ExecuteAnalysisWithFallback(ctx, o, "p", fails(errServer), fb)
		require.NoError(t, err)
		assert.Nil(t, seen)
		assert.True(t, res.UsedFallback)
		assert.False(t, res.UsedCachedData)
		assert.Equal(t, "manual", res.Value.Project)
		assert.Equal(t, []string{"No cached data available"}, res.Warnings)

		assert.Equal(t, int32(2), rec.succeeded.Load())
		assert.Equal(t, int32(1), rec.withCache.Load())
	})

	t.Run("ineligible failure skips the cache", func(t *testing.T) {
		o, _ := newTestOrchestrator(t)
		_, err := ExecuteAnalysisWithFallback(ctx, o, "p", fails(errNotFound), noFallback(t))
		assert.Same(t, errNotFound, err)
	})

	t.Run("both failing yields combined error", func(t *testing.T) {
		o, _ := newTestOrchestrator(t)
		fb := func(context.Context, *CachedEntry[report]) (report, error) {
			return report{}, errAuth
		}

		_, err := ExecuteAnalysisWithFallback(ctx, o, "project-7", fails(errServer), fb)
		require.Error(t, err)
		assert.True(t, types.IsCombinedFailure(err))
		assert.Contains(t, err.Error(), "project-7")
	})

	t.Run("requires a key", func(t *testing.T) {
		o, _ := newTestOrchestrator(t)
		_, err := ExecuteAnalysisWithFallback(ctx, o, "", returns(report{}), noFallback(t))
		assert.True(t, types.IsValidation(err))
	})

	t.Run("concurrent callers share one primary call", func(t *testing.T) {
		o, _ := newTestOrchestrator(t)
		var calls atomic.Int32
		release := make(chan struct{})
		primary := func(context.Context) (report, error) {
			calls.Add(1)
			<-release
			return report{Project: "shared", Issues: 3}, nil
		}

		var wg sync.WaitGroup
		results := make([]report, 10)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				res, err := ExecuteAnalysisWithFallback(ctx, o, "shared", primary, noFallback(t))
				assert.NoError(t, err)
				results[i] = res.Value
			}(i)
		}

		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()

		assert.Equal(t, int32(1), calls.Load())
		for _, r := range results {
			assert.Equal(t, 3, r.Issues)
		}
	})

	t.Run("waiter honours its own context", func(t *testing.T) {
		o, _ := newTestOrchestrator(t)
		abandoned := make(chan struct{})
		primary := func(pctx context.Context) (report, error) {
			<-pctx.Done()
			close(abandoned)
			return report{}, pctx.Err()
		}

		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		_, err := ExecuteAnalysisWithFallback(cctx, o, "slow", primary, noFallback(t))
		assert.ErrorIs(t, err, types.ErrCancelled)

		select {
		case <-abandoned:
		case <-time.After(time.Second):
			t.Fatal("shared call was not cancelled after its only caller left")
		}
	})

	t.Run("one caller cancelling does not cancel the others", func(t *testing.T) {
		o, _ := newTestOrchestrator(t)
		var calls atomic.Int32
		started := make(chan struct{})
		release := make(chan struct{})
		var primaryErr atomic.Value
		primary := func(pctx context.Context) (report, error) {
			if calls.Add(1) == 1 {
				close(started)
			}
			<-release
			if err := pctx.Err(); err != nil {
				primaryErr.Store(err)
				return report{}, err
			}
			return report{Project: "k", Issues: 5}, nil
		}

		actx, cancelA := context.WithCancel(ctx)
		errA := make(chan error, 1)
		go func() {
			_, err := ExecuteAnalysisWithFallback(actx, o, "k", primary, noFallback(t))
			errA <- err
		}()
		<-started

		type outcome struct {
			res FallbackResult[report]
			err error
		}
		doneB := make(chan outcome, 1)
		go func() {
			res, err := ExecuteAnalysisWithFallback(ctx, o, "k", primary, noFallback(t))
			doneB <- outcome{res, err}
		}()
		time.Sleep(20 * time.Millisecond)

		cancelA()
		assert.ErrorIs(t, <-errA, types.ErrCancelled)

		close(release)
		b := <-doneB
		require.NoError(t, b.err)
		assert.False(t, b.res.UsedFallback)
		assert.Equal(t, 5, b.res.Value.Issues)
		assert.Nil(t, primaryErr.Load())
		assert.Equal(t, int32(1), calls.Load())

		entry, err := CachedEntryFor[report](ctx, o, "k")
		require.NoError(t, err)
		assert.Equal(t, 5, entry.Value.Issues)
	})

	t.Run("new caller after everyone left starts a fresh call", func(t *testing.T) {
		o, _ := newTestOrchestrator(t)
		abandoned := func(pctx context.Context) (report, error) {
			<-pctx.Done()
			return report{}, pctx.Err()
		}

		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		_, err := ExecuteAnalysisWithFallback(cctx, o, "again", abandoned, noFallback(t))
		assert.ErrorIs(t, err, types.ErrCancelled)

		res, err := ExecuteAnalysisWithFallback(ctx, o, "again", returns(report{Issues: 8}), noFallback(t))
		require.NoError(t, err)
		assert.Equal(t, 8, res.Value.Issues)
	})
}

func TestCacheStatistics(t *testing.T) {
	ctx := context.Background()
	o, clock := newTestOrchestrator(t)
	first := clock.Now()

	for _, key := range []string{"b-project", "a-project"} {
		_, err := ExecuteAnalysisWithFallback(ctx, o, key, returns(report{Project: key}), noFallback(t))
		require.NoError(t, err)
		clock.Advance(time.Minute)
	}
	_, _ = CachedEntryFor[report](ctx, o, "missing")

	stats, err := o.CacheStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, "memory-only", stats.Layer)
	assert.Equal(t, 2, stats.EntryCount)
	require.Len(t, stats.Entries, 2)
	assert.Equal(t, "a-project", stats.Entries[0].Key)
	assert.Equal(t, time.Minute, stats.Entries[0].Age)
	assert.True(t, stats.OldestEntry.Equal(first))
	assert.True(t, stats.NewestEntry.Equal(first.Add(time.Minute)))
	assert.Equal(t, int64(1), stats.Misses)

	require.NoError(t, o.ClearAllCache(ctx))
	stats, err = o.CacheStatistics(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.EntryCount)
	assert.True(t, stats.OldestEntry.IsZero())
}

func noFallback(t *testing.T) AnalysisFallback[report] {
	return func(context.Context, *CachedEntry[report]) (report, error) {
		t.Error("fallback must not run")
		return report{}, nil
	}
}

func TestCachedEntryForMiss(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	entry, err := CachedEntryFor[report](context.Background(), o, "absent")
	assert.Nil(t, entry)
	assert.True(t, types.IsCacheMiss(err))
}
