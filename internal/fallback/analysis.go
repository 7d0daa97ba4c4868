package fallback

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/LavishGent/remoteguard/internal/resilience"
	"github.com/LavishGent/remoteguard/internal/types"
)

const (
	warningNoCachedData  = "No cached data available"
	warningUsingCachedAt = "Using cached data from "
)

// CachedEntry is the last successful analysis stored for a key.
type CachedEntry[T any] struct {
	CachedAt time.Time `json:"cachedAt"`
	Value    T         `json:"value"`
	Key      string    `json:"key"`
}

// AnalysisFallback produces a result when the primary analysis failed. cached
// is nil when no earlier analysis exists for the key.
type AnalysisFallback[T any] func(ctx context.Context, cached *CachedEntry[T]) (T, error)

// ExecuteAnalysisWithFallback runs primary for key and caches its result,
// replacing any earlier entry. Concurrent calls for the same key share one
// primary invocation. On an eligible failure, fallback receives the cached
// entry for key.
func ExecuteAnalysisWithFallback[T any](
	ctx context.Context,
	o *Orchestrator,
	key string,
	primary resilience.Operation[T],
	fallback AnalysisFallback[T],
) (FallbackResult[T], error) {
	var result FallbackResult[T]
	if key == "" {
		return result, types.NewValidationError("key", "analysis key is required")
	}
	if primary == nil || fallback == nil {
		return result, types.NewValidationError("operation", "primary and fallback operations are required")
	}

	value, err := sharedAnalysis(ctx, o, key, primary)
	if err == nil {
		result.Value = value
		return result, nil
	}

	if passErr := o.passThrough(ctx, err); passErr != nil {
		return result, passErr
	}

	cached, cacheErr := CachedEntryFor[T](ctx, o, key)
	if cacheErr != nil && !types.IsCacheMiss(cacheErr) {
		o.logger.Warn("Failed to read cached analysis", "key", key, "error", cacheErr)
	}

	result.UsedFallback = true
	result.PrimaryErr = err
	if cached != nil {
		result.UsedCachedData = true
		result.CachedAt = cached.CachedAt
		result.Warnings = append(result.Warnings, warningUsingCachedAt+cached.CachedAt.Format(time.RFC3339))
	} else {
		result.Warnings = append(result.Warnings, warningNoCachedData)
	}

	o.logger.Warn("Analysis failed, using fallback",
		"key", key,
		"cached", cached != nil,
		"error_class", resilience.Classify(err).String(),
		"error", err,
	)

	operation := "analysis " + key
	value, fbErr := fallback(ctx, cached)
	if fbErr != nil {
		return FallbackResult[T]{}, o.fallbackFailed(ctx, operation, cached != nil, err, fbErr)
	}

	o.metrics.RecordFallback("analysis", cached != nil, true)
	result.Value = value
	return result, nil
}

// sharedCall is the context a shared primary invocation runs under. It
// outlives any single caller and is cancelled once every waiter has left.
type sharedCall struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// join registers a waiter on key, starting a new shared context when none is
// live. The shared context keeps ctx's values but not its cancellation.
func (o *Orchestrator) join(ctx context.Context, key string) *sharedCall {
	o.callsMu.Lock()
	defer o.callsMu.Unlock()

	call, ok := o.calls[key]
	if !ok {
		sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		call = &sharedCall{ctx: sctx, cancel: cancel}
		o.calls[key] = call
	}
	call.waiters++
	return call
}

// leave drops a waiter. The last one out cancels the shared context and
// forgets the in-flight call so a later caller starts afresh.
func (o *Orchestrator) leave(key string, call *sharedCall) {
	o.callsMu.Lock()
	defer o.callsMu.Unlock()

	call.waiters--
	if call.waiters > 0 {
		return
	}
	call.cancel()
	if o.calls[key] == call {
		delete(o.calls, key)
	}
	o.group.Forget(key)
}

// sharedAnalysis runs primary once per key across concurrent callers and
// caches a successful result. The invocation is not bound to any one
// caller's context: a caller that gives up leaves with its own cancellation
// while the others keep waiting.
func sharedAnalysis[T any](ctx context.Context, o *Orchestrator, key string, primary resilience.Operation[T]) (T, error) {
	var zero T

	call := o.join(ctx, key)
	defer o.leave(key, call)

	ch := o.group.DoChan(key, func() (any, error) {
		value, err := primary(call.ctx)
		if err != nil {
			return nil, err
		}

		entry := CachedEntry[T]{Key: key, Value: value, CachedAt: o.now().UTC()}
		if setErr := o.cache.Set(call.ctx, key, entry); setErr != nil {
			o.logger.Warn("Failed to cache analysis result", "key", key, "error", setErr)
		}
		return value, nil
	})

	select {
	case <-ctx.Done():
		return zero, types.NewCancellationError(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		value, _ := res.Val.(T)
		return value, nil
	}
}

// CachedEntryFor returns the cached analysis for key, or ErrCacheMiss.
func CachedEntryFor[T any](ctx context.Context, o *Orchestrator, key string) (*CachedEntry[T], error) {
	var entry CachedEntry[T]
	if err := o.cache.Get(ctx, key, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ClearCache removes the cached analysis for key.
func (o *Orchestrator) ClearCache(ctx context.Context, key string) error {
	if err := o.cache.Delete(ctx, key); err != nil {
		return err
	}
	o.logger.Info("Cleared cached analysis", "key", key)
	return nil
}

// ClearAllCache removes every cached analysis.
func (o *Orchestrator) ClearAllCache(ctx context.Context) error {
	if err := o.cache.Clear(ctx); err != nil {
		return err
	}
	o.logger.Info("Cleared all cached analyses")
	return nil
}

// entryMeta decodes a cached entry without its value.
type entryMeta struct {
	CachedAt time.Time `json:"cachedAt"`
	Key      string    `json:"key"`
}

// CacheStatistics describes the cached analyses, ordered by key.
func (o *Orchestrator) CacheStatistics(ctx context.Context) (types.CacheStatistics, error) {
	hits, misses := o.cache.Counters()
	stats := types.CacheStatistics{
		Layer:  o.cache.Level().String(),
		Hits:   hits,
		Misses: misses,
	}

	raw, err := o.cache.Entries(ctx)
	if err != nil {
		return stats, err
	}

	now := o.now()
	for key, data := range raw {
		var meta entryMeta
		if err := o.cache.Decode(data, &meta); err != nil || meta.CachedAt.IsZero() {
			o.logger.Debug("Skipping undecodable cache entry", "key", key, "error", err)
			continue
		}
		stats.Entries = append(stats.Entries, types.CacheEntryInfo{
			Key:      key,
			CachedAt: meta.CachedAt,
			Age:      now.Sub(meta.CachedAt),
		})
		if stats.OldestEntry.IsZero() || meta.CachedAt.Before(stats.OldestEntry) {
			stats.OldestEntry = meta.CachedAt
		}
		if meta.CachedAt.After(stats.NewestEntry) {
			stats.NewestEntry = meta.CachedAt
		}
	}

	slices.SortFunc(stats.Entries, func(a, b types.CacheEntryInfo) int {
		return strings.Compare(a.Key, b.Key)
	})
	stats.EntryCount = len(stats.Entries)
	return stats, nil
}
