// Package metrics collects resilience metrics and forwards them to publishers.
package metrics

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LavishGent/remoteguard/internal/types"
)

const (
	defaultLatencyBufferSize = 10000
)

// Tracker is an in-process MetricsRecorder backed by atomic counters.
type Tracker struct {
	executions atomic.Int64
	successes  atomic.Int64
	failures   atomic.Int64
	retries    atomic.Int64

	errorsMu      sync.Mutex
	errorsByClass map[string]int64

	cbStateChanges atomic.Int64
	cbOpens        atomic.Int64

	fallbacks         atomic.Int64
	fallbackFailures  atomic.Int64
	fallbacksWithData atomic.Int64

	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	cacheSets   atomic.Int64
	bytesCached atomic.Int64

	latencyMu     sync.RWMutex
	latencyBuffer []time.Duration
	latencyIndex  int
	latencyCount  int
}

func NewTracker() *Tracker {
	return &Tracker{
		errorsByClass: make(map[string]int64),
		latencyBuffer: make([]time.Duration, defaultLatencyBufferSize),
	}
}

func (t *Tracker) RecordExecution(operation string, success bool, latency time.Duration) {
	t.executions.Add(1)
	if success {
		t.successes.Add(1)
	} else {
		t.failures.Add(1)
	}
	t.recordLatency(latency)
}

func (t *Tracker) RecordRetry(operation string, attempt int, delay time.Duration) {
	t.retries.Add(1)
}

func (t *Tracker) RecordError(operation string, class types.ErrorClass) {
	t.errorsMu.Lock()
	t.errorsByClass[class.String()]++
	t.errorsMu.Unlock()
}

// RecordCircuitBreakerStateChange records circuit breaker state transitions.
func (t *Tracker) RecordCircuitBreakerStateChange(name, from, to string) {
	t.cbStateChanges.Add(1)
	if to == "open" {
		t.cbOpens.Add(1)
	}
}

func (t *Tracker) RecordFallback(operation string, usedCache bool, success bool) {
	t.fallbacks.Add(1)
	if !success {
		t.fallbackFailures.Add(1)
	}
	if usedCache {
		t.fallbacksWithData.Add(1)
	}
}

func (t *Tracker) RecordCacheHit(layer string, latency time.Duration) {
	t.cacheHits.Add(1)
}

func (t *Tracker) RecordCacheMiss(layer string, latency time.Duration) {
	t.cacheMisses.Add(1)
}

func (t *Tracker) RecordCacheSet(layer string, size int, latency time.Duration) {
	t.cacheSets.Add(1)
	t.bytesCached.Add(int64(size))
}

// recordLatency adds a latency measurement using a circular buffer.
func (t *Tracker) recordLatency(latency time.Duration) {
	t.latencyMu.Lock()
	t.latencyBuffer[t.latencyIndex] = latency
	t.latencyIndex = (t.latencyIndex + 1) % len(t.latencyBuffer)
	if t.latencyCount < len(t.latencyBuffer) {
		t.latencyCount++
	}
	t.latencyMu.Unlock()
}

// Snapshot returns current metrics snapshot.
func (t *Tracker) Snapshot() types.MetricsSnapshot {
	t.latencyMu.RLock()
	count := t.latencyCount
	latencyCopy := make([]time.Duration, count)
	if count > 0 {
		if count < len(t.latencyBuffer) {
			copy(latencyCopy, t.latencyBuffer[:count])
		} else {
			// Buffer is full - oldest data starts at latencyIndex
			firstPart := len(t.latencyBuffer) - t.latencyIndex
			copy(latencyCopy[:firstPart], t.latencyBuffer[t.latencyIndex:])
			copy(latencyCopy[firstPart:], t.latencyBuffer[:t.latencyIndex])
		}
	}
	t.latencyMu.RUnlock()

	t.errorsMu.Lock()
	errorsByClass := make(map[string]int64, len(t.errorsByClass))
	for class, n := range t.errorsByClass {
		errorsByClass[class] = n
	}
	t.errorsMu.Unlock()

	snapshot := types.MetricsSnapshot{
		Timestamp:           time.Now(),
		Executions:          t.executions.Load(),
		Successes:           t.successes.Load(),
		Failures:            t.failures.Load(),
		Retries:             t.retries.Load(),
		ErrorsByClass:       errorsByClass,
		CircuitStateChanges: t.cbStateChanges.Load(),
		CircuitOpens:        t.cbOpens.Load(),
		Fallbacks:           t.fallbacks.Load(),
		FallbackFailures:    t.fallbackFailures.Load(),
		FallbacksWithData:   t.fallbacksWithData.Load(),
		CacheHits:           t.cacheHits.Load(),
		CacheMisses:         t.cacheMisses.Load(),
		CacheSets:           t.cacheSets.Load(),
		BytesCached:         t.bytesCached.Load(),
	}

	if len(latencyCopy) > 0 {
		snapshot.AvgLatencyMs = float64(avgDuration(latencyCopy).Milliseconds())
		snapshot.P50LatencyMs = float64(percentile(latencyCopy, 50).Milliseconds())
		snapshot.P95LatencyMs = float64(percentile(latencyCopy, 95).Milliseconds())
		snapshot.P99LatencyMs = float64(percentile(latencyCopy, 99).Milliseconds())
	}

	return snapshot
}

// Reset clears all metrics.
func (t *Tracker) Reset() {
	t.executions.Store(0)
	t.successes.Store(0)
	t.failures.Store(0)
	t.retries.Store(0)
	t.cbStateChanges.Store(0)
	t.cbOpens.Store(0)
	t.fallbacks.Store(0)
	t.fallbackFailures.Store(0)
	t.fallbacksWithData.Store(0)
	t.cacheHits.Store(0)
	t.cacheMisses.Store(0)
	t.cacheSets.Store(0)
	t.bytesCached.Store(0)

	t.errorsMu.Lock()
	clear(t.errorsByClass)
	t.errorsMu.Unlock()

	t.latencyMu.Lock()
	t.latencyIndex = 0
	t.latencyCount = 0
	t.latencyMu.Unlock()
}

func avgDuration(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range durations {
		total += d
	}
	return total / time.Duration(len(durations))
}

func percentile(durations []time.Duration, p int) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	slices.Sort(sorted)

	idx := (len(sorted) - 1) * p / 100
	return sorted[idx]
}

var _ types.MetricsRecorder = (*Tracker)(nil)
