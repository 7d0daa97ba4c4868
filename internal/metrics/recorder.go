package metrics

import (
	"strconv"
	"time"

	"github.com/LavishGent/remoteguard/internal/types"
)

// PublishingRecorder translates recorder events into publisher calls.
type PublishingRecorder struct {
	publisher types.Publisher
}

func NewPublishingRecorder(publisher types.Publisher) *PublishingRecorder {
	if publisher == nil {
		publisher = NewNoOpPublisher()
	}
	return &PublishingRecorder{publisher: publisher}
}

func (r *PublishingRecorder) RecordExecution(operation string, success bool, latency time.Duration) {
	tags := []string{OperationTag(operation), StatusTag(outcome(success))}
	r.publisher.Incr("execution.count", tags...)
	r.publisher.Timing("execution.latency", latency, tags...)
}

func (r *PublishingRecorder) RecordRetry(operation string, attempt int, delay time.Duration) {
	tags := []string{OperationTag(operation), Tag("attempt", strconv.Itoa(attempt))}
	r.publisher.Incr("retry.count", tags...)
	r.publisher.Histogram("retry.delay_ms", float64(delay.Milliseconds()), tags...)
}

func (r *PublishingRecorder) RecordError(operation string, class types.ErrorClass) {
	r.publisher.Incr("error.count", OperationTag(operation), ClassTag(class.String()))
}

func (r *PublishingRecorder) RecordCircuitBreakerStateChange(name, from, to string) {
	tags := []string{Tag("breaker", name), Tag("from", from), CircuitStateTag(to)}
	r.publisher.Incr("circuit_breaker.transition", tags...)
	if to == "open" {
		r.publisher.Event("Circuit breaker opened",
			"Circuit breaker "+name+" opened after repeated failures", "warning", tags...)
	}
}

func (r *PublishingRecorder) RecordFallback(operation string, usedCache bool, success bool) {
	r.publisher.Incr("fallback.count",
		OperationTag(operation),
		Tag("cached", strconv.FormatBool(usedCache)),
		StatusTag(outcome(success)),
	)
}

func (r *PublishingRecorder) RecordCacheHit(layer string, latency time.Duration) {
	r.publisher.Incr("cache.hit", LayerTag(layer))
	r.publisher.Timing("cache.latency", latency, LayerTag(layer), StatusTag("hit"))
}

func (r *PublishingRecorder) RecordCacheMiss(layer string, latency time.Duration) {
	r.publisher.Incr("cache.miss", LayerTag(layer))
	r.publisher.Timing("cache.latency", latency, LayerTag(layer), StatusTag("miss"))
}

// RecordCacheSet tags writes with the cache level, since a set spans every
// layer of the level.
func (r *PublishingRecorder) RecordCacheSet(level string, size int, latency time.Duration) {
	r.publisher.Incr("cache.set", LevelTag(level))
	r.publisher.Histogram("cache.entry_bytes", float64(size), LevelTag(level))
	r.publisher.Timing("cache.set.latency", latency, LevelTag(level))
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// Multi fans every event out to several recorders.
type Multi []types.MetricsRecorder

// NewMulti drops nil recorders.
func NewMulti(recorders ...types.MetricsRecorder) Multi {
	m := make(Multi, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			m = append(m, r)
		}
	}
	return m
}

func (m Multi) RecordExecution(operation string, success bool, latency time.Duration) {
	for _, r := range m {
		r.RecordExecution(operation, success, latency)
	}
}

func (m Multi) RecordRetry(operation string, attempt int, delay time.Duration) {
	for _, r := range m {
		r.RecordRetry(operation, attempt, delay)
	}
}

func (m Multi) RecordError(operation string, class types.ErrorClass) {
	for _, r := range m {
		r.RecordError(operation, class)
	}
}

func (m Multi) RecordCircuitBreakerStateChange(name, from, to string) {
	for _, r := range m {
		r.RecordCircuitBreakerStateChange(name, from, to)
	}
}

func (m Multi) RecordFallback(operation string, usedCache bool, success bool) {
	for _, r := range m {
		r.RecordFallback(operation, usedCache, success)
	}
}

func (m Multi) RecordCacheHit(layer string, latency time.Duration) {
	for _, r := range m {
		r.RecordCacheHit(layer, latency)
	}
}

func (m Multi) RecordCacheMiss(layer string, latency time.Duration) {
	for _, r := range m {
		r.RecordCacheMiss(layer, latency)
	}
}

func (m Multi) RecordCacheSet(layer string, size int, latency time.Duration) {
	for _, r := range m {
		r.RecordCacheSet(layer, size, latency)
	}
}

var (
	_ types.MetricsRecorder = (*PublishingRecorder)(nil)
	_ types.MetricsRecorder = Multi(nil)
)
