package metrics

import (
	"time"

	"github.com/LavishGent/remoteguard/internal/types"
)

// NoOpRecorder discards every event.
type NoOpRecorder struct{}

func NewNoOpRecorder() *NoOpRecorder {
	return &NoOpRecorder{}
}

func (NoOpRecorder) RecordExecution(operation string, success bool, latency time.Duration) {}
func (NoOpRecorder) RecordRetry(operation string, attempt int, delay time.Duration)        {}
func (NoOpRecorder) RecordError(operation string, class types.ErrorClass)                  {}
func (NoOpRecorder) RecordCircuitBreakerStateChange(name, from, to string)                 {}
func (NoOpRecorder) RecordFallback(operation string, usedCache bool, success bool)         {}
func (NoOpRecorder) RecordCacheHit(layer string, latency time.Duration)                    {}
func (NoOpRecorder) RecordCacheMiss(layer string, latency time.Duration)                   {}
func (NoOpRecorder) RecordCacheSet(layer string, size int, latency time.Duration)          {}

// NoOpPublisher is a no-operation metrics publisher for testing or when disabled.
type NoOpPublisher struct{}

// NewNoOpPublisher creates a new no-op publisher.
func NewNoOpPublisher() *NoOpPublisher {
	return &NoOpPublisher{}
}

func (p *NoOpPublisher) Gauge(name string, value float64, tags ...string)           {}
func (p *NoOpPublisher) Incr(name string, tags ...string)                           {}
func (p *NoOpPublisher) Count(name string, value int64, tags ...string)             {}
func (p *NoOpPublisher) Histogram(name string, value float64, tags ...string)       {}
func (p *NoOpPublisher) Timing(name string, duration time.Duration, tags ...string) {}
func (p *NoOpPublisher) Event(title, text, alertType string, tags ...string)        {}
func (p *NoOpPublisher) PublishHealthMetrics(metrics *types.PublisherHealthMetrics) {}
func (p *NoOpPublisher) Close() error                                               { return nil }

var _ types.MetricsRecorder = NoOpRecorder{}
var _ types.Publisher = (*NoOpPublisher)(nil)
