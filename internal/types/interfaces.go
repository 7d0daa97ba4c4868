package types

import (
	"context"
	"time"
)

type CacheInfo interface {
	Name() string
	IsAvailable() bool
}

// CacheStore is the mutation surface of a single cache layer.
type CacheStore interface {
	CacheInfo
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	// Entries returns every stored key with its raw value.
	Entries(ctx context.Context) (map[string][]byte, error)
	Stats() LayerStats
	Close() error
}

type Serializer interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, dest any) error
}

type MetricsRecorder interface {
	RecordExecution(operation string, success bool, latency time.Duration)
	RecordRetry(operation string, attempt int, delay time.Duration)
	RecordError(operation string, class ErrorClass)
	RecordCircuitBreakerStateChange(name, from, to string)
	RecordFallback(operation string, usedCache bool, success bool)
	RecordCacheHit(layer string, latency time.Duration)
	RecordCacheMiss(layer string, latency time.Duration)
	RecordCacheSet(layer string, size int, latency time.Duration)
}

type Publisher interface {
	Gauge(name string, value float64, tags ...string)
	Incr(name string, tags ...string)
	Count(name string, value int64, tags ...string)
	Histogram(name string, value float64, tags ...string)
	Timing(name string, duration time.Duration, tags ...string)
	Event(title, text, alertType string, tags ...string)
	PublishHealthMetrics(metrics *PublisherHealthMetrics)
	Close() error
}

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
