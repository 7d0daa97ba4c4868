package types

import "time"

// HealthStatus represents the overall health state.
type HealthStatus int

const (
	// HealthStatusHealthy indicates all systems operating normally.
	HealthStatusHealthy HealthStatus = iota + 1
	// HealthStatusDegraded indicates partial functionality (e.g., breaker open, Redis down).
	HealthStatusDegraded
	// HealthStatusUnhealthy indicates critical failure.
	HealthStatusUnhealthy
)

// String returns the string representation of health status.
func (s HealthStatus) String() string {
	switch s {
	case HealthStatusHealthy:
		return "healthy"
	case HealthStatusDegraded:
		return "degraded"
	case HealthStatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// HealthMetrics contains overall health information.
type HealthMetrics struct {
	Timestamp time.Time
	Circuit   CircuitHealthMetrics
	Cache     CacheHealthMetrics
	Status    HealthStatus
}

// CircuitHealthMetrics contains circuit breaker health details.
type CircuitHealthMetrics struct {
	NextAttemptTime time.Time
	State           string
	FailureCount    int
	Status          HealthStatus
}

// CacheHealthMetrics contains fallback cache health details.
//
//nolint:govet // Metrics struct - logical grouping prioritized for readability
type CacheHealthMetrics struct {
	LastErrorTime   time.Time
	Level           string
	LastError       string
	RedisCircuit    string
	EntryCount      int
	Status          HealthStatus
	MemoryAvailable bool
	RedisAvailable  bool
}

// MetricsSnapshot contains a point-in-time view of execution metrics.
//
//nolint:govet // Metrics struct with many counters - grouping by category improves readability
type MetricsSnapshot struct {
	Timestamp time.Time

	// Execution counters
	Executions int64
	Successes  int64
	Failures   int64
	Retries    int64

	// Errors by class name
	ErrorsByClass map[string]int64

	// Latency metrics (milliseconds)
	AvgLatencyMs float64
	P50LatencyMs float64
	P95LatencyMs float64
	P99LatencyMs float64

	// Circuit breaker
	CircuitStateChanges int64
	CircuitOpens        int64

	// Fallback counters
	Fallbacks         int64
	FallbackFailures  int64
	FallbacksWithData int64

	// Cache counters
	CacheHits   int64
	CacheMisses int64
	CacheSets   int64
	BytesCached int64
}

// SuccessRatio calculates the execution success ratio.
func (s *MetricsSnapshot) SuccessRatio() float64 {
	if s.Executions == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Executions)
}

// CacheHitRatio calculates the fallback cache hit ratio.
func (s *MetricsSnapshot) CacheHitRatio() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total)
}

// PublisherHealthMetrics is the gauge batch pushed by background publishers.
type PublisherHealthMetrics struct {
	CircuitState     string
	Executions       int64
	CachedEntries    int64
	SuccessRatio     float64
	CacheHitRatio    float64
	AverageLatencyMs float64
	CircuitOpen      bool
}
