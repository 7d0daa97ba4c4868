package remoteguard

import (
	"time"

	"github.com/LavishGent/remoteguard/internal/fallback"
	"github.com/LavishGent/remoteguard/internal/resilience"
	"github.com/LavishGent/remoteguard/internal/types"
)

type (
	// Service runs operations behind the limiter, bulkhead, breaker and retry loop.
	Service = resilience.Service
	// Orchestrator pairs primary operations with fallbacks.
	Orchestrator = fallback.Orchestrator

	// Operation is a remote call guarded by the client.
	Operation[T any] = resilience.Operation[T]
	// AnalysisFallback receives the last cached analysis, or nil.
	AnalysisFallback[T any] = fallback.AnalysisFallback[T]

	OperationResult[In, Out any] = resilience.OperationResult[In, Out]
	PartialResult[In, Out any]   = resilience.PartialResult[In, Out]
	FallbackResult[T any]        = fallback.FallbackResult[T]
	CachedEntry[T any]           = fallback.CachedEntry[T]

	RetryPolicy           = resilience.RetryPolicy
	RateLimitInfo         = resilience.RateLimitInfo
	CircuitState          = resilience.State
	CircuitBreakerOptions = resilience.CircuitBreakerOptions
	CircuitBreakerStats   = resilience.CircuitBreakerStats
	BulkheadStats         = resilience.BulkheadStats
	UserGuidance          = fallback.UserGuidance

	ErrorKind       = types.ErrorKind
	ErrorClass      = types.ErrorClass
	CacheLevel      = types.CacheLevel
	CacheStatistics = types.CacheStatistics
	CacheEntryInfo  = types.CacheEntryInfo
	MetricsSnapshot = types.MetricsSnapshot

	// Serializer encodes cached analyses.
	Serializer = types.Serializer
	// MetricsRecorder receives execution, fallback and cache events.
	MetricsRecorder = types.MetricsRecorder
	// Publisher sends metrics to an external backend.
	Publisher = types.Publisher
	// Logger is the minimal logging interface accepted by WithLogger.
	Logger = types.Logger
)

const (
	StateClosed   = resilience.StateClosed
	StateOpen     = resilience.StateOpen
	StateHalfOpen = resilience.StateHalfOpen
)

const (
	LevelMemoryOnly      = types.LevelMemoryOnly
	LevelRedisOnly       = types.LevelRedisOnly
	LevelMemoryThenRedis = types.LevelMemoryThenRedis
)

// HandleRateLimiting returns how long to wait before the rate limit resets.
func HandleRateLimiting(info RateLimitInfo) time.Duration {
	return resilience.HandleRateLimiting(info)
}

// ExtractRateLimitInfo reads rate limit headers from a response header map.
func ExtractRateLimitInfo(headers map[string][]string) RateLimitInfo {
	return resilience.ExtractRateLimitInfo(headers)
}

// ParseRetryAfter reads a Retry-After header as seconds or an HTTP date.
func ParseRetryAfter(headers map[string][]string) (time.Duration, bool) {
	return resilience.ParseRetryAfter(headers)
}

// TranslateError turns err into a user-facing message.
func TranslateError(err error) string {
	return resilience.TranslateError(err)
}
