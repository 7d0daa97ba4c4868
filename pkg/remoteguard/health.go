package remoteguard

import (
	"context"
	"time"

	"github.com/LavishGent/remoteguard/internal/types"
)

type (
	// HealthStatus represents the overall health state.
	HealthStatus = types.HealthStatus
	// HealthMetrics combines breaker and cache health.
	HealthMetrics = types.HealthMetrics
	// CircuitHealthMetrics contains circuit breaker health details.
	CircuitHealthMetrics = types.CircuitHealthMetrics
	// CacheHealthMetrics contains fallback cache health details.
	CacheHealthMetrics = types.CacheHealthMetrics
)

const (
	HealthStatusHealthy   = types.HealthStatusHealthy
	HealthStatusDegraded  = types.HealthStatusDegraded
	HealthStatusUnhealthy = types.HealthStatusUnhealthy
)

// Health reports the breaker and cache state. An open breaker or a degraded
// cache makes the client degraded; it is unhealthy only when the cache is.
func (c *Client) Health(ctx context.Context) HealthMetrics {
	stats := c.service.CircuitBreakerStats()
	circuit := CircuitHealthMetrics{
		NextAttemptTime: stats.NextAttemptTime,
		State:           stats.State.String(),
		FailureCount:    stats.FailureCount,
		Status:          HealthStatusHealthy,
	}
	if stats.State != StateClosed {
		circuit.Status = HealthStatusDegraded
	}

	cacheHealth := c.cache.Health(ctx)

	status := HealthStatusHealthy
	if circuit.Status == HealthStatusDegraded || cacheHealth.Status == HealthStatusDegraded {
		status = HealthStatusDegraded
	}
	if cacheHealth.Status == HealthStatusUnhealthy {
		status = HealthStatusUnhealthy
	}

	return HealthMetrics{
		Timestamp: time.Now(),
		Circuit:   circuit,
		Cache:     cacheHealth,
		Status:    status,
	}
}
