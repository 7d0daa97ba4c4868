// Package prometheus exposes resilience metrics as Prometheus collectors.
package prometheus

import (
	"errors"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/LavishGent/remoteguard/internal/config"
	"github.com/LavishGent/remoteguard/internal/types"
)

// Recorder implements types.MetricsRecorder on Prometheus collectors.
type Recorder struct {
	executions    *prom.CounterVec
	latency       *prom.HistogramVec
	retries       *prom.CounterVec
	retryDelay    *prom.HistogramVec
	errors        *prom.CounterVec
	transitions   *prom.CounterVec
	breakerState  *prom.GaugeVec
	fallbacks     *prom.CounterVec
	cacheRequests *prom.CounterVec
	cacheLatency  *prom.HistogramVec
	cacheSetBytes *prom.CounterVec
}

// NewRecorder registers the collectors on reg. A nil reg uses a fresh registry.
func NewRecorder(reg prom.Registerer, cfg config.PrometheusConfig) (*Recorder, error) {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	ns, sub := cfg.Namespace, cfg.Subsystem

	r := &Recorder{
		executions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "executions_total",
			Help: "Resilient executions by operation and outcome.",
		}, []string{"operation", "status"}),
		latency: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: ns, Subsystem: sub,
			Name:    "execution_duration_seconds",
			Help:    "Duration of resilient executions including retry delays.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"operation"}),
		retries: prom.NewCounterVec(prom.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "retries_total",
			Help: "Retry attempts scheduled after a transient failure.",
		}, []string{"operation"}),
		retryDelay: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: ns, Subsystem: sub,
			Name:    "retry_delay_seconds",
			Help:    "Backoff delay chosen before a retry.",
			Buckets: []float64{0.1, 0.5, 1, 2, 4, 8, 16, 30, 60, 300, 900},
		}, []string{"operation"}),
		errors: prom.NewCounterVec(prom.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "errors_total",
			Help: "Failed executions by error class.",
		}, []string{"operation", "class"}),
		transitions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions.",
		}, []string{"breaker", "from", "to"}),
		breakerState: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: ns, Subsystem: sub,
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0 closed, 1 open, 2 half-open).",
		}, []string{"breaker"}),
		fallbacks: prom.NewCounterVec(prom.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "fallbacks_total",
			Help: "Fallback invocations by cache usage and outcome.",
		}, []string{"operation", "cached", "status"}),
		cacheRequests: prom.NewCounterVec(prom.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "cache_requests_total",
			Help: "Analysis cache lookups and writes by layer and result.",
		}, []string{"layer", "result"}),
		cacheLatency: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: ns, Subsystem: sub,
			Name:    "cache_duration_seconds",
			Help:    "Analysis cache operation latency.",
			Buckets: prom.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"layer", "result"}),
		cacheSetBytes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "cache_written_bytes_total",
			Help: "Bytes written to the analysis cache.",
		}, []string{"layer"}),
	}

	collectors := []prom.Collector{
		r.executions, r.latency, r.retries, r.retryDelay, r.errors,
		r.transitions, r.breakerState, r.fallbacks,
		r.cacheRequests, r.cacheLatency, r.cacheSetBytes,
	}
	var errs []error
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Recorder) RecordExecution(operation string, success bool, latency time.Duration) {
	r.executions.WithLabelValues(operation, status(success)).Inc()
	r.latency.WithLabelValues(operation).Observe(latency.Seconds())
}

func (r *Recorder) RecordRetry(operation string, attempt int, delay time.Duration) {
	r.retries.WithLabelValues(operation).Inc()
	r.retryDelay.WithLabelValues(operation).Observe(delay.Seconds())
}

func (r *Recorder) RecordError(operation string, class types.ErrorClass) {
	r.errors.WithLabelValues(operation, class.String()).Inc()
}

func (r *Recorder) RecordCircuitBreakerStateChange(name, from, to string) {
	r.transitions.WithLabelValues(name, from, to).Inc()
	r.breakerState.WithLabelValues(name).Set(stateValue(to))
}

func (r *Recorder) RecordFallback(operation string, usedCache bool, success bool) {
	r.fallbacks.WithLabelValues(operation, strconv.FormatBool(usedCache), status(success)).Inc()
}

func (r *Recorder) RecordCacheHit(layer string, latency time.Duration) {
	r.cacheRequests.WithLabelValues(layer, "hit").Inc()
	r.cacheLatency.WithLabelValues(layer, "hit").Observe(latency.Seconds())
}

func (r *Recorder) RecordCacheMiss(layer string, latency time.Duration) {
	r.cacheRequests.WithLabelValues(layer, "miss").Inc()
	r.cacheLatency.WithLabelValues(layer, "miss").Observe(latency.Seconds())
}

func (r *Recorder) RecordCacheSet(layer string, size int, latency time.Duration) {
	r.cacheRequests.WithLabelValues(layer, "set").Inc()
	r.cacheLatency.WithLabelValues(layer, "set").Observe(latency.Seconds())
	r.cacheSetBytes.WithLabelValues(layer).Add(float64(size))
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

func stateValue(state string) float64 {
	switch state {
	case "open":
		return 1
	case "half-open":
		return 2
	default:
		return 0
	}
}

var _ types.MetricsRecorder = (*Recorder)(nil)
