package remoteguard

import (
	"log/slog"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/LavishGent/remoteguard/internal/config"
	"github.com/LavishGent/remoteguard/internal/resilience"
)

type clientOptions struct {
	logger         Logger
	slogLogger     *slog.Logger
	metrics        MetricsRecorder
	publisher      Publisher
	registerer     prom.Registerer
	serializer     Serializer
	redisDB        *int
	redisAddress   string
	redisPassword  string
	disableRedis   bool
	disableCircuit bool
}

// apply folds configuration overrides into cfg.
func (o *clientOptions) apply(cfg *config.Config) {
	if o.redisAddress != "" {
		cfg.Cache.Redis.Enabled = true
		cfg.Cache.Redis.Address = o.redisAddress
		if cfg.Cache.Level == "memory-only" {
			cfg.Cache.Level = "memory-then-redis"
		}
	}
	if o.redisPassword != "" {
		cfg.Cache.Redis.Password = config.NewSecretString(o.redisPassword)
	}
	if o.redisDB != nil {
		cfg.Cache.Redis.DB = *o.redisDB
	}
	if o.disableRedis {
		cfg.Cache.Redis.Enabled = false
		cfg.Cache.Level = "memory-only"
	}
	if o.disableCircuit {
		cfg.CircuitBreaker.Enabled = false
	}
}

// ClientOption configures a Client.
type ClientOption func(*clientOptions)

// WithLogger routes library logs to a minimal Logger implementation.
func WithLogger(logger Logger) ClientOption {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// WithSlogLogger uses logger directly. It takes precedence over WithLogger.
func WithSlogLogger(logger *slog.Logger) ClientOption {
	return func(o *clientOptions) {
		o.slogLogger = logger
	}
}

// WithMetrics adds a recorder alongside the built-in tracker.
func WithMetrics(metrics MetricsRecorder) ClientOption {
	return func(o *clientOptions) {
		o.metrics = metrics
	}
}

// WithPublisher replaces the publisher chosen from configuration when
// metrics are enabled.
func WithPublisher(publisher Publisher) ClientOption {
	return func(o *clientOptions) {
		o.publisher = publisher
	}
}

// WithPrometheusRegisterer sets where Prometheus collectors are registered.
// The default is prometheus.DefaultRegisterer.
func WithPrometheusRegisterer(reg prom.Registerer) ClientOption {
	return func(o *clientOptions) {
		o.registerer = reg
	}
}

func WithSerializer(serializer Serializer) ClientOption {
	return func(o *clientOptions) {
		o.serializer = serializer
	}
}

// WithRedisAddress enables the Redis cache layer at addr.
func WithRedisAddress(addr string) ClientOption {
	return func(o *clientOptions) {
		o.redisAddress = addr
	}
}

func WithRedisPassword(password string) ClientOption {
	return func(o *clientOptions) {
		o.redisPassword = password
	}
}

func WithRedisDB(db int) ClientOption {
	return func(o *clientOptions) {
		o.redisDB = &db
	}
}

func WithoutRedis() ClientOption {
	return func(o *clientOptions) {
		o.disableRedis = true
	}
}

func WithoutCircuitBreaker() ClientOption {
	return func(o *clientOptions) {
		o.disableCircuit = true
	}
}

// ExecOption adjusts a single execution.
type ExecOption = resilience.ExecOption

// WithPolicy overrides the configured retry policy for one call.
func WithPolicy(policy RetryPolicy) ExecOption {
	return resilience.WithPolicy(policy)
}

// WithTimeout overrides the configured per-call deadline.
func WithTimeout(timeout time.Duration) ExecOption {
	return resilience.WithTimeout(timeout)
}

// WithOperationName names the call in logs and metrics.
func WithOperationName(name string) ExecOption {
	return resilience.WithOperationName(name)
}

func DefaultRetryPolicy() RetryPolicy      { return resilience.DefaultRetryPolicy() }
func AggressiveRetryPolicy() RetryPolicy   { return resilience.AggressiveRetryPolicy() }
func ConservativeRetryPolicy() RetryPolicy { return resilience.ConservativeRetryPolicy() }

func DefaultCircuitBreakerOptions() CircuitBreakerOptions {
	return resilience.DefaultCircuitBreakerOptions()
}

func AggressiveCircuitBreakerOptions() CircuitBreakerOptions {
	return resilience.AggressiveCircuitBreakerOptions()
}

func ConservativeCircuitBreakerOptions() CircuitBreakerOptions {
	return resilience.ConservativeCircuitBreakerOptions()
}
