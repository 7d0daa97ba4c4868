// Package config provides configuration management for remoteguard.
package config

import (
	"time"

	"github.com/LavishGent/remoteguard/internal/types"
)

// Config contains all configuration for the resilience core.
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type Config struct {
	Retry          RetryConfig          `json:"retry"`
	CircuitBreaker CircuitBreakerConfig `json:"circuitBreaker"`
	Execution      ExecutionConfig      `json:"execution"`
	RateLimit      RateLimitConfig      `json:"rateLimit"`
	Bulkhead       BulkheadConfig       `json:"bulkhead"`
	Cache          CacheConfig          `json:"cache"`
	Metrics        MetricsConfig        `json:"metrics"`
}

// RetryConfig contains configuration for the retry policy.
type RetryConfig struct {
	BaseDelay         time.Duration `json:"baseDelay"`
	MaxDelay          time.Duration `json:"maxDelay"`
	BackoffMultiplier float64       `json:"backoffMultiplier"`
	MaxAttempts       int           `json:"maxAttempts"`
	Jitter            bool          `json:"jitter"`
}

// CircuitBreakerConfig contains configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	Name             string        `json:"name"`
	OpenTimeout      time.Duration `json:"openTimeout"`
	FailureThreshold int           `json:"failureThreshold"`
	Enabled          bool          `json:"enabled"`
}

// ExecutionConfig contains defaults applied to every resilient execution.
type ExecutionConfig struct {
	OperationName  string        `json:"operationName"`
	DefaultTimeout time.Duration `json:"defaultTimeout"`
}

// RateLimitConfig configures the client-side token bucket in front of the remote service.
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requestsPerSecond"`
	Burst             int     `json:"burst"`
	Enabled           bool    `json:"enabled"`
}

// BulkheadConfig contains configuration for the bulkhead pattern.
type BulkheadConfig struct {
	AcquireTimeout time.Duration `json:"acquireTimeout"`
	MaxConcurrent  int           `json:"maxConcurrent"`
	MaxQueue       int           `json:"maxQueue"`
	Enabled        bool          `json:"enabled"`
}

// CacheConfig contains configuration for the fallback analysis cache.
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type CacheConfig struct {
	Level         string              `json:"level"`
	Memory        MemoryConfig        `json:"memory"`
	Redis         RedisConfig         `json:"redis"`
	KeyValidation KeyValidationConfig `json:"keyValidation"`
}

// MemoryConfig contains configuration for the memory cache layer.
type MemoryConfig struct {
	MaxSizeMB    int  `json:"maxSizeMB"`
	Shards       int  `json:"shards"`
	MaxEntrySize int  `json:"maxEntrySize"`
	Enabled      bool `json:"enabled"`
}

// RedisConfig contains configuration for the Redis cache layer.
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type RedisConfig struct {
	DialTimeout         time.Duration `json:"dialTimeout"`
	ReadTimeout         time.Duration `json:"readTimeout"`
	WriteTimeout        time.Duration `json:"writeTimeout"`
	PoolTimeout         time.Duration `json:"poolTimeout"`
	HealthCheckInterval time.Duration `json:"healthCheckInterval"`
	Password            SecretString  `json:"password"`
	Address             string        `json:"address"`
	KeyPrefix           string        `json:"keyPrefix"`
	DB                  int           `json:"db"`
	PoolSize            int           `json:"poolSize"`
	MinIdleConns        int           `json:"minIdleConns"`
	Enabled             bool          `json:"enabled"`
	EnableTLS           bool          `json:"enableTLS"`
	TLSSkipVerify       bool          `json:"tlsSkipVerify"`
}

// KeyValidationConfig contains configuration for cache key validation.
type KeyValidationConfig struct {
	ReservedPatterns  []string `json:"reservedPatterns"`
	MaxKeyLength      int      `json:"maxKeyLength"`
	Enabled           bool     `json:"enabled"`
	AllowEmpty        bool     `json:"allowEmpty"`
	AllowControlChars bool     `json:"allowControlChars"`
	AllowWhitespace   bool     `json:"allowWhitespace"`
}

// ToTypesConfig converts this config to a types.KeyValidationConfig.
func (c KeyValidationConfig) ToTypesConfig() types.KeyValidationConfig {
	return types.KeyValidationConfig{
		MaxKeyLength:      c.MaxKeyLength,
		AllowEmpty:        c.AllowEmpty,
		AllowControlChars: c.AllowControlChars,
		AllowWhitespace:   c.AllowWhitespace,
		ReservedPatterns:  c.ReservedPatterns,
	}
}

// MetricsConfig contains configuration for metrics publishing.
//
//nolint:govet // Small config struct - minimal alignment benefit
type MetricsConfig struct {
	PublishInterval time.Duration    `json:"publishInterval"`
	DataDog         DataDogConfig    `json:"datadog"`
	Prometheus      PrometheusConfig `json:"prometheus"`
	Enabled         bool             `json:"enabled"`
}

// DataDogConfig contains configuration for DataDog metrics publishing.
//
//nolint:govet // Small config struct - minimal alignment benefit
type DataDogConfig struct {
	Tags      []string `json:"tags"`
	AgentHost string   `json:"agentHost"`
	Prefix    string   `json:"prefix"`
	Port      int      `json:"port"`
	Enabled   bool     `json:"enabled"`
}

// PrometheusConfig contains configuration for the Prometheus recorder.
type PrometheusConfig struct {
	Namespace string `json:"namespace"`
	Subsystem string `json:"subsystem"`
	Enabled   bool   `json:"enabled"`
}
