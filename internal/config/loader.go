package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Load loads configuration from a JSON file.
// If the file doesn't exist, returns default configuration.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithEnv loads configuration from a JSON file and applies environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

//nolint:gocyclo // Environment variable parsing requires many conditional checks
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REMOTEGUARD_RETRY_MAX_ATTEMPTS"); v != "" {
		cfg.Retry.MaxAttempts = parseInt(v, cfg.Retry.MaxAttempts)
	}
	if v := os.Getenv("REMOTEGUARD_RETRY_BASE_DELAY"); v != "" {
		cfg.Retry.BaseDelay = parseDuration(v, cfg.Retry.BaseDelay)
	}
	if v := os.Getenv("REMOTEGUARD_RETRY_MAX_DELAY"); v != "" {
		cfg.Retry.MaxDelay = parseDuration(v, cfg.Retry.MaxDelay)
	}
	if v := os.Getenv("REMOTEGUARD_RETRY_BACKOFF_MULTIPLIER"); v != "" {
		cfg.Retry.BackoffMultiplier = parseFloat(v, cfg.Retry.BackoffMultiplier)
	}
	if v := os.Getenv("REMOTEGUARD_RETRY_JITTER"); v != "" {
		cfg.Retry.Jitter = parseBool(v)
	}

	if v := os.Getenv("REMOTEGUARD_CIRCUIT_BREAKER_ENABLED"); v != "" {
		cfg.CircuitBreaker.Enabled = parseBool(v)
	}
	if v := os.Getenv("REMOTEGUARD_CIRCUIT_BREAKER_FAILURE_THRESHOLD"); v != "" {
		cfg.CircuitBreaker.FailureThreshold = parseInt(v, cfg.CircuitBreaker.FailureThreshold)
	}
	if v := os.Getenv("REMOTEGUARD_CIRCUIT_BREAKER_OPEN_TIMEOUT"); v != "" {
		cfg.CircuitBreaker.OpenTimeout = parseDuration(v, cfg.CircuitBreaker.OpenTimeout)
	}

	if v := os.Getenv("REMOTEGUARD_EXECUTION_TIMEOUT"); v != "" {
		cfg.Execution.DefaultTimeout = parseDuration(v, cfg.Execution.DefaultTimeout)
	}

	if v := os.Getenv("REMOTEGUARD_RATE_LIMIT_ENABLED"); v != "" {
		cfg.RateLimit.Enabled = parseBool(v)
	}
	if v := os.Getenv("REMOTEGUARD_RATE_LIMIT_RPS"); v != "" {
		cfg.RateLimit.RequestsPerSecond = parseFloat(v, cfg.RateLimit.RequestsPerSecond)
	}
	if v := os.Getenv("REMOTEGUARD_RATE_LIMIT_BURST"); v != "" {
		cfg.RateLimit.Burst = parseInt(v, cfg.RateLimit.Burst)
	}

	if v := os.Getenv("REMOTEGUARD_BULKHEAD_ENABLED"); v != "" {
		cfg.Bulkhead.Enabled = parseBool(v)
	}
	if v := os.Getenv("REMOTEGUARD_BULKHEAD_MAX_CONCURRENT"); v != "" {
		cfg.Bulkhead.MaxConcurrent = parseInt(v, cfg.Bulkhead.MaxConcurrent)
	}

	if v := os.Getenv("REMOTEGUARD_CACHE_LEVEL"); v != "" {
		cfg.Cache.Level = v
	}
	if v := os.Getenv("REMOTEGUARD_MEMORY_ENABLED"); v != "" {
		cfg.Cache.Memory.Enabled = parseBool(v)
	}
	if v := os.Getenv("REMOTEGUARD_MEMORY_MAX_SIZE_MB"); v != "" {
		cfg.Cache.Memory.MaxSizeMB = parseInt(v, cfg.Cache.Memory.MaxSizeMB)
	}
	if v := os.Getenv("REMOTEGUARD_REDIS_ENABLED"); v != "" {
		cfg.Cache.Redis.Enabled = parseBool(v)
	}
	if v := os.Getenv("REMOTEGUARD_REDIS_ADDRESS"); v != "" {
		cfg.Cache.Redis.Address = v
	}
	if v := os.Getenv("REMOTEGUARD_REDIS_PASSWORD"); v != "" {
		cfg.Cache.Redis.Password = NewSecretString(v)
	}
	if v := os.Getenv("REMOTEGUARD_REDIS_DB"); v != "" {
		cfg.Cache.Redis.DB = parseInt(v, cfg.Cache.Redis.DB)
	}
	if v := os.Getenv("REMOTEGUARD_REDIS_KEY_PREFIX"); v != "" {
		cfg.Cache.Redis.KeyPrefix = v
	}
	if v := os.Getenv("REMOTEGUARD_REDIS_ENABLE_TLS"); v != "" {
		cfg.Cache.Redis.EnableTLS = parseBool(v)
	}

	if v := os.Getenv("REMOTEGUARD_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("REMOTEGUARD_PROMETHEUS_ENABLED"); v != "" {
		cfg.Metrics.Prometheus.Enabled = parseBool(v)
	}

	if v := os.Getenv("DD_AGENT_HOST"); v != "" {
		cfg.Metrics.DataDog.AgentHost = v
		cfg.Metrics.DataDog.Enabled = true
	}
	if v := os.Getenv("DD_DOGSTATSD_PORT"); v != "" {
		cfg.Metrics.DataDog.Port = parseInt(v, cfg.Metrics.DataDog.Port)
	}
	if v := os.Getenv("DD_SERVICE"); v != "" {
		cfg.Metrics.DataDog.Prefix = v
	}
	if v := os.Getenv("DD_ENV"); v != "" {
		cfg.Metrics.DataDog.Tags = append(cfg.Metrics.DataDog.Tags, "env:"+v)
	}
	if v := os.Getenv("DD_VERSION"); v != "" {
		cfg.Metrics.DataDog.Tags = append(cfg.Metrics.DataDog.Tags, "version:"+v)
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Retry.MaxAttempts <= 0 {
		return errors.New("retry.maxAttempts must be positive")
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < 0 {
		return errors.New("retry delays must not be negative")
	}
	if c.Retry.MaxDelay > 0 && c.Retry.MaxDelay < c.Retry.BaseDelay {
		return errors.New("retry.maxDelay must not be smaller than retry.baseDelay")
	}
	if c.Retry.BackoffMultiplier != 0 && c.Retry.BackoffMultiplier < 1 {
		return errors.New("retry.backoffMultiplier must be at least 1")
	}

	if c.CircuitBreaker.Enabled {
		if c.CircuitBreaker.FailureThreshold <= 0 {
			return errors.New("circuitBreaker.failureThreshold must be positive")
		}
		if c.CircuitBreaker.OpenTimeout <= 0 {
			return errors.New("circuitBreaker.openTimeout must be positive")
		}
	}

	if c.Execution.DefaultTimeout < 0 {
		return errors.New("execution.defaultTimeout must not be negative")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerSecond <= 0 {
			return errors.New("rateLimit.requestsPerSecond must be positive")
		}
		if c.RateLimit.Burst <= 0 {
			return errors.New("rateLimit.burst must be positive")
		}
	}

	if c.Bulkhead.Enabled && c.Bulkhead.MaxConcurrent <= 0 {
		return errors.New("bulkhead.maxConcurrent must be positive")
	}

	switch c.Cache.Level {
	case "memory-only", "redis-only", "memory-then-redis":
	default:
		return fmt.Errorf("cache.level %q is not one of memory-only, redis-only, memory-then-redis", c.Cache.Level)
	}

	if c.Cache.Memory.Enabled {
		if c.Cache.Memory.MaxSizeMB <= 0 {
			return errors.New("cache.memory.maxSizeMB must be positive")
		}
		if c.Cache.Memory.Shards <= 0 || (c.Cache.Memory.Shards&(c.Cache.Memory.Shards-1)) != 0 {
			return errors.New("cache.memory.shards must be a positive power of 2")
		}
	}

	if c.Cache.Redis.Enabled {
		if c.Cache.Redis.Address == "" {
			return errors.New("cache.redis.address is required when redis is enabled")
		}
		if c.Cache.Redis.PoolSize <= 0 {
			return errors.New("cache.redis.poolSize must be positive")
		}
	}

	return nil
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

func parseInt(s string, defaultVal int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return defaultVal
	}
	return v
}

func parseFloat(s string, defaultVal float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return defaultVal
	}
	return v
}

func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)

	if d, err := time.ParseDuration(s); err == nil {
		return d
	}

	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(secs) * time.Second
	}

	return defaultVal
}
