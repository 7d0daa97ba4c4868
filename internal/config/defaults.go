package config

import "time"

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Retry: RetryConfig{
			MaxAttempts:       3,
			BaseDelay:         1 * time.Second,
			MaxDelay:          30 * time.Second,
			BackoffMultiplier: 2.0,
			Jitter:            true,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:          true,
			Name:             "remote",
			FailureThreshold: 5,
			OpenTimeout:      1 * time.Minute,
		},
		Execution: ExecutionConfig{
			OperationName:  "remote-call",
			DefaultTimeout: 2 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerSecond: 10,
			Burst:             20,
		},
		Bulkhead: BulkheadConfig{
			Enabled:        false,
			MaxConcurrent:  20,
			MaxQueue:       50,
			AcquireTimeout: 1 * time.Second,
		},
		Cache: CacheConfig{
			Level: "memory-only",
			Memory: MemoryConfig{
				Enabled:      true,
				MaxSizeMB:    64,
				Shards:       64,
				MaxEntrySize: 1024 * 1024, // 1MB
			},
			Redis: RedisConfig{
				Enabled:             false,
				Address:             "localhost:6379",
				Password:            SecretString{},
				DB:                  0,
				KeyPrefix:           "remoteguard:analysis:",
				PoolSize:            20,
				MinIdleConns:        2,
				DialTimeout:         5 * time.Second,
				ReadTimeout:         3 * time.Second,
				WriteTimeout:        3 * time.Second,
				PoolTimeout:         4 * time.Second,
				EnableTLS:           false,
				TLSSkipVerify:       false,
				HealthCheckInterval: 10 * time.Second,
			},
			KeyValidation: KeyValidationConfig{
				Enabled:           true,
				MaxKeyLength:      512,
				AllowEmpty:        false,
				AllowControlChars: false,
				AllowWhitespace:   false,
			},
		},
		Metrics: MetricsConfig{
			Enabled:         true,
			PublishInterval: 30 * time.Second,
			DataDog: DataDogConfig{
				Enabled:   false,
				AgentHost: "127.0.0.1",
				Port:      8125,
				Prefix:    "remoteguard",
				Tags:      []string{},
			},
			Prometheus: PrometheusConfig{
				Enabled:   false,
				Namespace: "remoteguard",
			},
		},
	}
}

// ForTesting returns a minimal configuration suitable for unit tests:
// short delays, no jitter, and a small breaker threshold.
func ForTesting() *Config {
	cfg := DefaultConfig()
	cfg.Retry = RetryConfig{
		MaxAttempts:       3,
		BaseDelay:         1 * time.Millisecond,
		MaxDelay:          10 * time.Millisecond,
		BackoffMultiplier: 2.0,
		Jitter:            false,
	}
	cfg.CircuitBreaker = CircuitBreakerConfig{
		Enabled:          true,
		Name:             "test",
		FailureThreshold: 3,
		OpenTimeout:      50 * time.Millisecond,
	}
	cfg.Execution.DefaultTimeout = 5 * time.Second
	cfg.Cache.Memory.MaxSizeMB = 8
	cfg.Cache.Memory.Shards = 16
	cfg.Cache.Redis.KeyPrefix = "test:"
	cfg.Cache.Redis.HealthCheckInterval = 0
	cfg.Metrics.Enabled = false
	cfg.Metrics.PublishInterval = 1 * time.Second
	return cfg
}

// ForTestingWithRedis returns a test config with the Redis layer enabled.
func ForTestingWithRedis(addr string) *Config {
	cfg := ForTesting()
	cfg.Cache.Redis.Enabled = true
	cfg.Cache.Redis.Address = addr
	cfg.Cache.Level = "memory-then-redis"
	return cfg
}
