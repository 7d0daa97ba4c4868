package cache

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LavishGent/remoteguard/internal/config"
	"github.com/LavishGent/remoteguard/internal/types"
)

const (
	disconnectErrorThreshold = 5
	scanBatchSize            = 100
)

// RedisStore is a shared cache layer. Keys carry the configured prefix and
// are written without a TTL.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
	config config.RedisConfig

	mu            sync.RWMutex
	lastError     error
	lastErrorTime time.Time
	connected     atomic.Bool
	closed        atomic.Bool
	errorCount    atomic.Int64

	healthCheckStopCh chan struct{}
	healthCheckWg     sync.WaitGroup

	hits    atomic.Int64
	misses  atomic.Int64
	sets    atomic.Int64
	deletes atomic.Int64
}

// NewRedisStore connects to Redis. A failed initial ping leaves the store
// disconnected; the health check worker reconnects it later.
func NewRedisStore(cfg config.RedisConfig, logger *slog.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Address == "" {
		return nil, errors.New("redis address is required")
	}

	opts := &redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password.Value(),
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  cfg.PoolTimeout,
	}

	if cfg.EnableTLS {
		opts.TLSConfig = &tls.Config{
			InsecureSkipVerify: cfg.TLSSkipVerify, //nolint:gosec // opt-in via configuration
		}
		if cfg.TLSSkipVerify {
			logger.Warn("TLS certificate verification is disabled - this is insecure for production use")
		}
	}

	rs := &RedisStore{
		client:            redis.NewClient(opts),
		config:            cfg,
		logger:            logger.With("component", "redis-cache"),
		healthCheckStopCh: make(chan struct{}),
	}

	pingTimeout := cfg.DialTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := rs.client.Ping(ctx).Err(); err != nil {
		rs.logger.Warn("Redis initial connection failed", "error", err)
		rs.setError(err)
	} else {
		rs.connected.Store(true)
		rs.logger.Info("Redis connected", "address", cfg.Address)
	}

	if cfg.HealthCheckInterval > 0 {
		rs.healthCheckWg.Add(1)
		go rs.healthCheckWorker()
	}

	return rs, nil
}

func (s *RedisStore) Name() string {
	return "redis"
}

func (s *RedisStore) IsAvailable() bool {
	return s.connected.Load() && !s.closed.Load()
}

func (s *RedisStore) prefixKey(key string) string {
	return s.config.KeyPrefix + key
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	if !s.IsAvailable() {
		return nil, types.ErrRedisUnavailable
	}

	data, err := s.client.Get(ctx, s.prefixKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			s.misses.Add(1)
			return nil, types.ErrCacheMiss
		}
		s.handleError(err)
		return nil, types.NewCacheError("Get", key, "redis", err)
	}

	s.hits.Add(1)
	s.clearError()
	return data, nil
}

// Set writes value under key with no expiry, replacing any previous entry.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if !s.IsAvailable() {
		return types.ErrRedisUnavailable
	}

	if err := s.client.Set(ctx, s.prefixKey(key), value, 0).Err(); err != nil {
		s.handleError(err)
		return types.NewCacheError("Set", key, "redis", err)
	}

	s.sets.Add(1)
	s.clearError()
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if !s.IsAvailable() {
		return types.ErrRedisUnavailable
	}

	if err := s.client.Del(ctx, s.prefixKey(key)).Err(); err != nil {
		s.handleError(err)
		return types.NewCacheError("Delete", key, "redis", err)
	}

	s.deletes.Add(1)
	s.clearError()
	return nil
}

// Clear deletes every key under the store's prefix.
func (s *RedisStore) Clear(ctx context.Context) error {
	if !s.IsAvailable() {
		return types.ErrRedisUnavailable
	}

	var deleted int64
	err := s.scan(ctx, func(keys []string) error {
		if err := s.client.Del(ctx, keys...).Err(); err != nil {
			return err
		}
		deleted += int64(len(keys))
		return nil
	})
	if err != nil {
		s.handleError(err)
		return types.NewCacheError("Clear", s.prefixKey("*"), "redis", err)
	}

	s.logger.Debug("Cleared keys", "prefix", s.config.KeyPrefix, "deleted", deleted)
	s.clearError()
	return nil
}

// Entries returns every key under the prefix, with the prefix stripped.
func (s *RedisStore) Entries(ctx context.Context) (map[string][]byte, error) {
	if !s.IsAvailable() {
		return nil, types.ErrRedisUnavailable
	}

	entries := make(map[string][]byte)
	err := s.scan(ctx, func(keys []string) error {
		values, err := s.client.MGet(ctx, keys...).Result()
		if err != nil {
			return err
		}
		for i, v := range values {
			str, ok := v.(string)
			if !ok {
				continue
			}
			entries[strings.TrimPrefix(keys[i], s.config.KeyPrefix)] = []byte(str)
		}
		return nil
	})
	if err != nil {
		s.handleError(err)
		return nil, types.NewCacheError("Entries", s.prefixKey("*"), "redis", err)
	}

	s.clearError()
	return entries, nil
}

// scan walks every key under the prefix in batches.
func (s *RedisStore) scan(ctx context.Context, fn func(keys []string) error) error {
	pattern := s.prefixKey("*")
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (s *RedisStore) healthCheckWorker() {
	defer s.healthCheckWg.Done()

	ticker := time.NewTicker(s.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.healthCheckStopCh:
			return
		case <-ticker.C:
			s.performHealthCheck()
		}
	}
}

func (s *RedisStore) performHealthCheck() {
	wasConnected := s.connected.Load()

	timeout := s.config.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		if wasConnected {
			s.logger.Warn("Redis health check failed", "error", err)
			s.setError(err)
		}
		return
	}

	if !wasConnected {
		s.connected.Store(true)
		s.errorCount.Store(0)
		s.logger.Info("Redis connection restored via health check")
	}
}

func (s *RedisStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.connected.Store(false)

	close(s.healthCheckStopCh)
	s.healthCheckWg.Wait()

	return s.client.Close()
}

func (s *RedisStore) Stats() types.LayerStats {
	return types.LayerStats{
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
		Sets:    s.sets.Load(),
		Deletes: s.deletes.Load(),
	}
}

func (s *RedisStore) handleError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastError = err
	s.lastErrorTime = time.Now()
	count := s.errorCount.Add(1)

	if count >= disconnectErrorThreshold {
		if s.connected.CompareAndSwap(true, false) {
			s.logger.Warn("Redis marked as disconnected after errors",
				"error_count", count,
				"last_error", err,
			)
		}
	}
}

func (s *RedisStore) clearError() {
	if s.errorCount.Swap(0) > 0 {
		if s.connected.CompareAndSwap(false, true) {
			s.logger.Info("Redis connection restored")
		}
	}
}

func (s *RedisStore) setError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = err
	s.lastErrorTime = time.Now()
	s.connected.Store(false)
}

// LastError returns the most recent Redis error and when it happened.
func (s *RedisStore) LastError() (error, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError, s.lastErrorTime
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Reconnect pings Redis and marks the store connected on success.
func (s *RedisStore) Reconnect(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return err
	}
	s.connected.Store(true)
	s.errorCount.Store(0)
	s.logger.Info("Redis reconnected successfully")
	return nil
}

var _ types.CacheStore = (*RedisStore)(nil)
