package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LavishGent/remoteguard/internal/config"
	"github.com/LavishGent/remoteguard/internal/metrics"
	"github.com/LavishGent/remoteguard/internal/resilience"
	"github.com/LavishGent/remoteguard/internal/types"
)

// DefaultShutdownTimeout is the default timeout for shutting down the cache manager.
const DefaultShutdownTimeout = 30 * time.Second

// DefaultBackgroundOpTimeout is the default timeout for background operations.
const DefaultBackgroundOpTimeout = 5 * time.Second

// Manager owns the analysis cache. It is the only mutation surface for the
// underlying layers and tiers them according to the configured level.
type Manager struct {
	memory         types.CacheStore
	redis          types.CacheStore
	redisBreaker   resilience.CircuitBreakerExecutor
	serializer     types.Serializer
	metrics        types.MetricsRecorder
	logger         *slog.Logger
	keyValidator   *types.KeyValidator
	shutdownCancel context.CancelFunc
	shutdownCtx    context.Context
	bgWg           sync.WaitGroup
	bgMu           sync.Mutex
	fillMu         sync.Mutex
	level          types.CacheLevel
	hits           atomic.Int64
	misses         atomic.Int64
	writes         atomic.Uint64
	closed         atomic.Bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithManagerMetrics(recorder types.MetricsRecorder) ManagerOption {
	return func(m *Manager) {
		if recorder != nil {
			m.metrics = recorder
		}
	}
}

func WithSerializer(serializer types.Serializer) ManagerOption {
	return func(m *Manager) {
		if serializer != nil {
			m.serializer = serializer
		}
	}
}

// WithStores replaces the layers built from configuration.
func WithStores(memory, redis types.CacheStore) ManagerOption {
	return func(m *Manager) {
		m.memory = memory
		m.redis = redis
	}
}

// WithRedisBreaker replaces the breaker guarding Redis calls.
func WithRedisBreaker(breaker resilience.CircuitBreakerExecutor) ManagerOption {
	return func(m *Manager) {
		if breaker != nil {
			m.redisBreaker = breaker
		}
	}
}

// NewManager creates a cache manager. A Redis layer that cannot be created
// degrades to memory-only operation.
func NewManager(cfg config.CacheConfig, opts ...ManagerOption) (*Manager, error) {
	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())

	m := &Manager{
		level:          types.ParseCacheLevel(cfg.Level),
		logger:         slog.Default(),
		metrics:        metrics.NewNoOpRecorder(),
		serializer:     NewJSONSerializer(),
		shutdownCtx:    shutdownCtx,
		shutdownCancel: shutdownCancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "cache-manager")

	if cfg.KeyValidation.Enabled {
		m.keyValidator = types.NewKeyValidator(cfg.KeyValidation.ToTypesConfig())
	}

	if m.memory == nil {
		if cfg.Memory.Enabled && m.level.IncludesMemory() {
			memStore, err := NewMemoryStore(cfg.Memory, m.logger)
			if err != nil {
				shutdownCancel()
				return nil, err
			}
			m.memory = memStore
		} else {
			m.memory = NewDisabledStore("memory")
		}
	}

	if m.redis == nil {
		m.redis = NewDisabledStore("redis")
		if cfg.Redis.Enabled && m.level.IncludesRedis() {
			redisStore, err := NewRedisStore(cfg.Redis, m.logger)
			if err != nil {
				m.logger.Warn("Failed to create Redis cache, using memory-only mode", "error", err)
			} else {
				m.redis = redisStore
			}
		}
	}

	if m.redisBreaker == nil {
		m.redisBreaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerOptions{
			Name:             "redis-cache",
			FailureThreshold: 5,
			OpenTimeout:      30 * time.Second,
		})
	}
	m.redisBreaker.SetOnStateChange(func(from, to resilience.State) {
		m.logger.Info("Redis circuit breaker state changed",
			"from", from.String(),
			"to", to.String(),
		)
		m.metrics.RecordCircuitBreakerStateChange("redis-cache", from.String(), to.String())
	})

	return m, nil
}

// Level returns the configured cache level.
func (m *Manager) Level() types.CacheLevel {
	return m.level
}

// Get decodes the entry for key into dest. A missing entry yields ErrCacheMiss.
func (m *Manager) Get(ctx context.Context, key string, dest any) error {
	if m.closed.Load() {
		return types.ErrClosed
	}
	if err := m.validateKey(key); err != nil {
		return err
	}

	start := time.Now()
	var data []byte
	var layer string
	var err error

	switch m.level {
	case types.LevelRedisOnly:
		data, err = m.getFromRedis(ctx, key)
		layer = "redis"
	case types.LevelMemoryThenRedis:
		data, layer, err = m.getFromBothLayers(ctx, key)
	default:
		data, err = m.memory.Get(ctx, key)
		layer = "memory"
	}

	latency := time.Since(start)
	if err != nil {
		if types.IsCacheMiss(err) || types.IsRedisUnavailable(err) || types.IsCircuitOpen(err) {
			m.misses.Add(1)
			m.metrics.RecordCacheMiss(layer, latency)
			return types.ErrCacheMiss
		}
		return err
	}

	if err := m.serializer.Unmarshal(data, dest); err != nil {
		m.logger.Debug("Deserialization failed", "key", key, "error", err)
		return err
	}

	m.hits.Add(1)
	m.metrics.RecordCacheHit(layer, latency)
	return nil
}

// getFromBothLayers tries memory first, then Redis, back-filling memory.
// The back-fill is dropped when any write reached memory after the Redis
// read began, so it can never replace a newer entry.
func (m *Manager) getFromBothLayers(ctx context.Context, key string) ([]byte, string, error) {
	generation := m.writes.Load()
	data, err := m.memory.Get(ctx, key)
	if err == nil {
		return data, "memory", nil
	}
	if !types.IsCacheMiss(err) {
		m.logger.Debug("Memory cache error", "key", key, "error", err)
	}

	data, err = m.getFromRedis(ctx, key)
	if err != nil {
		return nil, "redis", err
	}

	m.runBackground(func(ctx context.Context) {
		m.fillMu.Lock()
		defer m.fillMu.Unlock()
		if m.writes.Load() != generation {
			return
		}
		if _, err := m.memory.Get(ctx, key); err == nil {
			return
		}
		if setErr := m.memory.Set(ctx, key, data); setErr != nil {
			m.logger.Debug("Failed to populate memory from Redis", "key", key, "error", setErr)
		}
	})

	return data, "redis", nil
}

// getFromRedis reads through the Redis breaker. Misses do not count as failures.
func (m *Manager) getFromRedis(ctx context.Context, key string) ([]byte, error) {
	if !m.redis.IsAvailable() {
		return nil, types.ErrRedisUnavailable
	}

	var data []byte
	var miss bool
	err := m.redisBreaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		data, err = m.redis.Get(ctx, key)
		if types.IsCacheMiss(err) {
			miss = true
			return nil
		}
		return err
	})
	if err != nil {
		if !types.IsCircuitOpen(err) {
			m.logger.Warn("Redis GET failed, treating as miss", "key", key, "error", err)
		}
		return nil, types.ErrRedisUnavailable
	}
	if miss {
		return nil, types.ErrCacheMiss
	}
	return data, nil
}

// Set encodes value and writes it to every layer of the configured level,
// replacing any previous entry. A Redis failure is logged when memory holds the value.
func (m *Manager) Set(ctx context.Context, key string, value any) error {
	if m.closed.Load() {
		return types.ErrClosed
	}
	if err := m.validateKey(key); err != nil {
		return err
	}

	start := time.Now()
	data, err := m.serializer.Marshal(value)
	if err != nil {
		return err
	}

	var setErr error
	switch m.level {
	case types.LevelRedisOnly:
		setErr = m.setToRedis(ctx, key, data)
	case types.LevelMemoryThenRedis:
		memErr := m.writeMemory(func() error { return m.memory.Set(ctx, key, data) })
		redisErr := m.setToRedis(ctx, key, data)
		if memErr != nil {
			setErr = memErr
		} else if redisErr != nil {
			m.logger.Warn("Redis SET failed, wrote to memory only", "key", key, "error", redisErr)
		}
	default:
		setErr = m.writeMemory(func() error { return m.memory.Set(ctx, key, data) })
	}

	if setErr == nil {
		m.metrics.RecordCacheSet(m.level.String(), len(data), time.Since(start))
	}
	return setErr
}

// writeMemory serializes memory writes against back-fills and bumps the
// write generation.
func (m *Manager) writeMemory(write func() error) error {
	m.fillMu.Lock()
	defer m.fillMu.Unlock()
	m.writes.Add(1)
	return write()
}

func (m *Manager) setToRedis(ctx context.Context, key string, data []byte) error {
	if !m.redis.IsAvailable() {
		return types.ErrRedisUnavailable
	}
	return m.redisBreaker.Execute(ctx, func(ctx context.Context) error {
		return m.redis.Set(ctx, key, data)
	})
}

// Delete removes key from every layer.
func (m *Manager) Delete(ctx context.Context, key string) error {
	if m.closed.Load() {
		return types.ErrClosed
	}
	if err := m.validateKey(key); err != nil {
		return err
	}

	var errs []error
	if err := m.writeMemory(func() error { return m.memory.Delete(ctx, key) }); err != nil {
		errs = append(errs, err)
	}
	if m.level.IncludesRedis() {
		if m.redis.IsAvailable() {
			if err := m.redis.Delete(ctx, key); err != nil {
				errs = append(errs, err)
			}
		} else {
			m.logger.Warn("Redis unavailable, entry removed from memory only; it may reappear once Redis recovers",
				"key", key)
		}
	}
	return errors.Join(errs...)
}

// Clear removes every entry from every layer.
func (m *Manager) Clear(ctx context.Context) error {
	if m.closed.Load() {
		return types.ErrClosed
	}

	var errs []error
	if err := m.writeMemory(func() error { return m.memory.Clear(ctx) }); err != nil {
		errs = append(errs, err)
	}
	if m.level.IncludesRedis() {
		if m.redis.IsAvailable() {
			if err := m.redis.Clear(ctx); err != nil {
				errs = append(errs, err)
			}
		} else {
			m.logger.Warn("Redis unavailable, cache cleared in memory only; entries may reappear once Redis recovers")
		}
	}
	return errors.Join(errs...)
}

// Entries returns the raw entries of every layer in the configured level.
// Memory entries take precedence over Redis entries for the same key.
func (m *Manager) Entries(ctx context.Context) (map[string][]byte, error) {
	if m.closed.Load() {
		return nil, types.ErrClosed
	}

	entries := make(map[string][]byte)
	if m.level.IncludesRedis() && m.redis.IsAvailable() {
		redisEntries, err := m.redis.Entries(ctx)
		if err != nil {
			m.logger.Warn("Failed to enumerate Redis entries", "error", err)
		}
		for k, v := range redisEntries {
			entries[k] = v
		}
	}
	if m.level.IncludesMemory() {
		memEntries, err := m.memory.Entries(ctx)
		if err != nil {
			return nil, err
		}
		for k, v := range memEntries {
			entries[k] = v
		}
	}
	return entries, nil
}

// Decode unmarshals a raw entry returned by Entries.
func (m *Manager) Decode(data []byte, dest any) error {
	return m.serializer.Unmarshal(data, dest)
}

// Counters returns the manager-level hit and miss counts.
func (m *Manager) Counters() (hits, misses int64) {
	return m.hits.Load(), m.misses.Load()
}

// Health reports the state of both layers.
func (m *Manager) Health(ctx context.Context) types.CacheHealthMetrics {
	health := types.CacheHealthMetrics{
		Level:           m.level.String(),
		MemoryAvailable: m.memory.IsAvailable(),
		RedisAvailable:  m.IsRedisAvailable(),
		RedisCircuit:    m.redisBreaker.State().String(),
		Status:          types.HealthStatusHealthy,
	}

	if entries, err := m.Entries(ctx); err == nil {
		health.EntryCount = len(entries)
	}

	if rs, ok := m.redis.(interface{ LastError() (error, time.Time) }); ok {
		if err, at := rs.LastError(); err != nil {
			health.LastError = err.Error()
			health.LastErrorTime = at
		}
	}

	memoryOK := !m.level.IncludesMemory() || health.MemoryAvailable
	redisOK := !m.level.IncludesRedis() || health.RedisAvailable
	switch {
	case m.closed.Load():
		health.Status = types.HealthStatusUnhealthy
	case memoryOK && redisOK:
		health.Status = types.HealthStatusHealthy
	case memoryOK || redisOK:
		health.Status = types.HealthStatusDegraded
	default:
		health.Status = types.HealthStatusUnhealthy
	}
	return health
}

// IsRedisAvailable returns true if Redis is connected and its breaker is not open.
func (m *Manager) IsRedisAvailable() bool {
	return m.redis.IsAvailable() && m.redisBreaker.State() != resilience.StateOpen
}

// Close releases all resources using the default shutdown timeout.
func (m *Manager) Close() error {
	return m.CloseWithTimeout(DefaultShutdownTimeout)
}

// CloseWithTimeout waits for in-flight background operations, then closes
// the layers. A timeout yields ErrShutdownTimeout but the layers are still closed.
func (m *Manager) CloseWithTimeout(timeout time.Duration) error {
	// Holding bgMu keeps runBackground from calling Add after Wait starts.
	m.bgMu.Lock()
	if m.closed.Swap(true) {
		m.bgMu.Unlock()
		return nil
	}
	m.shutdownCancel()
	m.bgMu.Unlock()

	m.logger.Info("Closing cache manager, waiting for background operations", "timeout", timeout)

	done := make(chan struct{})
	go func() {
		m.bgWg.Wait()
		close(done)
	}()

	var errs []error
	select {
	case <-done:
	case <-time.After(timeout):
		m.logger.Warn("Shutdown timeout exceeded, proceeding with close", "timeout", timeout)
		errs = append(errs, types.ErrShutdownTimeout)
	}

	if err := m.memory.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := m.redis.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// runBackground runs fn in a goroutine tracked for graceful shutdown. It does
// nothing once the manager is closed.
func (m *Manager) runBackground(fn func(ctx context.Context)) {
	m.bgMu.Lock()
	if m.closed.Load() {
		m.bgMu.Unlock()
		return
	}
	m.bgWg.Add(1)
	m.bgMu.Unlock()

	go func() {
		defer m.bgWg.Done()
		ctx, cancel := context.WithTimeout(m.shutdownCtx, DefaultBackgroundOpTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func (m *Manager) validateKey(key string) error {
	if m.keyValidator == nil {
		return nil
	}
	return m.keyValidator.Validate(key)
}
