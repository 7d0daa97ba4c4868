// Package cache stores fallback analysis results in memory and Redis.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/allegro/bigcache/v3"

	"github.com/LavishGent/remoteguard/internal/config"
	"github.com/LavishGent/remoteguard/internal/types"
)

// bigcache drops the oldest entry on write once it is older than LifeWindow,
// even without a clean window, so entries must outlive any process.
const noExpiry = 100 * 365 * 24 * time.Hour

// MemoryStore is an in-process cache layer backed by BigCache. Entries never
// expire; they leave only when deleted, cleared or evicted for space.
type MemoryStore struct {
	cache  *bigcache.BigCache
	logger *slog.Logger
	config config.MemoryConfig

	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	deletes   atomic.Int64
	evictions atomic.Int64

	closed atomic.Bool
}

// NewMemoryStore creates a memory store with the given configuration.
func NewMemoryStore(cfg config.MemoryConfig, logger *slog.Logger) (*MemoryStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ms := &MemoryStore{
		config: cfg,
		logger: logger.With("component", "memory-cache"),
	}

	bcConfig := bigcache.Config{
		Shards:             cfg.Shards,
		LifeWindow:         noExpiry,
		CleanWindow:        0,
		MaxEntriesInWindow: 1000 * 10,
		MaxEntrySize:       cfg.MaxEntrySize,
		HardMaxCacheSize:   cfg.MaxSizeMB,
		Verbose:            false,
		Logger:             &bigcacheLogger{logger: ms.logger},
		OnRemoveWithReason: func(key string, entry []byte, reason bigcache.RemoveReason) {
			if reason == bigcache.NoSpace {
				ms.evictions.Add(1)
				ms.logger.Debug("Evicted cache entry for space", "key", key)
			}
		},
	}

	bc, err := bigcache.New(context.Background(), bcConfig)
	if err != nil {
		return nil, err
	}

	ms.cache = bc
	return ms, nil
}

func (s *MemoryStore) Name() string {
	return "memory"
}

// IsAvailable returns true if the store is not closed.
func (s *MemoryStore) IsAvailable() bool {
	return !s.closed.Load()
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, types.ErrClosed
	}

	data, err := s.cache.Get(key)
	if err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			s.misses.Add(1)
			return nil, types.ErrCacheMiss
		}
		return nil, types.NewCacheError("Get", key, "memory", err)
	}

	s.hits.Add(1)
	return data, nil
}

// Set stores value under key, replacing any previous entry.
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	if s.closed.Load() {
		return types.ErrClosed
	}

	if err := s.cache.Set(key, value); err != nil {
		return types.NewCacheError("Set", key, "memory", err)
	}

	s.sets.Add(1)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if s.closed.Load() {
		return types.ErrClosed
	}

	if err := s.cache.Delete(key); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		return types.NewCacheError("Delete", key, "memory", err)
	}

	s.deletes.Add(1)
	return nil
}

// Clear removes all entries from the memory store.
func (s *MemoryStore) Clear(ctx context.Context) error {
	if s.closed.Load() {
		return types.ErrClosed
	}

	return s.cache.Reset()
}

// Entries returns a copy of every stored entry.
func (s *MemoryStore) Entries(ctx context.Context) (map[string][]byte, error) {
	if s.closed.Load() {
		return nil, types.ErrClosed
	}

	entries := make(map[string][]byte, s.cache.Len())
	iter := s.cache.Iterator()
	for iter.SetNext() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, err := iter.Value()
		if err != nil {
			continue
		}
		entries[entry.Key()] = entry.Value()
	}
	return entries, nil
}

func (s *MemoryStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.cache.Close()
}

func (s *MemoryStore) Stats() types.LayerStats {
	return types.LayerStats{
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
		Sets:    s.sets.Load(),
		Deletes: s.deletes.Load(),
		Evicted: s.evictions.Load(),
	}
}

// EntryCount returns the number of entries in the memory store.
func (s *MemoryStore) EntryCount() int {
	return s.cache.Len()
}

// HitRatio returns the store's hit ratio.
func (s *MemoryStore) HitRatio() float64 {
	hits := s.hits.Load()
	total := hits + s.misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

type bigcacheLogger struct {
	logger *slog.Logger
}

func (l *bigcacheLogger) Printf(format string, args ...any) {
	l.logger.Debug("bigcache: "+format, args...)
}

var _ types.CacheStore = (*MemoryStore)(nil)
