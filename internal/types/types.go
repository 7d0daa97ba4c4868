// Package types provides shared types for the remoteguard library.
// This package breaks import cycles between pkg/remoteguard and the internal packages.
package types

import "time"

type CacheLevel int

const (
	LevelMemoryOnly CacheLevel = iota + 1
	LevelRedisOnly
	LevelMemoryThenRedis
)

func (l CacheLevel) String() string {
	switch l {
	case LevelMemoryOnly:
		return "memory-only"
	case LevelRedisOnly:
		return "redis-only"
	case LevelMemoryThenRedis:
		return "memory-then-redis"
	default:
		return "unknown"
	}
}

func (l CacheLevel) IncludesMemory() bool {
	return l == LevelMemoryOnly || l == LevelMemoryThenRedis
}

func (l CacheLevel) IncludesRedis() bool {
	return l == LevelRedisOnly || l == LevelMemoryThenRedis
}

// ParseCacheLevel parses a configured level, defaulting to memory-only.
func ParseCacheLevel(s string) CacheLevel {
	switch s {
	case "memory-only":
		return LevelMemoryOnly
	case "redis-only":
		return LevelRedisOnly
	case "memory-then-redis":
		return LevelMemoryThenRedis
	default:
		return LevelMemoryOnly
	}
}

// LayerStats holds hit/miss counters of a single cache layer.
type LayerStats struct {
	Hits    int64
	Misses  int64
	Sets    int64
	Deletes int64
	Evicted int64
}

// CacheEntryInfo describes one cached analysis without its value.
type CacheEntryInfo struct {
	CachedAt time.Time
	Key      string
	Age      time.Duration
}

// CacheStatistics is the operator view of the fallback cache.
type CacheStatistics struct {
	OldestEntry time.Time
	NewestEntry time.Time
	Layer       string
	Entries     []CacheEntryInfo
	EntryCount  int
	Hits        int64
	Misses      int64
}
