package cache

import (
	"context"

	"github.com/LavishGent/remoteguard/internal/types"
)

// DisabledStore stands in for a cache layer that is turned off. Reads miss
// and writes are discarded.
type DisabledStore struct {
	name string
}

// NewDisabledStore creates a disabled layer reporting the given name.
func NewDisabledStore(name string) *DisabledStore {
	return &DisabledStore{name: name + "-disabled"}
}

func (s *DisabledStore) Name() string      { return s.name }
func (s *DisabledStore) IsAvailable() bool { return false }
func (s *DisabledStore) Close() error      { return nil }

func (s *DisabledStore) Stats() types.LayerStats { return types.LayerStats{} }

// Get always misses.
func (s *DisabledStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, types.ErrCacheMiss
}

func (s *DisabledStore) Set(ctx context.Context, key string, value []byte) error { return nil }
func (s *DisabledStore) Delete(ctx context.Context, key string) error            { return nil }
func (s *DisabledStore) Clear(ctx context.Context) error                         { return nil }

func (s *DisabledStore) Entries(ctx context.Context) (map[string][]byte, error) {
	return map[string][]byte{}, nil
}

var _ types.CacheStore = (*DisabledStore)(nil)
