package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/LavishGent/remoteguard/internal/config"
	"github.com/LavishGent/remoteguard/internal/types"
)

func testMemoryConfig() config.MemoryConfig {
	return config.MemoryConfig{
		Enabled:      true,
		MaxSizeMB:    16,
		Shards:       64,
		MaxEntrySize: 1024 * 1024,
	}
}

func newTestMemoryStore(t *testing.T) *MemoryStore {
	t.Helper()
	store, err := NewMemoryStore(testMemoryConfig(), nil)
	if err != nil {
		t.Fatalf("NewMemoryStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewMemoryStore(t *testing.T) {
	t.Run("creates with nil logger", func(t *testing.T) {
		store := newTestMemoryStore(t)
		if store.Name() != "memory" {
			t.Errorf("Name() = %q, want memory", store.Name())
		}
		if !store.IsAvailable() {
			t.Error("IsAvailable() = false, want true")
		}
	})

	t.Run("creates with custom logger", func(t *testing.T) {
		store, err := NewMemoryStore(testMemoryConfig(), slog.Default())
		if err != nil {
			t.Fatalf("NewMemoryStore() error = %v", err)
		}
		defer store.Close()
	})

	t.Run("rejects invalid shard count", func(t *testing.T) {
		cfg := testMemoryConfig()
		cfg.Shards = 3
		if _, err := NewMemoryStore(cfg, nil); err == nil {
			t.Error("NewMemoryStore() expected error for non power of two shards")
		}
	})
}

func TestMemoryStoreGetSet(t *testing.T) {
	ctx := context.Background()
	store := newTestMemoryStore(t)

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, types.ErrCacheMiss) {
		t.Fatalf("Get(missing) error = %v, want ErrCacheMiss", err)
	}

	if err := store.Set(ctx, "project-1", []byte("first")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Set(ctx, "project-1", []byte("second")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := store.Get(ctx, "project-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "second" {
		t.Errorf("Get() = %q, want replacement value %q", got, "second")
	}

	stats := store.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Sets != 2 {
		t.Errorf("Stats() = %+v, want 1 hit, 1 miss, 2 sets", stats)
	}
	if ratio := store.HitRatio(); ratio != 0.5 {
		t.Errorf("HitRatio() = %v, want 0.5", ratio)
	}
}

func TestMemoryStoreDeleteAndClear(t *testing.T) {
	ctx := context.Background()
	store := newTestMemoryStore(t)

	for i := range 3 {
		if err := store.Set(ctx, fmt.Sprintf("key-%d", i), []byte("v")); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}

	if err := store.Delete(ctx, "key-0"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx, "never-set"); err != nil {
		t.Errorf("Delete(missing) error = %v, want nil", err)
	}
	if _, err := store.Get(ctx, "key-0"); !errors.Is(err, types.ErrCacheMiss) {
		t.Errorf("Get(deleted) error = %v, want ErrCacheMiss", err)
	}
	if n := store.EntryCount(); n != 2 {
		t.Errorf("EntryCount() = %d, want 2", n)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if n := store.EntryCount(); n != 0 {
		t.Errorf("EntryCount() after Clear = %d, want 0", n)
	}
}

func TestMemoryStoreEntries(t *testing.T) {
	ctx := context.Background()
	store := newTestMemoryStore(t)

	want := map[string]string{"a": "1", "b": "2", "c": "3"}
	for k, v := range want {
		if err := store.Set(ctx, k, []byte(v)); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}

	entries, err := store.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(entries) != len(want) {
		t.Fatalf("Entries() returned %d entries, want %d", len(entries), len(want))
	}
	for k, v := range want {
		if string(entries[k]) != v {
			t.Errorf("Entries()[%q] = %q, want %q", k, entries[k], v)
		}
	}
}

func TestMemoryStoreClosed(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryStore(testMemoryConfig(), nil)
	if err != nil {
		t.Fatalf("NewMemoryStore() error = %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}
	if store.IsAvailable() {
		t.Error("IsAvailable() = true after Close")
	}

	if _, err := store.Get(ctx, "k"); !errors.Is(err, types.ErrClosed) {
		t.Errorf("Get() error = %v, want ErrClosed", err)
	}
	if err := store.Set(ctx, "k", []byte("v")); !errors.Is(err, types.ErrClosed) {
		t.Errorf("Set() error = %v, want ErrClosed", err)
	}
	if _, err := store.Entries(ctx); !errors.Is(err, types.ErrClosed) {
		t.Errorf("Entries() error = %v, want ErrClosed", err)
	}
}

func TestMemoryStoreConcurrency(t *testing.T) {
	ctx := context.Background()
	store := newTestMemoryStore(t)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", id%5)
			for range 50 {
				_ = store.Set(ctx, key, []byte("value"))
				_, _ = store.Get(ctx, key)
			}
		}(i)
	}
	wg.Wait()

	if n := store.EntryCount(); n != 5 {
		t.Errorf("EntryCount() = %d, want 5", n)
	}
}
