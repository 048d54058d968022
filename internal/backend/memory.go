package backend

import (
	"context"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

func init() {
	Register("memory", newMemoryBackend)
}

// memoryBackend wraps hashicorp/golang-lru/v2/expirable as the in-process
// second-level cache. Region eviction walks the key set; with keys built by
// EntryKey, every entry of a region shares the region's prefix.
type memoryBackend struct {
	inner    *lru.LRU[string, []byte]
	priority int
}

func newMemoryBackend(cfg Config) (Backend, error) {
	return &memoryBackend{
		inner:    lru.NewLRU[string, []byte](cfg.Size, nil, cfg.TTL),
		priority: cfg.Priority,
	}, nil
}

func (m *memoryBackend) Name() string  { return "memory" }
func (m *memoryBackend) Priority() int { return m.priority }

func (m *memoryBackend) Evict(_ context.Context, region, entityType, entityID string) error {
	m.inner.Remove(EntryKey(region, entityType, entityID))
	return nil
}

func (m *memoryBackend) EvictRegion(_ context.Context, region string) error {
	prefix := RegionPrefix(region)
	for _, key := range m.inner.Keys() {
		if strings.HasPrefix(key, prefix) {
			m.inner.Remove(key)
		}
	}
	return nil
}

func (m *memoryBackend) Clear(_ context.Context) error {
	m.inner.Purge()
	return nil
}

func (m *memoryBackend) Available(_ context.Context) bool { return true }

func (m *memoryBackend) Close() error { return nil }

// Put stores a cached representation of an entity. Population is driven by
// the read path, which lives outside this subsystem; the method exists so the
// in-process cache can be fed and inspected (and so eviction is observable in
// tests).
func (m *memoryBackend) Put(region, entityType, entityID string, value []byte) {
	m.inner.Add(EntryKey(region, entityType, entityID), value)
}

// Get retrieves a cached representation, if present.
func (m *memoryBackend) Get(region, entityType, entityID string) ([]byte, bool) {
	return m.inner.Get(EntryKey(region, entityType, entityID))
}

// Len returns the number of entries currently cached.
func (m *memoryBackend) Len() int {
	return m.inner.Len()
}
