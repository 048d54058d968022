package backend

import "context"

// Backend is a key/region-addressable cache store that evictions are applied
// to. Implementations may be in-process or external stores like Redis/Valkey.
// Exactly one backend is active at a time, chosen by the Selector.
type Backend interface {
	// Name returns the registered provider name, e.g. "memory" or "redis".
	Name() string

	// Priority orders backends for selection; higher wins.
	Priority() int

	// Evict removes the cached entry for one identified entity.
	// Evicting an absent entry is not an error.
	Evict(ctx context.Context, region, entityType, entityID string) error

	// EvictRegion removes every cached entry in the given region.
	EvictRegion(ctx context.Context, region string) error

	// Clear removes every entry the backend holds.
	Clear(ctx context.Context) error

	// Available reports whether the backend can currently serve evictions.
	// Expected to flap for networked backends; callers must not cache the result.
	Available(ctx context.Context) bool

	// Close releases any resources held by the backend (e.g., network connections).
	// For in-memory backends, this is a no-op.
	Close() error
}

// EntryKey builds the canonical cache key for an identified entity.
// Region eviction relies on the region being a prefix of every key in it.
func EntryKey(region, entityType, entityID string) string {
	return region + "/" + entityType + "#" + entityID
}

// RegionPrefix is the key prefix shared by all entries of a region.
func RegionPrefix(region string) string {
	return region + "/"
}
