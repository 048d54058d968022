package eviction

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cachegate/cachegate/internal/backend"
)

var testLogger = zerolog.Nop()

// recordingDispatcher captures distributed batches.
type recordingDispatcher struct {
	mu      sync.Mutex
	batches []Batch
}

func (d *recordingDispatcher) Distribute(_ context.Context, batch Batch) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.batches = append(d.batches, batch)
}

func (d *recordingDispatcher) all() []Batch {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Batch(nil), d.batches...)
}

// panickingDispatcher simulates a fatal error in the commit callback.
type panickingDispatcher struct{}

func (panickingDispatcher) Distribute(context.Context, Batch) {
	panic("fatal dispatch error")
}

// fakeBackend records evictions and can be told to fail, globally or for
// specific entity ids.
type fakeBackend struct {
	name      string
	priority  int
	mu        sync.Mutex
	available bool
	failAll   bool
	failIDs   map[string]bool
	evicted   []string
	regions   []string
	cleared   int
}

func newFakeBackend(name string, priority int) *fakeBackend {
	return &fakeBackend{name: name, priority: priority, available: true}
}

func (f *fakeBackend) Name() string  { return f.name }
func (f *fakeBackend) Priority() int { return f.priority }

func (f *fakeBackend) Evict(_ context.Context, region, entityType, entityID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll || f.failIDs[entityID] {
		return errors.New("backend eviction failure")
	}
	f.evicted = append(f.evicted, backend.EntryKey(region, entityType, entityID))
	return nil
}

func (f *fakeBackend) EvictRegion(_ context.Context, region string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("backend region eviction failure")
	}
	f.regions = append(f.regions, region)
	return nil
}

func (f *fakeBackend) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("backend clear failure")
	}
	f.cleared++
	return nil
}

func (f *fakeBackend) Available(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.available
}

func (f *fakeBackend) Close() error { return nil }

func (f *fakeBackend) setAvailable(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.available = v
}

func (f *fakeBackend) setFailAll(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAll = v
}

func (f *fakeBackend) evictedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.evicted...)
}

func (f *fakeBackend) evictedRegions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.regions...)
}

// flakyBroadcaster fails a configurable number of times before succeeding.
type flakyBroadcaster struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (b *flakyBroadcaster) Broadcast(context.Context, Batch) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.calls <= b.failures {
		return errors.New("broadcast failure")
	}
	return nil
}

func (b *flakyBroadcaster) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}
