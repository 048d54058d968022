package backend

import "context"

// instrumentedBackend wraps a Backend and records Prometheus metrics for
// every eviction operation under the backend's name. All metric tracking
// lives in the backend layer so callers do not need to manage it.
type instrumentedBackend struct {
	inner Backend
}

// newInstrumentedBackend wraps inner with metric instrumentation and registers
// a lazy availability collector probed at scrape time.
func newInstrumentedBackend(inner Backend) *instrumentedBackend {
	registerAvailabilityCollector(inner.Name(), inner.Available)
	return &instrumentedBackend{inner: inner}
}

func (b *instrumentedBackend) Name() string  { return b.inner.Name() }
func (b *instrumentedBackend) Priority() int { return b.inner.Priority() }

func (b *instrumentedBackend) count(kind string, err error) {
	if err != nil {
		ErrorsTotal.WithLabelValues(b.inner.Name(), kind).Inc()
		return
	}
	EvictionsTotal.WithLabelValues(b.inner.Name(), kind).Inc()
}

func (b *instrumentedBackend) Evict(ctx context.Context, region, entityType, entityID string) error {
	err := b.inner.Evict(ctx, region, entityType, entityID)
	b.count(kindEntity, err)
	return err
}

func (b *instrumentedBackend) EvictRegion(ctx context.Context, region string) error {
	err := b.inner.EvictRegion(ctx, region)
	b.count(kindRegion, err)
	return err
}

func (b *instrumentedBackend) Clear(ctx context.Context) error {
	err := b.inner.Clear(ctx)
	b.count(kindClear, err)
	return err
}

func (b *instrumentedBackend) Available(ctx context.Context) bool {
	return b.inner.Available(ctx)
}

// Close unregisters the availability collector and closes the wrapped backend.
func (b *instrumentedBackend) Close() error {
	unregisterAvailabilityCollector(b.inner.Name())
	return b.inner.Close()
}
