package distribution

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cachegate/cachegate/internal/backend"
	"github.com/cachegate/cachegate/internal/eviction"
	"github.com/rs/zerolog"
)

var testLogger = zerolog.Nop()

type fakeBackend struct {
	mu        sync.Mutex
	available bool
	failAll   bool
	evicted   []string
	regions   []string
}

func (f *fakeBackend) Name() string  { return "fake" }
func (f *fakeBackend) Priority() int { return 10 }

func (f *fakeBackend) Evict(_ context.Context, region, entityType, entityID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("evict failure")
	}
	f.evicted = append(f.evicted, backend.EntryKey(region, entityType, entityID))
	return nil
}

func (f *fakeBackend) EvictRegion(_ context.Context, region string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("region failure")
	}
	f.regions = append(f.regions, region)
	return nil
}

func (f *fakeBackend) Clear(context.Context) error    { return nil }
func (f *fakeBackend) Available(context.Context) bool { return f.available }
func (f *fakeBackend) Close() error                   { return nil }

type fakeLedger struct {
	mu      sync.Mutex
	entries []eviction.Eviction
}

func (l *fakeLedger) Add(ev eviction.Eviction, _ error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, ev)
}

func newTestApplier(fb *fakeBackend, ledger *fakeLedger) *Applier {
	return NewApplier(nil, "test-channel", backend.NewSelector(fb), ledger, testLogger)
}

func TestApplier_Handle_AppliesEntries(t *testing.T) {
	fb := &fakeBackend{available: true}
	ledger := &fakeLedger{}
	a := newTestApplier(fb, ledger)

	payload, err := encodeEvent("node-1", eviction.Batch{
		eviction.New("Order", "42", "", eviction.OpUpdate),
		eviction.NewBulk("Customer", ""),
	})
	if err != nil {
		t.Fatalf("encodeEvent: %v", err)
	}

	a.handle(payload)

	if len(fb.evicted) != 1 || fb.evicted[0] != backend.EntryKey("Order", "Order", "42") {
		t.Fatalf("Expected point eviction of Order#42, got %v", fb.evicted)
	}
	if len(fb.regions) != 1 || fb.regions[0] != "Customer" {
		t.Fatalf("Expected region eviction of Customer, got %v", fb.regions)
	}
	if len(ledger.entries) != 0 {
		t.Fatalf("Expected no ledger entries, got %d", len(ledger.entries))
	}
}

func TestApplier_Handle_OwnEventsAreApplied(t *testing.T) {
	// The publishing node consumes its own broadcast: that is how the local
	// eviction happens on the async path, and eviction is idempotent.
	fb := &fakeBackend{available: true}
	a := newTestApplier(fb, &fakeLedger{})

	payload, _ := encodeEvent("this-node", eviction.Batch{
		eviction.New("Order", "1", "", eviction.OpInsert),
	})
	a.handle(payload)

	if len(fb.evicted) != 1 {
		t.Fatalf("Expected own event to be applied, got %v", fb.evicted)
	}
}

func TestApplier_Handle_MalformedPayloadIsIsolated(t *testing.T) {
	fb := &fakeBackend{available: true}
	ledger := &fakeLedger{}
	a := newTestApplier(fb, ledger)

	a.handle([]byte("{not json"))

	if len(fb.evicted) != 0 || len(ledger.entries) != 0 {
		t.Fatal("Malformed payload must not touch the backend or the ledger")
	}

	// A good payload afterwards still works.
	payload, _ := encodeEvent("node-1", eviction.Batch{
		eviction.New("Order", "1", "", eviction.OpUpdate),
	})
	a.handle(payload)
	if len(fb.evicted) != 1 {
		t.Fatal("Expected applier to keep working after a bad payload")
	}
}

func TestApplier_Handle_FailuresGoToLedger(t *testing.T) {
	fb := &fakeBackend{available: true, failAll: true}
	ledger := &fakeLedger{}
	a := newTestApplier(fb, ledger)

	payload, _ := encodeEvent("node-1", eviction.Batch{
		eviction.New("Order", "1", "", eviction.OpUpdate),
		eviction.New("Order", "2", "", eviction.OpUpdate),
	})
	a.handle(payload)

	if len(ledger.entries) != 2 {
		t.Fatalf("Expected both failed entries in the ledger, got %d", len(ledger.entries))
	}
}

func TestApplier_Handle_NoBackend_LedgersEverything(t *testing.T) {
	fb := &fakeBackend{available: false}
	ledger := &fakeLedger{}
	a := newTestApplier(fb, ledger)

	payload, _ := encodeEvent("node-1", eviction.Batch{
		eviction.New("Order", "1", "", eviction.OpUpdate),
	})
	a.handle(payload)

	if len(ledger.entries) != 1 {
		t.Fatalf("Expected entry ledgered with no backend, got %d", len(ledger.entries))
	}
}
