package eviction

import (
	"context"
	"testing"
	"time"

	"github.com/cachegate/cachegate/internal/backend"
)

func newTestPipeline(t *testing.T, broadcaster Broadcaster, backends ...backend.Backend) (*Dispatcher, *RetryLedger) {
	t.Helper()
	selector := backend.NewSelector(backends...)
	ledger := NewRetryLedger(selector, time.Minute, time.Hour, testLogger)
	return NewDispatcher(broadcaster, selector, ledger, time.Second, testLogger), ledger
}

func TestDispatcher_BroadcastSuccess_NoFallback(t *testing.T) {
	fb := newFakeBackend("memory", 10)
	bc := &flakyBroadcaster{failures: 0}
	d, ledger := newTestPipeline(t, bc, fb)

	d.Distribute(context.Background(), Batch{New("Order", "42", "", OpUpdate)})

	if bc.callCount() != 1 {
		t.Fatalf("Expected 1 broadcast attempt, got %d", bc.callCount())
	}
	if got := len(fb.evictedKeys()); got != 0 {
		t.Fatalf("Fallback must not run when broadcast succeeds, got %d direct evictions", got)
	}
	if ledger.Len() != 0 {
		t.Fatalf("Expected empty ledger, got %d entries", ledger.Len())
	}
}

func TestDispatcher_BroadcastRetriesOnceThenSucceeds(t *testing.T) {
	fb := newFakeBackend("memory", 10)
	bc := &flakyBroadcaster{failures: 1}
	d, ledger := newTestPipeline(t, bc, fb)

	d.Distribute(context.Background(), Batch{New("Order", "42", "", OpUpdate)})

	if bc.callCount() != 2 {
		t.Fatalf("Expected 2 broadcast attempts, got %d", bc.callCount())
	}
	if ledger.Len() != 0 {
		t.Fatalf("Expected empty ledger after retried success, got %d", ledger.Len())
	}
}

func TestDispatcher_BroadcastExhausted_FallsBackToDirectEviction(t *testing.T) {
	fb := newFakeBackend("memory", 10)
	bc := &flakyBroadcaster{failures: 10}
	d, ledger := newTestPipeline(t, bc, fb)

	d.Distribute(context.Background(), Batch{
		New("Order", "42", "", OpUpdate),
		New("Order", "43", "", OpDelete),
	})

	if bc.callCount() != 2 {
		t.Fatalf("Expected exactly 2 broadcast attempts before fallback, got %d", bc.callCount())
	}
	keys := fb.evictedKeys()
	if len(keys) != 2 {
		t.Fatalf("Expected 2 direct evictions, got %v", keys)
	}
	if ledger.Len() != 0 {
		t.Fatalf("Expected empty ledger after successful fallback, got %d", ledger.Len())
	}
}

func TestDispatcher_NoBroadcaster_GoesStraightToDirectEviction(t *testing.T) {
	fb := newFakeBackend("memory", 10)
	d, _ := newTestPipeline(t, nil, fb)

	d.Distribute(context.Background(), Batch{New("Order", "42", "", OpUpdate)})

	if got := len(fb.evictedKeys()); got != 1 {
		t.Fatalf("Expected 1 direct eviction in single-node mode, got %d", got)
	}
}

func TestDispatcher_BulkEntryEvictsRegion(t *testing.T) {
	fb := newFakeBackend("memory", 10)
	d, _ := newTestPipeline(t, nil, fb)

	d.Distribute(context.Background(), Batch{NewBulk("Order", "")})

	if regions := fb.evictedRegions(); len(regions) != 1 || regions[0] != "Order" {
		t.Fatalf("Expected region eviction for 'Order', got %v", regions)
	}
}

func TestDispatcher_PartialFailure_LedgersOnlyFailedEntries(t *testing.T) {
	fb := newFakeBackend("memory", 10)
	fb.failIDs = map[string]bool{"2": true, "4": true}
	d, ledger := newTestPipeline(t, nil, fb)

	batch := Batch{
		New("Order", "1", "", OpUpdate),
		New("Order", "2", "", OpUpdate),
		New("Order", "3", "", OpUpdate),
		New("Order", "4", "", OpUpdate),
		New("Order", "5", "", OpUpdate),
	}
	d.Distribute(context.Background(), batch)

	if got := len(fb.evictedKeys()); got != 3 {
		t.Fatalf("Expected 3 successful evictions, got %d", got)
	}
	entries := ledger.Entries()
	if len(entries) != 2 {
		t.Fatalf("Expected 2 ledgered entries, got %d", len(entries))
	}
	ids := map[string]bool{}
	for _, e := range entries {
		ids[e.EntityID] = true
		if e.Attempts != 1 {
			t.Errorf("Expected attempts=1 on fresh ledger entry, got %d", e.Attempts)
		}
	}
	if !ids["2"] || !ids["4"] {
		t.Fatalf("Wrong entries ledgered: %v", ids)
	}
}

func TestDispatcher_NoBackendAvailable_LedgersEverything(t *testing.T) {
	fb := newFakeBackend("memory", 10)
	fb.setAvailable(false)
	d, ledger := newTestPipeline(t, nil, fb)

	d.Distribute(context.Background(), Batch{
		New("Order", "42", "", OpUpdate),
		New("Order", "43", "", OpDelete),
	})

	if ledger.Len() != 2 {
		t.Fatalf("Expected both entries ledgered, got %d", ledger.Len())
	}
}

func TestDispatcher_EmptyBatchIsANoop(t *testing.T) {
	bc := &flakyBroadcaster{}
	d, _ := newTestPipeline(t, bc, newFakeBackend("memory", 10))

	d.Distribute(context.Background(), nil)

	if bc.callCount() != 0 {
		t.Fatal("Empty batch must not be broadcast")
	}
}
