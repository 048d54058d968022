package backend

import (
	"context"
	"testing"
	"time"
)

func newTestMemory(t *testing.T) *memoryBackend {
	t.Helper()
	b, err := New("memory", Config{Size: 100, TTL: time.Hour, Priority: 10})
	if err != nil {
		t.Fatalf("New memory backend: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b.(*memoryBackend)
}

func TestMemoryBackend_Evict(t *testing.T) {
	m := newTestMemory(t)

	m.Put("Order", "Order", "42", []byte("cached"))
	if _, ok := m.Get("Order", "Order", "42"); !ok {
		t.Fatal("Expected entry to be cached")
	}

	if err := m.Evict(context.Background(), "Order", "Order", "42"); err != nil {
		t.Fatalf("Evict: %v", err)
	}
	if _, ok := m.Get("Order", "Order", "42"); ok {
		t.Fatal("Expected entry to be evicted")
	}
}

func TestMemoryBackend_Evict_Absent(t *testing.T) {
	m := newTestMemory(t)

	// Evicting something that was never cached is not an error.
	if err := m.Evict(context.Background(), "Order", "Order", "absent"); err != nil {
		t.Fatalf("Evicting absent entry: %v", err)
	}
}

func TestMemoryBackend_EvictRegion(t *testing.T) {
	m := newTestMemory(t)

	m.Put("Order", "Order", "1", []byte("a"))
	m.Put("Order", "Order", "2", []byte("b"))
	m.Put("Customer", "Customer", "1", []byte("c"))

	if err := m.EvictRegion(context.Background(), "Order"); err != nil {
		t.Fatalf("EvictRegion: %v", err)
	}

	if _, ok := m.Get("Order", "Order", "1"); ok {
		t.Fatal("Expected Order#1 to be evicted with its region")
	}
	if _, ok := m.Get("Order", "Order", "2"); ok {
		t.Fatal("Expected Order#2 to be evicted with its region")
	}
	if _, ok := m.Get("Customer", "Customer", "1"); !ok {
		t.Fatal("Expected Customer region to be untouched")
	}
}

func TestMemoryBackend_Clear(t *testing.T) {
	m := newTestMemory(t)

	m.Put("Order", "Order", "1", []byte("a"))
	m.Put("Customer", "Customer", "1", []byte("b"))

	if err := m.Clear(context.Background()); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("Expected empty cache after Clear, got %d entries", m.Len())
	}
}

func TestMemoryBackend_AlwaysAvailable(t *testing.T) {
	m := newTestMemory(t)
	if !m.Available(context.Background()) {
		t.Fatal("Memory backend should always be available")
	}
}
