package eviction

import (
	"context"
	"sync/atomic"
)

type scopeState uint8

const (
	stateCollecting scopeState = iota
	stateCommitting
	stateRollingBack
	stateClosed
)

// pendingTotal tracks how many evictions are currently buffered across all
// open transaction scopes, for the admin status surface.
var pendingTotal atomic.Int64

// PendingCount returns the number of evictions currently buffered in open
// transaction scopes process-wide.
func PendingCount() int {
	return int(pendingTotal.Load())
}

// Scope buffers the pending evictions of one active transaction. It is owned
// by the goroutine running the transaction and must never be shared; the gate
// tears it down on every exit path, because the surrounding context may be
// reused by later, unrelated work.
type Scope struct {
	entries    []Eviction
	bulked     map[string]bool
	maxPending int
	registered bool
	state      scopeState
}

func newScope(maxPending int) *Scope {
	return &Scope{maxPending: maxPending}
}

// open reports whether the scope still accepts evictions.
func (s *Scope) open() bool {
	return s != nil && s.registered && s.state == stateCollecting
}

// add appends one eviction, applying the overflow rule: when the buffer is
// full, the offending entity type's entries collapse into a single bulk
// eviction for that type. Other types in the same transaction keep their
// per-id precision. The result is more conservative than the individual
// entries, never less.
func (s *Scope) add(ev Eviction) {
	if s.bulked == nil {
		s.bulked = make(map[string]bool)
	}

	// A type already collapsed to bulk subsumes any further entry for it.
	if s.bulked[ev.EntityType] {
		return
	}

	if ev.Op == OpBulk {
		s.collapse(ev.EntityType, ev.Region)
		return
	}

	if len(s.entries) >= s.maxPending {
		s.collapse(ev.EntityType, ev.Region)
		return
	}

	s.entries = append(s.entries, ev)
	pendingTotal.Add(1)
}

// collapse replaces every buffered entry of the given type with one bulk
// eviction for it.
func (s *Scope) collapse(entityType, region string) {
	kept := s.entries[:0]
	removed := 0
	for _, e := range s.entries {
		if e.EntityType == entityType {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = append(kept, NewBulk(entityType, region))
	s.bulked[entityType] = true
	pendingTotal.Add(int64(1 - removed))
}

// snapshot copies the buffered entries into an immutable batch.
func (s *Scope) snapshot() Batch {
	if len(s.entries) == 0 {
		return nil
	}
	batch := make(Batch, len(s.entries))
	copy(batch, s.entries)
	return batch
}

// Len returns the number of buffered entries.
func (s *Scope) Len() int {
	return len(s.entries)
}

// reset tears the scope down. It runs on every transaction exit path;
// anything left behind would be attributed to whatever unrelated transaction
// reuses the surrounding context next.
func (s *Scope) reset() {
	pendingTotal.Add(int64(-len(s.entries)))
	s.entries = nil
	s.bulked = nil
	s.registered = false
	s.state = stateClosed
}

type scopeKey struct{}

// withScope binds a scope to the context for the duration of a transaction.
func withScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// scopeFrom returns the transaction scope bound to ctx, or nil when the
// caller is not inside a gated transaction.
func scopeFrom(ctx context.Context) *Scope {
	s, _ := ctx.Value(scopeKey{}).(*Scope)
	return s
}
