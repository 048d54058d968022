package backend

import (
	"context"
	"sort"
)

// Selector holds a statically ordered list of backend candidates and resolves
// the active one on demand. Availability is re-checked on every call so a
// backend that recovers after an outage is picked up without a restart.
type Selector struct {
	backends []Backend
	sentinel Backend
}

// BackendStatus is a point-in-time availability report for one candidate,
// used by the admin status surface.
type BackendStatus struct {
	Name      string `json:"name"`
	Priority  int    `json:"priority"`
	Available bool   `json:"available"`
}

// NewSelector creates a selector over the given candidates, ordered by
// priority descending. Order among equal priorities follows registration order.
func NewSelector(backends ...Backend) *Selector {
	ordered := make([]Backend, len(backends))
	copy(ordered, backends)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() > ordered[j].Priority()
	})
	return &Selector{
		backends: ordered,
		sentinel: noopBackend{},
	}
}

// Active returns the highest-priority backend that is currently available.
// When none qualifies it returns a no-op sentinel and false; evictions sent to
// the sentinel succeed without doing anything, keeping the write path alive in
// degraded mode.
func (s *Selector) Active(ctx context.Context) (Backend, bool) {
	for _, b := range s.backends {
		if b.Available(ctx) {
			return b, true
		}
	}
	return s.sentinel, false
}

// Backends returns the candidates in selection order.
func (s *Selector) Backends() []Backend {
	out := make([]Backend, len(s.backends))
	copy(out, s.backends)
	return out
}

// Status probes every candidate once and reports the results in selection order.
func (s *Selector) Status(ctx context.Context) []BackendStatus {
	out := make([]BackendStatus, 0, len(s.backends))
	for _, b := range s.backends {
		out = append(out, BackendStatus{
			Name:      b.Name(),
			Priority:  b.Priority(),
			Available: b.Available(ctx),
		})
	}
	return out
}

// Close closes every candidate, returning the first error encountered.
func (s *Selector) Close() error {
	var first error
	for _, b := range s.backends {
		if err := b.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
