package backend

import "context"

// noopBackend is the degraded-mode sentinel returned by Selector.Active when
// no candidate is available. Every operation succeeds without touching
// anything; cache correctness degrades to "stale until TTL" rather than
// failing the write path.
type noopBackend struct{}

func (noopBackend) Name() string  { return "none" }
func (noopBackend) Priority() int { return -1 }

func (noopBackend) Evict(context.Context, string, string, string) error { return nil }
func (noopBackend) EvictRegion(context.Context, string) error           { return nil }
func (noopBackend) Clear(context.Context) error                         { return nil }
func (noopBackend) Available(context.Context) bool                      { return false }
func (noopBackend) Close() error                                        { return nil }
