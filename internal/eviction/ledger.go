package eviction

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"

	"github.com/cachegate/cachegate/internal/apperrors"
	"github.com/cachegate/cachegate/internal/backend"
	"github.com/cachegate/cachegate/internal/metrics"
)

// recentFailureCap bounds the ring of failure reasons kept for the admin
// status surface.
const recentFailureCap = 20

// LedgerEntry is an eviction that failed even the synchronous fallback path,
// parked for later reprocessing.
type LedgerEntry struct {
	Eviction
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
}

// RetryLedger is the dead-letter store of the pipeline. Append-only from the
// dispatcher's point of view; entries leave only through a successful
// Reprocess. Expiry and capping are deliberately left to whoever schedules
// Reprocess -- nothing in here silently forgets an eviction.
type RetryLedger struct {
	mu      sync.Mutex
	entries map[uint64]*LedgerEntry
	order   []uint64
	nextID  uint64
	recent  []string

	selector    *backend.Selector
	baseBackoff time.Duration
	maxBackoff  time.Duration
	now         func() time.Time
	logger      zerolog.Logger
}

// NewRetryLedger creates a ledger that retries entries through selector with
// capped exponential backoff between failed attempts.
func NewRetryLedger(selector *backend.Selector, baseBackoff, maxBackoff time.Duration, logger zerolog.Logger) *RetryLedger {
	return &RetryLedger{
		entries:     make(map[uint64]*LedgerEntry),
		selector:    selector,
		baseBackoff: baseBackoff,
		maxBackoff:  maxBackoff,
		now:         time.Now,
		logger:      logger,
	}
}

// Add parks an eviction whose fallback attempt failed with cause. The entry
// is immediately due: the next Reprocess call decides whether the world has
// recovered. The failure is also reported to Sentry -- an eviction landing
// here means the cache may serve stale data until an operator or scheduler
// intervenes.
func (l *RetryLedger) Add(ev Eviction, cause error) {
	l.logger.Error().Err(cause).
		Str("entity_type", ev.EntityType).
		Str("entity_id", ev.EntityID).
		Str("region", ev.Region).
		Msg("Eviction failed terminally, parking in retry ledger")
	sentry.CaptureException(cause)

	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextID
	l.nextID++
	l.entries[id] = &LedgerEntry{
		Eviction:      ev,
		Attempts:      1,
		NextAttemptAt: l.now(),
		LastError:     cause.Error(),
	}
	l.order = append(l.order, id)
	l.recordFailureLocked(cause)
}

func (l *RetryLedger) recordFailureLocked(cause error) {
	line := fmt.Sprintf("%s: %v", l.now().Format(time.RFC3339), cause)
	l.recent = append(l.recent, line)
	if len(l.recent) > recentFailureCap {
		l.recent = l.recent[len(l.recent)-recentFailureCap:]
	}
}

// Reprocess retries every entry whose NextAttemptAt has passed. Successful
// entries are removed; failed ones stay with an incremented attempt count and
// a backed-off next attempt. Returns how many entries were evicted and how
// many failed again.
func (l *RetryLedger) Reprocess(ctx context.Context) (evicted, failed int) {
	now := l.now()

	type due struct {
		id uint64
		ev Eviction
	}
	l.mu.Lock()
	dueEntries := make([]due, 0, len(l.order))
	for _, id := range l.order {
		entry, ok := l.entries[id]
		if !ok {
			continue
		}
		if !entry.NextAttemptAt.After(now) {
			dueEntries = append(dueEntries, due{id: id, ev: entry.Eviction})
		}
	}
	l.mu.Unlock()

	if len(dueEntries) == 0 {
		return 0, 0
	}

	// Backend calls run without the lock so a slow store cannot block the
	// dispatcher from parking new entries.
	active, ok := l.selector.Active(ctx)
	for _, d := range dueEntries {
		var err error
		if !ok {
			err = apperrors.NewNoBackendAvailableError()
		} else {
			err = Apply(ctx, active, d.ev)
		}

		if err == nil {
			l.remove(d.id)
			evicted++
			metrics.ReprocessTotal.WithLabelValues("evicted").Inc()
			continue
		}
		l.recordAttempt(d.id, err)
		failed++
		metrics.ReprocessTotal.WithLabelValues("failed").Inc()
	}

	l.logger.Info().Int("evicted", evicted).Int("failed", failed).
		Msg("Retry ledger reprocessed")
	return evicted, failed
}

func (l *RetryLedger) remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.entries, id)
	for i, oid := range l.order {
		if oid == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

func (l *RetryLedger) recordAttempt(id uint64, cause error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[id]
	if !ok {
		return
	}
	entry.Attempts++
	entry.NextAttemptAt = l.now().Add(l.backoff(entry.Attempts))
	entry.LastError = cause.Error()
	l.recordFailureLocked(cause)
}

// backoff returns the delay before the next attempt: exponential in the
// number of attempts already made, capped at maxBackoff.
func (l *RetryLedger) backoff(attempts int) time.Duration {
	delay := l.baseBackoff
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= l.maxBackoff {
			return l.maxBackoff
		}
	}
	if delay > l.maxBackoff {
		return l.maxBackoff
	}
	return delay
}

// Len returns the number of parked entries.
func (l *RetryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Entries returns a copy of the parked entries in arrival order.
func (l *RetryLedger) Entries() []LedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]LedgerEntry, 0, len(l.order))
	for _, id := range l.order {
		if entry, ok := l.entries[id]; ok {
			out = append(out, *entry)
		}
	}
	return out
}

// RecentFailures returns the most recent failure reasons, oldest first.
func (l *RetryLedger) RecentFailures() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]string, len(l.recent))
	copy(out, l.recent)
	return out
}
