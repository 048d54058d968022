package eviction

import (
	"context"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/failsafe-go/failsafe-go/timeout"
	"github.com/rs/zerolog"

	"github.com/cachegate/cachegate/internal/apperrors"
	"github.com/cachegate/cachegate/internal/backend"
	"github.com/cachegate/cachegate/internal/metrics"
)

// maxBroadcastAttempts bounds the async distribution path. Two attempts with
// no delay between them: this is a transient-fault retry, and a fast fallback
// beats a slow retry when the backbone is genuinely down.
const maxBroadcastAttempts = 2

// Broadcaster publishes an eviction batch to every node of the cluster,
// including this one.
type Broadcaster interface {
	Broadcast(ctx context.Context, batch Batch) error
}

// Dispatcher drives a flushed batch through the three-tier policy: async
// distribution with bounded retry and timeout, synchronous direct eviction as
// fallback, and the retry ledger as the terminal stop. After Distribute
// returns, every entry of the batch is either evicted (or published for
// eviction) or sitting in the ledger; none are silently dropped.
type Dispatcher struct {
	broadcaster Broadcaster
	selector    *backend.Selector
	ledger      *RetryLedger
	executor    failsafe.Executor[any]
	logger      zerolog.Logger
}

// NewDispatcher creates a dispatcher. broadcaster may be nil, in which case
// every batch takes the direct eviction path (single-node deployments).
// attemptTimeout bounds each broadcast attempt so a stalled cache backbone
// cannot hold the committing goroutine indefinitely; a timeout triggers the
// fallback exactly as a hard failure would.
func NewDispatcher(broadcaster Broadcaster, selector *backend.Selector, ledger *RetryLedger, attemptTimeout time.Duration, logger zerolog.Logger) *Dispatcher {
	retry := retrypolicy.NewBuilder[any]().
		WithMaxAttempts(maxBroadcastAttempts).
		OnRetry(func(e failsafe.ExecutionEvent[any]) {
			logger.Warn().Err(e.LastError()).Msg("Eviction broadcast failed, retrying")
		}).
		Build()

	return &Dispatcher{
		broadcaster: broadcaster,
		selector:    selector,
		ledger:      ledger,
		executor:    failsafe.With[any](retry, timeout.New[any](attemptTimeout)),
		logger:      logger,
	}
}

// Distribute applies the batch. It never returns an error and never panics:
// relative to the durable write, caching is a best-effort side channel, and
// the commit path must complete regardless of what happens here.
func (d *Dispatcher) Distribute(ctx context.Context, batch Batch) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Interface("panic", r).Msg("Panic while dispatching evictions")
		}
	}()

	if len(batch) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)

	if d.broadcaster != nil {
		err := d.executor.WithContext(ctx).RunWithExecution(func(exec failsafe.Execution[any]) error {
			return d.broadcaster.Broadcast(exec.Context(), batch)
		})
		if err == nil {
			metrics.BatchesTotal.WithLabelValues("distributed").Inc()
			return
		}

		metrics.DistributionFailuresTotal.Inc()
		d.logger.Warn().Err(err).Int("entries", len(batch)).
			Msg("Async distribution exhausted, falling back to direct eviction")
	}

	d.evictDirect(ctx, batch)
	metrics.BatchesTotal.WithLabelValues("fallback").Inc()
}

// evictDirect applies every entry against the active backend, one by one.
// Failure is tolerated entry by entry: one bad entity does not block the rest
// of the batch, it just lands in the ledger.
func (d *Dispatcher) evictDirect(ctx context.Context, batch Batch) {
	active, ok := d.selector.Active(ctx)
	for _, ev := range batch {
		if !ok {
			d.ledger.Add(ev, apperrors.NewNoBackendAvailableError())
			metrics.FallbackEvictionsTotal.WithLabelValues("ledgered").Inc()
			continue
		}

		if err := Apply(ctx, active, ev); err != nil {
			d.ledger.Add(ev, &apperrors.ErrEvictionFailed{
				Backend:    active.Name(),
				EntityType: ev.EntityType,
				EntityID:   ev.EntityID,
				Cause:      err,
			})
			metrics.FallbackEvictionsTotal.WithLabelValues("ledgered").Inc()
			continue
		}
		metrics.FallbackEvictionsTotal.WithLabelValues("evicted").Inc()
	}
}

// Apply performs one eviction against the given backend: a region eviction
// for bulk entries, a point eviction otherwise.
func Apply(ctx context.Context, b backend.Backend, ev Eviction) error {
	if ev.Bulk() {
		return b.EvictRegion(ctx, ev.Region)
	}
	return b.Evict(ctx, ev.Region, ev.EntityType, ev.EntityID)
}
