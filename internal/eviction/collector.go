package eviction

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/cachegate/cachegate/internal/metrics"
)

// Collector is the entry point for the ORM change hook. Collecting is
// best-effort by contract: it never blocks on the cache and never lets a
// caching problem surface on the write path.
type Collector struct {
	dispatcher batchDispatcher
	logger     zerolog.Logger
}

// NewCollector creates a collector that buffers into the transaction scope
// when one is bound to the context, and dispatches immediately otherwise.
func NewCollector(dispatcher batchDispatcher, logger zerolog.Logger) *Collector {
	return &Collector{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// OnEntityChanged records that an entity write is part of the current
// transaction. Region may be empty, defaulting to the entity type's canonical
// region.
//
// Outside a gated transaction the eviction is dispatched right away as a
// single-entry batch: a degraded but correct mode for non-transactional
// writes. The same degradation applies when the scope has already been torn
// down, which can happen if transaction completion raced the write hook --
// an extra synchronous eviction is preferable to silently losing one.
func (c *Collector) OnEntityChanged(ctx context.Context, entityType, entityID, region string, op Operation) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).
				Str("entity_type", entityType).
				Msg("Panic while collecting eviction")
		}
	}()

	ev := New(entityType, entityID, region, op)
	metrics.EvictionsCollectedTotal.WithLabelValues(op.String()).Inc()

	scope := scopeFrom(ctx)
	if scope == nil {
		c.logger.Debug().
			Str("entity_type", ev.EntityType).
			Str("entity_id", ev.EntityID).
			Msg("No active transaction, evicting immediately")
		c.dispatcher.Distribute(context.WithoutCancel(ctx), Batch{ev})
		return
	}

	if !scope.open() {
		c.logger.Warn().
			Str("entity_type", ev.EntityType).
			Str("entity_id", ev.EntityID).
			Msg("Transaction scope no longer accepts evictions, evicting immediately")
		c.dispatcher.Distribute(context.WithoutCancel(ctx), Batch{ev})
		return
	}

	scope.add(ev)
}
