package ormbridge

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"
	"github.com/uptrace/bun"

	"github.com/cachegate/cachegate/internal/eviction"
)

// Bridge ties the eviction gate to bun transactions. Repositories report
// entity writes through EntityChanged; the gate publishes the accumulated
// evictions only if the surrounding transaction commits.
type Bridge struct {
	db        *bun.DB
	gate      *eviction.Gate
	collector *eviction.Collector
	logger    zerolog.Logger
}

// New creates a bridge over db.
func New(db *bun.DB, gate *eviction.Gate, collector *eviction.Collector, logger zerolog.Logger) *Bridge {
	return &Bridge{
		db:        db,
		gate:      gate,
		collector: collector,
		logger:    logger,
	}
}

// DB exposes the wrapped bun handle for read paths that do not need gating.
func (b *Bridge) DB() *bun.DB {
	return b.db
}

// RunInTx runs fn inside a bun transaction with an eviction scope bound to
// its context. On commit the scope is flushed to the dispatcher; on any error
// (including a panic unwinding through bun's own rollback) it is discarded.
// Either way the scope is torn down before RunInTx returns.
func (b *Bridge) RunInTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx bun.Tx) error) error {
	ctx = b.gate.Begin(ctx)

	// Rollback on every non-commit exit, panics included. Calling it after a
	// commit is a no-op because the scope is already closed.
	defer b.gate.Rollback(ctx)

	if err := b.db.RunInTx(ctx, opts, fn); err != nil {
		return err
	}

	b.gate.Commit(ctx)
	return nil
}

// EntityChanged reports a write to the collector with the entity type's
// canonical region. Call it after the corresponding statement succeeded, so
// the write is part of whatever the transaction ends up committing.
func (b *Bridge) EntityChanged(ctx context.Context, entityType, entityID string, op eviction.Operation) {
	b.collector.OnEntityChanged(ctx, entityType, entityID, "", op)
}

// EntityChangedInRegion is EntityChanged with an explicit cache region.
func (b *Bridge) EntityChangedInRegion(ctx context.Context, entityType, entityID, region string, op eviction.Operation) {
	b.collector.OnEntityChanged(ctx, entityType, entityID, region, op)
}
