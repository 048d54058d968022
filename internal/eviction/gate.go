package eviction

import (
	"context"

	"github.com/rs/zerolog"
)

// batchDispatcher consumes flushed eviction batches. Implementations must
// never propagate errors or panics back to the caller: the commit path has to
// complete regardless of cache outcome.
type batchDispatcher interface {
	Distribute(ctx context.Context, batch Batch)
}

// Gate binds an eviction buffer's lifetime to the outcome of the enclosing
// database transaction: flush on commit, discard on rollback, and tear the
// buffer down on every exit path.
type Gate struct {
	dispatcher batchDispatcher
	maxPending int
	logger     zerolog.Logger
}

// NewGate creates a gate that flushes committed batches into dispatcher.
// maxPending bounds the per-transaction buffer before entries degrade to
// bulk eviction.
func NewGate(dispatcher batchDispatcher, maxPending int, logger zerolog.Logger) *Gate {
	return &Gate{
		dispatcher: dispatcher,
		maxPending: maxPending,
		logger:     logger,
	}
}

// Begin opens an eviction scope for a starting transaction and binds it to
// the returned context. The caller owns the transaction outcome and must call
// exactly one of Commit or Rollback with a context derived from the returned
// one.
func (g *Gate) Begin(ctx context.Context) context.Context {
	scope := newScope(g.maxPending)
	scope.registered = true
	return withScope(ctx, scope)
}

// Commit snapshots the scope's buffer and hands it to the dispatcher. The
// teardown is deferred before anything else happens so that a dispatch
// failure, or even a panic while dispatching, cannot leave entries behind for
// an unrelated transaction to inherit.
func (g *Gate) Commit(ctx context.Context) {
	scope := scopeFrom(ctx)
	if scope == nil || scope.state != stateCollecting {
		return
	}

	defer scope.reset()
	scope.state = stateCommitting

	batch := scope.snapshot()
	if len(batch) == 0 {
		return
	}

	g.logger.Debug().Int("entries", len(batch)).Msg("Transaction committed, dispatching evictions")

	// The request context may be cancelled the moment the commit returns;
	// the durable write already happened, so the evictions must not be
	// abandoned with it.
	g.dispatcher.Distribute(context.WithoutCancel(ctx), batch)
}

// Rollback discards the scope's buffer without dispatching anything.
func (g *Gate) Rollback(ctx context.Context) {
	scope := scopeFrom(ctx)
	if scope == nil || scope.state != stateCollecting {
		return
	}

	defer scope.reset()
	scope.state = stateRollingBack

	if n := scope.Len(); n > 0 {
		g.logger.Debug().Int("entries", n).Msg("Transaction rolled back, discarding pending evictions")
	}
}
