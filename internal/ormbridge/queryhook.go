package ormbridge

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/uptrace/bun"
)

// QueryHook logs bun queries through zerolog: failed queries at error level,
// queries slower than the threshold at warn, everything else at debug.
type QueryHook struct {
	logger        zerolog.Logger
	slowThreshold time.Duration
}

// NewQueryHook creates a hook with the given slow-query threshold.
func NewQueryHook(logger zerolog.Logger, slowThreshold time.Duration) QueryHook {
	return QueryHook{
		logger:        logger,
		slowThreshold: slowThreshold,
	}
}

// BeforeQuery implements bun.QueryHook.
func (h QueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

// AfterQuery implements bun.QueryHook.
func (h QueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	elapsed := time.Since(event.StartTime)

	switch {
	case event.Err != nil:
		h.logger.Error().Err(event.Err).Dur("elapsed", elapsed).
			Str("query", event.Query).Msg("Query failed")
	case h.slowThreshold > 0 && elapsed >= h.slowThreshold:
		h.logger.Warn().Dur("elapsed", elapsed).
			Str("query", event.Query).Msg("Slow query")
	default:
		h.logger.Debug().Dur("elapsed", elapsed).
			Str("query", event.Query).Msg("Query executed")
	}
}
