package distribution

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/cachegate/cachegate/internal/eviction"
)

// Broadcaster publishes committed eviction batches on a Redis Pub/Sub
// channel. Every node of the cluster, this one included, subscribes to the
// same channel and applies what it receives.
type Broadcaster struct {
	client  *redis.Client
	channel string
	nodeID  string
	logger  zerolog.Logger
}

// NewBroadcaster creates a broadcaster publishing on the given channel.
func NewBroadcaster(client *redis.Client, channel, nodeID string, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		client:  client,
		channel: channel,
		nodeID:  nodeID,
		logger:  logger,
	}
}

// Broadcast publishes the batch. A serialization failure or a publish failure
// is returned to the dispatcher, which owns the retry and fallback policy.
func (b *Broadcaster) Broadcast(ctx context.Context, batch eviction.Batch) error {
	payload, err := encodeEvent(b.nodeID, batch)
	if err != nil {
		return err
	}

	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return err
	}

	b.logger.Debug().Int("entries", len(batch)).Str("channel", b.channel).
		Msg("Eviction batch broadcast")
	return nil
}
