package distribution

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/cachegate/cachegate/internal/apperrors"
	"github.com/cachegate/cachegate/internal/backend"
	"github.com/cachegate/cachegate/internal/eviction"
)

// ledgerSink receives evictions the applier could not perform.
type ledgerSink interface {
	Add(ev eviction.Eviction, cause error)
}

// Applier subscribes to the cluster eviction channel and applies every
// received batch against the local active backend. It is the consuming half
// of the async distribution path; the publishing node's own events are
// applied too, not filtered out.
type Applier struct {
	client   *redis.Client
	channel  string
	selector *backend.Selector
	ledger   ledgerSink
	logger   zerolog.Logger

	pubsub *redis.PubSub
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewApplier creates an applier consuming the given channel.
func NewApplier(client *redis.Client, channel string, selector *backend.Selector, ledger ledgerSink, logger zerolog.Logger) *Applier {
	return &Applier{
		client:   client,
		channel:  channel,
		selector: selector,
		ledger:   ledger,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Subscribe starts listening for eviction events in a background goroutine.
func (a *Applier) Subscribe(ctx context.Context) error {
	a.pubsub = a.client.Subscribe(ctx, a.channel)

	// Force the subscription to be established before returning, so a
	// broadcast immediately after startup is not lost.
	if _, err := a.pubsub.Receive(ctx); err != nil {
		return err
	}

	a.wg.Add(1)
	go a.listen()
	return nil
}

// Close stops the listener and tears down the subscription.
func (a *Applier) Close() error {
	close(a.done)
	a.wg.Wait()

	if a.pubsub != nil {
		return a.pubsub.Close()
	}
	return nil
}

func (a *Applier) listen() {
	defer a.wg.Done()

	ch := a.pubsub.Channel()
	for {
		select {
		case <-a.done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			a.handle([]byte(msg.Payload))
		}
	}
}

// handle decodes one published payload and applies it. A payload that does
// not decode is dropped with a log line: it cannot be attributed to entries,
// and the publishing node's fallback path is responsible for its own batch.
func (a *Applier) handle(payload []byte) {
	event, batch, err := decodeEvent(payload)
	if err != nil {
		a.logger.Error().Err(err).Msg("Dropping undecodable eviction event")
		return
	}

	ctx := context.Background()
	active, ok := a.selector.Active(ctx)

	for _, ev := range batch {
		if !ok {
			a.ledger.Add(ev, apperrors.NewNoBackendAvailableError())
			continue
		}
		if err := eviction.Apply(ctx, active, ev); err != nil {
			a.ledger.Add(ev, &apperrors.ErrEvictionFailed{
				Backend:    active.Name(),
				EntityType: ev.EntityType,
				EntityID:   ev.EntityID,
				Cause:      err,
			})
		}
	}

	a.logger.Debug().Str("sender", event.Sender).Int("entries", len(batch)).
		Msg("Applied eviction event")
}
