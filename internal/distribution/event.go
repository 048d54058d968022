package distribution

import (
	"encoding/json"

	"github.com/cachegate/cachegate/internal/eviction"
)

// Event is the wire form of one committed eviction batch, published on the
// cluster channel.
type Event struct {
	// Sender identifies the publishing node, for diagnostics. Subscribers do
	// not filter on it: applying our own broadcast locally is the mechanism by
	// which the publishing node consumes its own notification, and eviction is
	// idempotent.
	Sender  string  `json:"sender"`
	Entries []Entry `json:"entries"`
}

// Entry is the wire form of one eviction.
type Entry struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id,omitempty"`
	Region     string `json:"region"`
	Op         string `json:"op"`
}

// encodeEvent serializes a batch for publication.
func encodeEvent(sender string, batch eviction.Batch) ([]byte, error) {
	entries := make([]Entry, 0, len(batch))
	for _, ev := range batch {
		entries = append(entries, Entry{
			EntityType: ev.EntityType,
			EntityID:   ev.EntityID,
			Region:     ev.Region,
			Op:         ev.Op.String(),
		})
	}
	return json.Marshal(Event{Sender: sender, Entries: entries})
}

// decodeEvent parses a published payload back into evictions. Entries with an
// unknown operation are treated as bulk: when in doubt, evict more, not less.
func decodeEvent(payload []byte) (Event, eviction.Batch, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return Event{}, nil, err
	}

	batch := make(eviction.Batch, 0, len(event.Entries))
	for _, entry := range event.Entries {
		op, ok := eviction.ParseOperation(entry.Op)
		if !ok {
			op = eviction.OpBulk
		}
		batch = append(batch, eviction.New(entry.EntityType, entry.EntityID, entry.Region, op))
	}
	return event, batch, nil
}
