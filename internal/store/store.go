// Package store persists ingested interaction events in the source-of-record
// key-value store. DynamoDB backs cloud deployments; SQLite backs local ones
// and additionally records a change feed for the relay.
package store

import (
	"context"

	"github.com/eventlake/eventlake/internal/decode"
	"github.com/eventlake/eventlake/pkg/types"
)

// Store is the source-of-record write interface used by the ingestor.
// Implementations make a single attempt and never retry.
type Store interface {
	PutEvent(ctx context.Context, ev types.RawEvent) error
}

// EventItem returns the tagged item written for ev, keyed by user_id and
// event_time.
func EventItem(ev types.RawEvent) types.Map {
	return decode.EncodeMap(map[string]any{
		"user_id":    ev.UserID,
		"event_time": ev.EventTime,
		"event_type": ev.EventType,
		"item_id":    ev.ItemID,
	})
}
