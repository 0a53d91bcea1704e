// Package types provides the core data types shared by the eventlake pipeline.
package types

import "time"

// DecodedRecord is the plain form of a tagged map: field name to string,
// int64, float64, bool, nil, nested DecodedRecord-shaped map, or list thereof.
type DecodedRecord map[string]any

// RawEvent is the canonical minimal record written by the event ingestor.
type RawEvent struct {
	// UserID identifies the user who triggered the event (default "anonymous")
	UserID string `json:"user_id"`

	// EventTime is the Unix timestamp (milliseconds) when the event occurred
	EventTime int64 `json:"event_time"`

	// EventType categorizes the event, e.g. "view" or "purchase" (default "unknown")
	EventType string `json:"event_type"`

	// ItemID identifies the item interacted with (default "none")
	ItemID string `json:"item_id"`
}

// Batch is the envelope written to object storage for one extraction.
// Count always equals len(Items) and is never zero.
type Batch struct {
	IngestedAt time.Time       `json:"ingested_at"`
	Count      int             `json:"count"`
	Items      []DecodedRecord `json:"items"`
}

// NewBatch builds a batch stamped with now in UTC.
func NewBatch(items []DecodedRecord, now time.Time) Batch {
	return Batch{
		IngestedAt: now.UTC(),
		Count:      len(items),
		Items:      items,
	}
}

// InteractionRow is one row of the interaction schema consumed by the
// recommendation import.
type InteractionRow struct {
	UserID string
	ItemID string

	// Timestamp is in seconds since the Unix epoch and never negative
	Timestamp int64
}

// InteractionColumns is the fixed column order of the interaction schema.
var InteractionColumns = []string{"USER_ID", "ITEM_ID", "TIMESTAMP"}
