package types

import "errors"

// Record-related errors
var (
	// ErrEmptyBatch is returned when a batch would be built with no items
	ErrEmptyBatch = errors.New("batch has no items")
)
