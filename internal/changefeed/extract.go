// Package changefeed parses change-feed batches and extracts the decoded
// post-change images of inserts and updates.
package changefeed

import (
	"github.com/eventlake/eventlake/internal/decode"
	"github.com/eventlake/eventlake/pkg/types"
)

// Extract decodes the post-change image of every insert or update that
// carries a non-empty image, preserving input order. All other records are
// skipped. The result is never longer than the input.
func Extract(records []types.ChangeRecord) []types.DecodedRecord {
	items := make([]types.DecodedRecord, 0, len(records))
	for _, rec := range records {
		if !Eligible(rec) {
			continue
		}
		items = append(items, decode.DecodeMap(rec.PostImage))
	}
	return items
}

// Eligible reports whether a change record contributes to a batch.
func Eligible(rec types.ChangeRecord) bool {
	switch rec.OperationKind {
	case types.OpInsert, types.OpUpdate:
		return len(rec.PostImage) > 0
	default:
		return false
	}
}
