package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/eventlake/eventlake/pkg/types"
)

// ParseRecords reads every record from one input file. A file holds a
// sequence of JSON values: batch envelopes contribute their items, arrays
// their object elements and plain objects themselves. This covers a single
// batch artifact, a JSON array and newline-delimited JSON alike.
// Non-object values are skipped.
func ParseRecords(data []byte) ([]types.DecodedRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var records []types.DecodedRecord
	for {
		var v any
		err := dec.Decode(&v)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid JSON at offset %d: %w", dec.InputOffset(), err)
		}
		records = appendValue(records, v, true)
	}
	return records, nil
}

func appendValue(records []types.DecodedRecord, v any, top bool) []types.DecodedRecord {
	switch tv := v.(type) {
	case map[string]any:
		if items, ok := envelopeItems(tv); ok && top {
			for _, item := range items {
				records = appendValue(records, item, false)
			}
			return records
		}
		return append(records, types.DecodedRecord(tv))
	case []any:
		if !top {
			return records
		}
		for _, item := range tv {
			records = appendValue(records, item, false)
		}
		return records
	default:
		return records
	}
}

// envelopeItems returns the items of a batch envelope.
func envelopeItems(obj map[string]any) ([]any, bool) {
	if _, ok := obj["ingested_at"]; !ok {
		return nil, false
	}
	items, ok := obj["items"].([]any)
	return items, ok
}
