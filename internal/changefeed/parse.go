package changefeed

import (
	"bytes"
	"encoding/json"
	"fmt"

	pipeerrors "github.com/eventlake/eventlake/internal/errors"
	"github.com/eventlake/eventlake/pkg/types"
)

// envelope matches both the DynamoDB stream event ({"Records": [...]}) and
// the neutral form ({"records": [...]}); encoding/json matches keys
// case-insensitively.
type envelope struct {
	Records []json.RawMessage `json:"Records"`
}

// wireRecord is one change record in either supported shape.
type wireRecord struct {
	// DynamoDB stream shape
	EventName string `json:"eventName"`
	DynamoDB  *struct {
		NewImage json.RawMessage `json:"NewImage"`
	} `json:"dynamodb"`

	// Neutral shape
	OperationKind string          `json:"operationKind"`
	PostImage     json.RawMessage `json:"postImage"`
}

// ParseEvent parses a change-feed batch. The payload may be an envelope with
// a records array or a bare array of records. Records that cannot be parsed
// are kept as OpUnknown entries so that Extract skips them; only a payload
// that is not a batch at all is an error.
func ParseEvent(data []byte) ([]types.ChangeRecord, error) {
	trimmed := bytes.TrimSpace(data)

	var raws []json.RawMessage
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, invalidFeed(err)
		}
	} else {
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, invalidFeed(err)
		}
		raws = env.Records
	}

	records := make([]types.ChangeRecord, 0, len(raws))
	for _, raw := range raws {
		records = append(records, parseRecord(raw))
	}
	return records, nil
}

// parseRecord never fails; malformed entries become OpUnknown.
func parseRecord(raw json.RawMessage) types.ChangeRecord {
	var w wireRecord
	if err := json.Unmarshal(raw, &w); err != nil {
		return types.ChangeRecord{OperationKind: types.OpUnknown}
	}

	kind := w.OperationKind
	if kind == "" {
		kind = w.EventName
	}
	rec := types.ChangeRecord{OperationKind: types.ParseOperationKind(kind)}

	image := w.PostImage
	if len(image) == 0 && w.DynamoDB != nil {
		image = w.DynamoDB.NewImage
	}
	if len(image) == 0 {
		return rec
	}

	var m types.Map
	if err := json.Unmarshal(image, &m); err != nil {
		return types.ChangeRecord{OperationKind: types.OpUnknown}
	}
	rec.PostImage = m
	return rec
}

func invalidFeed(err error) error {
	return pipeerrors.NewValidationError(pipeerrors.CodeInvalidChangeFeed,
		fmt.Sprintf("invalid change feed: %v", err))
}
