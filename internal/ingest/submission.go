package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	pipeerrors "github.com/eventlake/eventlake/internal/errors"
)

// Submission is the loosely-typed object posted by a client. Every field is
// optional.
type Submission map[string]any

// ParseSubmission decodes a request body into a Submission. The body may be
// the object itself or a proxy envelope whose "body" field holds the object
// as a JSON string.
func ParseSubmission(body []byte) (Submission, error) {
	sub, err := decodeObject(body)
	if err != nil {
		return nil, err
	}

	if inner, ok := sub["body"].(string); ok && inner != "" {
		return decodeObject([]byte(inner))
	}
	return sub, nil
}

func decodeObject(data []byte) (Submission, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, pipeerrors.NewValidationError(pipeerrors.CodeInvalidBody, fmt.Sprintf("invalid request body: %v", err))
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); err != io.EOF {
		return nil, pipeerrors.NewValidationError(pipeerrors.CodeInvalidBody, "invalid request body: unexpected data after JSON value")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, pipeerrors.NewValidationError(pipeerrors.CodeInvalidBody, "request body must be a JSON object")
	}
	return Submission(obj), nil
}

// text returns the field as a string, or def when it is absent or null.
// Non-string values are rendered in their JSON text form.
func (s Submission) text(field, def string) string {
	v, ok := s[field]
	if !ok || v == nil {
		return def
	}
	switch tv := v.(type) {
	case string:
		return tv
	case json.Number:
		return tv.String()
	case float64:
		return strconv.FormatFloat(tv, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(tv)
	default:
		b, err := json.Marshal(tv)
		if err != nil {
			return fmt.Sprint(tv)
		}
		return string(b)
	}
}

// millis returns the field as integer milliseconds. Numbers are truncated
// toward zero; numeric text is accepted. ok is false for anything else.
func (s Submission) millis(field string) (int64, bool) {
	switch tv := s[field].(type) {
	case json.Number:
		return parseMillis(tv.String())
	case float64:
		return floatMillis(tv)
	case int64:
		return tv, true
	case int:
		return int64(tv), true
	case string:
		return parseMillis(strings.TrimSpace(tv))
	default:
		return 0, false
	}
}

func parseMillis(s string) (int64, bool) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return floatMillis(f)
}

func floatMillis(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}
