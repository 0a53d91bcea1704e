package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/eventlake/eventlake/pkg/types"
)

// Synonym sets for the identity columns, in priority order.
var (
	UserIDFields = []string{"user_id", "userId", "user"}
	ItemIDFields = []string{"item_id", "itemId", "item"}
)

// Outcome is the result of applying one Resolver to a record.
type Outcome int

const (
	// Skip means the resolver does not apply; the next resolver is tried.
	Skip Outcome = iota
	// Resolved means the returned seconds are the record's timestamp.
	Resolved
	// Rejected means the resolver applies but its value is unusable. The
	// chain stops and the record is dropped.
	Rejected
)

// Resolver derives epoch seconds from a record.
type Resolver struct {
	Name    string
	Resolve func(rec types.DecodedRecord) (seconds int64, outcome Outcome)
}

// DefaultResolvers is the timestamp fallback chain: a milliseconds field,
// then a numeric "timestamp", then a calendar-text "timestamp".
var DefaultResolvers = []Resolver{
	MillisField("event_time", "eventTime"),
	NumericTimestamp("timestamp"),
	CalendarTimestamp("timestamp"),
}

// MillisField resolves the first present, non-null field as milliseconds
// since the epoch, truncated to seconds. Once such a field is found it
// decides the record: a non-numeric or negative value is Rejected.
func MillisField(fields ...string) Resolver {
	return Resolver{
		Name: "millis:" + strings.Join(fields, ","),
		Resolve: func(rec types.DecodedRecord) (int64, Outcome) {
			for _, f := range fields {
				v, present := rec[f]
				if !present || v == nil {
					continue
				}
				n, ok := numeric(v)
				if !ok {
					return 0, Rejected
				}
				if n.isInt {
					if n.i < 0 {
						return 0, Rejected
					}
					return n.i / 1000, Resolved
				}
				if sec, ok := toSeconds(n.f / 1000); ok {
					return sec, Resolved
				}
				return 0, Rejected
			}
			return 0, Skip
		},
	}
}

// NumericTimestamp resolves field when it is a number or numeric text,
// taken as seconds. Non-numeric values are left to later resolvers.
func NumericTimestamp(field string) Resolver {
	return Resolver{
		Name: "numeric:" + field,
		Resolve: func(rec types.DecodedRecord) (int64, Outcome) {
			n, ok := numeric(rec[field])
			if !ok {
				return 0, Skip
			}
			if n.isInt {
				if n.i < 0 {
					return 0, Rejected
				}
				return n.i, Resolved
			}
			if sec, ok := toSeconds(n.f); ok {
				return sec, Resolved
			}
			return 0, Rejected
		},
	}
}

// calendarLayouts are tried in order. Layouts without a zone are read as UTC.
var calendarLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// CalendarTimestamp resolves field when it is date or date-time text.
func CalendarTimestamp(field string) Resolver {
	return Resolver{
		Name: "calendar:" + field,
		Resolve: func(rec types.DecodedRecord) (int64, Outcome) {
			s, ok := rec[field].(string)
			if !ok {
				return 0, Skip
			}
			s = strings.TrimSpace(s)
			for _, layout := range calendarLayouts {
				if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
					if sec := t.Unix(); sec >= 0 {
						return sec, Resolved
					}
					return 0, Rejected
				}
			}
			return 0, Skip
		},
	}
}

// ResolveTimestamp applies resolvers in order until one resolves or rejects
// the record.
func ResolveTimestamp(rec types.DecodedRecord, resolvers []Resolver) (int64, bool) {
	for _, r := range resolvers {
		switch sec, outcome := r.Resolve(rec); outcome {
		case Resolved:
			return sec, true
		case Rejected:
			return 0, false
		}
	}
	return 0, false
}

// Coalesce returns the first non-null value among fields, as text.
func Coalesce(rec types.DecodedRecord, fields []string) (string, bool) {
	for _, f := range fields {
		v, ok := rec[f]
		if !ok || v == nil {
			continue
		}
		return stringify(v), true
	}
	return "", false
}

// NormalizeRecord maps one raw record onto the interaction schema. ok is
// false when any of the three columns cannot be filled.
func NormalizeRecord(rec types.DecodedRecord, resolvers []Resolver) (types.InteractionRow, bool) {
	userID, ok := Coalesce(rec, UserIDFields)
	if !ok {
		return types.InteractionRow{}, false
	}
	itemID, ok := Coalesce(rec, ItemIDFields)
	if !ok {
		return types.InteractionRow{}, false
	}
	ts, ok := ResolveTimestamp(rec, resolvers)
	if !ok {
		return types.InteractionRow{}, false
	}
	return types.InteractionRow{UserID: userID, ItemID: itemID, Timestamp: ts}, true
}

type number struct {
	i     int64
	f     float64
	isInt bool
}

// numeric reads a JSON number or numeric text. Integers keep full precision.
func numeric(v any) (number, bool) {
	var s string
	switch tv := v.(type) {
	case json.Number:
		s = tv.String()
	case string:
		s = strings.TrimSpace(tv)
	case int64:
		return number{i: tv, isInt: true}, true
	case float64:
		return number{f: tv}, !math.IsNaN(tv) && !math.IsInf(tv, 0)
	default:
		return number{}, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return number{i: n, isInt: true}, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return number{}, false
	}
	return number{f: f}, true
}

// toSeconds truncates toward zero; negative or out-of-range values do not resolve.
func toSeconds(f float64) (int64, bool) {
	if f < 0 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// stringify renders an identity value. Numbers never use exponent notation.
func stringify(v any) string {
	switch tv := v.(type) {
	case string:
		return tv
	case json.Number:
		if !strings.ContainsAny(tv.String(), ".eE") {
			return tv.String()
		}
		if f, err := tv.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return tv.String()
	case int64:
		return strconv.FormatInt(tv, 10)
	case float64:
		return strconv.FormatFloat(tv, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(tv)
	default:
		b, err := json.Marshal(tv)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
