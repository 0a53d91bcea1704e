package normalize

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/eventlake/eventlake/pkg/types"
)

func TestResolveTimestamp(t *testing.T) {
	tests := []struct {
		name   string
		rec    types.DecodedRecord
		want   int64
		wantOK bool
	}{
		{"millis wins over numeric text", types.DecodedRecord{"event_time": json.Number("1700000000000"), "timestamp": "999"}, 1700000000, true},
		{"millis truncates", types.DecodedRecord{"event_time": json.Number("1700000000999")}, 1700000000, true},
		{"millis from decoded int", types.DecodedRecord{"event_time": int64(1700000000999)}, 1700000000, true},
		{"millis as text", types.DecodedRecord{"event_time": "1700000000000"}, 1700000000, true},
		{"camel case millis", types.DecodedRecord{"eventTime": json.Number("1700000000000")}, 1700000000, true},
		{"numeric text timestamp", types.DecodedRecord{"timestamp": "999"}, 999, true},
		{"numeric timestamp", types.DecodedRecord{"timestamp": json.Number("1700000000")}, 1700000000, true},
		{"decimal timestamp truncates", types.DecodedRecord{"timestamp": json.Number("1700000000.75")}, 1700000000, true},
		{"calendar zone-less", types.DecodedRecord{"timestamp": "2023-11-14T00:00:00"}, 1699920000, true},
		{"calendar with zone", types.DecodedRecord{"timestamp": "2023-11-14T01:00:00+01:00"}, 1699920000, true},
		{"calendar space separated", types.DecodedRecord{"timestamp": "2023-11-14 00:00:00"}, 1699920000, true},
		{"calendar date only", types.DecodedRecord{"timestamp": "2023-11-14"}, 1699920000, true},
		{"unparseable millis drops the record", types.DecodedRecord{"event_time": "soon", "timestamp": "2023-11-14"}, 0, false},
		{"negative millis drops the record", types.DecodedRecord{"event_time": json.Number("-1500"), "timestamp": "999"}, 0, false},
		{"non-scalar millis drops the record", types.DecodedRecord{"event_time": []any{"x"}, "timestamp": "999"}, 0, false},
		{"null millis falls through", types.DecodedRecord{"event_time": nil, "timestamp": "999"}, 999, true},
		{"garbage text", types.DecodedRecord{"timestamp": "last tuesday"}, 0, false},
		{"negative", types.DecodedRecord{"timestamp": json.Number("-5")}, 0, false},
		{"no timestamp fields", types.DecodedRecord{"user_id": "u"}, 0, false},
		{"non-scalar timestamp", types.DecodedRecord{"timestamp": map[string]any{"s": 1}}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveTimestamp(tt.rec, DefaultResolvers)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ResolveTimestamp = (%d, %v), want (%d, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestResolveTimestamp_CustomOrder(t *testing.T) {
	rec := types.DecodedRecord{"event_time": json.Number("1700000000000"), "timestamp": "999"}
	got, ok := ResolveTimestamp(rec, []Resolver{NumericTimestamp("timestamp"), MillisField("event_time")})
	if !ok || got != 999 {
		t.Errorf("expected the first resolver in the list to win, got (%d, %v)", got, ok)
	}

	if _, ok := ResolveTimestamp(rec, nil); ok {
		t.Error("an empty resolver list must leave the timestamp unresolved")
	}
}

func TestCoalesce(t *testing.T) {
	tests := []struct {
		rec    types.DecodedRecord
		want   string
		wantOK bool
	}{
		{types.DecodedRecord{"user_id": "a", "userId": "b"}, "a", true},
		{types.DecodedRecord{"user_id": nil, "userId": "b"}, "b", true},
		{types.DecodedRecord{"user": "c"}, "c", true},
		{types.DecodedRecord{"user_id": ""}, "", true},
		{types.DecodedRecord{"user_id": json.Number("12345678901234567890")}, "12345678901234567890", true},
		{types.DecodedRecord{"user_id": json.Number("1e3")}, "1000", true},
		{types.DecodedRecord{"user_id": int64(42)}, "42", true},
		{types.DecodedRecord{"user_id": true}, "true", true},
		{types.DecodedRecord{"other": "x"}, "", false},
	}

	for _, tt := range tests {
		got, ok := Coalesce(tt.rec, UserIDFields)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("Coalesce(%v) = (%q, %v), want (%q, %v)", tt.rec, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestNormalizeRecord_MissingItem(t *testing.T) {
	rec := types.DecodedRecord{"user_id": "u", "event_time": json.Number("1700000000000")}
	if _, ok := NormalizeRecord(rec, DefaultResolvers); ok {
		t.Error("a record without any item field must be dropped")
	}

	rec["itemId"] = "i"
	row, ok := NormalizeRecord(rec, DefaultResolvers)
	if !ok {
		t.Fatal("expected record to normalize")
	}
	want := types.InteractionRow{UserID: "u", ItemID: "i", Timestamp: 1700000000}
	if row != want {
		t.Errorf("NormalizeRecord = %+v, want %+v", row, want)
	}
}

func TestNormalizeRecord_UnusableMillis(t *testing.T) {
	for _, v := range []any{"soon", json.Number("-1500"), int64(-1)} {
		rec := types.DecodedRecord{"user_id": "u", "item_id": "i", "event_time": v, "timestamp": "999"}
		if row, ok := NormalizeRecord(rec, DefaultResolvers); ok {
			t.Errorf("event_time=%v: expected record to be dropped, got %+v", v, row)
		}
	}
}

func TestMillisField_Outcomes(t *testing.T) {
	r := MillisField("event_time", "eventTime")
	tests := []struct {
		rec  types.DecodedRecord
		want Outcome
	}{
		{types.DecodedRecord{}, Skip},
		{types.DecodedRecord{"event_time": nil}, Skip},
		{types.DecodedRecord{"event_time": nil, "eventTime": json.Number("2000")}, Resolved},
		{types.DecodedRecord{"event_time": "soon", "eventTime": json.Number("2000")}, Rejected},
	}
	for _, tt := range tests {
		if _, got := r.Resolve(tt.rec); got != tt.want {
			t.Errorf("Resolve(%v) outcome = %d, want %d", tt.rec, got, tt.want)
		}
	}
}

// TestProperty_TimestampResolution validates millisecond truncation and that
// resolved timestamps are never negative.
func TestProperty_TimestampResolution(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("millis field resolves to ms/1000", prop.ForAll(
		func(ms int64) bool {
			rec := types.DecodedRecord{"event_time": ms, "timestamp": "2020-01-01"}
			got, ok := ResolveTimestamp(rec, DefaultResolvers)
			return ok && got == ms/1000
		},
		gen.Int64Range(0, 1<<50),
	))

	properties.Property("calendar text round trips through unix seconds", prop.ForAll(
		func(sec int64) bool {
			text := time.Unix(sec, 0).UTC().Format("2006-01-02T15:04:05")
			got, ok := ResolveTimestamp(types.DecodedRecord{"timestamp": text}, DefaultResolvers)
			return ok && got == sec
		},
		gen.Int64Range(0, 4102444800),
	))

	properties.Property("negative millis never fall back to timestamp", prop.ForAll(
		func(ms int64) bool {
			rec := types.DecodedRecord{"event_time": ms, "timestamp": "2020-01-01"}
			_, ok := ResolveTimestamp(rec, DefaultResolvers)
			return !ok
		},
		gen.Int64Range(-(1 << 50), -1),
	))

	properties.Property("resolved timestamps are never negative", prop.ForAll(
		func(v int64) bool {
			got, ok := ResolveTimestamp(types.DecodedRecord{"timestamp": json.Number(fmt.Sprint(v))}, DefaultResolvers)
			return !ok || got >= 0
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}
