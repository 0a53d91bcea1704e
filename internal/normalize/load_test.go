package normalize

import (
	"testing"
)

func TestParseRecords_Shapes(t *testing.T) {
	tests := []struct {
		name string
		data string
		want int
	}{
		{"batch envelope", `{"ingested_at":"2024-03-05T14:22:07Z","count":2,"items":[{"a":1},{"b":2}]}`, 2},
		{"empty envelope", `{"ingested_at":"2024-03-05T14:22:07Z","count":0,"items":[]}`, 0},
		{"json array", `[{"a":1},{"b":2},{"c":3}]`, 3},
		{"ndjson", "{\"a\":1}\n{\"b\":2}\n\n{\"c\":3}\n", 3},
		{"single object", `{"user_id":"u","items":["x"]}`, 1},
		{"non-objects skipped", `[1,"two",{"a":1},null,[{"nested":true}]]`, 1},
		{"empty file", ``, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := ParseRecords([]byte(tt.data))
			if err != nil {
				t.Fatalf("ParseRecords failed: %v", err)
			}
			if len(records) != tt.want {
				t.Errorf("got %d records, want %d", len(records), tt.want)
			}
		})
	}
}

func TestParseRecords_KeepsNumbersExact(t *testing.T) {
	records, err := ParseRecords([]byte(`[{"event_time":1700000000999}]`))
	if err != nil {
		t.Fatalf("ParseRecords failed: %v", err)
	}
	got, ok := ResolveTimestamp(records[0], DefaultResolvers)
	if !ok || got != 1700000000 {
		t.Errorf("ResolveTimestamp = (%d, %v)", got, ok)
	}
}

func TestParseRecords_Invalid(t *testing.T) {
	if _, err := ParseRecords([]byte(`{"a":1}{"b":`)); err == nil {
		t.Error("expected error for truncated JSON")
	}
}
