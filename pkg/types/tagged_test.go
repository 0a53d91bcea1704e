package types

import (
	"encoding/json"
	"testing"
)

func TestUnmarshalTagged_Variants(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Tag
	}{
		{"string", `{"S":"abc"}`, TagString},
		{"number", `{"N":"123"}`, TagNumber},
		{"number as JSON number", `{"N":1.5}`, TagNumber},
		{"map", `{"M":{"a":{"S":"x"}}}`, TagMap},
		{"list", `{"L":[{"N":"1"},{"S":"two"}]}`, TagList},
		{"bool", `{"BOOL":true}`, TagBool},
		{"null", `{"NULL":true}`, TagNull},
		{"unknown discriminator", `{"SS":["a","b"]}`, TagRaw},
		{"wrong payload type", `{"S":5}`, TagRaw},
		{"map payload not an object", `{"M":"nope"}`, TagRaw},
		{"not an object", `"plain"`, TagRaw},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := UnmarshalTagged([]byte(tt.in))
			if err != nil {
				t.Fatalf("UnmarshalTagged failed: %v", err)
			}
			if v.Tag() != tt.want {
				t.Errorf("got tag %q, want %q", v.Tag(), tt.want)
			}
		})
	}
}

func TestUnmarshalTagged_InvalidJSON(t *testing.T) {
	if _, err := UnmarshalTagged([]byte(`{"S":`)); err == nil {
		t.Error("expected error for truncated JSON")
	}
}

func TestUnmarshalTagged_NestedValues(t *testing.T) {
	v, err := UnmarshalTagged([]byte(`{"M":{"tags":{"L":[{"S":"a"},{"NULL":true}]},"n":{"N":"7"}}}`))
	if err != nil {
		t.Fatalf("UnmarshalTagged failed: %v", err)
	}
	m, ok := v.(Map)
	if !ok {
		t.Fatalf("expected Map, got %T", v)
	}
	tags, ok := m["tags"].(List)
	if !ok || len(tags) != 2 {
		t.Fatalf("expected 2-element List under tags, got %#v", m["tags"])
	}
	if tags[0] != String("a") {
		t.Errorf("tags[0] = %#v, want String(a)", tags[0])
	}
	if _, ok := tags[1].(Null); !ok {
		t.Errorf("tags[1] = %#v, want Null", tags[1])
	}
	if m["n"] != Number("7") {
		t.Errorf("n = %#v, want Number(7)", m["n"])
	}
}

func TestTaggedValue_MarshalRoundTrip(t *testing.T) {
	in := Map{
		"user_id":    String("u-1"),
		"event_time": Number("1700000000000"),
		"flags":      List{Bool(true), Null{}},
		"extra":      Raw{Value: map[string]any{"SS": []any{"a"}}},
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var out Map
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if out["user_id"] != String("u-1") {
		t.Errorf("user_id = %#v", out["user_id"])
	}
	if out["event_time"] != Number("1700000000000") {
		t.Errorf("event_time = %#v", out["event_time"])
	}
	if l, ok := out["flags"].(List); !ok || len(l) != 2 || l[0] != Bool(true) {
		t.Errorf("flags = %#v", out["flags"])
	}
	if out["extra"].Tag() != TagRaw {
		t.Errorf("extra should stay raw, got tag %q", out["extra"].Tag())
	}
}

func TestParseOperationKind(t *testing.T) {
	tests := map[string]OperationKind{
		"INSERT": OpInsert,
		"insert": OpInsert,
		"MODIFY": OpUpdate,
		"update": OpUpdate,
		"REMOVE": OpDelete,
		"delete": OpDelete,
		"":       OpUnknown,
		"TTL":    OpUnknown,
	}
	for in, want := range tests {
		if got := ParseOperationKind(in); got != want {
			t.Errorf("ParseOperationKind(%q) = %q, want %q", in, got, want)
		}
	}
}
