package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Tag is the type discriminator of a TaggedValue on the wire.
type Tag string

const (
	TagString Tag = "S"
	TagNumber Tag = "N"
	TagMap    Tag = "M"
	TagList   Tag = "L"
	TagBool   Tag = "BOOL"
	TagNull   Tag = "NULL"

	// TagRaw marks a value whose discriminator was not recognized.
	TagRaw Tag = ""
)

// TaggedValue is a value carrying an explicit type discriminator, as produced
// by the source store's change feed. The set of variants is closed: String,
// Number, Map, List, Bool, Null and Raw.
type TaggedValue interface {
	Tag() Tag
}

// String is a text value.
type String string

// Number is a numeric value kept in its encoded text form.
type Number string

// Map is a mapping of attribute names to tagged values.
type Map map[string]TaggedValue

// List is an ordered sequence of tagged values.
type List []TaggedValue

// Bool is a boolean value.
type Bool bool

// Null is the null value.
type Null struct{}

// Raw holds a value whose shape did not match any known discriminator.
// Value is the plain decoded JSON of the original encoding.
type Raw struct {
	Value any
}

func (String) Tag() Tag { return TagString }
func (Number) Tag() Tag { return TagNumber }
func (Map) Tag() Tag    { return TagMap }
func (List) Tag() Tag   { return TagList }
func (Bool) Tag() Tag   { return TagBool }
func (Null) Tag() Tag   { return TagNull }
func (Raw) Tag() Tag    { return TagRaw }

// MarshalJSON encodes the value as {"S": "..."}.
func (s String) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{string(TagString): string(s)})
}

// MarshalJSON encodes the value as {"N": "..."}.
func (n Number) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{string(TagNumber): string(n)})
}

// MarshalJSON encodes the value as {"M": {...}}.
func (m Map) MarshalJSON() ([]byte, error) {
	inner := make(map[string]TaggedValue, len(m))
	for k, v := range m {
		inner[k] = v
	}
	return json.Marshal(map[string]map[string]TaggedValue{string(TagMap): inner})
}

// MarshalJSON encodes the value as {"L": [...]}.
func (l List) MarshalJSON() ([]byte, error) {
	inner := []TaggedValue(l)
	if inner == nil {
		inner = []TaggedValue{}
	}
	return json.Marshal(map[string][]TaggedValue{string(TagList): inner})
}

// MarshalJSON encodes the value as {"BOOL": true|false}.
func (b Bool) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]bool{string(TagBool): bool(b)})
}

// MarshalJSON encodes the value as {"NULL": true}.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte(`{"NULL":true}`), nil
}

// MarshalJSON writes the held value back out unchanged.
func (r Raw) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Value)
}

// UnmarshalJSON decodes a JSON object of attribute name to tagged value.
func (m *Map) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("tagged map: %w", err)
	}
	out := make(Map, len(fields))
	for k, raw := range fields {
		v, err := UnmarshalTagged(raw)
		if err != nil {
			return fmt.Errorf("tagged map field %q: %w", k, err)
		}
		out[k] = v
	}
	*m = out
	return nil
}

// UnmarshalTagged decodes one tagged value from its wire encoding.
// Only syntactically invalid JSON is an error. A shape that matches no known
// discriminator, or whose payload has the wrong type, decodes to Raw.
func UnmarshalTagged(data []byte) (TaggedValue, error) {
	if !json.Valid(data) {
		return nil, fmt.Errorf("tagged value: invalid JSON")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return rawOf(data), nil
	}

	// Discriminators are checked in a fixed order so that a value carrying
	// more than one of them always resolves the same way.
	if raw, ok := fields[string(TagString)]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return String(s), nil
		}
		return rawOf(data), nil
	}
	if raw, ok := fields[string(TagNumber)]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return Number(s), nil
		}
		var n json.Number
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&n); err == nil {
			return Number(n.String()), nil
		}
		return rawOf(data), nil
	}
	if raw, ok := fields[string(TagMap)]; ok {
		var m Map
		if err := json.Unmarshal(raw, &m); err == nil && m != nil {
			return m, nil
		}
		return rawOf(data), nil
	}
	if raw, ok := fields[string(TagList)]; ok {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return rawOf(data), nil
		}
		l := make(List, 0, len(items))
		for _, item := range items {
			v, err := UnmarshalTagged(item)
			if err != nil {
				return nil, err
			}
			l = append(l, v)
		}
		return l, nil
	}
	if raw, ok := fields[string(TagBool)]; ok {
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			return Bool(b), nil
		}
		return rawOf(data), nil
	}
	if _, ok := fields[string(TagNull)]; ok {
		return Null{}, nil
	}

	return rawOf(data), nil
}

// rawOf wraps already validated JSON in a Raw variant.
func rawOf(data []byte) Raw {
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	_ = dec.Decode(&v)
	return Raw{Value: v}
}
