// Package decode converts tagged change-feed values into plain value trees.
//
// Decoding never fails: malformed numeric text degrades to text and values
// with an unrecognized discriminator pass through unchanged.
package decode

import (
	"math"
	"strconv"
	"strings"

	"github.com/eventlake/eventlake/pkg/types"
)

// NumberKind classifies the result of ParseNumber.
type NumberKind int

const (
	Integer NumberKind = iota
	Decimal
	Text
)

// Number is the tagged result of a best-effort numeric parse.
type Number struct {
	Kind  NumberKind
	Int   int64
	Float float64
	Text  string
}

// Value returns the parsed number as int64, float64 or string.
func (n Number) Value() any {
	switch n.Kind {
	case Integer:
		return n.Int
	case Decimal:
		return n.Float
	default:
		return n.Text
	}
}

// ParseNumber parses s as an integer unless it contains a decimal point,
// then as a decimal. Text that is neither, or a decimal that is not finite,
// is returned as Text.
func ParseNumber(s string) Number {
	if !strings.Contains(s, ".") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Number{Kind: Integer, Int: i}
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return Number{Kind: Decimal, Float: f}
	}
	return Number{Kind: Text, Text: s}
}

// Decode converts a tagged value into its plain form.
func Decode(v types.TaggedValue) any {
	switch tv := v.(type) {
	case types.String:
		return string(tv)
	case types.Number:
		return ParseNumber(string(tv)).Value()
	case types.Map:
		return DecodeMap(tv)
	case types.List:
		out := make([]any, len(tv))
		for i, item := range tv {
			out[i] = Decode(item)
		}
		return out
	case types.Bool:
		return bool(tv)
	case types.Null:
		return nil
	case types.Raw:
		return tv.Value
	default:
		return v
	}
}

// DecodeMap decodes every attribute of a tagged map, preserving keys.
func DecodeMap(m types.Map) types.DecodedRecord {
	out := make(types.DecodedRecord, len(m))
	for k, v := range m {
		out[k] = Decode(v)
	}
	return out
}
