package decode

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/eventlake/eventlake/pkg/types"
)

// Encode converts a plain value into its tagged form. It is the inverse of
// Decode: Decode(Encode(v)) reproduces v for every value Decode can emit.
// Types with no tagged counterpart are wrapped in types.Raw.
func Encode(v any) types.TaggedValue {
	switch pv := v.(type) {
	case nil:
		return types.Null{}
	case string:
		return types.String(pv)
	case bool:
		return types.Bool(pv)
	case int:
		return types.Number(strconv.Itoa(pv))
	case int32:
		return types.Number(strconv.FormatInt(int64(pv), 10))
	case int64:
		return types.Number(strconv.FormatInt(pv, 10))
	case uint64:
		return types.Number(strconv.FormatUint(pv, 10))
	case float32:
		return types.Number(formatDecimal(float64(pv), 32))
	case float64:
		return types.Number(formatDecimal(pv, 64))
	case json.Number:
		return types.Number(pv.String())
	case types.DecodedRecord:
		return EncodeMap(pv)
	case map[string]any:
		return EncodeMap(pv)
	case []any:
		l := make(types.List, len(pv))
		for i, item := range pv {
			l[i] = Encode(item)
		}
		return l
	case []string:
		l := make(types.List, len(pv))
		for i, item := range pv {
			l[i] = types.String(item)
		}
		return l
	case types.TaggedValue:
		return pv
	default:
		return types.Raw{Value: v}
	}
}

// EncodeMap encodes every field of a plain record.
func EncodeMap(m map[string]any) types.Map {
	out := make(types.Map, len(m))
	for k, v := range m {
		out[k] = Encode(v)
	}
	return out
}

// formatDecimal always keeps a decimal point so the value decodes back to a
// float rather than an integer.
func formatDecimal(f float64, bitSize int) string {
	s := strconv.FormatFloat(f, 'f', -1, bitSize)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return s
	}
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
