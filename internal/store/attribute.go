package store

import (
	"encoding/json"
	"fmt"

	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/eventlake/eventlake/internal/decode"
	"github.com/eventlake/eventlake/pkg/types"
)

// ToAttributeValue converts a tagged value to its DynamoDB SDK form.
// Raw values are re-encoded from their plain form; anything that still has no
// attribute counterpart is stored as its JSON text.
func ToAttributeValue(v types.TaggedValue) ddbtypes.AttributeValue {
	switch tv := v.(type) {
	case types.String:
		return &ddbtypes.AttributeValueMemberS{Value: string(tv)}
	case types.Number:
		return &ddbtypes.AttributeValueMemberN{Value: string(tv)}
	case types.Bool:
		return &ddbtypes.AttributeValueMemberBOOL{Value: bool(tv)}
	case types.Null:
		return &ddbtypes.AttributeValueMemberNULL{Value: true}
	case types.Map:
		return &ddbtypes.AttributeValueMemberM{Value: ToAttributeMap(tv)}
	case types.List:
		l := make([]ddbtypes.AttributeValue, len(tv))
		for i, item := range tv {
			l[i] = ToAttributeValue(item)
		}
		return &ddbtypes.AttributeValueMemberL{Value: l}
	case types.Raw:
		if enc := decode.Encode(tv.Value); enc.Tag() != types.TagRaw {
			return ToAttributeValue(enc)
		}
		b, err := json.Marshal(tv.Value)
		if err != nil {
			return &ddbtypes.AttributeValueMemberS{Value: fmt.Sprint(tv.Value)}
		}
		return &ddbtypes.AttributeValueMemberS{Value: string(b)}
	default:
		return &ddbtypes.AttributeValueMemberNULL{Value: true}
	}
}

// ToAttributeMap converts every attribute of m.
func ToAttributeMap(m types.Map) map[string]ddbtypes.AttributeValue {
	out := make(map[string]ddbtypes.AttributeValue, len(m))
	for k, v := range m {
		out[k] = ToAttributeValue(v)
	}
	return out
}

// FromAttributeValue converts a DynamoDB SDK attribute back to a tagged value.
// Set types have no tagged counterpart and come back as Raw.
func FromAttributeValue(av ddbtypes.AttributeValue) types.TaggedValue {
	switch v := av.(type) {
	case *ddbtypes.AttributeValueMemberS:
		return types.String(v.Value)
	case *ddbtypes.AttributeValueMemberN:
		return types.Number(v.Value)
	case *ddbtypes.AttributeValueMemberBOOL:
		return types.Bool(v.Value)
	case *ddbtypes.AttributeValueMemberNULL:
		return types.Null{}
	case *ddbtypes.AttributeValueMemberM:
		return FromAttributeMap(v.Value)
	case *ddbtypes.AttributeValueMemberL:
		l := make(types.List, len(v.Value))
		for i, item := range v.Value {
			l[i] = FromAttributeValue(item)
		}
		return l
	case *ddbtypes.AttributeValueMemberSS:
		return types.Raw{Value: v.Value}
	case *ddbtypes.AttributeValueMemberNS:
		return types.Raw{Value: v.Value}
	case *ddbtypes.AttributeValueMemberB:
		return types.Raw{Value: v.Value}
	default:
		return types.Raw{Value: nil}
	}
}

// FromAttributeMap converts every attribute of m.
func FromAttributeMap(m map[string]ddbtypes.AttributeValue) types.Map {
	out := make(types.Map, len(m))
	for k, v := range m {
		out[k] = FromAttributeValue(v)
	}
	return out
}
