package store

import (
	"reflect"
	"testing"

	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/eventlake/eventlake/pkg/types"
)

func TestAttributeValue_RoundTrip(t *testing.T) {
	m := types.Map{
		"s":    types.String("hello"),
		"n":    types.Number("42"),
		"b":    types.Bool(true),
		"null": types.Null{},
		"list": types.List{types.Number("1.5"), types.String("x")},
		"map":  types.Map{"inner": types.String("v")},
	}

	got := FromAttributeMap(ToAttributeMap(m))
	if !reflect.DeepEqual(got, m) {
		t.Errorf("round trip mismatch:\ngot  %#v\nwant %#v", got, m)
	}
}

func TestToAttributeValue_Raw(t *testing.T) {
	av := ToAttributeValue(types.Raw{Value: map[string]any{"k": "v"}})
	m, ok := av.(*ddbtypes.AttributeValueMemberM)
	if !ok {
		t.Fatalf("expected map attribute, got %T", av)
	}
	if s, ok := m.Value["k"].(*ddbtypes.AttributeValueMemberS); !ok || s.Value != "v" {
		t.Errorf("unexpected inner attribute %#v", m.Value["k"])
	}

	av = ToAttributeValue(types.Raw{Value: struct{ A int }{A: 1}})
	s, ok := av.(*ddbtypes.AttributeValueMemberS)
	if !ok || s.Value != `{"A":1}` {
		t.Errorf("expected JSON text fallback, got %#v", av)
	}
}

func TestFromAttributeValue_Sets(t *testing.T) {
	got := FromAttributeValue(&ddbtypes.AttributeValueMemberSS{Value: []string{"a", "b"}})
	raw, ok := got.(types.Raw)
	if !ok {
		t.Fatalf("expected Raw, got %T", got)
	}
	if !reflect.DeepEqual(raw.Value, []string{"a", "b"}) {
		t.Errorf("unexpected raw value %#v", raw.Value)
	}
}
