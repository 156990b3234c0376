package expr

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// ToCty converts a plain Go value (as decoded from a JSON document) into its
// cty equivalent for the evaluation context. Unknown kinds map to null
// rather than failing: an expression that pokes at one simply sees nothing.
func ToCty(v any) cty.Value {
	switch t := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType)
	case string:
		return cty.StringVal(t)
	case bool:
		return cty.BoolVal(t)
	case float64:
		return cty.NumberFloatVal(t)
	case int:
		return cty.NumberIntVal(int64(t))
	case int64:
		return cty.NumberIntVal(t)
	case map[string]any:
		if len(t) == 0 {
			return cty.EmptyObjectVal
		}
		attrs := make(map[string]cty.Value, len(t))
		for k, item := range t {
			attrs[k] = ToCty(item)
		}
		return cty.ObjectVal(attrs)
	case []any:
		if len(t) == 0 {
			return cty.EmptyTupleVal
		}
		items := make([]cty.Value, len(t))
		for i, item := range t {
			items[i] = ToCty(item)
		}
		return cty.TupleVal(items)
	default:
		return cty.NullVal(cty.DynamicPseudoType)
	}
}

// FromCty converts an evaluation result back to plain Go values.
func FromCty(val cty.Value) (any, error) {
	if !val.IsKnown() || val.IsNull() {
		return nil, nil
	}
	ty := val.Type()
	switch {
	case ty == cty.String:
		return val.AsString(), nil
	case ty == cty.Number:
		f, _ := val.AsBigFloat().Float64()
		return f, nil
	case ty == cty.Bool:
		return val.True(), nil
	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any)
		for it := val.ElementIterator(); it.Next(); {
			k, item := it.Element()
			converted, err := FromCty(item)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = converted
		}
		return out, nil
	case ty.IsTupleType() || ty.IsListType() || ty.IsSetType():
		out := make([]any, 0, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			_, item := it.Element()
			converted, err := FromCty(item)
			if err != nil {
				return nil, err
			}
			out = append(out, converted)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported expression result type: %s", ty.FriendlyName())
	}
}
