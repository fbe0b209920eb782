package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/vektah/gqlparser/v2/ast"
)

// Coercing converts scalar values between their runtime and wire forms.
//
// Serialize turns a resolved Go value into a JSON-safe output value.
// ParseValue coerces a runtime input (variables decoded from JSON).
// ParseLiteral coerces an inline query literal; variables are passed for
// scalars whose literals may contain variable references.
type Coercing interface {
	Serialize(value any) (any, error)
	ParseValue(value any) (any, error)
	ParseLiteral(value *ast.Value, variables map[string]any) (any, error)
}

// CoercingFuncs adapts plain functions to Coercing. Nil members pass values through.
type CoercingFuncs struct {
	SerializeFunc    func(any) (any, error)
	ParseValueFunc   func(any) (any, error)
	ParseLiteralFunc func(*ast.Value, map[string]any) (any, error)
}

func (c CoercingFuncs) Serialize(v any) (any, error) {
	if c.SerializeFunc == nil {
		return v, nil
	}
	return c.SerializeFunc(v)
}

func (c CoercingFuncs) ParseValue(v any) (any, error) {
	if c.ParseValueFunc == nil {
		return v, nil
	}
	return c.ParseValueFunc(v)
}

func (c CoercingFuncs) ParseLiteral(v *ast.Value, vars map[string]any) (any, error) {
	if c.ParseLiteralFunc == nil {
		return LiteralToGo(v, vars)
	}
	return c.ParseLiteralFunc(v, vars)
}

// LiteralToGo converts an untyped literal into plain Go values, resolving
// variable references from vars. Used for custom scalars without their own
// literal parser.
func LiteralToGo(v *ast.Value, vars map[string]any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch v.Kind {
	case ast.Variable:
		return vars[v.Raw], nil
	case ast.IntValue:
		return strconv.ParseInt(v.Raw, 10, 64)
	case ast.FloatValue:
		return strconv.ParseFloat(v.Raw, 64)
	case ast.StringValue, ast.BlockValue, ast.EnumValue:
		return v.Raw, nil
	case ast.BooleanValue:
		return v.Raw == "true", nil
	case ast.NullValue:
		return nil, nil
	case ast.ListValue:
		out := make([]any, 0, len(v.Children))
		for _, c := range v.Children {
			item, err := LiteralToGo(c.Value, vars)
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	case ast.ObjectValue:
		out := make(map[string]any, len(v.Children))
		for _, c := range v.Children {
			item, err := LiteralToGo(c.Value, vars)
			if err != nil {
				return nil, err
			}
			out[c.Name] = item
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported literal kind %d", v.Kind)
}

type intCoercing struct{}

func (intCoercing) Serialize(v any) (any, error) {
	i, ok := toInt64(v, true)
	if !ok {
		return nil, fmt.Errorf("Int cannot represent value: %v", v)
	}
	if i > math.MaxInt32 || i < math.MinInt32 {
		return nil, fmt.Errorf("Int cannot represent non 32-bit signed integer value: %v", v)
	}
	return int(i), nil
}

func (intCoercing) ParseValue(v any) (any, error) {
	i, ok := toInt64(v, false)
	if !ok {
		return nil, fmt.Errorf("Int cannot represent non-integer value: %v", v)
	}
	if i > math.MaxInt32 || i < math.MinInt32 {
		return nil, fmt.Errorf("Int cannot represent non 32-bit signed integer value: %v", v)
	}
	return int(i), nil
}

func (intCoercing) ParseLiteral(v *ast.Value, _ map[string]any) (any, error) {
	if v.Kind != ast.IntValue {
		return nil, fmt.Errorf("Int cannot represent non-integer value: %s", v.String())
	}
	i, err := strconv.ParseInt(v.Raw, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("Int cannot represent non 32-bit signed integer value: %s", v.Raw)
	}
	return int(i), nil
}

type floatCoercing struct{}

func (floatCoercing) Serialize(v any) (any, error) {
	f, ok := toFloat64(v, true)
	if !ok {
		return nil, fmt.Errorf("Float cannot represent value: %v", v)
	}
	// NaN passes through; the executor completes it as null.
	if math.IsInf(f, 0) {
		return nil, fmt.Errorf("Float cannot represent non-finite value: %v", f)
	}
	return f, nil
}

func (floatCoercing) ParseValue(v any) (any, error) {
	f, ok := toFloat64(v, false)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("Float cannot represent non numeric value: %v", v)
	}
	return f, nil
}

func (floatCoercing) ParseLiteral(v *ast.Value, _ map[string]any) (any, error) {
	if v.Kind != ast.IntValue && v.Kind != ast.FloatValue {
		return nil, fmt.Errorf("Float cannot represent non numeric value: %s", v.String())
	}
	return strconv.ParseFloat(v.Raw, 64)
}

type stringCoercing struct{}

func (stringCoercing) Serialize(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case fmt.Stringer:
		return x.String(), nil
	case []byte:
		return string(x), nil
	}
	if i, ok := toInt64(v, false); ok {
		return strconv.FormatInt(i, 10), nil
	}
	if f, ok := toFloat64(v, false); ok {
		return strconv.FormatFloat(f, 'g', -1, 64), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String(), nil
	}
	return nil, fmt.Errorf("String cannot represent value: %v", v)
}

func (stringCoercing) ParseValue(v any) (any, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return nil, fmt.Errorf("String cannot represent a non string value: %v", v)
}

func (stringCoercing) ParseLiteral(v *ast.Value, _ map[string]any) (any, error) {
	if v.Kind != ast.StringValue && v.Kind != ast.BlockValue {
		return nil, fmt.Errorf("String cannot represent a non string value: %s", v.String())
	}
	return v.Raw, nil
}

type booleanCoercing struct{}

func (booleanCoercing) Serialize(v any) (any, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		if b, err := strconv.ParseBool(x); err == nil {
			return b, nil
		}
	}
	if i, ok := toInt64(v, false); ok {
		return i != 0, nil
	}
	return nil, fmt.Errorf("Boolean cannot represent value: %v", v)
}

func (booleanCoercing) ParseValue(v any) (any, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return nil, fmt.Errorf("Boolean cannot represent a non boolean value: %v", v)
}

func (booleanCoercing) ParseLiteral(v *ast.Value, _ map[string]any) (any, error) {
	if v.Kind != ast.BooleanValue {
		return nil, fmt.Errorf("Boolean cannot represent a non boolean value: %s", v.String())
	}
	return v.Raw == "true", nil
}

type idCoercing struct{}

func (idCoercing) Serialize(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case fmt.Stringer:
		return x.String(), nil
	}
	if i, ok := toInt64(v, false); ok {
		return strconv.FormatInt(i, 10), nil
	}
	return nil, fmt.Errorf("ID cannot represent value: %v", v)
}

func (idCoercing) ParseValue(v any) (any, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	if i, ok := toInt64(v, false); ok {
		return strconv.FormatInt(i, 10), nil
	}
	return nil, fmt.Errorf("ID cannot represent value: %v", v)
}

func (idCoercing) ParseLiteral(v *ast.Value, _ map[string]any) (any, error) {
	if v.Kind != ast.StringValue && v.Kind != ast.IntValue {
		return nil, fmt.Errorf("ID cannot represent a non-string and non-integer value: %s", v.String())
	}
	return v.Raw, nil
}

// toInt64 converts integral numbers. When lenient, numeric strings and
// integral floats are accepted as well.
func toInt64(v any, lenient bool) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return int64(x), uint64(x) <= math.MaxInt64
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		return int64(x), x <= math.MaxInt64
	case float32:
		return floatToInt(float64(x))
	case float64:
		return floatToInt(x)
	case json.Number:
		i, err := x.Int64()
		return i, err == nil
	case string:
		if !lenient {
			return 0, false
		}
		if i, err := strconv.ParseInt(x, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			return floatToInt(f)
		}
	}
	return 0, false
}

func floatToInt(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

func toFloat64(v any, lenient bool) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		if !lenient {
			return 0, false
		}
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	if i, ok := toInt64(v, false); ok {
		return float64(i), true
	}
	return 0, false
}
