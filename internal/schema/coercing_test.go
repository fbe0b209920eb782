package schema

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"
)

func TestBuiltinSerialize(t *testing.T) {
	cases := []struct {
		name    string
		c       Coercing
		in      any
		want    any
		wantErr bool
	}{
		{"int from int64", intCoercing{}, int64(7), 7, false},
		{"int from integral float", intCoercing{}, 3.0, 3, false},
		{"int from numeric string", intCoercing{}, "12", 12, false},
		{"int overflow", intCoercing{}, int64(math.MaxInt32) + 1, nil, true},
		{"int from fraction", intCoercing{}, 1.5, nil, true},
		{"float from int", floatCoercing{}, 2, 2.0, false},
		{"float +Inf", floatCoercing{}, math.Inf(1), nil, true},
		{"float -Inf", floatCoercing{}, float32(math.Inf(-1)), nil, true},
		{"string from bool", stringCoercing{}, true, "true", false},
		{"string from int", stringCoercing{}, 42, "42", false},
		{"boolean from string", booleanCoercing{}, "false", false, false},
		{"boolean from number", booleanCoercing{}, 1, true, false},
		{"id from int", idCoercing{}, 99, "99", false},
		{"id from struct", idCoercing{}, struct{}{}, nil, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.c.Serialize(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestFloatSerializeKeepsNaN(t *testing.T) {
	got, err := floatCoercing{}.Serialize(math.NaN())
	require.NoError(t, err)
	require.True(t, math.IsNaN(got.(float64)))
}

func TestBuiltinParseValueIsStrict(t *testing.T) {
	_, err := intCoercing{}.ParseValue("1")
	require.Error(t, err, "Int input must not accept strings")
	v, err := intCoercing{}.ParseValue(json.Number("5"))
	require.NoError(t, err)
	require.Equal(t, 5, v)
	_, err = stringCoercing{}.ParseValue(5)
	require.Error(t, err)
	_, err = booleanCoercing{}.ParseValue("true")
	require.Error(t, err)
	id, err := idCoercing{}.ParseValue(float64(10))
	require.NoError(t, err)
	require.Equal(t, "10", id)
}

func TestBuiltinParseLiteral(t *testing.T) {
	v, err := intCoercing{}.ParseLiteral(&ast.Value{Kind: ast.IntValue, Raw: "4"}, nil)
	require.NoError(t, err)
	require.Equal(t, 4, v)
	_, err = intCoercing{}.ParseLiteral(&ast.Value{Kind: ast.IntValue, Raw: "9999999999"}, nil)
	require.Error(t, err)
	f, err := floatCoercing{}.ParseLiteral(&ast.Value{Kind: ast.IntValue, Raw: "4"}, nil)
	require.NoError(t, err)
	require.Equal(t, 4.0, f)
	_, err = stringCoercing{}.ParseLiteral(&ast.Value{Kind: ast.IntValue, Raw: "4"}, nil)
	require.Error(t, err)
}

func TestLiteralToGoResolvesVariables(t *testing.T) {
	lit := &ast.Value{Kind: ast.ObjectValue, Children: ast.ChildValueList{
		{Name: "a", Value: &ast.Value{Kind: ast.Variable, Raw: "x"}},
		{Name: "b", Value: &ast.Value{Kind: ast.ListValue, Children: ast.ChildValueList{
			{Value: &ast.Value{Kind: ast.IntValue, Raw: "1"}},
		}}},
	}}
	got, err := LiteralToGo(lit, map[string]any{"x": "y"})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"a": "y", "b": []any{int64(1)}}, got)
}
