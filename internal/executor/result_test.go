package executor

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

func TestResultMap_MarshalKeepsOrder(t *testing.T) {
	inner := NewResultMap(2)
	inner.Set("z", 1)
	inner.Set("a", []any{"x", nil})

	m := NewResultMap(3)
	m.Set("zeta", inner)
	m.Set("alpha", true)
	m.Set("mid", nil)
	m.Set("zeta", inner)

	b, err := json.Marshal(m)
	require.NoError(t, err)
	require.Equal(t, `{"zeta":{"z":1,"a":["x",null]},"alpha":true,"mid":null}`, string(b))
	require.Equal(t, []string{"zeta", "alpha", "mid"}, m.Keys())
	require.Equal(t, 3, m.Len())
}

func TestPlain(t *testing.T) {
	m := NewResultMap(1)
	child := NewResultMap(1)
	child.Set("n", 1)
	m.Set("list", []any{child, nil})

	require.Equal(t, map[string]any{"list": []any{map[string]any{"n": 1}, nil}}, Plain(m))
	var nilMap *ResultMap
	require.Nil(t, Plain(nilMap))
}

func TestExecutionResult_ToSpecification(t *testing.T) {
	data := NewResultMap(1)
	data.Set("a", 1)
	res := &ExecutionResult{Data: data, Errors: gqlerror.List{}}
	require.Equal(t, map[string]any{"data": map[string]any{"a": 1}}, res.ToSpecification())

	res = &ExecutionResult{Errors: gqlerror.List{gqlerror.Errorf("boom")}}
	out := res.ToSpecification()
	require.Nil(t, out["data"])
	require.Len(t, out["errors"], 1)

	b, err := json.Marshal(&ExecutionResult{Data: data, Errors: gqlerror.List{}})
	require.NoError(t, err)
	require.JSONEq(t, `{"data":{"a":1}}`, string(b))
}
