package executor

import (
	"context"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

const deferSDL = `
	type Query { fast: String, slow: String, strict: String!, user: User }
	type User { id: ID!, bio: String }
`

func drainDeferred(t *testing.T, res *ExecutionResult) []*DeferredPayload {
	t.Helper()
	var out []*DeferredPayload
	for p := range res.Deferred(context.Background()) {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

func TestDefer_FieldIsDeliveredLater(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.fast": NewMockValueResolver("now"),
		"Query.slow": NewMockValueResolver("later"),
	})
	res := execute(t, rt, deferSDL, `{ fast slow @defer(label: "s") }`, nil)
	requireResult(t, res, map[string]any{"fast": "now", "slow": nil}, nil)
	require.True(t, res.HasDeferred())

	// slow has not been fetched yet
	require.Len(t, rt.GetCalls(), 1)

	payloads := drainDeferred(t, res)
	want := []*DeferredPayload{{Label: "s", Path: []any{"slow"}, Data: "later"}}
	if diff := cmp.Diff(want, payloads, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("deferred mismatch (-want +got):\n%s", diff)
	}
}

func TestDefer_FragmentAndNestedPaths(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.user": NewMockValueResolver(map[string]any{"id": "1", "bio": "hello"}),
		"Query.fast": NewMockValueResolver("now"),
	})
	res := execute(t, rt, deferSDL, `{
		user { id ... @defer(label: "b") { bio } }
		... @defer(label: "f") { fast }
	}`, nil)
	requireResult(t, res, map[string]any{"user": map[string]any{"id": "1", "bio": nil}, "fast": nil}, nil)

	payloads := drainDeferred(t, res)
	want := []*DeferredPayload{
		{Label: "b", Path: []any{"user", "bio"}, Data: "hello"},
		{Label: "f", Path: []any{"fast"}, Data: "now"},
	}
	if diff := cmp.Diff(want, payloads, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("deferred mismatch (-want +got):\n%s", diff)
	}
}

func TestDefer_ErrorsStayWithPayload(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{"Query.strict": NewMockValueResolver(nil)})
	res := execute(t, rt, deferSDL, `{ strict @defer(label: "x") }`, nil)
	requireResult(t, res, map[string]any{"strict": nil}, nil)

	payloads := drainDeferred(t, res)
	require.Len(t, payloads, 1)
	require.Nil(t, payloads[0].Data)
	require.Equal(t, []resultError{
		{Message: "Cannot return null for non-nullable field Query.strict.", Path: "/strict"},
	}, resultErrors(payloads[0].Errors))
}

func TestDefer_IfFalseExecutesInline(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{"Query.slow": NewMockValueResolver("later")})
	res := execute(t, rt, deferSDL, `{ slow @defer(if: false) }`, nil)
	requireResult(t, res, map[string]any{"slow": "later"}, nil)
	require.False(t, res.HasDeferred())
}

func TestDefer_CancelledConsumerClosesChannel(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.fast": NewMockValueResolver("now"),
		"Query.slow": NewMockValueResolver("later"),
	})
	res := execute(t, rt, deferSDL, `{ fast @defer(label: "f") slow @defer(label: "s") }`, nil)
	ctx, cancel := context.WithCancel(context.Background())
	ch := res.Deferred(ctx)
	cancel()
	n := 0
	for range ch {
		n++
	}
	require.LessOrEqual(t, n, 2)
}
