package executor

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	language "github.com/hanpama/gqlexec/internal/language"
)

const collectSDL = `
	type Query { a: String b: String c: String node: Node pet: Pet }
	interface Node { id: ID! }
	union Pet = Dog | Cat
	type Dog implements Node { id: ID! barks: Boolean }
	type Cat implements Node { id: ID! meows: Boolean }
`

func collectRoot(t *testing.T, query string, vars map[string]any) (*MergedSelectionSet, *language.QueryDocument) {
	t.Helper()
	sch := mustBuildSchema(t, collectSDL)
	doc := mustParseQuery(t, query)
	p := CollectorParams{Schema: sch, ObjectType: sch.GetQueryType(), Fragments: doc.Fragments, Variables: vars}
	return CollectFields(p, doc.Operations[0].SelectionSet), doc
}

func TestCollectFields_MergesByResponseKey(t *testing.T) {
	got, doc := collectRoot(t, `{
		a
		...F1
		...F2
		alias: b
	}
	fragment F1 on Query { a __typename }
	fragment F2 on Query { __typename }`, nil)

	if diff := cmp.Diff([]string{"a", "__typename", "alias"}, got.Keys()); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
	opSel := doc.Operations[0].SelectionSet
	f1 := doc.Fragments.ForName("F1").SelectionSet
	f2 := doc.Fragments.ForName("F2").SelectionSet
	require.Equal(t, []*language.Field{opSel[0].(*language.Field), f1[0].(*language.Field)}, got.Get("a").Fields())
	require.Equal(t, []*language.Field{f1[1].(*language.Field), f2[0].(*language.Field)}, got.Get("__typename").Fields())
	require.Equal(t, "b", got.Get("alias").Name())
	require.Equal(t, "alias", got.Get("alias").ResultKey())
}

func TestCollectFields_Deterministic(t *testing.T) {
	q := `{ c ...F a ... on Query { b c } } fragment F on Query { b a }`
	first, _ := collectRoot(t, q, nil)
	second, _ := collectRoot(t, q, nil)
	require.Equal(t, first.Keys(), second.Keys())
	for _, k := range first.Keys() {
		require.Equal(t, first.Get(k).Fields(), second.Get(k).Fields())
	}
	require.Equal(t, []string{"c", "b", "a"}, first.Keys())
}

func TestCollectFields_FragmentCycleTerminates(t *testing.T) {
	got, _ := collectRoot(t, `{ ...A } fragment A on Query { a ...B } fragment B on Query { b ...A }`, nil)
	require.Equal(t, []string{"a", "b"}, got.Keys())
}

func TestCollectFields_SkipInclude(t *testing.T) {
	tests := []struct {
		name  string
		query string
		vars  map[string]any
		want  []string
	}{
		{name: "skip wins over include", query: `{ a @skip(if: true) @include(if: true) b }`, want: []string{"b"}},
		{name: "include false", query: `{ a @include(if: false) b }`, want: []string{"b"}},
		{name: "no directives", query: `{ a b }`, want: []string{"a", "b"}},
		{name: "variable", query: `query($s: Boolean!) { a @skip(if: $s) b }`, vars: map[string]any{"s": false}, want: []string{"a", "b"}},
		{name: "on fragment spread", query: `{ ...F @include(if: false) c } fragment F on Query { a }`, want: []string{"c"}},
		{name: "on fragment definition", query: `{ ...F c } fragment F on Query @skip(if: true) { a }`, want: []string{"c"}},
		{name: "on inline fragment", query: `{ ... @skip(if: true) { a } c }`, want: []string{"c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := collectRoot(t, tt.query, tt.vars)
			if diff := cmp.Diff(tt.want, got.Keys()); diff != "" {
				t.Fatalf("keys mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCollectFields_AbstractTypeConditions(t *testing.T) {
	sch := mustBuildSchema(t, collectSDL)
	doc := mustParseQuery(t, `{ pet { ... on Node { id } ... on Dog { barks } ... on Cat { meows } ... on Pet { __typename } } }`)
	root := CollectFields(CollectorParams{Schema: sch, ObjectType: sch.GetQueryType(), Fragments: doc.Fragments}, doc.Operations[0].SelectionSet)

	dog := CollectSubfields(CollectorParams{Schema: sch, ObjectType: sch.Type("Dog")}, root.Get("pet"))
	require.Equal(t, []string{"id", "barks", "__typename"}, dog.Keys())

	cat := CollectSubfields(CollectorParams{Schema: sch, ObjectType: sch.Type("Cat")}, root.Get("pet"))
	require.Equal(t, []string{"id", "meows", "__typename"}, cat.Keys())
}

func TestCollectFields_Defer(t *testing.T) {
	q := `{ a @defer(label: "slow") b ... @defer { c } }`

	got, _ := collectRoot(t, q, nil)
	label, ok := got.Get("a").Deferred()
	require.True(t, ok)
	require.Equal(t, "slow", label)
	_, ok = got.Get("b").Deferred()
	require.False(t, ok)
	_, ok = got.Get("c").Deferred()
	require.True(t, ok)

	t.Run("not deferred when also selected eagerly", func(t *testing.T) {
		got, _ := collectRoot(t, `{ a @defer a }`, nil)
		_, ok := got.Get("a").Deferred()
		require.False(t, ok)
	})

	t.Run("if false", func(t *testing.T) {
		got, _ := collectRoot(t, `{ a @defer(if: false) }`, nil)
		_, ok := got.Get("a").Deferred()
		require.False(t, ok)
	})
}
