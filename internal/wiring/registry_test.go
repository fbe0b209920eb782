package wiring

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	executor "github.com/hanpama/gqlexec/internal/executor"
	language "github.com/hanpama/gqlexec/internal/language"
	schema "github.com/hanpama/gqlexec/internal/schema"
)

const petSDL = `
	scalar Upper
	enum Mood { HAPPY SAD }
	interface Pet { name: String! }
	type Dog implements Pet { name: String!, barks: Boolean }
	type Cat implements Pet { name: String!, mood: Mood }
	type Query {
		pets(mood: Mood): [Pet!]!
		shout(text: Upper): Upper
	}
`

type dog struct{ Name string }
type cat struct {
	Name string
	Mood int
}

func mustSchema(t *testing.T) *schema.Schema {
	t.Helper()
	sch, err := schema.BuildFromSDL(petSDL)
	require.NoError(t, err)
	return sch
}

func upperCoercing() schema.Coercing {
	return schema.CoercingFuncs{
		SerializeFunc:  func(v any) (any, error) { return strings.ToUpper(fmt.Sprint(v)), nil },
		ParseValueFunc: func(v any) (any, error) { return strings.ToLower(fmt.Sprint(v)), nil },
	}
}

func petRegistry() *Registry {
	return New().
		FieldFunc("Query", "pets", func(_ context.Context, env *executor.Environment) (any, error) {
			all := []any{dog{Name: "Rex"}, cat{Name: "Tom", Mood: 2}, cat{Name: "Kit", Mood: 1}}
			mood, ok := env.Arguments["mood"]
			if !ok || mood == nil {
				return all, nil
			}
			var out []any
			for _, p := range all {
				if c, ok := p.(cat); ok && c.Mood == mood {
					out = append(out, p)
				}
			}
			return out, nil
		}).
		FieldFunc("Query", "shout", func(_ context.Context, env *executor.Environment) (any, error) {
			return env.Arguments["text"], nil
		}).
		Type("Pet", func(_ context.Context, tr *executor.TypeResolution) (string, error) {
			switch tr.Value.(type) {
			case dog:
				return "Dog", nil
			case cat:
				return "Cat", nil
			}
			return "", fmt.Errorf("unknown pet %T", tr.Value)
		}).
		Scalar("Upper", upperCoercing()).
		EnumValues("Mood", map[string]any{"HAPPY": 1, "SAD": 2})
}

func TestRegistry_Execute(t *testing.T) {
	sch := mustSchema(t)
	reg := petRegistry()
	require.NoError(t, reg.Apply(sch))

	exec := executor.NewExecutor(reg, sch)
	run := func(query string) any {
		t.Helper()
		doc, err := language.ParseQuery(query)
		require.NoError(t, err)
		res := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)
		require.Empty(t, res.Errors)
		return executor.Plain(res.Data)
	}

	got := run(`{ pets { __typename name ... on Cat { mood } } }`)
	want := map[string]any{"pets": []any{
		map[string]any{"__typename": "Dog", "name": "Rex"},
		map[string]any{"__typename": "Cat", "name": "Tom", "mood": "SAD"},
		map[string]any{"__typename": "Cat", "name": "Kit", "mood": "HAPPY"},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("pets mismatch (-want +got):\n%s", diff)
	}

	got = run(`{ pets(mood: HAPPY) { name } }`)
	want = map[string]any{"pets": []any{map[string]any{"name": "Kit"}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("filtered pets mismatch (-want +got):\n%s", diff)
	}

	got = run(`{ shout(text: "hey") }`)
	if diff := cmp.Diff(map[string]any{"shout": "HEY"}, got); diff != "" {
		t.Errorf("shout mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistry_LookupFallsBackToDefault(t *testing.T) {
	reg := petRegistry()
	require.NotNil(t, reg.FieldResolver("Query", "pets"))
	require.Nil(t, reg.FieldResolver("Dog", "name"))
	require.NotNil(t, reg.TypeResolver("Pet"))
	require.Nil(t, reg.TypeResolver("Dog"))
}

func TestRegistry_Validate(t *testing.T) {
	sch := mustSchema(t)
	require.NoError(t, petRegistry().Validate(sch))

	noop := executor.FieldResolverFunc(func(context.Context, *executor.Environment) (any, error) { return nil, nil })
	bad := New().
		Field("Query", "missing", noop).
		Field("Nope", "x", noop).
		Field("Pet", "name", noop).
		Type("Dog", func(context.Context, *executor.TypeResolution) (string, error) { return "", nil }).
		Scalar("String", upperCoercing()).
		Scalar("Mood", upperCoercing()).
		EnumValues("Mood", map[string]any{"ANGRY": 3}).
		EnumValues("Dog", map[string]any{"X": 1})

	err := bad.Validate(sch)
	require.Error(t, err)
	var msgs []string
	for _, e := range multierr.Errors(err) {
		msgs = append(msgs, e.Error())
	}
	want := []string{
		`wiring: Nope.x: unknown type "Nope"`,
		`wiring: Pet.name: Pet is not an object type`,
		`wiring: Query.missing: unknown field`,
		`wiring: type resolver for "Dog": not an interface or union`,
		`wiring: coercing for "Mood": not a scalar`,
		`wiring: coercing for "String": built-in scalar`,
		`wiring: values for "Dog": not an enum`,
		`wiring: values for "Mood": unknown value ANGRY`,
	}
	if diff := cmp.Diff(want, msgs); diff != "" {
		t.Errorf("errors mismatch (-want +got):\n%s", diff)
	}

	// Apply leaves the schema untouched when validation fails.
	require.Error(t, bad.Apply(sch))
	require.Nil(t, sch.Type("Mood").EnumValue("HAPPY").Value)
}

func TestRegistry_Unresolved(t *testing.T) {
	sch := mustSchema(t)
	got := petRegistry().Unresolved(sch)
	want := []string{"Cat.mood", "Cat.name", "Dog.barks", "Dog.name"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unresolved mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistry_EnumValuesAreCopied(t *testing.T) {
	values := map[string]any{"HAPPY": 1}
	reg := New().EnumValues("Mood", values)
	values["SAD"] = 2

	sch := mustSchema(t)
	require.NoError(t, reg.Apply(sch))
	require.Equal(t, 1, sch.Type("Mood").EnumValue("HAPPY").Value)
	require.Nil(t, sch.Type("Mood").EnumValue("SAD").Value)
}
