package executor

import (
	"strconv"
	"strings"
	"testing"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	language "github.com/hanpama/gqlexec/internal/language"
	schema "github.com/hanpama/gqlexec/internal/schema"
)

// mustParseQuery parses a GraphQL query and fails the test on error.
func mustParseQuery(t *testing.T, q string) *language.QueryDocument {
	t.Helper()
	d, err := language.ParseQuery(q)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return d
}

// mustBuildSchema builds a schema from SDL and fails the test on error.
func mustBuildSchema(t *testing.T, sdl string) *schema.Schema {
	t.Helper()
	s, err := schema.BuildFromSDL(sdl)
	if err != nil {
		t.Fatalf("schema error: %v", err)
	}
	return s
}

// resultError is the comparable part of a reported error.
type resultError struct {
	Message string
	Path    string
}

func resultErrors(list gqlerror.List) []resultError {
	out := make([]resultError, 0, len(list))
	for _, e := range list {
		out = append(out, resultError{Message: e.Message, Path: pathString(e.Path)})
	}
	return out
}

// pathString renders an error path like ResultPath.String.
func pathString(p ast.Path) string {
	var b strings.Builder
	for _, el := range p {
		switch el := el.(type) {
		case ast.PathName:
			b.WriteString("/" + string(el))
		case ast.PathIndex:
			b.WriteString("[" + strconv.Itoa(int(el)) + "]")
		}
	}
	return b.String()
}

// resolverMap is a Runtime keyed by "Type.field".
type resolverMap map[string]FieldResolverFunc

func (m resolverMap) FieldResolver(objectType, field string) FieldResolver {
	if f, ok := m[objectType+"."+field]; ok {
		return f
	}
	return nil
}

func (resolverMap) TypeResolver(string) TypeResolver { return nil }
