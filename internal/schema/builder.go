package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

const defaultDeprecationReason = "No longer supported"

// BuildFromAST builds an executable schema from a validated gqlparser schema.
// Built-in definitions of the prelude (introspection types, specified
// scalars and directives) are replaced by this package's own versions.
func BuildFromAST(src *ast.Schema) (*Schema, error) {
	if src == nil {
		return nil, fmt.Errorf("schema: nil source schema")
	}
	s := NewSchema(src.Description)
	s.AST = src
	if src.Query != nil {
		s.SetQueryType(src.Query.Name)
	}
	if src.Mutation != nil {
		s.SetMutationType(src.Mutation.Name)
	}
	if src.Subscription != nil {
		s.SetSubscriptionType(src.Subscription.Name)
	}

	names := make([]string, 0, len(src.Types))
	for name := range src.Types {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		def := src.Types[name]
		if def.BuiltIn || strings.HasPrefix(name, "__") {
			continue
		}
		t, err := buildType(def)
		if err != nil {
			return nil, err
		}
		s.AddType(t)
	}

	dirNames := make([]string, 0, len(src.Directives))
	for name := range src.Directives {
		dirNames = append(dirNames, name)
	}
	sort.Strings(dirNames)
	for _, name := range dirNames {
		def := src.Directives[name]
		if _, ok := s.Directives[name]; ok || def.Position == nil || def.Position.Src == nil || def.Position.Src.BuiltIn {
			continue
		}
		d := NewDirective(def.Name, def.Description).SetRepeatable(def.IsRepeatable)
		for _, loc := range def.Locations {
			d.AddLocations(string(loc))
		}
		for _, arg := range def.Arguments {
			in, err := buildArgument(arg)
			if err != nil {
				return nil, fmt.Errorf("directive @%s: %w", def.Name, err)
			}
			d.AddArgument(in)
		}
		s.AddDirective(d)
	}
	return s.LinkPossibleTypes(), nil
}

// BuildFromSDL parses and validates SDL and returns the corresponding Schema.
func BuildFromSDL(sdl string) (*Schema, error) {
	src, err := gqlparser.LoadSchema(&ast.Source{Name: "schema.graphql", Input: sdl})
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	return BuildFromAST(src)
}

func buildType(def *ast.Definition) (*Type, error) {
	switch def.Kind {
	case ast.Object, ast.Interface:
		kind := TypeKindObject
		if def.Kind == ast.Interface {
			kind = TypeKindInterface
		}
		t := NewType(def.Name, kind, def.Description)
		for _, name := range def.Interfaces {
			t.AddInterface(name)
		}
		for _, fd := range def.Fields {
			if strings.HasPrefix(fd.Name, "__") {
				continue
			}
			f, err := buildField(fd)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", def.Name, fd.Name, err)
			}
			t.AddField(f)
		}
		return t, nil
	case ast.Union:
		t := NewType(def.Name, TypeKindUnion, def.Description)
		for _, name := range def.Types {
			t.AddPossibleType(name)
		}
		return t, nil
	case ast.Enum:
		t := NewType(def.Name, TypeKindEnum, def.Description)
		for _, ev := range def.EnumValues {
			v := NewEnumValue(ev.Name, ev.Description)
			if reason, ok := deprecation(ev.Directives); ok {
				v.Deprecate(reason)
			}
			t.AddEnumValue(v)
		}
		return t, nil
	case ast.InputObject:
		t := NewType(def.Name, TypeKindInputObject, def.Description)
		t.SetOneOf(def.Directives.ForName("oneOf") != nil)
		for _, fd := range def.Fields {
			in, err := inputValue(fd.Name, fd.Description, fd.Type, fd.DefaultValue, fd.Directives)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", def.Name, fd.Name, err)
			}
			t.AddInputField(in)
		}
		return t, nil
	case ast.Scalar:
		t := NewType(def.Name, TypeKindScalar, def.Description)
		if d := def.Directives.ForName("specifiedBy"); d != nil {
			if arg := d.Arguments.ForName("url"); arg != nil && arg.Value != nil {
				t.SetSpecifiedByURL(arg.Value.Raw)
			}
		}
		return t, nil
	}
	return nil, fmt.Errorf("unsupported definition kind %q for %s", def.Kind, def.Name)
}

func buildField(fd *ast.FieldDefinition) (*Field, error) {
	f := NewField(fd.Name, fd.Description, BuildTypeRef(fd.Type))
	if reason, ok := deprecation(fd.Directives); ok {
		f.Deprecate(reason)
	}
	for _, arg := range fd.Arguments {
		in, err := buildArgument(arg)
		if err != nil {
			return nil, err
		}
		f.AddArgument(in)
	}
	return f, nil
}

func buildArgument(arg *ast.ArgumentDefinition) (*InputValue, error) {
	return inputValue(arg.Name, arg.Description, arg.Type, arg.DefaultValue, arg.Directives)
}

func inputValue(name, description string, typ *ast.Type, def *ast.Value, dirs ast.DirectiveList) (*InputValue, error) {
	in := NewInputValue(name, description, BuildTypeRef(typ))
	if def != nil {
		v, err := def.Value(nil)
		if err != nil {
			return nil, fmt.Errorf("default value of %s: %w", name, err)
		}
		in.SetDefault(v)
		in.DefaultLiteral = def
	}
	if reason, ok := deprecation(dirs); ok {
		in.Deprecate(reason)
	}
	return in, nil
}

// BuildTypeRef converts a gqlparser type expression into a TypeRef.
func BuildTypeRef(t *ast.Type) *TypeRef {
	if t == nil {
		return nil
	}
	var ref *TypeRef
	if t.Elem != nil {
		ref = ListType(BuildTypeRef(t.Elem))
	} else {
		ref = NamedType(t.NamedType)
	}
	if t.NonNull {
		return NonNullType(ref)
	}
	return ref
}

func deprecation(dirs ast.DirectiveList) (string, bool) {
	d := dirs.ForName("deprecated")
	if d == nil {
		return "", false
	}
	if arg := d.Arguments.ForName("reason"); arg != nil && arg.Value != nil {
		return arg.Value.Raw, true
	}
	return defaultDeprecationReason, true
}

func sortedTypeNames(s *Schema) []string {
	names := make([]string, 0, len(s.Types))
	for name := range s.Types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
