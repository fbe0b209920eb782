package executor

import (
	"fmt"
	"reflect"

	"github.com/vektah/gqlparser/v2/ast"

	language "github.com/hanpama/gqlexec/internal/language"
	schema "github.com/hanpama/gqlexec/internal/schema"
)

// CoerceVariableValues coerces raw variable inputs (typically decoded JSON)
// against the operation's variable definitions.
//
// A declared default takes precedence: when a variable is absent and has a
// default, the default literal is coerced and used, even for a Non-Null
// type. Otherwise an absent or null value for a Non-Null variable fails, an
// absent nullable variable is omitted from the result, and a present value is
// coerced against the declared type.
func CoerceVariableValues(sch *schema.Schema, defs language.VariableDefinitionList, raw map[string]any) (map[string]any, error) {
	coerced := make(map[string]any, len(defs))
	for _, def := range defs {
		name := def.Variable
		t := schema.BuildTypeRef(def.Type)
		locs := positionLocations(def.Position)
		val, provided := raw[name]

		switch {
		case !provided && def.DefaultValue != nil:
			v, err := valueFromAST(sch, t.Nullable(), def.DefaultValue, nil)
			if err != nil {
				return nil, &CoercingError{
					Message:   fmt.Sprintf("Variable \"$%s\" has invalid default value: %v", name, err),
					Locations: locs,
					Err:       err,
				}
			}
			coerced[name] = v
		case t.IsNonNull() && (!provided || val == nil):
			return nil, &NonNullableValueCoercedAsNullError{Kind: "Variable", Name: name, Type: t, Provided: provided, Locations: locs}
		case provided:
			v, err := CoerceValue(sch, t, val)
			if err != nil {
				return nil, &CoercingError{
					Message:   fmt.Sprintf("Variable \"$%s\" got invalid value %s; %v", name, inspect(val), err),
					Locations: locs,
					Err:       err,
				}
			}
			coerced[name] = v
		}
	}
	return coerced, nil
}

// ArgumentValues coerces the arguments written on a field or directive.
// Explicit values win, then variable references present in variables, then
// declared defaults. Arguments that end up without a value are omitted, so
// an omitted argument is distinguishable from an explicit null.
func ArgumentValues(sch *schema.Schema, defs []*schema.InputValue, nodes language.ArgumentList, variables map[string]any) (map[string]any, error) {
	coerced := make(map[string]any, len(defs))
	for _, def := range defs {
		node := nodes.ForName(def.Name)
		var (
			hasValue bool
			isNull   bool
			varName  string
			varValue any
		)
		if node != nil && node.Value != nil {
			hasValue = true
			switch node.Value.Kind {
			case ast.Variable:
				varName = node.Value.Raw
				varValue, hasValue = variables[varName]
				isNull = hasValue && varValue == nil
			case ast.NullValue:
				isNull = true
			}
		}

		switch {
		case !hasValue && def.HasDefault():
			v, err := defaultValue(sch, def)
			if err != nil {
				return nil, err
			}
			coerced[def.Name] = v
		case (!hasValue || isNull) && def.Type.IsNonNull():
			e := &NonNullableValueCoercedAsNullError{Kind: "Argument", Name: def.Name, Type: def.Type, Provided: isNull}
			if node != nil {
				e.Locations = positionLocations(node.Position)
			}
			return nil, e
		case hasValue:
			switch {
			case varName != "":
				coerced[def.Name] = varValue
			case isNull:
				coerced[def.Name] = nil
			default:
				v, err := valueFromAST(sch, def.Type, node.Value, variables)
				if err != nil {
					return nil, &CoercingError{
						Message:   fmt.Sprintf("Argument \"%s\" has invalid value %s.", def.Name, node.Value.String()),
						Locations: positionLocations(node.Value.Position),
						Err:       err,
					}
				}
				coerced[def.Name] = v
			}
		}
	}
	return coerced, nil
}

func defaultValue(sch *schema.Schema, def *schema.InputValue) (any, error) {
	if def.DefaultLiteral != nil {
		return valueFromAST(sch, def.Type.Nullable(), def.DefaultLiteral, nil)
	}
	return def.DefaultValue, nil
}

// CoerceValue coerces a runtime input value to type t.
func CoerceValue(sch *schema.Schema, t *schema.TypeRef, value any) (any, error) {
	if t.IsNonNull() {
		if isNullish(value) {
			return nil, fmt.Errorf("expected non-nullable type \"%s\" not to be null", t)
		}
		return CoerceValue(sch, t.OfType, value)
	}
	if isNullish(value) {
		return nil, nil
	}
	if t.Kind == schema.TypeRefKindList {
		items, ok := listItems(value)
		if !ok {
			v, err := CoerceValue(sch, t.OfType, value)
			if err != nil {
				return nil, err
			}
			return []any{v}, nil
		}
		out := make([]any, len(items))
		for i, item := range items {
			v, err := CoerceValue(sch, t.OfType, item)
			if err != nil {
				return nil, fmt.Errorf("in element #%d: %w", i, err)
			}
			out[i] = v
		}
		return out, nil
	}

	named, err := namedInputType(sch, t.Named)
	if err != nil {
		return nil, err
	}
	switch named.Kind {
	case schema.TypeKindScalar:
		return coercingFor(named).ParseValue(value)
	case schema.TypeKindEnum:
		name, ok := value.(string)
		if ok {
			if ev := named.EnumValue(name); ev != nil {
				return ev.RuntimeValue(), nil
			}
		}
		return nil, fmt.Errorf("enum \"%s\" cannot represent value: %s", named.Name, inspect(value))
	case schema.TypeKindInputObject:
		obj, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected type \"%s\" to be an object", named.Name)
		}
		return coerceInputObject(sch, named, func(name string) (any, bool, error) {
			v, ok := obj[name]
			return v, ok, nil
		}, mapKeys(obj), func(f *schema.InputValue, v any) (any, error) {
			return CoerceValue(sch, f.Type, v)
		})
	}
	return nil, fmt.Errorf("type \"%s\" is not an input type", named.Name)
}

// ValueFromAST coerces a literal written in the document to type t,
// resolving variable references from already coerced variables.
func ValueFromAST(sch *schema.Schema, t *schema.TypeRef, lit *language.Value, variables map[string]any) (any, error) {
	return valueFromAST(sch, t, lit, variables)
}

func valueFromAST(sch *schema.Schema, t *schema.TypeRef, lit *ast.Value, vars map[string]any) (any, error) {
	if lit == nil {
		return nil, nil
	}
	if lit.Kind == ast.Variable {
		v, ok := vars[lit.Raw]
		if (!ok || v == nil) && t.IsNonNull() {
			return nil, fmt.Errorf("variable \"$%s\" of non-null type \"%s\" has no value", lit.Raw, t)
		}
		return v, nil
	}
	if t.IsNonNull() {
		if lit.Kind == ast.NullValue {
			return nil, fmt.Errorf("expected non-nullable type \"%s\" not to be null", t)
		}
		return valueFromAST(sch, t.OfType, lit, vars)
	}
	if lit.Kind == ast.NullValue {
		return nil, nil
	}
	if t.Kind == schema.TypeRefKindList {
		if lit.Kind != ast.ListValue {
			v, err := valueFromAST(sch, t.OfType, lit, vars)
			if err != nil {
				return nil, err
			}
			return []any{v}, nil
		}
		out := make([]any, len(lit.Children))
		for i, c := range lit.Children {
			v, err := valueFromAST(sch, t.OfType, c.Value, vars)
			if err != nil {
				return nil, fmt.Errorf("in element #%d: %w", i, err)
			}
			out[i] = v
		}
		return out, nil
	}

	named, err := namedInputType(sch, t.Named)
	if err != nil {
		return nil, err
	}
	switch named.Kind {
	case schema.TypeKindScalar:
		return coercingFor(named).ParseLiteral(lit, vars)
	case schema.TypeKindEnum:
		if lit.Kind == ast.EnumValue {
			if ev := named.EnumValue(lit.Raw); ev != nil {
				return ev.RuntimeValue(), nil
			}
		}
		return nil, fmt.Errorf("enum \"%s\" cannot represent value: %s", named.Name, lit.String())
	case schema.TypeKindInputObject:
		if lit.Kind != ast.ObjectValue {
			return nil, fmt.Errorf("expected type \"%s\" to be an object", named.Name)
		}
		keys := make([]string, len(lit.Children))
		for i, c := range lit.Children {
			keys[i] = c.Name
		}
		return coerceInputObject(sch, named, func(name string) (any, bool, error) {
			child := lit.Children.ForName(name)
			if child == nil {
				return nil, false, nil
			}
			if child.Kind == ast.Variable {
				v, ok := vars[child.Raw]
				return v, ok, nil
			}
			return child, true, nil
		}, keys, func(f *schema.InputValue, v any) (any, error) {
			if child, ok := v.(*ast.Value); ok {
				return valueFromAST(sch, f.Type, child, vars)
			}
			if isNullish(v) && f.Type.IsNonNull() {
				return nil, fmt.Errorf("expected non-nullable type \"%s\" not to be null", f.Type)
			}
			return v, nil
		})
	}
	return nil, fmt.Errorf("type \"%s\" is not an input type", named.Name)
}

// coerceInputObject applies the input object rules shared by runtime and
// literal coercion: unknown keys are rejected, absent fields take their
// default, absent required fields fail.
func coerceInputObject(
	sch *schema.Schema,
	t *schema.Type,
	lookup func(name string) (any, bool, error),
	keys []string,
	coerce func(*schema.InputValue, any) (any, error),
) (any, error) {
	for _, k := range keys {
		if t.InputField(k) == nil {
			return nil, fmt.Errorf("field \"%s\" is not defined by type \"%s\"", k, t.Name)
		}
	}
	out := make(map[string]any, len(t.InputFields))
	for _, f := range t.InputFields {
		raw, ok, err := lookup(f.Name)
		if err != nil {
			return nil, err
		}
		if !ok {
			switch {
			case f.HasDefault():
				v, err := defaultValue(sch, f)
				if err != nil {
					return nil, err
				}
				out[f.Name] = v
			case f.Type.IsNonNull():
				return nil, fmt.Errorf("field \"%s\" of required type \"%s\" was not provided", f.Name, f.Type)
			}
			continue
		}
		v, err := coerce(f, raw)
		if err != nil {
			return nil, fmt.Errorf("in field \"%s\": %w", f.Name, err)
		}
		out[f.Name] = v
	}
	if t.OneOf {
		set := 0
		for _, v := range out {
			if v != nil {
				set++
			}
		}
		if set != 1 || len(out) != 1 {
			return nil, fmt.Errorf("exactly one key must be specified for OneOf type \"%s\"", t.Name)
		}
	}
	return out, nil
}

func namedInputType(sch *schema.Schema, name string) (*schema.Type, error) {
	if t := sch.Type(name); t != nil {
		if !t.IsInput() {
			return nil, fmt.Errorf("type \"%s\" is not an input type", name)
		}
		return t, nil
	}
	if c := schema.BuiltinCoercing(name); c != nil {
		return &schema.Type{Name: name, Kind: schema.TypeKindScalar, Coercing: c}, nil
	}
	return nil, fmt.Errorf("unknown type \"%s\"", name)
}

// coercingFor returns the scalar's coercing, falling back to the built-in
// one for specified scalars and to pass-through for custom scalars.
func coercingFor(t *schema.Type) schema.Coercing {
	if t.Coercing != nil {
		return t.Coercing
	}
	if c := schema.BuiltinCoercing(t.Name); c != nil {
		return c
	}
	return schema.CoercingFuncs{}
}

// listItems returns the elements of a slice or array. Strings and byte
// slices are not treated as lists.
func listItems(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case string, []byte:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func mapKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func inspect(v any) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%v", v)
}

// isNullish returns true for nil interfaces and typed nils (map, slice, ptr, interface)
func isNullish(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
