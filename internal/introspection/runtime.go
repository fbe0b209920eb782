package introspection

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	executor "github.com/hanpama/gqlexec/internal/executor"
	schema "github.com/hanpama/gqlexec/internal/schema"
)

// IntrospectionWrapper holds both the runtime and extended schema
type IntrospectionWrapper struct {
	Runtime executor.Runtime
	Schema  *schema.Schema
}

// Wrap returns a Runtime that handles GraphQL introspection fields.
// It extends the schema with introspection types and fields. Every other
// coordinate is delegated to base, which may be nil.
func Wrap(base executor.Runtime, sch *schema.Schema) *IntrospectionWrapper {
	extended := extendSchemaWithIntrospection(sch)
	return &IntrospectionWrapper{
		Runtime: &runtime{base: base, original: sch},
		Schema:  extended,
	}
}

type runtime struct {
	base     executor.Runtime
	original *schema.Schema // introspection reports the schema as written
}

func (r *runtime) FieldResolver(objectType, field string) executor.FieldResolver {
	if objectType == r.original.QueryType {
		switch field {
		case "__schema":
			return executor.FieldResolverFunc(func(context.Context, *executor.Environment) (any, error) {
				return r.original, nil
			})
		case "__type":
			return executor.FieldResolverFunc(r.resolveTypeQuery)
		}
	}
	if isIntrospectionType(objectType) {
		return executor.FieldResolverFunc(r.resolveMetaField)
	}
	if r.base == nil {
		return nil
	}
	return r.base.FieldResolver(objectType, field)
}

func (r *runtime) TypeResolver(abstractType string) executor.TypeResolver {
	if r.base == nil {
		return nil
	}
	return r.base.TypeResolver(abstractType)
}

func (r *runtime) resolveTypeQuery(_ context.Context, env *executor.Environment) (any, error) {
	name, _ := env.Arguments["name"].(string)
	if t := r.original.Type(name); t != nil {
		return t, nil
	}
	return nil, nil
}

// resolveMetaField answers a field of one of the __ types from its source.
func (r *runtime) resolveMetaField(_ context.Context, env *executor.Environment) (any, error) {
	field := env.FieldDefinition.Name
	args := env.Arguments
	switch src := env.Source.(type) {
	case *schema.Schema:
		if v, ok := resolveSchemaField(src, field); ok {
			return v, nil
		}
	case *schema.Type:
		if v, ok := resolveTypeField(r.original, src, field, args); ok {
			return v, nil
		}
	case *schema.TypeRef:
		if v, ok := resolveTypeRefField(r.original, src, field, args); ok {
			return v, nil
		}
	case *schema.Field:
		if v, ok := resolveFieldField(src, field, args); ok {
			return v, nil
		}
	case *schema.InputValue:
		if v, ok := resolveInputValueField(src, field); ok {
			return v, nil
		}
	case *schema.EnumValue:
		if v, ok := resolveEnumValueField(src, field); ok {
			return v, nil
		}
	case *schema.Directive:
		if v, ok := resolveDirectiveField(src, field, args); ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("introspection: no field %s.%s for %T", env.ParentType.Name, field, env.Source)
}

func resolveSchemaTypes(sch *schema.Schema) []*schema.Type {
	out := make([]*schema.Type, 0, len(sch.Types))
	for _, t := range sch.Types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func resolveSchemaDirectives(sch *schema.Schema) []*schema.Directive {
	dirs := make([]*schema.Directive, 0, len(sch.Directives))
	for _, d := range sch.Directives {
		dirs = append(dirs, d)
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].Name < dirs[j].Name })
	return dirs
}

// resolveTypeFields keeps declaration order.
func resolveTypeFields(t *schema.Type, args map[string]any) []*schema.Field {
	if t.Kind != schema.TypeKindObject && t.Kind != schema.TypeKindInterface {
		return nil
	}
	includeDeprecated := boolArg(args, "includeDeprecated")
	out := []*schema.Field{}
	for _, f := range t.Fields {
		if !includeDeprecated && f.IsDeprecated {
			continue
		}
		out = append(out, f)
	}
	return out
}

func resolveTypeInterfaces(sch *schema.Schema, t *schema.Type) []*schema.Type {
	if t.Kind != schema.TypeKindObject && t.Kind != schema.TypeKindInterface {
		return nil
	}
	out := make([]*schema.Type, 0, len(t.Interfaces))
	for _, name := range t.Interfaces {
		if def := sch.Type(name); def != nil {
			out = append(out, def)
		}
	}
	return out
}

func resolveTypePossibleTypes(sch *schema.Schema, t *schema.Type) []*schema.Type {
	if !t.IsAbstract() {
		return nil
	}
	pts := sch.PossibleTypes(t)
	sort.Slice(pts, func(i, j int) bool { return pts[i].Name < pts[j].Name })
	return pts
}

func resolveTypeEnumValues(t *schema.Type, args map[string]any) []*schema.EnumValue {
	if t.Kind != schema.TypeKindEnum {
		return nil
	}
	includeDeprecated := boolArg(args, "includeDeprecated")
	out := []*schema.EnumValue{}
	for _, ev := range t.EnumValues {
		if !includeDeprecated && ev.IsDeprecated {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func resolveInputValues(values []*schema.InputValue, args map[string]any) []*schema.InputValue {
	includeDeprecated := boolArg(args, "includeDeprecated")
	out := []*schema.InputValue{}
	for _, iv := range values {
		if !includeDeprecated && iv.IsDeprecated {
			continue
		}
		out = append(out, iv)
	}
	return out
}

// defaultValue renders a default as a GraphQL literal.
func defaultValue(a *schema.InputValue) any {
	switch {
	case a.DefaultLiteral != nil:
		return a.DefaultLiteral.String()
	case a.DefaultValue == nil:
		return nil
	}
	if s, ok := a.DefaultValue.(string); ok {
		return strconv.Quote(s)
	}
	return fmt.Sprintf("%v", a.DefaultValue)
}

func deprecationReason(deprecated bool, reason string) any {
	if deprecated {
		return reason
	}
	return nil
}

func optionalString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func resolveSchemaField(sch *schema.Schema, field string) (any, bool) {
	switch field {
	case "types":
		return resolveSchemaTypes(sch), true
	case "queryType":
		return sch.GetQueryType(), true
	case "mutationType":
		if t := sch.GetMutationType(); t != nil {
			return t, true
		}
		return nil, true
	case "subscriptionType":
		if t := sch.GetSubscriptionType(); t != nil {
			return t, true
		}
		return nil, true
	case "directives":
		return resolveSchemaDirectives(sch), true
	case "description":
		return optionalString(sch.Description), true
	}
	return nil, false
}

func resolveTypeField(sch *schema.Schema, t *schema.Type, field string, args map[string]any) (any, bool) {
	switch field {
	case "kind":
		return string(t.Kind), true
	case "name":
		return t.Name, true
	case "description":
		return optionalString(t.Description), true
	case "specifiedByURL":
		if t.SpecifiedByURL == nil {
			return nil, true
		}
		return *t.SpecifiedByURL, true
	case "fields":
		return resolveTypeFields(t, args), true
	case "interfaces":
		return resolveTypeInterfaces(sch, t), true
	case "possibleTypes":
		return resolveTypePossibleTypes(sch, t), true
	case "enumValues":
		return resolveTypeEnumValues(t, args), true
	case "inputFields":
		if t.Kind != schema.TypeKindInputObject {
			return nil, true
		}
		return resolveInputValues(t.InputFields, args), true
	case "isOneOf":
		if t.Kind != schema.TypeKindInputObject {
			return nil, true
		}
		return t.OneOf, true
	case "ofType":
		// Named types have no inner type; wrappers are *schema.TypeRef.
		return nil, true
	}
	return nil, false
}

func resolveTypeRefField(sch *schema.Schema, tr *schema.TypeRef, field string, args map[string]any) (any, bool) {
	if tr.Kind == schema.TypeRefKindNamed {
		def := sch.Type(tr.Named)
		if def == nil {
			return nil, true
		}
		return resolveTypeField(sch, def, field, args)
	}
	switch field {
	case "kind":
		return string(tr.Kind), true
	case "ofType":
		return tr.OfType, true
	}
	return nil, true
}

func resolveFieldField(f *schema.Field, field string, args map[string]any) (any, bool) {
	switch field {
	case "name":
		return f.Name, true
	case "description":
		return optionalString(f.Description), true
	case "args":
		return resolveInputValues(f.Arguments, args), true
	case "type":
		return f.Type, true
	case "isDeprecated":
		return f.IsDeprecated, true
	case "deprecationReason":
		return deprecationReason(f.IsDeprecated, f.DeprecationReason), true
	}
	return nil, false
}

func resolveInputValueField(a *schema.InputValue, field string) (any, bool) {
	switch field {
	case "name":
		return a.Name, true
	case "description":
		return optionalString(a.Description), true
	case "type":
		return a.Type, true
	case "defaultValue":
		return defaultValue(a), true
	case "isDeprecated":
		return a.IsDeprecated, true
	case "deprecationReason":
		return deprecationReason(a.IsDeprecated, a.DeprecationReason), true
	}
	return nil, false
}

func resolveEnumValueField(ev *schema.EnumValue, field string) (any, bool) {
	switch field {
	case "name":
		return ev.Name, true
	case "description":
		return optionalString(ev.Description), true
	case "isDeprecated":
		return ev.IsDeprecated, true
	case "deprecationReason":
		return deprecationReason(ev.IsDeprecated, ev.DeprecationReason), true
	}
	return nil, false
}

func resolveDirectiveField(d *schema.Directive, field string, args map[string]any) (any, bool) {
	switch field {
	case "name":
		return d.Name, true
	case "description":
		return optionalString(d.Description), true
	case "isRepeatable":
		return d.IsRepeatable, true
	case "locations":
		locs := make([]any, len(d.Locations))
		for i, l := range d.Locations {
			locs[i] = l
		}
		return locs, true
	case "args":
		return resolveInputValues(d.Arguments, args), true
	}
	return nil, false
}

func boolArg(args map[string]any, name string) bool {
	b, _ := args[name].(bool)
	return b
}
