package introspection

import (
	"strings"

	schema "github.com/hanpama/gqlexec/internal/schema"
)

func isIntrospectionType(name string) bool {
	return strings.HasPrefix(name, "__")
}

// extendSchemaWithIntrospection returns a copy of original with the
// introspection types added and __schema/__type on the query type.
// original is not modified.
func extendSchemaWithIntrospection(original *schema.Schema) *schema.Schema {
	extended := &schema.Schema{
		QueryType:        original.QueryType,
		MutationType:     original.MutationType,
		SubscriptionType: original.SubscriptionType,
		Types:            make(map[string]*schema.Type, len(original.Types)+8),
		Directives:       original.Directives,
		Description:      original.Description,
		AST:              original.AST,
	}
	for name, typ := range original.Types {
		extended.Types[name] = typ
	}
	for _, t := range []*schema.Type{
		schemaType(), typeType(), fieldType(), inputValueType(),
		enumValueType(), directiveType(), typeKindEnum(), directiveLocationEnum(),
	} {
		extended.AddType(t)
	}

	if query := original.GetQueryType(); query != nil {
		q := *query
		q.Fields = append(append([]*schema.Field(nil), query.Fields...),
			schema.NewField("__schema", "Access the current type schema of this server.",
				nonNull(named("__Schema"))),
			schema.NewField("__type", "Request the type information of a single type.",
				named("__Type")).
				AddArgument(schema.NewInputValue("name", "", nonNull(named("String")))),
		)
		extended.Types[q.Name] = &q
	}
	return extended
}

func named(name string) *schema.TypeRef         { return schema.NamedType(name) }
func nonNull(t *schema.TypeRef) *schema.TypeRef { return schema.NonNullType(t) }

// nonNullList is [T!]!.
func nonNullList(name string) *schema.TypeRef {
	return nonNull(schema.ListType(nonNull(named(name))))
}

// list is [T!].
func list(name string) *schema.TypeRef {
	return schema.ListType(nonNull(named(name)))
}

func includeDeprecated() *schema.InputValue {
	return schema.NewInputValue("includeDeprecated", "", named("Boolean")).SetDefault(false)
}

func schemaType() *schema.Type {
	return schema.NewType("__Schema", schema.TypeKindObject,
		"A GraphQL Schema defines the capabilities of a GraphQL server.").
		AddField(schema.NewField("description", "", named("String"))).
		AddField(schema.NewField("types", "A list of all types supported by this server.", nonNullList("__Type"))).
		AddField(schema.NewField("queryType", "The type that query operations will be rooted at.", nonNull(named("__Type")))).
		AddField(schema.NewField("mutationType", "If this server supports mutation, the type that mutation operations will be rooted at.", named("__Type"))).
		AddField(schema.NewField("subscriptionType", "If this server support subscription, the type that subscription operations will be rooted at.", named("__Type"))).
		AddField(schema.NewField("directives", "A list of all directives supported by this server.", nonNullList("__Directive")))
}

func typeType() *schema.Type {
	return schema.NewType("__Type", schema.TypeKindObject,
		"The fundamental unit of any GraphQL Schema is the type.").
		AddField(schema.NewField("kind", "", nonNull(named("__TypeKind")))).
		AddField(schema.NewField("name", "", named("String"))).
		AddField(schema.NewField("description", "", named("String"))).
		AddField(schema.NewField("specifiedByURL", "", named("String"))).
		AddField(schema.NewField("fields", "", list("__Field")).AddArgument(includeDeprecated())).
		AddField(schema.NewField("interfaces", "", list("__Type"))).
		AddField(schema.NewField("possibleTypes", "", list("__Type"))).
		AddField(schema.NewField("enumValues", "", list("__EnumValue")).AddArgument(includeDeprecated())).
		AddField(schema.NewField("inputFields", "", list("__InputValue")).AddArgument(includeDeprecated())).
		AddField(schema.NewField("ofType", "", named("__Type"))).
		AddField(schema.NewField("isOneOf", "", named("Boolean")))
}

func fieldType() *schema.Type {
	return schema.NewType("__Field", schema.TypeKindObject, "").
		AddField(schema.NewField("name", "", nonNull(named("String")))).
		AddField(schema.NewField("description", "", named("String"))).
		AddField(schema.NewField("args", "", nonNullList("__InputValue")).AddArgument(includeDeprecated())).
		AddField(schema.NewField("type", "", nonNull(named("__Type")))).
		AddField(schema.NewField("isDeprecated", "", nonNull(named("Boolean")))).
		AddField(schema.NewField("deprecationReason", "", named("String")))
}

func inputValueType() *schema.Type {
	return schema.NewType("__InputValue", schema.TypeKindObject, "").
		AddField(schema.NewField("name", "", nonNull(named("String")))).
		AddField(schema.NewField("description", "", named("String"))).
		AddField(schema.NewField("type", "", nonNull(named("__Type")))).
		AddField(schema.NewField("defaultValue", "", named("String"))).
		AddField(schema.NewField("isDeprecated", "", nonNull(named("Boolean")))).
		AddField(schema.NewField("deprecationReason", "", named("String")))
}

func enumValueType() *schema.Type {
	return schema.NewType("__EnumValue", schema.TypeKindObject, "").
		AddField(schema.NewField("name", "", nonNull(named("String")))).
		AddField(schema.NewField("description", "", named("String"))).
		AddField(schema.NewField("isDeprecated", "", nonNull(named("Boolean")))).
		AddField(schema.NewField("deprecationReason", "", named("String")))
}

func directiveType() *schema.Type {
	return schema.NewType("__Directive", schema.TypeKindObject, "").
		AddField(schema.NewField("name", "", nonNull(named("String")))).
		AddField(schema.NewField("description", "", named("String"))).
		AddField(schema.NewField("isRepeatable", "", nonNull(named("Boolean")))).
		AddField(schema.NewField("locations", "", nonNullList("__DirectiveLocation"))).
		AddField(schema.NewField("args", "", nonNullList("__InputValue")).AddArgument(includeDeprecated()))
}

func enumType(name string, values ...string) *schema.Type {
	t := schema.NewType(name, schema.TypeKindEnum, "")
	for _, v := range values {
		t.AddEnumValue(schema.NewEnumValue(v, ""))
	}
	return t
}

func typeKindEnum() *schema.Type {
	return enumType("__TypeKind",
		"SCALAR", "OBJECT", "INTERFACE", "UNION", "ENUM", "INPUT_OBJECT", "LIST", "NON_NULL")
}

func directiveLocationEnum() *schema.Type {
	return enumType("__DirectiveLocation",
		"QUERY", "MUTATION", "SUBSCRIPTION", "FIELD", "FRAGMENT_DEFINITION",
		"FRAGMENT_SPREAD", "INLINE_FRAGMENT", "VARIABLE_DEFINITION", "SCHEMA",
		"SCALAR", "OBJECT", "FIELD_DEFINITION", "ARGUMENT_DEFINITION", "INTERFACE",
		"UNION", "ENUM", "ENUM_VALUE", "INPUT_OBJECT", "INPUT_FIELD_DEFINITION")
}
