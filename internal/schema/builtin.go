package schema

var stringType = &Type{
	Name:        "String",
	Kind:        TypeKindScalar,
	Description: "The `String` scalar type represents textual data, represented as UTF-8 character sequences.",
	Coercing:    stringCoercing{},
}

var intType = &Type{
	Name:        "Int",
	Kind:        TypeKindScalar,
	Description: "The `Int` scalar type represents non-fractional signed whole numeric values.",
	Coercing:    intCoercing{},
}

var floatType = &Type{
	Name:        "Float",
	Kind:        TypeKindScalar,
	Description: "The `Float` scalar type represents signed double-precision fractional values.",
	Coercing:    floatCoercing{},
}

var booleanType = &Type{
	Name:        "Boolean",
	Kind:        TypeKindScalar,
	Description: "The `Boolean` scalar type represents `true` or `false`.",
	Coercing:    booleanCoercing{},
}

var idType = &Type{
	Name:        "ID",
	Kind:        TypeKindScalar,
	Description: "The `ID` scalar type represents a unique identifier, often used to refetch an object or as a key for caching.",
	Coercing:    idCoercing{},
}

var includeDirective = &Directive{
	Name:        "include",
	Description: "Directs the executor to include this field or fragment only when the `if` argument is true.",
	Arguments: []*InputValue{
		{
			Name:        "if",
			Description: "Included when true.",
			Type:        NonNullType(NamedType("Boolean")),
		},
	},
	Locations:    []string{"FIELD", "FRAGMENT_SPREAD", "INLINE_FRAGMENT"},
	IsRepeatable: false,
}

var skipDirective = &Directive{
	Name:        "skip",
	Description: "Directs the executor to skip this field or fragment when the `if` argument is true.",
	Arguments: []*InputValue{
		{
			Name:        "if",
			Description: "Skipped when true.",
			Type:        NonNullType(NamedType("Boolean")),
		},
	},
	Locations:    []string{"FIELD", "FRAGMENT_SPREAD", "INLINE_FRAGMENT"},
	IsRepeatable: false,
}

var deferDirective = &Directive{
	Name:        "defer",
	Description: "Directs the executor to deliver this field after the initial result.",
	Arguments: []*InputValue{
		{
			Name:         "if",
			Description:  "Deferred when true.",
			Type:         NamedType("Boolean"),
			DefaultValue: true,
		},
		{
			Name:        "label",
			Description: "Identifies the deferred payload.",
			Type:        NamedType("String"),
		},
	},
	Locations: []string{"FIELD", "FRAGMENT_SPREAD", "INLINE_FRAGMENT"},
}

var deprecatedDirective = &Directive{
	Name:        "deprecated",
	Description: "Marks an element of a GraphQL schema as no longer supported.",
	Arguments: []*InputValue{
		{
			Name:         "reason",
			Type:         NamedType("String"),
			DefaultValue: "No longer supported",
		},
	},
	Locations: []string{"FIELD_DEFINITION", "ARGUMENT_DEFINITION", "INPUT_FIELD_DEFINITION", "ENUM_VALUE"},
}

func builtinScalars() []*Type {
	return []*Type{stringType, intType, floatType, booleanType, idType}
}

func builtinDirectives() []*Directive {
	return []*Directive{includeDirective, skipDirective, deferDirective, deprecatedDirective}
}

// IsBuiltinScalar reports whether name is one of the five specified scalars.
func IsBuiltinScalar(name string) bool {
	switch name {
	case "String", "Int", "Float", "Boolean", "ID":
		return true
	}
	return false
}

// BuiltinCoercing returns the coercing of a specified scalar, nil for others.
func BuiltinCoercing(name string) Coercing {
	for _, t := range builtinScalars() {
		if t.Name == name {
			return t.Coercing
		}
	}
	return nil
}

// BuiltinDirective returns the definition of an executable directive this
// package predefines, nil for others.
func BuiltinDirective(name string) *Directive {
	for _, d := range builtinDirectives() {
		if d.Name == name {
			return d
		}
	}
	return nil
}
