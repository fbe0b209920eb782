package executor

import (
	"context"

	schema "github.com/hanpama/gqlexec/internal/schema"
)

// Runtime is the host integration surface: it maps schema coordinates to the
// code that produces values.
//
// General contract
//   - FieldResolver is consulted once per field execution with the name of
//     the object type declaring the field (for root fields, the root type
//     name) and the field name. Returning nil selects the executor's default
//     field resolver, which reads the field from the source value.
//   - TypeResolver is consulted when a value of an interface or union type
//     must be mapped to a concrete object type. Returning nil selects the
//     default type resolver.
//   - Implementations must be safe for concurrent use. Resolvers for sibling
//     fields run concurrently on separate goroutines, except for the root
//     fields of a mutation, which run one after another in document order.
//   - Resolvers must not mutate source or argument values.
//
// Errors and partial success
//   - An error (or panic) from a resolver is routed to the ExceptionHandler,
//     recorded with the field's path and turns the field into null. Sibling
//     fields are unaffected. If the field is Non-Null, the null propagates to
//     the nearest nullable ancestor.
//
// Asynchronous values
//   - A resolver may return an Awaitable (for example *async.Future[any]).
//     The executor awaits it on the field's goroutine, so sibling fields keep
//     progressing.
type Runtime interface {
	FieldResolver(objectType, field string) FieldResolver
	TypeResolver(abstractType string) TypeResolver
}

// FieldResolver produces the raw value of a field.
type FieldResolver interface {
	Resolve(ctx context.Context, env *Environment) (any, error)
}

// FieldResolverFunc adapts a function to FieldResolver.
type FieldResolverFunc func(ctx context.Context, env *Environment) (any, error)

func (f FieldResolverFunc) Resolve(ctx context.Context, env *Environment) (any, error) {
	return f(ctx, env)
}

// TypeResolver returns the name of the object type a value of an abstract
// type has at runtime.
type TypeResolver func(ctx context.Context, tr *TypeResolution) (string, error)

// TypeResolution is the input of a TypeResolver.
type TypeResolution struct {
	Value        any
	AbstractType *schema.Type
	Field        *MergedField
	Arguments    map[string]any
	Schema       *schema.Schema
	Context      any
	LocalContext any
}

// Awaitable is a resolver result that becomes available later.
type Awaitable interface {
	Await(ctx context.Context) (any, error)
}

// FieldResult lets a resolver return data together with errors and a local
// context that is handed to the resolvers of child fields.
type FieldResult struct {
	Data         any
	Errors       []error
	LocalContext any
}
