package executor

import (
	"errors"
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	schema "github.com/hanpama/gqlexec/internal/schema"
)

// Error classifications reported under extensions.classification.
const (
	ClassValidation                  = "ValidationError"
	ClassDataFetching                = "DataFetchingException"
	ClassNullValueInNonNullableField = "NullValueInNonNullableField"
	ClassOperationNotSupported       = "OperationNotSupported"
	ClassExecutionAborted            = "ExecutionAborted"
)

// graphQLError is implemented by errors that know their client-facing form.
type graphQLError interface {
	GraphQLError() *gqlerror.Error
}

func classified(class, format string, args ...any) *gqlerror.Error {
	return &gqlerror.Error{
		Message:    fmt.Sprintf(format, args...),
		Extensions: map[string]any{"classification": class},
	}
}

// NonNullableFieldWasNullError reports a null at a Non-Null position. It is
// also the signal that travels up the tree until a nullable container
// absorbs it.
type NonNullableFieldWasNullError struct {
	Path       *ResultPath
	Type       *schema.TypeRef
	ParentType string
	FieldName  string
	Locations  []gqlerror.Location
}

func newNonNullError(step *ExecutionStepInfo) *NonNullableFieldWasNullError {
	e := &NonNullableFieldWasNullError{Path: step.Path(), Type: step.Type()}
	if step.ObjectType() != nil {
		e.ParentType = step.ObjectType().Name
	}
	if step.FieldDefinition() != nil {
		e.FieldName = step.FieldDefinition().Name
	}
	if step.Field() != nil {
		e.Locations = locationsOf(step.Field())
	}
	return e
}

func (e *NonNullableFieldWasNullError) Error() string {
	if e.FieldName == "" {
		return fmt.Sprintf("Cannot return null for non-nullable field at %s", e.Path)
	}
	return fmt.Sprintf("Cannot return null for non-nullable field %s.%s.", e.ParentType, e.FieldName)
}

func (e *NonNullableFieldWasNullError) GraphQLError() *gqlerror.Error {
	g := classified(ClassNullValueInNonNullableField, "%s", e.Error())
	g.Path = e.Path.AST()
	g.Locations = e.Locations
	return g
}

// CoercingError reports an input value that does not fit its type.
type CoercingError struct {
	Message   string
	Locations []gqlerror.Location
	Err       error
}

func (e *CoercingError) Error() string { return e.Message }
func (e *CoercingError) Unwrap() error { return e.Err }

func (e *CoercingError) GraphQLError() *gqlerror.Error {
	g := classified(ClassValidation, "%s", e.Message)
	g.Locations = e.Locations
	g.Err = e.Err
	return g
}

// NonNullableValueCoercedAsNullError reports a missing or null input for a
// Non-Null variable or argument.
type NonNullableValueCoercedAsNullError struct {
	Kind      string // "Variable" or "Argument"
	Name      string
	Type      *schema.TypeRef
	Provided  bool
	Locations []gqlerror.Location
}

func (e *NonNullableValueCoercedAsNullError) Error() string {
	prefix := e.Name
	if e.Kind == "Variable" {
		prefix = "$" + e.Name
	}
	if !e.Provided {
		return fmt.Sprintf("%s \"%s\" of required type \"%s\" was not provided.", e.Kind, prefix, e.Type)
	}
	return fmt.Sprintf("%s \"%s\" of non-null type \"%s\" must not be null.", e.Kind, prefix, e.Type)
}

func (e *NonNullableValueCoercedAsNullError) GraphQLError() *gqlerror.Error {
	g := classified(ClassValidation, "%s", e.Error())
	g.Locations = e.Locations
	return g
}

// UnresolvedTypeError reports that an abstract value could not be mapped to
// one of its possible object types.
type UnresolvedTypeError struct {
	AbstractType string
	TypeName     string
	Err          error
}

func (e *UnresolvedTypeError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("Could not determine the exact type of '%s': %v", e.AbstractType, e.Err)
	case e.TypeName == "":
		return fmt.Sprintf("Could not determine the exact type of '%s'", e.AbstractType)
	}
	return fmt.Sprintf("Abstract type %s must resolve to an Object type at runtime. Got: %s", e.AbstractType, e.TypeName)
}

func (e *UnresolvedTypeError) Unwrap() error { return e.Err }

// TypeMismatchError reports a resolved value whose shape cannot be completed
// as the declared type, e.g. a non-iterable value for a list field.
type TypeMismatchError struct {
	Path     *ResultPath
	Expected *schema.TypeRef
	Value    any
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("Can't resolve value (%s) : type mismatch error, expected type %s got %T", e.Path, e.Expected, e.Value)
}

// SerializationError wraps a scalar or enum serialization failure.
type SerializationError struct {
	TypeName string
	Err      error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("Can't serialize value as %s: %v", e.TypeName, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// toGraphQLError stamps err with path and field locations unless it already
// carries them.
func toGraphQLError(err error, path *ResultPath, field *MergedField) *gqlerror.Error {
	var g *gqlerror.Error
	var known graphQLError
	switch {
	case errors.As(err, &g):
		c := *g
		g = &c
	case errors.As(err, &known):
		g = known.GraphQLError()
	default:
		g = gqlerror.WrapPath(nil, err)
		g.Extensions = map[string]any{"classification": ClassDataFetching}
	}
	if len(g.Path) == 0 && path != nil {
		g.Path = path.AST()
	}
	if len(g.Locations) == 0 && field != nil {
		g.Locations = locationsOf(field)
	}
	return g
}

func locationsOf(field *MergedField) []gqlerror.Location {
	return positionLocations(field.SingleField().Position)
}

func positionLocations(pos *ast.Position) []gqlerror.Location {
	if pos == nil {
		return nil
	}
	return []gqlerror.Location{{Line: pos.Line, Column: pos.Column}}
}

// MissingRootTypeError reports an operation whose root type the schema does
// not define. Execution never starts.
type MissingRootTypeError struct {
	Operation string
	Locations []gqlerror.Location
}

func (e *MissingRootTypeError) Error() string {
	return fmt.Sprintf("Schema is not configured for %ss.", e.Operation)
}

func (e *MissingRootTypeError) GraphQLError() *gqlerror.Error {
	g := classified(ClassOperationNotSupported, "%s", e.Error())
	g.Locations = e.Locations
	return g
}

// ExceptionWhileDataFetchingError is the error the default exception handler
// reports for a failed resolver.
type ExceptionWhileDataFetchingError struct {
	Path      *ResultPath
	Err       error
	Locations []gqlerror.Location
}

func (e *ExceptionWhileDataFetchingError) Error() string {
	return fmt.Sprintf("Exception while fetching data (%s) : %s", e.Path, e.Err.Error())
}

func (e *ExceptionWhileDataFetchingError) Unwrap() error { return e.Err }

func (e *ExceptionWhileDataFetchingError) GraphQLError() *gqlerror.Error {
	g := classified(ClassDataFetching, "%s", e.Error())
	g.Path = e.Path.AST()
	g.Locations = e.Locations
	g.Err = e.Err
	return g
}
