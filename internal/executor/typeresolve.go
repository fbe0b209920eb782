package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"google.golang.org/protobuf/proto"

	async "github.com/hanpama/gqlexec/internal/async"
	schema "github.com/hanpama/gqlexec/internal/schema"
)

// TypeNamer lets a value name its GraphQL object type.
type TypeNamer interface {
	TypeName() string
}

// DefaultTypeResolver names the object type of value by, in order: a
// "__typename" map entry, a TypeName method, the protobuf message name
// (with a trailing "Source" removed) and the Go type name.
func DefaultTypeResolver(_ context.Context, tr *TypeResolution) (string, error) {
	switch v := tr.Value.(type) {
	case map[string]any:
		if name, ok := v["__typename"].(string); ok {
			return name, nil
		}
		return "", fmt.Errorf("map value has no __typename")
	case json.RawMessage:
		if name, ok := jsonProperty(v, "__typename").(string); ok {
			return name, nil
		}
		return "", fmt.Errorf("JSON value has no __typename")
	case TypeNamer:
		return v.TypeName(), nil
	case proto.Message:
		name := string(v.ProtoReflect().Descriptor().Name())
		return strings.TrimSuffix(name, "Source"), nil
	}
	t := reflect.TypeOf(tr.Value)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return "", fmt.Errorf("cannot infer a type name from %T", tr.Value)
	}
	return t.Name(), nil
}

// resolveType maps an abstract value to one of its possible object types.
func resolveType(ctx context.Context, ec *ExecutionContext, abstract *schema.Type, value any, step *ExecutionStepInfo, local any) (*schema.Type, error) {
	resolver := ec.typeResolverFor(abstract.Name)
	if resolver == nil {
		resolver = DefaultTypeResolver
	}
	name, err := async.Try(func() (string, error) {
		return resolver(ctx, &TypeResolution{
			Value:        value,
			AbstractType: abstract,
			Field:        step.Field(),
			Arguments:    step.Arguments(),
			Schema:       ec.schema,
			Context:      ec.userContext,
			LocalContext: local,
		})
	})
	if err != nil {
		return nil, &UnresolvedTypeError{AbstractType: abstract.Name, Err: err}
	}
	if name == "" {
		return nil, &UnresolvedTypeError{AbstractType: abstract.Name}
	}
	obj := ec.schema.Type(name)
	if obj == nil || obj.Kind != schema.TypeKindObject || !ec.schema.IsPossibleType(abstract, obj) {
		return nil, &UnresolvedTypeError{AbstractType: abstract.Name, TypeName: name}
	}
	return obj, nil
}
