package executor

import (
	"fmt"

	schema "github.com/hanpama/gqlexec/internal/schema"
)

// ExecutionStepInfo describes one step of the walk: the field being
// executed, its (possibly wrapped) type, its coerced arguments and where the
// value lands in the response. Step infos are immutable and link to the step
// of the enclosing object or list.
type ExecutionStepInfo struct {
	typ        *schema.TypeRef
	objectType *schema.Type
	fieldDef   *schema.Field
	field      *MergedField
	path       *ResultPath
	arguments  map[string]any
	parent     *ExecutionStepInfo
}

func newRootStepInfo(root *schema.Type) *ExecutionStepInfo {
	return &ExecutionStepInfo{
		typ:  schema.NonNullType(schema.NamedType(root.Name)),
		path: RootPath(),
	}
}

// newFieldStepInfo returns the step of a field selected on objectType.
func (s *ExecutionStepInfo) newFieldStepInfo(objectType *schema.Type, def *schema.Field, field *MergedField, path *ResultPath, args map[string]any) *ExecutionStepInfo {
	return &ExecutionStepInfo{
		typ:        def.Type,
		objectType: objectType,
		fieldDef:   def,
		field:      field,
		path:       path,
		arguments:  args,
		parent:     s,
	}
}

// newListElementStepInfo returns the step of element index of the list
// described by s.
func (s *ExecutionStepInfo) newListElementStepInfo(index int, elemType *schema.TypeRef) *ExecutionStepInfo {
	return &ExecutionStepInfo{
		typ:        elemType,
		objectType: s.objectType,
		fieldDef:   s.fieldDef,
		field:      s.field,
		path:       s.path.Index(index),
		arguments:  s.arguments,
		parent:     s,
	}
}

// Type is the type of the value at this step, including Non-Null wrapping.
func (s *ExecutionStepInfo) Type() *schema.TypeRef { return s.typ }

// UnwrappedNonNullType is Type without its Non-Null wrapper.
func (s *ExecutionStepInfo) UnwrappedNonNullType() *schema.TypeRef { return s.typ.Nullable() }

func (s *ExecutionStepInfo) IsNonNullType() bool { return s.typ.IsNonNull() }

func (s *ExecutionStepInfo) IsListType() bool { return s.typ.IsList() }

// FieldDefinition is nil for the root step.
func (s *ExecutionStepInfo) FieldDefinition() *schema.Field { return s.fieldDef }

// Field is nil for the root step.
func (s *ExecutionStepInfo) Field() *MergedField { return s.field }

// ObjectType is the type declaring the field, nil for the root step.
func (s *ExecutionStepInfo) ObjectType() *schema.Type { return s.objectType }

func (s *ExecutionStepInfo) Path() *ResultPath { return s.path }

func (s *ExecutionStepInfo) Arguments() map[string]any { return s.arguments }

// Argument returns a coerced argument and whether it was present.
func (s *ExecutionStepInfo) Argument(name string) (any, bool) {
	v, ok := s.arguments[name]
	return v, ok
}

func (s *ExecutionStepInfo) Parent() *ExecutionStepInfo { return s.parent }

func (s *ExecutionStepInfo) HasParent() bool { return s.parent != nil }

// IsListElement reports whether this step is an element of a list step.
func (s *ExecutionStepInfo) IsListElement() bool { return s.path.IsListSegment() }

// WithType returns a copy of s with a different type.
func (s *ExecutionStepInfo) WithType(t *schema.TypeRef) *ExecutionStepInfo {
	c := *s
	c.typ = t
	return &c
}

// WithArguments returns a copy of s with different arguments.
func (s *ExecutionStepInfo) WithArguments(args map[string]any) *ExecutionStepInfo {
	c := *s
	c.arguments = args
	return &c
}

// withResolvedType narrows an abstract step to its runtime object type,
// keeping Non-Null wrapping.
func (s *ExecutionStepInfo) withResolvedType(obj *schema.Type) *ExecutionStepInfo {
	t := schema.NamedType(obj.Name)
	if s.IsNonNullType() {
		t = schema.NonNullType(t)
	}
	return s.WithType(t)
}

func (s *ExecutionStepInfo) String() string {
	name := ""
	if s.fieldDef != nil {
		name = s.fieldDef.Name
	}
	return fmt.Sprintf("ExecutionStepInfo{path=%s, type=%s, field=%s}", s.path, s.typ, name)
}
