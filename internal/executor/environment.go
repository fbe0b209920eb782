package executor

import (
	"path"
	"sync"

	language "github.com/hanpama/gqlexec/internal/language"
	schema "github.com/hanpama/gqlexec/internal/schema"
)

// Environment is everything a resolver may look at to produce a value.
type Environment struct {
	Source          any
	Arguments       map[string]any
	LocalContext    any
	Context         any // operation-wide value from ExecutionInput.Context
	Root            any
	FieldDefinition *schema.Field
	Field           *MergedField
	FieldType       *schema.TypeRef
	ParentType      *schema.Type
	StepInfo        *ExecutionStepInfo
	Schema          *schema.Schema
	Operation       *language.OperationDefinition
	Fragments       language.FragmentDefinitions
	Variables       map[string]any
	ExecutionID     string

	selection *SelectionSetView
}

// Argument returns a coerced argument and whether it was present.
func (e *Environment) Argument(name string) (any, bool) {
	v, ok := e.Arguments[name]
	return v, ok
}

// ArgumentOrDefault returns the argument or def when it is absent or null.
func (e *Environment) ArgumentOrDefault(name string, def any) any {
	if v, ok := e.Arguments[name]; ok && v != nil {
		return v
	}
	return def
}

// Path is the response path of the field being resolved.
func (e *Environment) Path() *ResultPath { return e.StepInfo.Path() }

// SelectionSet gives look-ahead access to the sub-selection of the field.
// It is computed on first use.
func (e *Environment) SelectionSet() *SelectionSetView { return e.selection }

// SelectedField is one field of a look-ahead selection.
type SelectedField struct {
	Name          string
	Alias         string
	ResultKey     string
	QualifiedName string // field names from the resolved field, joined by "/"
	ObjectTypes   []string
	Arguments     map[string]any
	Level         int
	Type          *schema.TypeRef
	Field         *MergedField
}

// SelectionSetView is a lazily computed, read-only view of all fields
// selected below a field, across every possible type.
type SelectionSetView struct {
	once    sync.Once
	compute func() []*SelectedField
	fields  []*SelectedField
}

func newSelectionSetView(p CollectorParams, fieldType *schema.TypeRef, field *MergedField) *SelectionSetView {
	return &SelectionSetView{compute: func() []*SelectedField {
		var out []*SelectedField
		index := make(map[string]*SelectedField)
		walkSelection(p, fieldType, field, "", 1, index, &out)
		return out
	}}
}

func (s *SelectionSetView) load() []*SelectedField {
	if s == nil {
		return nil
	}
	s.once.Do(func() { s.fields = s.compute() })
	return s.fields
}

// Fields returns every selected field, depth first in selection order.
func (s *SelectionSetView) Fields() []*SelectedField { return s.load() }

// ImmediateFields returns the fields directly below the resolved field.
func (s *SelectionSetView) ImmediateFields() []*SelectedField {
	var out []*SelectedField
	for _, f := range s.load() {
		if f.Level == 1 {
			out = append(out, f)
		}
	}
	return out
}

// Contains reports whether any selected field's qualified name matches the
// glob pattern, e.g. "author" or "author/*".
func (s *SelectionSetView) Contains(pattern string) bool {
	for _, f := range s.load() {
		if ok, _ := path.Match(pattern, f.QualifiedName); ok {
			return true
		}
	}
	return false
}

// Get returns the first field with the given qualified name.
func (s *SelectionSetView) Get(qualifiedName string) *SelectedField {
	for _, f := range s.load() {
		if f.QualifiedName == qualifiedName {
			return f
		}
	}
	return nil
}

func walkSelection(p CollectorParams, t *schema.TypeRef, field *MergedField, prefix string, level int, index map[string]*SelectedField, out *[]*SelectedField) {
	named := p.Schema.Type(t.GetNamedType())
	if named == nil || named.IsLeaf() {
		return
	}
	for _, obj := range p.Schema.PossibleTypes(named) {
		cp := p
		cp.ObjectType = obj
		cp.IgnoreDefer = true
		subs := CollectSubfields(cp, field)
		for _, key := range subs.Keys() {
			mf := subs.Get(key)
			def := obj.Field(mf.Name())
			if def == nil {
				continue
			}
			qualified := mf.Name()
			if prefix != "" {
				qualified = prefix + "/" + qualified
			}
			id := qualified + "|" + key
			if sf, ok := index[id]; ok {
				sf.ObjectTypes = append(sf.ObjectTypes, obj.Name)
				continue
			}
			args, _ := ArgumentValues(p.Schema, def.Arguments, mf.Arguments(), p.Variables)
			sf := &SelectedField{
				Name:          mf.Name(),
				Alias:         mf.SingleField().Alias,
				ResultKey:     key,
				QualifiedName: qualified,
				ObjectTypes:   []string{obj.Name},
				Arguments:     args,
				Level:         level,
				Type:          def.Type,
				Field:         mf,
			}
			index[id] = sf
			*out = append(*out, sf)
			walkSelection(p, def.Type, mf, qualified, level+1, index, out)
		}
	}
}

// FieldNames returns the qualified names of all selected fields, without
// duplicates.
func (s *SelectionSetView) FieldNames() []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range s.load() {
		if !seen[f.QualifiedName] {
			seen[f.QualifiedName] = true
			out = append(out, f.QualifiedName)
		}
	}
	return out
}
