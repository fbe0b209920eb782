// Package wiring binds schema coordinates to resolvers, type resolvers,
// scalar coercings and enum runtime values.
//
// A Registry is filled at startup, checked against a schema with Validate,
// applied to it with Apply, and then handed to executor.NewExecutor as the
// executor.Runtime.
package wiring

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/multierr"

	executor "github.com/hanpama/gqlexec/internal/executor"
	schema "github.com/hanpama/gqlexec/internal/schema"
)

// Registry implements executor.Runtime from registered coordinates.
type Registry struct {
	mu      sync.RWMutex
	fields  map[string]executor.FieldResolver // "Type.field"
	types   map[string]executor.TypeResolver
	scalars map[string]schema.Coercing
	enums   map[string]map[string]any
}

var _ executor.Runtime = (*Registry)(nil)

func New() *Registry {
	return &Registry{
		fields:  make(map[string]executor.FieldResolver),
		types:   make(map[string]executor.TypeResolver),
		scalars: make(map[string]schema.Coercing),
		enums:   make(map[string]map[string]any),
	}
}

func coordinate(typeName, field string) string { return typeName + "." + field }

// Field registers the resolver of typeName.field, replacing any previous one.
func (r *Registry) Field(typeName, field string, res executor.FieldResolver) *Registry {
	r.mu.Lock()
	r.fields[coordinate(typeName, field)] = res
	r.mu.Unlock()
	return r
}

// FieldFunc is Field for a plain function.
func (r *Registry) FieldFunc(typeName, field string, fn executor.FieldResolverFunc) *Registry {
	return r.Field(typeName, field, fn)
}

// Type registers the type resolver of an interface or union.
func (r *Registry) Type(abstractType string, fn executor.TypeResolver) *Registry {
	r.mu.Lock()
	r.types[abstractType] = fn
	r.mu.Unlock()
	return r
}

// Scalar registers the coercing of a custom scalar.
func (r *Registry) Scalar(name string, c schema.Coercing) *Registry {
	r.mu.Lock()
	r.scalars[name] = c
	r.mu.Unlock()
	return r
}

// EnumValues maps enum value names to the runtime values resolvers receive
// and return.
func (r *Registry) EnumValues(enum string, values map[string]any) *Registry {
	r.mu.Lock()
	cp := make(map[string]any, len(values))
	for k, v := range values {
		cp[k] = v
	}
	r.enums[enum] = cp
	r.mu.Unlock()
	return r
}

func (r *Registry) FieldResolver(objectType, field string) executor.FieldResolver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fields[coordinate(objectType, field)]
}

func (r *Registry) TypeResolver(abstractType string) executor.TypeResolver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.types[abstractType]
}

// Validate reports every registration that does not match sch: unknown
// field coordinates, type resolvers for non-abstract types, coercings for
// non-scalars, enum values for unknown names. Built-in scalars cannot be
// overridden.
func (r *Registry) Validate(sch *schema.Schema) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var err error
	for _, coord := range sortedKeys(r.fields) {
		typeName, field := splitCoordinate(coord)
		t := sch.Type(typeName)
		switch {
		case t == nil:
			err = multierr.Append(err, fmt.Errorf("wiring: %s: unknown type %q", coord, typeName))
		case t.Kind != schema.TypeKindObject:
			err = multierr.Append(err, fmt.Errorf("wiring: %s: %s is not an object type", coord, typeName))
		case t.Field(field) == nil:
			err = multierr.Append(err, fmt.Errorf("wiring: %s: unknown field", coord))
		}
	}
	for _, name := range sortedKeys(r.types) {
		if t := sch.Type(name); !t.IsAbstract() {
			err = multierr.Append(err, fmt.Errorf("wiring: type resolver for %q: not an interface or union", name))
		}
	}
	for _, name := range sortedKeys(r.scalars) {
		t := sch.Type(name)
		switch {
		case t == nil || t.Kind != schema.TypeKindScalar:
			err = multierr.Append(err, fmt.Errorf("wiring: coercing for %q: not a scalar", name))
		case schema.IsBuiltinScalar(name):
			err = multierr.Append(err, fmt.Errorf("wiring: coercing for %q: built-in scalar", name))
		}
	}
	for _, name := range sortedKeys(r.enums) {
		t := sch.Type(name)
		if t == nil || t.Kind != schema.TypeKindEnum {
			err = multierr.Append(err, fmt.Errorf("wiring: values for %q: not an enum", name))
			continue
		}
		for _, v := range sortedKeys(r.enums[name]) {
			if t.EnumValue(v) == nil {
				err = multierr.Append(err, fmt.Errorf("wiring: values for %q: unknown value %s", name, v))
			}
		}
	}
	return err
}

// Apply validates the registry and installs scalar coercings and enum
// runtime values into sch. Call it before the schema is shared.
func (r *Registry) Apply(sch *schema.Schema) error {
	if err := r.Validate(sch); err != nil {
		return err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, c := range r.scalars {
		sch.Type(name).SetCoercing(c)
	}
	for name, values := range r.enums {
		t := sch.Type(name)
		for v, runtime := range values {
			t.EnumValue(v).SetValue(runtime)
		}
	}
	return nil
}

// Unresolved lists the object fields of sch without a registered resolver,
// as "Type.field". They fall back to the default resolver.
func (r *Registry) Unresolved(sch *schema.Schema) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, t := range sch.Types {
		if t.Kind != schema.TypeKindObject || strings.HasPrefix(t.Name, "__") {
			continue
		}
		for _, f := range t.Fields {
			if _, ok := r.fields[coordinate(t.Name, f.Name)]; !ok {
				out = append(out, coordinate(t.Name, f.Name))
			}
		}
	}
	sort.Strings(out)
	return out
}

func splitCoordinate(coord string) (string, string) {
	typeName, field, _ := strings.Cut(coord, ".")
	return typeName, field
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
