package executor

import (
	"context"
	"fmt"
	"sync"
)

// MockResolver resolves one field in tests.
type MockResolver func(ctx context.Context, source any, args map[string]any) (any, error)

// NewMockValueResolver returns a MockResolver that always returns the provided value.
func NewMockValueResolver(val any) MockResolver {
	return func(ctx context.Context, source any, args map[string]any) (any, error) {
		return val, nil
	}
}

// NewMockErrorResolver returns a MockResolver that always returns the provided error.
func NewMockErrorResolver(err error) MockResolver {
	return func(ctx context.Context, source any, args map[string]any) (any, error) {
		return nil, err
	}
}

// Call records one resolver invocation.
type Call struct {
	ObjectType string
	Field      string
	Source     any
	Args       map[string]any
}

// MockRuntime implements Runtime with a resolver registry keyed by
// "ObjectType.Field" and a log of every call, in invocation order.
type MockRuntime struct {
	mu            sync.Mutex
	resolvers     map[string]MockResolver
	typeResolvers map[string]TypeResolver
	calls         []Call
}

// NewMockRuntime creates a MockRuntime with the provided resolvers.
func NewMockRuntime(resolvers map[string]MockResolver) *MockRuntime {
	m := &MockRuntime{
		resolvers:     make(map[string]MockResolver, len(resolvers)),
		typeResolvers: make(map[string]TypeResolver),
	}
	for k, v := range resolvers {
		m.resolvers[k] = v
	}
	return m
}

// SetResolver registers or updates a resolver for the given object type and field.
func (m *MockRuntime) SetResolver(objectType, field string, resolver MockResolver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolvers[objectType+"."+field] = resolver
}

// SetTypeResolver registers the type resolver of an abstract type.
func (m *MockRuntime) SetTypeResolver(abstractType string, f func(value any) (string, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.typeResolvers[abstractType] = func(_ context.Context, tr *TypeResolution) (string, error) {
		return f(tr.Value)
	}
}

// FieldResolver returns a recording resolver, or nil when none is registered
// so that the default resolver applies.
func (m *MockRuntime) FieldResolver(objectType, field string) FieldResolver {
	m.mu.Lock()
	r, ok := m.resolvers[objectType+"."+field]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return FieldResolverFunc(func(ctx context.Context, env *Environment) (any, error) {
		m.mu.Lock()
		m.calls = append(m.calls, Call{ObjectType: objectType, Field: field, Source: env.Source, Args: env.Arguments})
		m.mu.Unlock()
		return r(ctx, env.Source, env.Arguments)
	})
}

func (m *MockRuntime) TypeResolver(abstractType string) TypeResolver {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.typeResolvers[abstractType]
}

// GetCalls returns a copy of the call log.
func (m *MockRuntime) GetCalls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// Reset clears the call log.
func (m *MockRuntime) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// String implements fmt.Stringer.
func (c Call) String() string { return fmt.Sprintf("%s.%s", c.ObjectType, c.Field) }
