package executor

import (
	"sync"

	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/hanpama/gqlexec/internal/eventbus"
	language "github.com/hanpama/gqlexec/internal/language"
	schema "github.com/hanpama/gqlexec/internal/schema"
)

// ExecutionContext is the per-operation state shared by every field of one
// execution. Everything except the error collector and the deferred queue is
// read-only once execution starts.
type ExecutionContext struct {
	schema       *schema.Schema
	document     *language.QueryDocument
	operation    *language.OperationDefinition
	fragments    language.FragmentDefinitions
	variables    map[string]any
	root         any
	userContext  any
	localContext any

	runtime          Runtime
	queryStrategy    ExecutionStrategy
	mutationStrategy ExecutionStrategy
	exceptionHandler ExceptionHandler
	defaultResolver  FieldResolver
	logger           *zap.Logger
	bus              *eventbus.Bus
	executionID      string
	fetchLimiter     *semaphore.Weighted

	errors      *errorCollector
	deferred    *deferQueue
	ignoreDefer bool
}

// Schema returns the schema the operation runs against.
func (ec *ExecutionContext) Schema() *schema.Schema { return ec.schema }

func (ec *ExecutionContext) Operation() *language.OperationDefinition { return ec.operation }

func (ec *ExecutionContext) Variables() map[string]any { return ec.variables }

func (ec *ExecutionContext) ExecutionID() string { return ec.executionID }

// Errors returns the errors recorded so far.
func (ec *ExecutionContext) Errors() gqlerror.List { return ec.errors.list() }

// AddError records err for path. Only the first error per path is kept.
func (ec *ExecutionContext) AddError(err error, path *ResultPath, field *MergedField) {
	ec.errors.add(toGraphQLError(err, path, field), path)
}

func (ec *ExecutionContext) collectorParams(objectType *schema.Type) CollectorParams {
	return CollectorParams{
		Schema:      ec.schema,
		ObjectType:  objectType,
		Fragments:   ec.fragments,
		Variables:   ec.variables,
		IgnoreDefer: ec.ignoreDefer,
	}
}

func (ec *ExecutionContext) fieldResolverFor(objectType, field string) FieldResolver {
	if ec.runtime != nil {
		if r := ec.runtime.FieldResolver(objectType, field); r != nil {
			return r
		}
	}
	return ec.defaultResolver
}

func (ec *ExecutionContext) typeResolverFor(abstractType string) TypeResolver {
	if ec.runtime == nil {
		return nil
	}
	return ec.runtime.TypeResolver(abstractType)
}

// fork returns a context for executing a detached part of the tree, such as
// a deferred field or a subscription event: it records errors separately
// and does not defer again.
func (ec *ExecutionContext) fork() *ExecutionContext {
	c := *ec
	c.errors = newErrorCollector()
	c.deferred = nil
	c.ignoreDefer = true
	return &c
}

// errorCollector is the only structure written by concurrent branches.
type errorCollector struct {
	mu    sync.Mutex
	errs  gqlerror.List
	paths map[string]struct{}
}

func newErrorCollector() *errorCollector {
	return &errorCollector{paths: make(map[string]struct{})}
}

func (c *errorCollector) add(err *gqlerror.Error, path *ResultPath) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if path != nil && !path.IsRoot() {
		key := path.String()
		if _, ok := c.paths[key]; ok {
			return
		}
		c.paths[key] = struct{}{}
	}
	c.errs = append(c.errs, err)
}

// addAll records errs for path, keeping all of them. Resolver envelopes
// and exception handlers may report several errors for one field.
func (c *errorCollector) addAll(errs []*gqlerror.Error, path *ResultPath) {
	if len(errs) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if path != nil && !path.IsRoot() {
		c.paths[path.String()] = struct{}{}
	}
	c.errs = append(c.errs, errs...)
}

func (c *errorCollector) list() gqlerror.List {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(gqlerror.List, len(c.errs))
	copy(out, c.errs)
	return out
}
