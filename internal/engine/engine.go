// Package engine is the request-level entry point: it turns query text into
// a validated document, caches it, and hands it to the executor.
package engine

import (
	"context"
	"fmt"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.uber.org/zap"

	executor "github.com/hanpama/gqlexec/internal/executor"
	language "github.com/hanpama/gqlexec/internal/language"
	schema "github.com/hanpama/gqlexec/internal/schema"
)

// Request is one GraphQL request as received from a client.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`

	Root    any `json:"-"`
	Context any `json:"-"`
}

// Engine executes requests against one schema. It is safe for concurrent use.
type Engine struct {
	exec     *executor.Executor
	schema   *schema.Schema
	cache    *lru.Cache // uint64 -> *preparedDocument; nil disables caching
	validate bool
	logger   *zap.Logger
}

type preparedDocument struct {
	query  string
	doc    *language.QueryDocument
	errors gqlerror.List
}

func New(sch *schema.Schema, rt executor.Runtime, opts ...Option) (*Engine, error) {
	if sch == nil {
		return nil, fmt.Errorf("engine: nil schema")
	}
	o := defaultOptions()
	for _, f := range opts {
		f(&o)
	}
	e := &Engine{
		schema:   sch,
		validate: o.validate && sch.AST != nil,
		logger:   o.logger,
	}
	if o.cacheSize > 0 {
		c, err := lru.New(o.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		e.cache = c
	}
	execOpts := append([]executor.Option{executor.WithLogger(o.logger)}, o.executorOptions...)
	e.exec = executor.NewExecutor(rt, sch, execOpts...)
	return e, nil
}

// Executor returns the underlying executor.
func (e *Engine) Executor() *executor.Executor { return e.exec }

// Prepare parses and, when the schema carries its source AST, validates
// query. Results are cached by query text.
func (e *Engine) Prepare(query string) (*language.QueryDocument, gqlerror.List) {
	var key uint64
	if e.cache != nil {
		key = xxhash.Sum64String(query)
		if v, ok := e.cache.Get(key); ok {
			// A hash collision is treated as a miss and overwritten.
			if p := v.(*preparedDocument); p.query == query {
				return p.doc, copyErrors(p.errors)
			}
		}
	}

	p := &preparedDocument{query: query}
	if e.validate {
		p.doc, p.errors = language.LoadQuery(e.schema.AST, query)
	} else {
		doc, err := language.ParseQuery(query)
		if err != nil {
			p.errors = gqlerror.List{asGraphQLError(err)}
		}
		p.doc = doc
	}
	for _, err := range p.errors {
		if err.Extensions == nil {
			err.Extensions = map[string]any{}
		}
		err.Extensions["classification"] = executor.ClassValidation
	}
	if len(p.errors) > 0 {
		p.doc = nil
		e.logger.Debug("document rejected", zap.Int("errors", len(p.errors)))
	}
	if e.cache != nil {
		e.cache.Add(key, p)
	}
	return p.doc, copyErrors(p.errors)
}

// copyErrors returns errors the caller may mutate without touching the cache.
func copyErrors(errs gqlerror.List) gqlerror.List {
	if len(errs) == 0 {
		return nil
	}
	out := make(gqlerror.List, len(errs))
	for i, err := range errs {
		c := *err
		c.Locations = append([]gqlerror.Location(nil), err.Locations...)
		c.Path = append(ast.Path(nil), err.Path...)
		if err.Extensions != nil {
			c.Extensions = make(map[string]any, len(err.Extensions))
			for k, v := range err.Extensions {
				c.Extensions[k] = v
			}
		}
		out[i] = &c
	}
	return out
}

// Execute runs a query or mutation and waits for its result. Parse and
// validation failures are reported as errors with no data.
func (e *Engine) Execute(ctx context.Context, req Request) *executor.ExecutionResult {
	doc, errs := e.Prepare(req.Query)
	if len(errs) > 0 {
		return &executor.ExecutionResult{Errors: errs}
	}
	res, err := e.exec.Execute(ctx, e.input(doc, req)).Await(ctx)
	if err != nil {
		return &executor.ExecutionResult{Errors: gqlerror.List{{
			Message:    err.Error(),
			Extensions: map[string]any{"classification": executor.ClassExecutionAborted},
		}}}
	}
	return res
}

// Subscribe starts a subscription. See executor.Executor.Subscribe.
func (e *Engine) Subscribe(ctx context.Context, req Request) (<-chan *executor.ExecutionResult, error) {
	doc, errs := e.Prepare(req.Query)
	if len(errs) > 0 {
		return nil, errs
	}
	return e.exec.Subscribe(ctx, e.input(doc, req))
}

func (e *Engine) input(doc *language.QueryDocument, req Request) executor.ExecutionInput {
	return executor.ExecutionInput{
		Document:      doc,
		OperationName: req.OperationName,
		Variables:     req.Variables,
		Root:          req.Root,
		Context:       req.Context,
	}
}

func asGraphQLError(err error) *gqlerror.Error {
	if g, ok := err.(*gqlerror.Error); ok {
		return g
	}
	return gqlerror.WrapPath(nil, err)
}
