package executor

import (
	"context"
	"errors"
	"time"

	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	async "github.com/hanpama/gqlexec/internal/async"
	"github.com/hanpama/gqlexec/internal/eventbus"
	"github.com/hanpama/gqlexec/internal/events"
	language "github.com/hanpama/gqlexec/internal/language"
	"github.com/hanpama/gqlexec/internal/reqid"
	schema "github.com/hanpama/gqlexec/internal/schema"
)

// Executor runs operations of one schema. It is safe for concurrent use.
type Executor struct {
	runtime Runtime
	schema  *schema.Schema
	opts    options
}

// NewExecutor returns an executor resolving fields through runtime. A nil
// runtime resolves every field with the default resolver.
func NewExecutor(runtime Runtime, schema *schema.Schema, opts ...Option) *Executor {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.exceptionHandler == nil {
		o.exceptionHandler = SimpleExceptionHandler{Logger: o.logger}
	}
	return &Executor{runtime: runtime, schema: schema, opts: o}
}

// Schema returns the schema the executor runs against.
func (e *Executor) Schema() *schema.Schema { return e.schema }

// ExecutionInput is one request to execute.
type ExecutionInput struct {
	Document      *language.QueryDocument
	OperationName string
	Variables     map[string]any
	Root          any

	// Context is handed to resolvers as Environment.Context.
	Context any

	// LocalContext is the local context of the root fields.
	LocalContext any
}

// ExecuteRequest executes an operation and waits for its result.
func (e *Executor) ExecuteRequest(
	ctx context.Context,
	document *language.QueryDocument,
	operationName string,
	variableValues map[string]any,
	initialValue any,
) *ExecutionResult {
	res, err := e.Execute(ctx, ExecutionInput{
		Document:      document,
		OperationName: operationName,
		Variables:     variableValues,
		Root:          initialValue,
	}).Await(ctx)
	if err != nil {
		return &ExecutionResult{Errors: gqlerror.List{classified(ClassExecutionAborted, "%s", err.Error())}}
	}
	return res
}

// Execute starts an operation. The returned future never rejects: failures
// are reported in the result's errors.
func (e *Executor) Execute(ctx context.Context, in ExecutionInput) *async.Future[*ExecutionResult] {
	ec, rootType, failed := e.prepare(ctx, in)
	if failed != nil {
		return async.Resolved(failed)
	}
	ctx = reqid.WithID(ctx, ec.executionID)

	strategy := ec.queryStrategy
	switch ec.operation.Operation {
	case language.Mutation:
		strategy = ec.mutationStrategy
	case language.Subscription:
		return async.Resolved(errorResult(classified(ClassOperationNotSupported,
			"Subscription operations must be executed with Subscribe.")))
	}

	start := time.Now()
	opType := string(ec.operation.Operation)
	e.opts.logger.Debug("execution started",
		zap.String("executionID", ec.executionID),
		zap.String("operation", ec.operation.Name),
		zap.String("type", opType),
	)
	eventbus.Publish(ctx, ec.bus, events.ExecutionStart{
		ExecutionID:   ec.executionID,
		OperationName: ec.operation.Name,
		OperationType: opType,
	})

	root := newRootStepInfo(rootType)
	fields := CollectFields(ec.collectorParams(rootType), ec.operation.SelectionSet)
	run := strategy.Execute(ctx, ec, &StrategyParameters{
		ObjectType:   rootType,
		Source:       in.Root,
		LocalContext: in.LocalContext,
		Fields:       fields,
		StepInfo:     root,
	})

	return async.Then(run, func(data *ResultMap, err error) (*ExecutionResult, error) {
		res := &ExecutionResult{}
		var nonNull *NonNullableFieldWasNullError
		switch {
		case err == nil:
			res.Data = data
		case errors.As(err, &nonNull):
		default:
			ec.errors.add(classified(ClassExecutionAborted, "%s", err.Error()), nil)
		}
		res.Errors = ec.Errors()
		res.deferred = ec.deferred.drain()

		duration := time.Since(start)
		e.opts.logger.Debug("execution finished",
			zap.String("executionID", ec.executionID),
			zap.String("operation", ec.operation.Name),
			zap.Int("errors", len(res.Errors)),
			zap.Duration("duration", duration),
		)
		if eventbus.HasSubscribers[events.ExecutionFinish](ec.bus) {
			errs := make([]error, len(res.Errors))
			for i, g := range res.Errors {
				errs[i] = g
			}
			eventbus.Publish(ctx, ec.bus, events.ExecutionFinish{
				ExecutionID:   ec.executionID,
				OperationName: ec.operation.Name,
				OperationType: opType,
				Errors:        errs,
				DataIsNull:    res.Data == nil,
				Duration:      duration,
			})
		}
		return res, nil
	})
}

// prepare selects the operation, coerces variables and builds the execution
// context. A non-nil result means execution must not start.
func (e *Executor) prepare(ctx context.Context, in ExecutionInput) (*ExecutionContext, *schema.Type, *ExecutionResult) {
	if in.Document == nil {
		return nil, nil, errorResult(classified(ClassValidation, "No document to execute."))
	}
	operation, err := getOperation(in.Document, in.OperationName)
	if err != nil {
		return nil, nil, errorResult(err)
	}

	variables, err := CoerceVariableValues(e.schema, operation.VariableDefinitions, in.Variables)
	if err != nil {
		return nil, nil, errorResult(toGraphQLError(err, nil, nil))
	}

	rootType, err := e.rootType(operation)
	if err != nil {
		e.opts.logger.Error("operation not supported by schema", zap.Error(err))
		return nil, nil, errorResult(toGraphQLError(err, nil, nil))
	}

	id, ok := reqid.FromContext(ctx)
	if !ok {
		_, id = reqid.NewContext(ctx)
	}

	ec := &ExecutionContext{
		schema:           e.schema,
		document:         in.Document,
		operation:        operation,
		fragments:        in.Document.Fragments,
		variables:        variables,
		root:             in.Root,
		userContext:      in.Context,
		localContext:     in.LocalContext,
		runtime:          e.runtime,
		queryStrategy:    e.opts.queryStrategy,
		mutationStrategy: e.opts.mutationStrategy,
		exceptionHandler: e.opts.exceptionHandler,
		defaultResolver:  e.opts.defaultResolver,
		logger:           e.opts.logger,
		bus:              e.opts.bus,
		executionID:      id,
		errors:           newErrorCollector(),
		deferred:         &deferQueue{},
	}
	if e.opts.maxConcurrentFetches > 0 {
		ec.fetchLimiter = semaphore.NewWeighted(e.opts.maxConcurrentFetches)
	}
	return ec, rootType, nil
}

func (e *Executor) rootType(op *language.OperationDefinition) (*schema.Type, error) {
	var t *schema.Type
	switch op.Operation {
	case language.Query, "":
		t = e.schema.GetQueryType()
	case language.Mutation:
		t = e.schema.GetMutationType()
	case language.Subscription:
		t = e.schema.GetSubscriptionType()
	}
	if t == nil {
		return nil, &MissingRootTypeError{Operation: string(op.Operation), Locations: positionLocations(op.Position)}
	}
	return t, nil
}

// getOperation picks the operation by name, or the only operation when no
// name is given.
func getOperation(document *language.QueryDocument, operationName string) (*language.OperationDefinition, error) {
	if operationName == "" {
		switch len(document.Operations) {
		case 0:
			return nil, classified(ClassValidation, "Must provide an operation.")
		case 1:
			return document.Operations[0], nil
		}
		return nil, classified(ClassValidation, "Must provide operation name if query contains multiple operations.")
	}
	if op := document.Operations.ForName(operationName); op != nil {
		return op, nil
	}
	return nil, classified(ClassValidation, "Unknown operation named '%s'.", operationName)
}

func errorResult(err error) *ExecutionResult {
	var g *gqlerror.Error
	if !errors.As(err, &g) {
		g = gqlerror.WrapPath(nil, err)
	}
	return &ExecutionResult{Errors: gqlerror.List{g}}
}
