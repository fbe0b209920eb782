package executor

import (
	"context"
	"errors"
	"reflect"

	"github.com/vektah/gqlparser/v2/gqlerror"

	language "github.com/hanpama/gqlexec/internal/language"
)

// Subscribe starts a subscription operation. The resolver of its single root
// field returns the source stream, a receive channel of any element type.
// Every event is completed as the value of that field and delivered as its
// own result. The returned channel is closed when the source is closed or
// ctx ends.
//
// Errors that prevent the subscription from starting are returned as a
// gqlerror.List.
func (e *Executor) Subscribe(ctx context.Context, in ExecutionInput) (<-chan *ExecutionResult, error) {
	ec, rootType, failed := e.prepare(ctx, in)
	if failed != nil {
		return nil, failed.Errors
	}
	if ec.operation.Operation != language.Subscription {
		return nil, gqlerror.List{classified(ClassOperationNotSupported, "Subscribe requires a subscription operation.")}
	}

	fields := CollectFields(ec.collectorParams(rootType), ec.operation.SelectionSet)
	if fields.Len() != 1 {
		return nil, gqlerror.List{classified(ClassValidation, "Subscription must select only one top level field.")}
	}
	key := fields.Keys()[0]
	field := fields.Get(key)
	def := rootType.Field(field.Name())
	if def == nil {
		return nil, gqlerror.List{classified(ClassValidation, "Cannot query field \"%s\" on type \"%s\".", field.Name(), rootType.Name)}
	}

	root := newRootStepInfo(rootType)
	path := RootPath().Segment(key)
	args, err := ArgumentValues(ec.schema, def.Arguments, field.Arguments(), ec.variables)
	if err != nil {
		return nil, gqlerror.List{toGraphQLError(err, path, field)}
	}
	step := root.newFieldStepInfo(rootType, def, field, path, args)
	params := &StrategyParameters{
		ObjectType:   rootType,
		Source:       in.Root,
		LocalContext: in.LocalContext,
		Fields:       fields,
		StepInfo:     root,
	}

	fetched := fetchField(ctx, ec, params, step)
	if errs := ec.Errors(); len(errs) > 0 {
		return nil, errs
	}
	stream, ok := sourceStream(fetched.value)
	if !ok {
		return nil, gqlerror.List{toGraphQLError(
			&TypeMismatchError{Path: path, Expected: def.Type, Value: fetched.value}, path, field)}
	}

	out := make(chan *ExecutionResult)
	go func() {
		defer close(out)
		for {
			event, ok := stream.next(ctx)
			if !ok {
				return
			}
			res := e.executeEvent(ctx, ec, step, key, event, fetched.localContext)
			select {
			case out <- res:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// executeEvent completes one event as the value of the subscription field.
func (e *Executor) executeEvent(ctx context.Context, ec *ExecutionContext, step *ExecutionStepInfo, key string, event any, local any) *ExecutionResult {
	fec := ec.fork()
	fec.queryStrategy = e.opts.subscriptionStrategy

	info := completeField(ctx, fec, step, unwrapFetched(fec, step, event, local))
	v, err := info.Value.Await(ctx)

	res := &ExecutionResult{}
	var nonNull *NonNullableFieldWasNullError
	switch {
	case err == nil:
		data := NewResultMap(1)
		data.Set(key, v)
		res.Data = data
	case errors.As(err, &nonNull):
	default:
		fec.errors.add(classified(ClassExecutionAborted, "%s", err.Error()), nil)
	}
	res.Errors = fec.Errors()
	return res
}

type channelStream struct {
	ch reflect.Value
}

func sourceStream(v any) (*channelStream, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Chan || rv.Type().ChanDir()&reflect.RecvDir == 0 {
		return nil, false
	}
	return &channelStream{ch: rv}, true
}

// next receives the next event. ok is false once the channel is closed or
// ctx is done.
func (s *channelStream) next(ctx context.Context) (any, bool) {
	chosen, v, ok := reflect.Select([]reflect.SelectCase{
		{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())},
		{Dir: reflect.SelectRecv, Chan: s.ch},
	})
	if chosen == 0 || !ok {
		return nil, false
	}
	return v.Interface(), true
}
