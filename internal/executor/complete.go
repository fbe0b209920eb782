package executor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/vektah/gqlparser/v2/gqlerror"

	async "github.com/hanpama/gqlexec/internal/async"
	"github.com/hanpama/gqlexec/internal/eventbus"
	"github.com/hanpama/gqlexec/internal/events"
	schema "github.com/hanpama/gqlexec/internal/schema"
)

// CompleteKind classifies a completed field value.
type CompleteKind string

const (
	KindObject CompleteKind = "OBJECT"
	KindList   CompleteKind = "LIST"
	KindNull   CompleteKind = "NULL"
	KindScalar CompleteKind = "SCALAR"
	KindEnum   CompleteKind = "ENUM"
)

// FieldValueInfo is a field value whose shape is known and whose completed
// value may still be pending.
type FieldValueInfo struct {
	Kind     CompleteKind
	Value    *async.Future[any]
	Elements []FieldValueInfo
}

type fetchedValue struct {
	value        any
	localContext any
}

// resolveField fetches and completes the field under key. ok is false when
// the field contributes no key to the result.
func resolveField(ctx context.Context, ec *ExecutionContext, params *StrategyParameters, key string) (*async.Future[any], bool) {
	field := params.Fields.Get(key)
	path := params.StepInfo.Path().Segment(key)

	if field.Name() == "__typename" {
		return async.Resolved[any](params.ObjectType.Name), true
	}
	def := params.ObjectType.Field(field.Name())
	if def == nil {
		ec.AddError(fmt.Errorf("Cannot query field \"%s\" on type \"%s\".", field.Name(), params.ObjectType.Name), path, field)
		return nil, false
	}

	args, err := ArgumentValues(ec.schema, def.Arguments, field.Arguments(), ec.variables)
	step := params.StepInfo.newFieldStepInfo(params.ObjectType, def, field, path, args)
	if err != nil {
		return fieldError(ec, step, err), true
	}

	return async.Go(func() (any, error) {
		fetched := fetchField(ctx, ec, params, step)
		info := completeField(ctx, ec, step, fetched)
		return info.Value.Await(ctx)
	}), true
}

func fetchField(ctx context.Context, ec *ExecutionContext, params *StrategyParameters, step *ExecutionStepInfo) fetchedValue {
	def := step.FieldDefinition()
	env := &Environment{
		Source:          params.Source,
		Arguments:       step.Arguments(),
		LocalContext:    params.LocalContext,
		Context:         ec.userContext,
		Root:            ec.root,
		FieldDefinition: def,
		Field:           step.Field(),
		FieldType:       def.Type,
		ParentType:      params.ObjectType,
		StepInfo:        step,
		Schema:          ec.schema,
		Operation:       ec.operation,
		Fragments:       ec.fragments,
		Variables:       ec.variables,
		ExecutionID:     ec.executionID,
	}
	env.selection = newSelectionSetView(ec.collectorParams(nil), def.Type, step.Field())

	traced := eventbus.HasSubscribers[events.FieldFetchStart](ec.bus) || eventbus.HasSubscribers[events.FieldFetchFinish](ec.bus)
	var start time.Time
	if traced {
		start = time.Now()
		eventbus.Publish(ctx, ec.bus, events.FieldFetchStart{
			ExecutionID: ec.executionID,
			Path:        step.Path().String(),
			ParentType:  params.ObjectType.Name,
			Field:       def.Name,
		})
	}

	v, err := invokeResolver(ctx, ec, ec.fieldResolverFor(params.ObjectType.Name, def.Name), env)

	if traced {
		eventbus.Publish(ctx, ec.bus, events.FieldFetchFinish{
			ExecutionID: ec.executionID,
			Path:        step.Path().String(),
			ParentType:  params.ObjectType.Name,
			Field:       def.Name,
			Err:         err,
			Duration:    time.Since(start),
		})
	}

	if err != nil {
		errs := ec.exceptionHandler.HandleException(ctx, &ExceptionParams{
			Err:         err,
			Path:        step.Path(),
			Field:       step.Field(),
			StepInfo:    step,
			Environment: env,
		})
		ec.errors.addAll(errs, step.Path())
		return fetchedValue{localContext: params.LocalContext}
	}
	return unwrapFetched(ec, step, v, params.LocalContext)
}

// invokeResolver calls r, holding a fetch slot only while the resolver
// itself runs, then awaits an asynchronous result.
func invokeResolver(ctx context.Context, ec *ExecutionContext, r FieldResolver, env *Environment) (any, error) {
	if ec.fetchLimiter != nil {
		if err := ec.fetchLimiter.Acquire(ctx, 1); err != nil {
			return nil, err
		}
	}
	v, err := async.Try(func() (any, error) { return r.Resolve(ctx, env) })
	if ec.fetchLimiter != nil {
		ec.fetchLimiter.Release(1)
	}
	if err != nil {
		return nil, err
	}
	if a, ok := v.(Awaitable); ok && !isNullish(v) {
		return a.Await(ctx)
	}
	return v, nil
}

// unwrapFetched opens a FieldResult envelope and unboxes the data.
func unwrapFetched(ec *ExecutionContext, step *ExecutionStepInfo, v any, parentLocal any) fetchedValue {
	local := parentLocal
	var errs []error
	switch r := v.(type) {
	case FieldResult:
		v, errs = r.Data, r.Errors
		if r.LocalContext != nil {
			local = r.LocalContext
		}
	case *FieldResult:
		v = nil
		if r != nil {
			v, errs = r.Data, r.Errors
			if r.LocalContext != nil {
				local = r.LocalContext
			}
		}
	}
	v, err := unbox(v)
	if err != nil {
		errs = append(errs[:len(errs):len(errs)], err)
	}
	if len(errs) > 0 {
		list := make([]*gqlerror.Error, 0, len(errs))
		for _, err := range errs {
			list = append(list, toGraphQLError(err, step.Path(), step.Field()))
		}
		ec.errors.addAll(list, step.Path())
	}
	return fetchedValue{value: v, localContext: local}
}

func completeField(ctx context.Context, ec *ExecutionContext, step *ExecutionStepInfo, fetched fetchedValue) FieldValueInfo {
	info := completeValue(ctx, ec, step, fetched.value, fetched.localContext)
	if eventbus.HasSubscribers[events.FieldComplete](ec.bus) {
		eventbus.Publish(ctx, ec.bus, events.FieldComplete{
			ExecutionID: ec.executionID,
			Path:        step.Path().String(),
			Kind:        string(info.Kind),
			Elements:    len(info.Elements),
		})
	}
	return info
}

// completeValue shapes value according to the type of step.
func completeValue(ctx context.Context, ec *ExecutionContext, step *ExecutionStepInfo, value any, local any) FieldValueInfo {
	if isNullish(value) {
		return FieldValueInfo{Kind: KindNull, Value: completeNull(ec, step)}
	}
	t := step.UnwrappedNonNullType()
	if t.IsList() {
		return completeList(ctx, ec, step, value, local)
	}
	named := ec.schema.Type(t.GetNamedType())
	if named == nil {
		err := fmt.Errorf("unknown type %q", t.GetNamedType())
		return FieldValueInfo{Kind: KindNull, Value: fieldError(ec, step, err)}
	}
	switch named.Kind {
	case schema.TypeKindScalar:
		return FieldValueInfo{Kind: KindScalar, Value: completeScalar(ec, step, named, value)}
	case schema.TypeKindEnum:
		return FieldValueInfo{Kind: KindEnum, Value: completeEnum(ec, step, named, value)}
	case schema.TypeKindObject:
		return FieldValueInfo{Kind: KindObject, Value: completeObject(ctx, ec, step, named, value, local)}
	case schema.TypeKindInterface, schema.TypeKindUnion:
		obj, err := resolveType(ctx, ec, named, value, step, local)
		if err != nil {
			return FieldValueInfo{Kind: KindNull, Value: fieldError(ec, step, err)}
		}
		return FieldValueInfo{Kind: KindObject, Value: completeObject(ctx, ec, step.withResolvedType(obj), obj, value, local)}
	}
	err := fmt.Errorf("type %s cannot be used as an output type", named.Name)
	return FieldValueInfo{Kind: KindNull, Value: fieldError(ec, step, err)}
}

// completeNull turns a null into a Non-Null violation when the step does
// not allow null. The violation is recorded here, at its origin.
func completeNull(ec *ExecutionContext, step *ExecutionStepInfo) *async.Future[any] {
	if !step.IsNonNullType() {
		return async.Resolved[any](nil)
	}
	nonNull := newNonNullError(step)
	ec.AddError(nonNull, step.Path(), step.Field())
	return async.Rejected[any](nonNull)
}

// fieldError records err for the step and completes it as null.
func fieldError(ec *ExecutionContext, step *ExecutionStepInfo, err error) *async.Future[any] {
	ec.AddError(err, step.Path(), step.Field())
	return completeNull(ec, step)
}

// absorb decides what a container does with a failed child: a nullable
// container becomes null, anything else passes the failure up.
func absorb(step *ExecutionStepInfo, err error) (any, error) {
	var nonNull *NonNullableFieldWasNullError
	if errors.As(err, &nonNull) && !step.IsNonNullType() {
		return nil, nil
	}
	return nil, err
}

func completeList(ctx context.Context, ec *ExecutionContext, step *ExecutionStepInfo, value any, local any) FieldValueInfo {
	items, ok := listItems(value)
	if !ok {
		err := &TypeMismatchError{Path: step.Path(), Expected: step.Type(), Value: value}
		return FieldValueInfo{Kind: KindNull, Value: fieldError(ec, step, err)}
	}
	elemType := step.UnwrappedNonNullType().OfType
	elements := make([]FieldValueInfo, len(items))
	futures := make([]*async.Future[any], len(items))
	for i, item := range items {
		elemStep := step.newListElementStepInfo(i, elemType)
		if v, err := unbox(item); err != nil {
			elements[i] = FieldValueInfo{Kind: KindNull, Value: fieldError(ec, elemStep, err)}
		} else {
			elements[i] = completeValue(ctx, ec, elemStep, v, local)
		}
		futures[i] = elements[i].Value
	}
	joined := async.Then(async.Join(ctx, futures), func(values []any, err error) (any, error) {
		if err != nil {
			return absorb(step, err)
		}
		return values, nil
	})
	return FieldValueInfo{Kind: KindList, Value: joined, Elements: elements}
}

func completeScalar(ec *ExecutionContext, step *ExecutionStepInfo, t *schema.Type, value any) *async.Future[any] {
	c := coercingFor(t)
	out, err := async.Try(func() (any, error) { return c.Serialize(value) })
	if err != nil {
		return fieldError(ec, step, &SerializationError{TypeName: t.Name, Err: err})
	}
	if isNullish(out) || isNaN(out) {
		return completeNull(ec, step)
	}
	return async.Resolved(out)
}

func isNaN(v any) bool {
	switch f := v.(type) {
	case float64:
		return math.IsNaN(f)
	case float32:
		return math.IsNaN(float64(f))
	}
	return false
}

// completeEnum maps a runtime value back to the enum value name. A string
// equal to a value name is accepted as well.
func completeEnum(ec *ExecutionContext, step *ExecutionStepInfo, t *schema.Type, value any) *async.Future[any] {
	for _, ev := range t.EnumValues {
		if ev.Value != nil && reflect.DeepEqual(ev.Value, value) {
			return async.Resolved[any](ev.Name)
		}
	}
	name := value
	if s, ok := value.(fmt.Stringer); ok {
		name = s.String()
	}
	if s, ok := name.(string); ok {
		if ev := t.EnumValue(s); ev != nil {
			return async.Resolved[any](ev.Name)
		}
	}
	err := &SerializationError{TypeName: t.Name, Err: fmt.Errorf("invalid value %s", inspect(value))}
	return fieldError(ec, step, err)
}

func completeObject(ctx context.Context, ec *ExecutionContext, step *ExecutionStepInfo, obj *schema.Type, value any, local any) *async.Future[any] {
	fields := CollectSubfields(ec.collectorParams(obj), step.Field())
	res := ec.queryStrategy.Execute(ctx, ec, &StrategyParameters{
		ObjectType:   obj,
		Source:       value,
		LocalContext: local,
		Fields:       fields,
		StepInfo:     step,
	})
	return async.Then(res, func(m *ResultMap, err error) (any, error) {
		if err != nil {
			return absorb(step, err)
		}
		return m, nil
	})
}
