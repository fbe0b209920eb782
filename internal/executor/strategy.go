package executor

import (
	"context"

	async "github.com/hanpama/gqlexec/internal/async"
	schema "github.com/hanpama/gqlexec/internal/schema"
)

// ExecutionStrategy executes one selection set for one source object and
// produces the object's response map. The future rejects with a
// *NonNullableFieldWasNullError when a Non-Null field of the object ended up
// null, leaving it to the caller to null out the object.
type ExecutionStrategy interface {
	Execute(ctx context.Context, ec *ExecutionContext, params *StrategyParameters) *async.Future[*ResultMap]
}

// StrategyParameters is the input of an ExecutionStrategy.
type StrategyParameters struct {
	ObjectType   *schema.Type
	Source       any
	LocalContext any
	Fields       *MergedSelectionSet
	StepInfo     *ExecutionStepInfo
}

// ConcurrentStrategy resolves sibling fields concurrently and assembles the
// result in selection order.
type ConcurrentStrategy struct{}

func (ConcurrentStrategy) Execute(ctx context.Context, ec *ExecutionContext, params *StrategyParameters) *async.Future[*ResultMap] {
	keys := make([]string, 0, params.Fields.Len())
	futures := make([]*async.Future[any], 0, params.Fields.Len())
	for _, key := range params.Fields.Keys() {
		if label, ok := params.Fields.Get(key).Deferred(); ok && !ec.ignoreDefer {
			deferField(ec, params, key, label)
			keys = append(keys, key)
			futures = append(futures, async.Resolved[any](nil))
			continue
		}
		f, ok := resolveField(ctx, ec, params, key)
		if !ok {
			continue
		}
		keys = append(keys, key)
		futures = append(futures, f)
	}
	return async.Then(async.Join(ctx, futures), func(values []any, err error) (*ResultMap, error) {
		if err != nil {
			return nil, err
		}
		return assemble(keys, values), nil
	})
}

func assemble(keys []string, values []any) *ResultMap {
	out := NewResultMap(len(keys))
	for i, k := range keys {
		out.Set(k, values[i])
	}
	return out
}
