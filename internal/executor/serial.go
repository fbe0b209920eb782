package executor

import (
	"context"

	async "github.com/hanpama/gqlexec/internal/async"
)

// SerialStrategy resolves fields one after another: a field starts only
// after the previous field's whole subtree has completed. It is used for the
// root fields of a mutation.
type SerialStrategy struct{}

func (SerialStrategy) Execute(ctx context.Context, ec *ExecutionContext, params *StrategyParameters) *async.Future[*ResultMap] {
	var keys []string
	run := async.Serially(ctx, params.Fields.Keys(), func(_ int, key string) *async.Future[any] {
		f, ok := resolveField(ctx, ec, params, key)
		if !ok {
			return async.Resolved[any](omitted{})
		}
		keys = append(keys, key)
		return f
	})
	return async.Then(run, func(values []any, err error) (*ResultMap, error) {
		if err != nil {
			return nil, err
		}
		kept := values[:0]
		for _, v := range values {
			if _, skip := v.(omitted); !skip {
				kept = append(kept, v)
			}
		}
		return assemble(keys, kept), nil
	})
}

// omitted marks a key that contributes nothing to the result.
type omitted struct{}
