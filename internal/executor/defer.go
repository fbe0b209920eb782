package executor

import (
	"context"
	"errors"
	"sync"
)

// DeferredCall is a field whose execution was postponed by @defer.
type DeferredCall struct {
	Path  *ResultPath
	Label string

	run func(ctx context.Context) *DeferredPayload
}

type deferQueue struct {
	mu    sync.Mutex
	calls []*DeferredCall
}

func (q *deferQueue) enqueue(c *DeferredCall) {
	q.mu.Lock()
	q.calls = append(q.calls, c)
	q.mu.Unlock()
}

func (q *deferQueue) drain() []*DeferredCall {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.calls
	q.calls = nil
	return out
}

// deferField queues the field at key for out-of-band execution. The field
// contributes null to its parent in the meantime.
func deferField(ec *ExecutionContext, params *StrategyParameters, key string, label string) {
	field := params.Fields.Get(key)
	path := params.StepInfo.Path().Segment(key)
	ec.deferred.enqueue(&DeferredCall{
		Path:  path,
		Label: label,
		run: func(ctx context.Context) *DeferredPayload {
			fec := ec.fork()
			single := newMergedSelectionSet()
			single.fields[key] = field
			single.keys = []string{key}
			p := *params
			p.Fields = single

			payload := &DeferredPayload{Label: label, Path: path.ToList()}
			f, ok := resolveField(ctx, fec, &p, key)
			if ok {
				v, err := f.Await(ctx)
				var nonNull *NonNullableFieldWasNullError
				switch {
				case err == nil:
					payload.Data = Plain(v)
				case errors.As(err, &nonNull):
				default:
					fec.AddError(err, path, field)
				}
			}
			payload.Errors = fec.Errors()
			return payload
		},
	})
}
