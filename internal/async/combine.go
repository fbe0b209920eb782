package async

import "context"

// Then returns a future settled with fn applied to the outcome of f. fn runs
// inline when f has already settled, otherwise on a goroutine waiting for f.
func Then[T, U any](f *Future[T], fn func(T, error) (U, error)) *Future[U] {
	if v, err, ok := f.Result(); ok {
		out := newFuture[U]()
		out.complete(Try(func() (U, error) { return fn(v, err) }))
		return out
	}
	return Go(func() (U, error) {
		<-f.done
		return fn(f.val, f.err)
	})
}

// Join waits for every future to settle, even after a rejection, and
// returns the values in order. The returned future rejects with the error of
// the lowest-indexed rejected future, so the outcome does not depend on
// completion order.
func Join[T any](ctx context.Context, fs []*Future[T]) *Future[[]T] {
	if settled, ok := allSettled(fs); ok {
		return settled
	}
	return Go(func() ([]T, error) {
		out := make([]T, len(fs))
		var first error
		for i, f := range fs {
			v, err := f.Await(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				if first == nil {
					first = err
				}
				continue
			}
			out[i] = v
		}
		if first != nil {
			return nil, first
		}
		return out, nil
	})
}

// Serially calls fn for each item in order, starting item i+1 only after the
// future returned for item i has settled. A rejection stops the sequence.
func Serially[T, U any](ctx context.Context, items []T, fn func(int, T) *Future[U]) *Future[[]U] {
	return Go(func() ([]U, error) {
		out := make([]U, len(items))
		for i, item := range items {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			v, err := fn(i, item).Await(ctx)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	})
}

// allSettled resolves fan-in synchronously when nothing is pending, which is
// the common case for leaf-only selection sets.
func allSettled[T any](fs []*Future[T]) (*Future[[]T], bool) {
	for _, f := range fs {
		if _, _, ok := f.Result(); !ok {
			return nil, false
		}
	}
	out := make([]T, len(fs))
	for i, f := range fs {
		if f.err != nil {
			return Rejected[[]T](f.err), true
		}
		out[i] = f.val
	}
	return Resolved(out), true
}
