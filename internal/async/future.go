// Package async provides the small set of future combinators the executor is
// built on: goroutine-backed futures, fan-in of many futures with or without
// short-circuiting, continuation, and sequential evaluation.
//
// A Future settles exactly once, with either a value or an error. Waiting is
// always bounded by a context; settling never is.
package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
)

// Future is the eventual result of an asynchronous computation.
type Future[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// complete settles f. Later calls are ignored.
func (f *Future[T]) complete(v T, err error) {
	f.once.Do(func() {
		f.val, f.err = v, err
		close(f.done)
	})
}

// NewPromise returns an unsettled future and the function that settles it.
func NewPromise[T any]() (*Future[T], func(T, error)) {
	f := newFuture[T]()
	return f, f.complete
}

// Resolved returns a future already settled with v.
func Resolved[T any](v T) *Future[T] {
	f := newFuture[T]()
	f.complete(v, nil)
	return f
}

// Rejected returns a future already settled with err.
func Rejected[T any](err error) *Future[T] {
	f := newFuture[T]()
	var zero T
	f.complete(zero, err)
	return f
}

// Go runs fn in its own goroutine. A panic in fn rejects the future with a
// *PanicError instead of crashing the process.
func Go[T any](fn func() (T, error)) *Future[T] {
	f := newFuture[T]()
	go func() {
		v, err := Try(fn)
		f.complete(v, err)
	}()
	return f
}

// Try calls fn on the current goroutine, converting a panic into a *PanicError.
func Try[T any](fn func() (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			v, err = zero, &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}

// Done is closed once f has settled.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Await blocks until f settles or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	default:
	}
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result reports the settled value without blocking. ok is false while the
// future is pending.
func (f *Future[T]) Result() (v T, err error, ok bool) {
	select {
	case <-f.done:
		return f.val, f.err, true
	default:
		return v, nil, false
	}
}

// PanicError carries a value recovered from a panicking computation.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// Unwrap exposes a panicked error value to errors.Is and errors.As.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
