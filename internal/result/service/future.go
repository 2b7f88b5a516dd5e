package service

import (
	"context"

	appErr "judgeresult/pkg/errors"
)

// Future is the pending answer of an asynchronous query.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func failedFuture[T any](err error) *Future[T] {
	f := newFuture[T]()
	f.err = err
	close(f.done)
	return f
}

// Done is closed once the answer is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the answer is available or ctx is done.
// Giving up on ctx does not cancel the underlying query.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, appErr.Wrapf(ctx.Err(), appErr.Timeout, "await result: %v", ctx.Err())
	}
}
