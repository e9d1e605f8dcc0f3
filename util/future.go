package util

import (
	"context"
	"fmt"
	"sync"
)

/*
Future is a single-assignment container for the result of an asynchronous
operation. Producers resolve it exactly once with either Complete or Fail;
later resolutions are ignored. Consumers either select on Done or block in
Wait.
*/

////////////////////////////////////////////////////////////////////////////////

// Future is the result of an asynchronous operation.
type Future[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

// NewFuture returns an unresolved future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Complete resolves the future with a value. The first resolution wins.
func (f *Future[T]) Complete(value T) {
	f.once.Do(func() {
		f.value = value
		close(f.done)
	})
}

// Fail resolves the future with an error. The first resolution wins.
func (f *Future[T]) Fail(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done returns a channel that is closed when the future has resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the future resolves or the context is canceled, whichever
// comes first. It does not cancel the underlying operation.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var value T
		return value, fmt.Errorf("context error: %w", ctx.Err())
	}
}
