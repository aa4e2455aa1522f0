// Package future provides a settle-once handle to an asynchronous result.
// A Future is either pending or settled with a value or an error; every
// waiter observes the same outcome.
package future

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrPanic marks a rejection caused by a panic inside the computation.
var ErrPanic = errors.New("future: computation panicked")

// Future is a pending-or-settled result of type T.
type Future[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
	err  error
}

// New returns a pending future and its settle function. Only the first
// settle call has an effect.
func New[T any]() (*Future[T], func(T, error)) {
	f := &Future[T]{done: make(chan struct{})}
	return f, f.settle
}

// Go runs fn on a new goroutine and settles the returned future with its
// result. A panic in fn rejects the future with an error wrapping ErrPanic.
func Go[T any](fn func() (T, error)) *Future[T] {
	f, settle := New[T]()
	go Run(settle, fn)
	return f
}

// Run calls fn in the current goroutine and hands its outcome to settle,
// converting a panic into an ErrPanic rejection.
func Run[T any](settle func(T, error), fn func() (T, error)) {
	var (
		v   T
		err error
	)
	defer func() {
		if r := recover(); r != nil {
			var zero T
			settle(zero, fmt.Errorf("%w: %v", ErrPanic, r))
			return
		}
		settle(v, err)
	}()
	v, err = fn()
}

// Resolved returns a future already settled with v.
func Resolved[T any](v T) *Future[T] {
	f, settle := New[T]()
	settle(v, nil)
	return f
}

// Rejected returns a future already settled with err.
func Rejected[T any](err error) *Future[T] {
	f, settle := New[T]()
	var zero T
	settle(zero, err)
	return f
}

func (f *Future[T]) settle(v T, err error) {
	f.once.Do(func() {
		f.val, f.err = v, err
		close(f.done)
	})
}

// Done is closed once the future settles.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Settled reports whether the future has a result.
func (f *Future[T]) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Await blocks until the future settles or ctx is done. Giving up on ctx
// does not affect the computation or other waiters.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Peek returns the outcome without blocking; ok is false while pending.
func (f *Future[T]) Peek() (v T, err error, ok bool) {
	if !f.Settled() {
		return v, nil, false
	}
	return f.val, f.err, true
}
