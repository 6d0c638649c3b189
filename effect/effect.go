// Package effect models the capability an Eval episode step runs against.
//
// canoe imposes just enough on the carrier: sequential composition,
// error raising, error recovery, and a way to delay for a duration.
// core/actions.go's Action/Interpreter split inspired
// the shape (context in, result-or-error out) but that split is for
// swappable *action sources*; canoe's capability is a single composable
// type instead, since Eval's effect is already a Go closure, not a
// compiled-from-elsewhere script (scripted effects get their own seam in
// package script).
package effect

import (
	"context"
	"time"
)

// IO is a deferred, composable computation. Running it may block, fail,
// or suspend on ctx; it is never retried automatically.
type IO func(ctx context.Context) (interface{}, error)

// Pure returns an IO that succeeds immediately with a, touching nothing.
func Pure(a interface{}) IO {
	return func(ctx context.Context) (interface{}, error) {
		return a, nil
	}
}

// Fail returns an IO that always fails with err.
func Fail(err error) IO {
	return func(ctx context.Context) (interface{}, error) {
		return nil, err
	}
}

// FlatMap sequences io, then feeds its result to f to get the next IO.
// If io fails, f never runs and the error propagates.
func (io IO) FlatMap(f func(interface{}) IO) IO {
	return func(ctx context.Context) (interface{}, error) {
		v, err := io(ctx)
		if err != nil {
			return nil, err
		}
		return f(v)(ctx)
	}
}

// Map transforms a successful result without the ability to fail or
// suspend further; equivalent to FlatMap(io, func(v) { return Pure(f(v)) }).
func (io IO) Map(f func(interface{}) interface{}) IO {
	return io.FlatMap(func(v interface{}) IO {
		return Pure(f(v))
	})
}

// HandleErrorWith recovers from a failed io by running h with the error.
// A successful io is returned untouched.
func (io IO) HandleErrorWith(h func(error) IO) IO {
	return func(ctx context.Context) (interface{}, error) {
		v, err := io(ctx)
		if err == nil {
			return v, nil
		}
		return h(err)(ctx)
	}
}

// Attempt turns a failure into a successful Result value instead of
// propagating the error.
func (io IO) Attempt() IO {
	return func(ctx context.Context) (interface{}, error) {
		v, err := io(ctx)
		if err != nil {
			return Result{Err: err}, nil
		}
		return Result{Value: v}, nil
	}
}

// Result is the value an Attempt produces: either an error or a value,
// never both.
type Result struct {
	Err   error
	Value interface{}
}

// Sleep returns an IO that blocks for d or until ctx is done, whichever
// comes first. A context cancellation is reported as the IO's error.
func Sleep(d time.Duration) IO {
	return func(ctx context.Context) (interface{}, error) {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Run executes io, a small convenience so callers don't need to remember
// the funcion-call-with-ctx shape everywhere.
func Run(ctx context.Context, io IO) (interface{}, error) {
	if io == nil {
		return nil, nil
	}
	return io(ctx)
}
