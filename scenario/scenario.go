// Package scenario is the user-facing combinator algebra wrapping the
// episode.Episode IR. It wraps each IR value in a generic, statically
// typed Scenario[A], erasing to episode's untyped interface{} at the
// seam and re-asserting the type back on a successful match.
//
// Combinators that preserve A (HandleErrorWith, Tolerate*, StopOn,
// StopWith, Within, MapK, Describe) are methods. Combinators that change
// the type parameter (FlatMap, Map, Then, Attempt) are package-level
// generic functions instead, because Go does not allow a method to
// introduce a type parameter beyond its receiver's (see DESIGN.md). This
// mirrors crew/machine.go's thin-wrapper-over-a-core-type shape (Machine
// wraps core.Specter + core.State; Scenario[A] wraps episode.Episode).
package scenario

import (
	"context"
	"time"

	"github.com/mikabele/canoe/effect"
	"github.com/mikabele/canoe/episode"
	"github.com/mikabele/canoe/event"
	"github.com/mikabele/canoe/matcher"
	"github.com/mikabele/canoe/matcher/stream"
	"github.com/mikabele/canoe/selector"
)

// Scenario wraps an Episode, carrying the value type A it yields on a
// successful match.
type Scenario[A any] struct {
	ep  episode.Episode
	doc string
}

// Episode returns the underlying, type-erased IR value. Collaborators
// that drive matching directly (package demux) use this; most callers
// should use Run or RunRepeating instead.
func (s Scenario[A]) Episode() episode.Episode { return s.ep }

// Describe attaches documentation to this scenario, readable with Doc.
// Package render does not read it; it renders a script.Document's Doc
// fields instead.
func (s Scenario[A]) Describe(doc string) Scenario[A] {
	s.doc = doc
	return s
}

// Doc returns whatever Describe attached, or "".
func (s Scenario[A]) Doc() string { return s.doc }

// Pure succeeds immediately with a, consuming no input.
func Pure[A any](a A) Scenario[A] {
	return Scenario[A]{ep: episode.Pure{Value: a}}
}

// Eval runs io and succeeds with its result, consuming no input. io's
// result must be an A; a type mismatch surfaces as a panic at match
// time, the same way a bad type assertion would anywhere else (callers
// are expected to construct io from a function that already returns A
// boxed as interface{}).
func Eval[A any](io effect.IO) Scenario[A] {
	return Scenario[A]{ep: episode.Eval{Effect: io}}
}

// RaiseError fails immediately with err, consuming no input.
func RaiseError[A any](err error) Scenario[A] {
	return Scenario[A]{ep: episode.RaiseError{Err: err}}
}

// Done is a Scenario that succeeds immediately with no useful value.
func Done() Scenario[struct{}] {
	return Pure(struct{}{})
}

// Expect consumes the next input event, succeeding with the event
// itself if pred holds.
func Expect(pred func(event.Messageable) bool) Scenario[event.Messageable] {
	return Scenario[event.Messageable]{ep: episode.Next{Predicate: pred}}
}

// ExpectAs consumes the next input event using p's IsDefined test, then
// projects it through p.Apply (the isDefined/apply partial-function
// pattern lifted to a Scenario).
func ExpectAs[T any](p selector.Partial[T]) Scenario[T] {
	return Map(Expect(p.IsDefined), func(ev event.Messageable) T {
		return p.Apply(ev)
	})
}

// FlatMap sequences prev, feeding its result to k to decide what comes
// next. A package-level function (not a method) because it changes the
// value type from A to B.
func FlatMap[A, B any](prev Scenario[A], k func(A) Scenario[B]) Scenario[B] {
	return Scenario[B]{ep: episode.Bind{
		Prev: prev.ep,
		K: func(v interface{}) episode.Episode {
			return k(v.(A)).ep
		},
	}}
}

// Map transforms prev's result with f. Equivalent to
// FlatMap(prev, func(a A) Scenario[B] { return Pure(f(a)) }), but kept as
// its own Episode constructor (episode.Map) to avoid the extra
// allocation on the common case.
func Map[A, B any](prev Scenario[A], f func(A) B) Scenario[B] {
	return Scenario[B]{ep: episode.Map{
		Prev: prev.ep,
		F: func(v interface{}) interface{} {
			return f(v.(A))
		},
	}}
}

// Then sequences prev and next, discarding prev's result.
// prev.Then(next) reads as "prev >> next".
func Then[A, B any](prev Scenario[A], next Scenario[B]) Scenario[B] {
	return FlatMap(prev, func(A) Scenario[B] { return next })
}

// Result is what Attempt produces: either Err set (a failure was
// caught) or Value set (prev succeeded), never both.
type Result[A any] struct {
	Err   error
	Value A
}

// Attempt runs prev, turning a failure into a Result instead of
// propagating it: RaiseError(e).Attempt() yields Result{Err: e};
// Pure(a).Attempt() yields Result{Value: a}.
func Attempt[A any](prev Scenario[A]) Scenario[Result[A]] {
	return Scenario[Result[A]]{ep: episode.Protected{
		Inner: episode.Map{
			Prev: prev.ep,
			F: func(v interface{}) interface{} {
				return Result[A]{Value: v.(A)}
			},
		},
		Recover: func(err error) episode.Episode {
			return episode.Pure{Value: Result[A]{Err: err}}
		},
	}}
}

// HandleErrorWith recovers from a failure in s by running recover on the
// same remaining input (no rewinding); cancellation and mismatch are
// untouched.
func (s Scenario[A]) HandleErrorWith(recover func(error) Scenario[A]) Scenario[A] {
	return Scenario[A]{ep: episode.Protected{
		Inner: s.ep,
		Recover: func(err error) episode.Episode {
			return recover(err).ep
		},
	}}
}

// Tolerate reruns s once more if it mismatches, running onMismatch first.
// Equivalent to s.TolerateN(1, onMismatch).
func (s Scenario[A]) Tolerate(onMismatch func(event.Messageable) effect.IO) Scenario[A] {
	return s.TolerateN(1, onMismatch)
}

// TolerateN reruns s up to n more times on mismatch, running onMismatch
// before each retry.
func (s Scenario[A]) TolerateN(n int, onMismatch func(event.Messageable) effect.IO) Scenario[A] {
	limit := n
	return Scenario[A]{ep: episode.Tolerate{
		Inner:      s.ep,
		Limit:      &limit,
		OnMismatch: onMismatch,
	}}
}

// TolerateAll reruns s without bound on mismatch, running onMismatch
// before each retry.
func (s Scenario[A]) TolerateAll(onMismatch func(event.Messageable) effect.IO) Scenario[A] {
	return Scenario[A]{ep: episode.Tolerate{
		Inner:      s.ep,
		OnMismatch: onMismatch,
	}}
}

// StopOn aborts s (with Cancelled, no emission) as soon as an event
// flowing through it (at any depth) satisfies pred.
func (s Scenario[A]) StopOn(pred func(event.Messageable) bool) Scenario[A] {
	return Scenario[A]{ep: episode.Cancellable{
		Inner:      s.ep,
		CancelWhen: pred,
	}}
}

// StopWith is StopOn plus a side effect run on the event that triggered
// cancellation.
func (s Scenario[A]) StopWith(pred func(event.Messageable) bool, onCancel func(event.Messageable) effect.IO) Scenario[A] {
	return Scenario[A]{ep: episode.Cancellable{
		Inner:      s.ep,
		CancelWhen: pred,
		OnCancel:   onCancel,
	}}
}

// Within imposes a wall-clock deadline on s's entire evaluation,
// starting when evaluation begins rather than when the first event
// arrives.
func (s Scenario[A]) Within(d time.Duration) Scenario[A] {
	return Scenario[A]{ep: episode.TimeLimited{
		Inner:    s.ep,
		Duration: d,
	}}
}

// MapK rewrites every effect s's Episode would run through transform, a
// natural transformation over the effect capability.
func (s Scenario[A]) MapK(transform func(effect.IO) effect.IO) Scenario[A] {
	s.ep = episode.Rewrite(s.ep, transform)
	return s
}

// Run evaluates s once against in and, on a match, asserts the result
// back to A.
func Run[A any](ctx context.Context, s Scenario[A], in stream.Stream) (A, matcher.Outcome) {
	out := matcher.Run(ctx, s.ep, in)
	var zero A
	if out.Kind != matcher.Matched {
		return zero, out
	}
	return out.Value.(A), out
}

// RunRepeating restarts a fresh instance of build on whatever suffix of
// in the previous run left behind, emitting one Output per completed run.
// A new run starts only after a Matched one; the channel closes after
// the first outcome of any other kind, or when ctx is done.
// Package demux uses this once per conversation.
func RunRepeating[A any](ctx context.Context, build func() Scenario[A], in stream.Stream) <-chan Output[A] {
	out := make(chan Output[A])
	outcomes := make(chan matcher.Outcome)
	go matcher.RunRepeating(ctx, func() episode.Episode { return build().ep }, in, outcomes)
	go func() {
		defer close(out)
		for o := range outcomes {
			r := Output[A]{Outcome: o}
			if o.Kind == matcher.Matched {
				r.Value = o.Value.(A)
			}
			out <- r
		}
	}()
	return out
}

// Output pairs a matcher.Outcome with its value already asserted back
// to A, for RunRepeating's consumers.
type Output[A any] struct {
	Value   A
	Outcome matcher.Outcome
}
