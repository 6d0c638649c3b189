// Package episode provides the Episode IR: a closed set of constructor
// variants representing the state-machine primitives the matcher
// interprets. Construction is total and cheap; no validation is
// performed here, unlike core/spec.go's Spec and its Compile step,
// since canoe's IR needs no separate compile pass: its actions are
// already Go closures.
//
// Values carry interface{} payloads rather than a type parameter,
// mirroring core/actions.go's dynamically typed Bindings. The generic,
// statically typed surface lives one layer up, in package scenario.
package episode

import (
	"time"

	"github.com/mikabele/canoe/effect"
	"github.com/mikabele/canoe/event"
)

// Episode is the closed IR. The unexported marker method keeps the
// variant set closed to this package, a tagged-union representation in
// place of open-ended dynamic polymorphism.
type Episode interface {
	isEpisode()
}

// Pure succeeds immediately with Value, consuming no input.
type Pure struct {
	Value interface{}
}

func (Pure) isEpisode() {}

// Eval runs Effect and succeeds with its result, consuming no input.
type Eval struct {
	Effect effect.IO
}

func (Eval) isEpisode() {}

// RaiseError fails immediately with Err, consuming no input.
type RaiseError struct {
	Err error
}

func (RaiseError) isEpisode() {}

// Next consumes the next input event. It succeeds with the event itself
// if Predicate holds; otherwise it mismatches without consuming any
// further input.
type Next struct {
	Predicate func(event.Messageable) bool
}

func (Next) isEpisode() {}

// Bind sequences Prev and, on its success, K applied to that result.
type Bind struct {
	Prev Episode
	K    func(interface{}) Episode
}

func (Bind) isEpisode() {}

// Map is Bind(Prev, x => Pure(F(x))), kept as its own constructor so the
// matcher (and mapK) can recognize the common case without allocating a
// closure-wrapped Pure.
type Map struct {
	Prev Episode
	F    func(interface{}) interface{}
}

func (Map) isEpisode() {}

// Protected establishes an error-recovery scope: if Inner fails, Recover
// is run on the same remaining input (no rewinding of consumed events).
// Cancellation and mismatch are not caught here.
type Protected struct {
	Inner   Episode
	Recover func(error) Episode
}

func (Protected) isEpisode() {}

// Tolerate reruns Inner whenever it mismatches, running OnMismatch as a
// side effect first, up to Limit extra attempts (nil Limit means
// unbounded).
type Tolerate struct {
	Inner      Episode
	Limit      *int
	OnMismatch func(event.Messageable) effect.IO
}

func (Tolerate) isEpisode() {}

// Cancellable observes every event that would otherwise flow into Inner
// (including events nested arbitrarily deep inside Inner's own
// sub-episodes: this is implemented by wrapping the input stream, not
// by threading a check through every constructor; see package matcher).
// If CancelWhen holds on such an event, the episode terminates with
// Cancelled, having optionally run OnCancel first.
type Cancellable struct {
	Inner      Episode
	CancelWhen func(event.Messageable) bool
	OnCancel   func(event.Messageable) effect.IO
}

func (Cancellable) isEpisode() {}

// TimeLimited imposes a wall-clock upper bound on Inner's entire
// evaluation, starting when the episode begins executing rather than
// when its first event arrives.
type TimeLimited struct {
	Inner    Episode
	Duration time.Duration
}

func (TimeLimited) isEpisode() {}
