// Package stream provides the lazy input stream the matcher pulls
// events from. A Stream is a single-consumer pull source: each Next
// call yields the next event (if any) and a Stream representing
// whatever remains after that pull, mirroring the (value,
// remaining-stream) outcome shape episode evaluation itself produces.
package stream

import (
	"context"

	"github.com/mikabele/canoe/event"
)

// Stream is a lazy, single-consumer source of events.
type Stream interface {
	// Next blocks until an event is available, the stream is
	// exhausted, or ctx is done. ok is false in the latter two cases;
	// callers should treat ctx cancellation as upstream termination
	// the same way they treat a closed channel.
	Next(ctx context.Context) (ev event.Messageable, rest Stream, ok bool)
}

// FromChannel adapts a channel of events into a Stream. The channel's
// producer owns ordering; FromChannel never buffers or reorders.
func FromChannel(ch <-chan event.Messageable) Stream {
	return chanStream{ch}
}

type chanStream struct {
	ch <-chan event.Messageable
}

func (s chanStream) Next(ctx context.Context) (event.Messageable, Stream, bool) {
	select {
	case ev, ok := <-s.ch:
		if !ok {
			return nil, s, false
		}
		return ev, s, true
	case <-ctx.Done():
		return nil, s, false
	}
}

// FromSlice adapts a fixed slice of events into a Stream, useful for
// tests and for scenario.Run's single-shot, already-materialized
// inputs.
func FromSlice(evs []event.Messageable) Stream {
	return sliceStream{evs}
}

type sliceStream struct {
	evs []event.Messageable
}

func (s sliceStream) Next(ctx context.Context) (event.Messageable, Stream, bool) {
	select {
	case <-ctx.Done():
		return nil, s, false
	default:
	}
	if len(s.evs) == 0 {
		return nil, s, false
	}
	return s.evs[0], sliceStream{s.evs[1:]}, true
}

// Intercept wraps base so that every event pulled through it is first
// offered to check; if check returns true, the event is consumed here
// (never passed on to whatever is reading through Intercept), onMatch
// runs with that event, and the caller is told the stream ended
// (ok=false), the same signal as ordinary exhaustion. Callers that need
// to tell the two apart (package matcher's Cancellable does) rely on
// onMatch having been invoked.
//
// This is how Cancellable (see package matcher) "applies uniformly to
// all events passing through inner, including those nested inside its
// sub-episodes": it wraps the Stream that inner evaluates against,
// rather than threading a check through every IR constructor.
func Intercept(base Stream, check func(event.Messageable) bool, onMatch func(event.Messageable)) Stream {
	return interceptStream{base: base, check: check, onMatch: onMatch}
}

type interceptStream struct {
	base    Stream
	check   func(event.Messageable) bool
	onMatch func(event.Messageable)
}

func (s interceptStream) Next(ctx context.Context) (event.Messageable, Stream, bool) {
	ev, rest, ok := s.base.Next(ctx)
	if !ok {
		return nil, rest, false
	}
	if s.check(ev) {
		s.onMatch(ev)
		return nil, rest, false
	}
	return ev, interceptStream{base: rest, check: s.check, onMatch: s.onMatch}, true
}
