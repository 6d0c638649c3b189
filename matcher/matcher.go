// Package matcher interprets an episode.Episode against a stream.Stream,
// producing one Outcome per run. It mirrors core/step.go's Walk/Step,
// which steps a Spec's Nodes against pending messages, and reuses
// sio/timers.go's timer-vs-control-channel select in shape for
// TimeLimited.
//
// The matcher is single-threaded per session: Run never spawns a
// goroutine of its own except for TimeLimited's timer race, and that
// goroutine's only job is to let Run return promptly on timeout while
// the in-flight evaluation finishes cooperatively.
package matcher

import (
	"context"
	"fmt"

	"github.com/mikabele/canoe/effect"
	"github.com/mikabele/canoe/episode"
	"github.com/mikabele/canoe/event"
	"github.com/mikabele/canoe/matcher/stream"
)

// Kind identifies which of the four outcomes a Run produced.
type Kind int

const (
	// Matched means the episode produced a value.
	Matched Kind = iota
	// Mismatched means a consuming step rejected the event it pulled.
	// Bind passes a mismatch up unchanged whichever step produced it, so
	// earlier steps may already have consumed events.
	Mismatched
	// Failed means a raised or effect error propagated to the top.
	Failed
	// Cancelled means a Cancellable predicate fired or a TimeLimited
	// deadline expired.
	Cancelled
	// UpstreamTerminated means the input stream ended before the
	// episode could complete.
	UpstreamTerminated
)

func (k Kind) String() string {
	switch k {
	case Matched:
		return "Matched"
	case Mismatched:
		return "Mismatched"
	case Failed:
		return "Failed"
	case Cancelled:
		return "Cancelled"
	case UpstreamTerminated:
		return "UpstreamTerminated"
	default:
		return "Unknown"
	}
}

// Outcome is the result of one Run. Only Value, Event, or Err is
// meaningful, depending on Kind: Value for Matched, Event for
// Mismatched (the offending event), Err for Failed.
type Outcome struct {
	Kind  Kind
	Value interface{}
	Event event.Messageable
	Err   error
	Rest  stream.Stream
}

// Run evaluates ep once against in, honoring cancellation, retries,
// timeouts, and effects per variant.
func Run(ctx context.Context, ep episode.Episode, in stream.Stream) Outcome {
	switch n := ep.(type) {

	case episode.Pure:
		return Outcome{Kind: Matched, Value: n.Value, Rest: in}

	case episode.Eval:
		v, err := effect.Run(ctx, n.Effect)
		if err != nil {
			return Outcome{Kind: Failed, Err: err, Rest: in}
		}
		return Outcome{Kind: Matched, Value: v, Rest: in}

	case episode.RaiseError:
		return Outcome{Kind: Failed, Err: n.Err, Rest: in}

	case episode.Next:
		ev, rest, ok := in.Next(ctx)
		if !ok {
			return Outcome{Kind: UpstreamTerminated, Rest: rest}
		}
		if n.Predicate(ev) {
			return Outcome{Kind: Matched, Value: ev, Rest: rest}
		}
		return Outcome{Kind: Mismatched, Event: ev, Rest: rest}

	case episode.Map:
		out := Run(ctx, n.Prev, in)
		if out.Kind != Matched {
			return out
		}
		return Outcome{Kind: Matched, Value: n.F(out.Value), Rest: out.Rest}

	case episode.Bind:
		out := Run(ctx, n.Prev, in)
		if out.Kind != Matched {
			return out
		}
		return Run(ctx, n.K(out.Value), out.Rest)

	case episode.Protected:
		return runProtected(ctx, n, in)

	case episode.Tolerate:
		return runTolerate(ctx, n, in)

	case episode.Cancellable:
		return runCancellable(ctx, n, in)

	case episode.TimeLimited:
		return runTimeLimited(ctx, n, in)

	default:
		return Outcome{Kind: Failed, Err: errUnknownEpisode{ep}}
	}
}

type errUnknownEpisode struct{ ep episode.Episode }

func (e errUnknownEpisode) Error() string {
	return fmt.Sprintf("matcher: unknown episode variant %T", e.ep)
}

func runProtected(ctx context.Context, n episode.Protected, in stream.Stream) Outcome {
	out := Run(ctx, n.Inner, in)
	if out.Kind != Failed {
		return out
	}
	// No rewinding: Recover evaluates on the same remaining stream the
	// failure left behind.
	return Run(ctx, n.Recover(out.Err), out.Rest)
}

func runTolerate(ctx context.Context, n episode.Tolerate, in stream.Stream) Outcome {
	hasLimit := n.Limit != nil
	var counter int
	if hasLimit {
		counter = *n.Limit
	}

	cur := in
	for {
		out := Run(ctx, n.Inner, cur)
		if out.Kind != Mismatched {
			return out
		}

		if _, err := effect.Run(ctx, n.OnMismatch(out.Event)); err != nil {
			return Outcome{Kind: Failed, Err: err, Rest: out.Rest}
		}

		if !hasLimit || counter > 0 {
			if hasLimit {
				counter--
			}
			cur = out.Rest
			continue
		}

		return out
	}
}

func runCancellable(ctx context.Context, n episode.Cancellable, in stream.Stream) Outcome {
	var fired bool
	var firedEvent event.Messageable

	wrapped := stream.Intercept(in, n.CancelWhen, func(ev event.Messageable) {
		fired = true
		firedEvent = ev
	})

	out := Run(ctx, n.Inner, wrapped)
	if !fired {
		return out
	}

	if n.OnCancel != nil {
		if _, err := effect.Run(ctx, n.OnCancel(firedEvent)); err != nil {
			return Outcome{Kind: Failed, Err: err, Rest: out.Rest}
		}
	}
	return Outcome{Kind: Cancelled, Rest: out.Rest}
}

func runTimeLimited(ctx context.Context, n episode.TimeLimited, in stream.Stream) Outcome {
	cctx, cancel := context.WithTimeout(ctx, n.Duration)
	defer cancel()

	resultCh := make(chan Outcome, 1)
	go func() {
		resultCh <- Run(cctx, n.Inner, in)
	}()

	select {
	case out := <-resultCh:
		return out
	case <-cctx.Done():
		// The goroutine above may still be blocked inside in.Next,
		// racing this same deadline; if its select pulls one buffered
		// event before observing cctx.Done(), that event is consumed
		// and lost rather than surviving into the Rest returned here.
		// Harmless for a conversation that's ending, but a caller
		// that resumes from Rest after a TimeLimited expiry should not
		// assume no event was dropped in the race.
		return Outcome{Kind: Cancelled, Rest: in}
	}
}

// RunRepeating restarts a fresh episode (from build) on whatever suffix
// of in the previous run left behind, emitting one Outcome per
// completed run. Only a Matched run is followed by another: the loop
// stops after the first Mismatched, Failed, Cancelled, or
// UpstreamTerminated outcome (the last one emitted), or when ctx is done.
// Restarting on the remaining suffix is what makes continuous
// conversations possible; package demux uses it once per conversation.
func RunRepeating(ctx context.Context, build func() episode.Episode, in stream.Stream, out chan<- Outcome) {
	defer close(out)
	cur := in
	for {
		o := Run(ctx, build(), cur)
		select {
		case out <- o:
		case <-ctx.Done():
			return
		}
		switch o.Kind {
		case Matched:
			cur = o.Rest
		default:
			return
		}
	}
}
