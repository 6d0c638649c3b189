package matcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mikabele/canoe/effect"
	"github.com/mikabele/canoe/episode"
	"github.com/mikabele/canoe/event"
	"github.com/mikabele/canoe/matcher/stream"
)

func msg(convID, text string) event.Messageable {
	return event.IncomingMessage{Message: &event.Message{ConversationID: convID, Text: text}}
}

func isText(want string) func(event.Messageable) bool {
	return func(ev event.Messageable) bool {
		m, is := ev.(event.IncomingMessage)
		return is && m.Text == want
	}
}

func TestPureMatchesWithoutConsuming(t *testing.T) {
	in := stream.FromSlice([]event.Messageable{msg("c", "30")})
	out := Run(context.Background(), episode.Pure{Value: "x"}, in)
	if out.Kind != Matched || out.Value != "x" {
		t.Fatalf("got %+v", out)
	}
	// The single event should still be available downstream.
	ev, _, ok := out.Rest.Next(context.Background())
	if !ok || ev.(event.IncomingMessage).Text != "30" {
		t.Fatal("Pure should not consume input")
	}
}

func TestNextMatchAndMismatch(t *testing.T) {
	in := stream.FromSlice([]event.Messageable{msg("c", "30")})
	out := Run(context.Background(), episode.Next{Predicate: isText("30")}, in)
	if out.Kind != Matched {
		t.Fatalf("got %+v", out)
	}

	in = stream.FromSlice([]event.Messageable{msg("c", "x")})
	out = Run(context.Background(), episode.Next{Predicate: isText("30")}, in)
	if out.Kind != Mismatched {
		t.Fatalf("got %+v", out)
	}
}

func TestNextOnExhaustedStreamIsUpstreamTerminated(t *testing.T) {
	in := stream.FromSlice(nil)
	out := Run(context.Background(), episode.Next{Predicate: isText("30")}, in)
	if out.Kind != UpstreamTerminated {
		t.Fatalf("got %+v", out)
	}
}

func TestBindPropagatesMismatchWithoutRunningK(t *testing.T) {
	var ran bool
	ep := episode.Bind{
		Prev: episode.Next{Predicate: isText("30")},
		K: func(v interface{}) episode.Episode {
			ran = true
			return episode.Pure{Value: v}
		},
	}
	in := stream.FromSlice([]event.Messageable{msg("c", "x")})
	out := Run(context.Background(), ep, in)
	if out.Kind != Mismatched || ran {
		t.Fatalf("got %+v ran=%v", out, ran)
	}
}

func TestTolerateExampleFromTheWorkedCase(t *testing.T) {
	// tolerateN(2): mismatch on "x", mismatch on "y", match on "30".
	var mismatches []string
	limit := 2
	ep := episode.Tolerate{
		Inner: episode.Next{Predicate: isText("30")},
		Limit: &limit,
		OnMismatch: func(ev event.Messageable) effect.IO {
			return effect.IO(func(ctx context.Context) (interface{}, error) {
				mismatches = append(mismatches, ev.(event.IncomingMessage).Text)
				return nil, nil
			})
		},
	}
	in := stream.FromSlice([]event.Messageable{msg("c", "x"), msg("c", "y"), msg("c", "30")})
	out := Run(context.Background(), ep, in)
	if out.Kind != Matched {
		t.Fatalf("got %+v", out)
	}
	if len(mismatches) != 2 || mismatches[0] != "x" || mismatches[1] != "y" {
		t.Fatalf("OnMismatch ran on %v, want [x y]", mismatches)
	}
}

func TestTolerateExhaustsLimit(t *testing.T) {
	limit := 1
	ep := episode.Tolerate{
		Inner: episode.Next{Predicate: isText("30")},
		Limit: &limit,
		OnMismatch: func(event.Messageable) effect.IO {
			return effect.Pure(nil)
		},
	}
	in := stream.FromSlice([]event.Messageable{msg("c", "x"), msg("c", "y"), msg("c", "30")})
	out := Run(context.Background(), ep, in)
	if out.Kind != Mismatched {
		t.Fatalf("got %+v, want Mismatched once the retry budget is spent", out)
	}
}

func TestProtectedRecoversFromFailure(t *testing.T) {
	boom := errors.New("boom")
	ep := episode.Protected{
		Inner: episode.RaiseError{Err: boom},
		Recover: func(err error) episode.Episode {
			return episode.Pure{Value: "recovered: " + err.Error()}
		},
	}
	out := Run(context.Background(), ep, stream.FromSlice(nil))
	if out.Kind != Matched || out.Value != "recovered: boom" {
		t.Fatalf("got %+v", out)
	}
}

func TestProtectedPassesThroughMismatch(t *testing.T) {
	ep := episode.Protected{
		Inner: episode.Next{Predicate: isText("30")},
		Recover: func(error) episode.Episode {
			t.Fatal("Recover must not run on a mismatch")
			return nil
		},
	}
	in := stream.FromSlice([]event.Messageable{msg("c", "x")})
	out := Run(context.Background(), ep, in)
	if out.Kind != Mismatched {
		t.Fatalf("got %+v", out)
	}
}

func TestCancellableFiresAcrossNestedBind(t *testing.T) {
	inner := episode.Bind{
		Prev: episode.Next{Predicate: isText("a")},
		K: func(interface{}) episode.Episode {
			return episode.Next{Predicate: isText("b")}
		},
	}
	var cancelledOn string
	ep := episode.Cancellable{
		Inner:      inner,
		CancelWhen: isText("stop"),
		OnCancel: func(ev event.Messageable) effect.IO {
			return effect.IO(func(ctx context.Context) (interface{}, error) {
				cancelledOn = ev.(event.IncomingMessage).Text
				return nil, nil
			})
		},
	}
	in := stream.FromSlice([]event.Messageable{msg("c", "a"), msg("c", "stop"), msg("c", "b")})
	out := Run(context.Background(), ep, in)
	if out.Kind != Cancelled {
		t.Fatalf("got %+v", out)
	}
	if cancelledOn != "stop" {
		t.Fatalf("OnCancel saw %q, want %q", cancelledOn, "stop")
	}
}

func TestTimeLimitedExpires(t *testing.T) {
	ep := episode.TimeLimited{
		Inner:    episode.Next{Predicate: isText("never")},
		Duration: 10 * time.Millisecond,
	}
	ch := make(chan event.Messageable)
	in := stream.FromChannel(ch)
	out := Run(context.Background(), ep, in)
	if out.Kind != Cancelled {
		t.Fatalf("got %+v", out)
	}
}

func TestRunRepeatingAdvancesOnMatchAndStopsOnMismatch(t *testing.T) {
	in := stream.FromSlice([]event.Messageable{
		msg("c", "1"),
		msg("c", "2"),
		msg("c", "nope"),
	})
	build := func() episode.Episode {
		return episode.Next{Predicate: func(ev event.Messageable) bool {
			return ev.(event.IncomingMessage).Text != "nope"
		}}
	}

	var kinds []Kind
	out := make(chan Outcome)
	go RunRepeating(context.Background(), build, in, out)
	for o := range out {
		kinds = append(kinds, o.Kind)
	}

	if len(kinds) != 3 {
		t.Fatalf("got %d outcomes, want 3: %v", len(kinds), kinds)
	}
	if kinds[0] != Matched || kinds[1] != Matched || kinds[2] != Mismatched {
		t.Fatalf("got %v, want [Matched Matched Mismatched]", kinds)
	}
}
