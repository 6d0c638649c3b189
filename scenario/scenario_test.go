package scenario

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mikabele/canoe/effect"
	"github.com/mikabele/canoe/event"
	"github.com/mikabele/canoe/matcher"
	"github.com/mikabele/canoe/matcher/stream"
	"github.com/mikabele/canoe/selector"
)

func textMsg(text string) event.Messageable {
	return event.IncomingMessage{Message: &event.Message{Text: text}}
}

func isText(want string) func(event.Messageable) bool {
	return func(ev event.Messageable) bool {
		m, is := ev.(event.IncomingMessage)
		return is && m.Text == want
	}
}

func TestFlatMapSequencesTwoExpects(t *testing.T) {
	s := FlatMap(Expect(isText("name?")), func(_ event.Messageable) Scenario[string] {
		return Map(Expect(func(event.Messageable) bool { return true }), func(ev event.Messageable) string {
			return ev.(event.IncomingMessage).Text
		})
	})

	in := stream.FromSlice([]event.Messageable{textMsg("name?"), textMsg("Ada")})
	v, out := Run(context.Background(), s, in)
	if out.Kind != matcher.Matched || v != "Ada" {
		t.Fatalf("got (%v, %+v)", v, out)
	}
}

func TestExpectAsProjectsThroughAPartial(t *testing.T) {
	s := ExpectAs(selector.Document())
	doc := &event.Document{FileName: "a.pdf"}
	in := stream.FromSlice([]event.Messageable{
		event.IncomingMessage{Message: &event.Message{Document: doc}},
	})
	v, out := Run(context.Background(), s, in)
	if out.Kind != matcher.Matched || v != doc {
		t.Fatalf("got (%v, %+v)", v, out)
	}
}

func TestMapTransformsResult(t *testing.T) {
	s := Map(Expect(isText("30")), func(ev event.Messageable) int {
		return len(ev.(event.IncomingMessage).Text)
	})
	in := stream.FromSlice([]event.Messageable{textMsg("30")})
	v, out := Run(context.Background(), s, in)
	if out.Kind != matcher.Matched || v != 2 {
		t.Fatalf("got (%v, %+v)", v, out)
	}
}

func TestThenDiscardsFirstResult(t *testing.T) {
	s := Then(Pure("ignored"), Pure(99))
	v, out := Run(context.Background(), s, stream.FromSlice(nil))
	if out.Kind != matcher.Matched || v != 99 {
		t.Fatalf("got (%v, %+v)", v, out)
	}
}

func TestAttemptRoundTrips(t *testing.T) {
	boom := errors.New("boom")

	v, out := Run(context.Background(), Attempt(RaiseError[int](boom)), stream.FromSlice(nil))
	if out.Kind != matcher.Matched {
		t.Fatalf("Attempt should always Match, got %+v", out)
	}
	if v.Err != boom {
		t.Fatalf("got Err=%v, want %v", v.Err, boom)
	}

	v, out = Run(context.Background(), Attempt(Pure(7)), stream.FromSlice(nil))
	if out.Kind != matcher.Matched || v.Err != nil || v.Value != 7 {
		t.Fatalf("got (%+v, %+v)", v, out)
	}
}

func TestHandleErrorWith(t *testing.T) {
	boom := errors.New("boom")
	s := RaiseError[string](boom).HandleErrorWith(func(err error) Scenario[string] {
		return Pure("recovered: " + err.Error())
	})
	v, out := Run(context.Background(), s, stream.FromSlice(nil))
	if out.Kind != matcher.Matched || v != "recovered: boom" {
		t.Fatalf("got (%v, %+v)", v, out)
	}
}

func TestTolerateNRetries(t *testing.T) {
	var retries int
	s := Expect(isText("30")).TolerateN(2, func(event.Messageable) effect.IO {
		return effect.IO(func(ctx context.Context) (interface{}, error) {
			retries++
			return nil, nil
		})
	})
	in := stream.FromSlice([]event.Messageable{textMsg("x"), textMsg("y"), textMsg("30")})
	_, out := Run(context.Background(), s, in)
	if out.Kind != matcher.Matched || retries != 2 {
		t.Fatalf("got %+v retries=%d", out, retries)
	}
}

func TestStopOnCancels(t *testing.T) {
	s := Expect(isText("never")).StopOn(isText("stop"))
	in := stream.FromSlice([]event.Messageable{textMsg("stop")})
	_, out := Run(context.Background(), s, in)
	if out.Kind != matcher.Cancelled {
		t.Fatalf("got %+v", out)
	}
}

func TestWithinExpires(t *testing.T) {
	s := Expect(isText("never")).Within(10 * time.Millisecond)
	ch := make(chan event.Messageable)
	_, out := Run(context.Background(), s, stream.FromChannel(ch))
	if out.Kind != matcher.Cancelled {
		t.Fatalf("got %+v", out)
	}
}

func TestMapKRewritesEffects(t *testing.T) {
	var wrapped bool
	s := Eval[int](effect.Pure(1)).MapK(func(io effect.IO) effect.IO {
		wrapped = true
		return io
	})
	v, out := Run(context.Background(), s, stream.FromSlice(nil))
	if out.Kind != matcher.Matched || v != 1 || !wrapped {
		t.Fatalf("got (%v, %+v, wrapped=%v)", v, out, wrapped)
	}
}

func TestDescribeRoundTrips(t *testing.T) {
	s := Pure(1).Describe("says one")
	if s.Doc() != "says one" {
		t.Fatalf("got %q", s.Doc())
	}
}
