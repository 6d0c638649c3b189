package effect

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPureFail(t *testing.T) {
	ctx := context.Background()

	v, err := Run(ctx, Pure(42))
	if err != nil || v != 42 {
		t.Fatalf("Pure: got (%v, %v)", v, err)
	}

	boom := errors.New("boom")
	_, err = Run(ctx, Fail(boom))
	if err != boom {
		t.Fatalf("Fail: got %v, want %v", err, boom)
	}
}

func TestFlatMapSequencesAndShortCircuits(t *testing.T) {
	ctx := context.Background()

	var ran bool
	io := Pure(1).FlatMap(func(v interface{}) IO {
		return Pure(v.(int) + 1)
	}).FlatMap(func(v interface{}) IO {
		ran = true
		return Pure(v.(int) + 1)
	})

	v, err := Run(ctx, io)
	if err != nil || v != 3 || !ran {
		t.Fatalf("got (%v, %v, ran=%v)", v, err, ran)
	}

	boom := errors.New("boom")
	ran = false
	io = Fail(boom).FlatMap(func(v interface{}) IO {
		ran = true
		return Pure(v)
	})
	_, err = Run(ctx, io)
	if err != boom || ran {
		t.Fatalf("FlatMap should short-circuit on failure: err=%v ran=%v", err, ran)
	}
}

func TestHandleErrorWith(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	io := Fail(boom).HandleErrorWith(func(err error) IO {
		return Pure("recovered: " + err.Error())
	})

	v, err := Run(ctx, io)
	if err != nil || v != "recovered: boom" {
		t.Fatalf("got (%v, %v)", v, err)
	}
}

func TestAttempt(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	v, err := Run(ctx, Fail(boom).Attempt())
	if err != nil {
		t.Fatalf("Attempt itself should not fail: %v", err)
	}
	r := v.(Result)
	if r.Err != boom {
		t.Fatalf("got Result.Err = %v, want %v", r.Err, boom)
	}

	v, err = Run(ctx, Pure(7).Attempt())
	if err != nil {
		t.Fatalf("Attempt itself should not fail: %v", err)
	}
	r = v.(Result)
	if r.Err != nil || r.Value != 7 {
		t.Fatalf("got %+v", r)
	}
}

func TestSleepRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := Run(ctx, Sleep(time.Hour))
	if err == nil {
		t.Fatal("expected an error from a cancelled Sleep")
	}
	if time.Since(start) > time.Second {
		t.Fatal("Sleep did not return promptly on cancellation")
	}
}
