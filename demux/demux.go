// Package demux routes a single shared event.Messageable stream into
// many live, per-conversation scenario.Scenario runs, keyed by
// ConversationID. It plays the role sio/crew.go's Crew.Loop/ProcessMsg/
// toMachines plays for a shared in-channel fanning out to many
// independently stateful machines, reworked so each conversation gets
// its own goroutine instead of a single mutex-guarded loop visiting
// every machine per message.
//
// Each conversation has two stages: a synchronous, unbounded staging
// queue that Dispatch appends to (so one slow conversation can never
// block admission of events for any other, or the dispatch of the
// event that arrived after it), and a dedicated pump goroutine that
// drains that queue into a small bounded delivery channel (the actual
// backpressure point), which scenario.RunRepeating reads from via
// stream.FromChannel. Idle conversations are swept by a time.Ticker,
// the same polling idiom sio/timers.go uses for pending timers.
package demux

import (
	"context"
	"sync"
	"time"

	"github.com/mikabele/canoe/event"
	"github.com/mikabele/canoe/matcher/stream"
	"github.com/mikabele/canoe/scenario"
)

// Builder produces a fresh scenario instance for a new conversation, or
// for a conversation restarting after Matched (RunRepeating restarts
// the episode on the remaining suffix of the stream).
type Builder[A any] func(conversationID string) scenario.Scenario[A]

// deliveryBuffer bounds how many events a conversation may have queued
// for its matcher without having been consumed yet (the point at which
// a genuinely stuck conversation starts applying backpressure, onto its
// own staging queue only, never onto Dispatch).
const deliveryBuffer = 16

// Demux owns one live conversation per ConversationID, all fed from a
// single Dispatch call site.
type Demux[A any] struct {
	build       Builder[A]
	onOutcome   func(conversationID string, r scenario.Output[A])
	idleTimeout time.Duration

	mu     sync.Mutex
	convos map[string]*conversation[A]
}

// New creates a Demux. onOutcome, if non-nil, is called once per
// completed scenario run (Matched, Mismatched, Failed, Cancelled, or
// UpstreamTerminated); package ledger is a typical subscriber.
// idleTimeout of zero disables idle eviction.
func New[A any](build Builder[A], onOutcome func(string, scenario.Output[A]), idleTimeout time.Duration) *Demux[A] {
	return &Demux[A]{
		build:       build,
		onOutcome:   onOutcome,
		idleTimeout: idleTimeout,
		convos:      make(map[string]*conversation[A]),
	}
}

// conversation is one live scenario run, from the demultiplexer's side.
type conversation[A any] struct {
	id       string
	cancel   context.CancelFunc
	delivery chan event.Messageable

	mu         sync.Mutex
	cond       *sync.Cond
	queue      []event.Messageable
	lastSeen   time.Time
	closed     bool
	midEpisode bool
}

func newConversation[A any](parent context.Context, d *Demux[A], id string) *conversation[A] {
	ctx, cancel := context.WithCancel(parent)
	c := &conversation[A]{
		id:       id,
		cancel:   cancel,
		delivery: make(chan event.Messageable, deliveryBuffer),
		lastSeen: time.Now(),
	}
	c.cond = sync.NewCond(&c.mu)

	go c.pump(ctx)
	go d.run(ctx, c)

	return c
}

// enqueue appends ev to the staging queue and wakes the pump. O(1),
// never blocks on the delivery channel's capacity.
func (c *conversation[A]) enqueue(ev event.Messageable) {
	c.mu.Lock()
	c.queue = append(c.queue, ev)
	c.lastSeen = time.Now()
	c.mu.Unlock()
	c.cond.Signal()
}

// pump drains the staging queue into the bounded delivery channel. This
// is the only goroutine that blocks on delivery's capacity, so only
// this conversation stalls when its matcher falls behind.
func (c *conversation[A]) pump(ctx context.Context) {
	defer close(c.delivery)

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		c.cond.Broadcast()
	}()

	for {
		c.mu.Lock()
		for len(c.queue) == 0 && !c.closed {
			c.cond.Wait()
		}
		if c.closed && len(c.queue) == 0 {
			c.mu.Unlock()
			return
		}
		ev := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()

		select {
		case c.delivery <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// markMidEpisode records that the current episode has consumed at least
// one event since it last restarted. clearMidEpisode resets that once
// the episode completes (Matched, Mismatched, Failed, or Cancelled),
// leaving the conversation parked waiting for a fresh episode's first
// event again.
func (c *conversation[A]) markMidEpisode() {
	c.mu.Lock()
	c.midEpisode = true
	c.mu.Unlock()
}

func (c *conversation[A]) clearMidEpisode() {
	c.mu.Lock()
	c.midEpisode = false
	c.mu.Unlock()
}

// idleAndFree reports whether c has been quiet since before cutoff and
// has no episode in flight. Both must hold for eviction to be safe: a
// conversation mid-episode (waiting on a multi-step form, or blocked
// inside a long Eval) may look idle by lastSeen alone, but cancelling it
// would abort in-flight effects and discard partial progress instead of
// letting them complete.
func (c *conversation[A]) idleAndFree(cutoff time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.midEpisode && c.lastSeen.Before(cutoff)
}

// markingStream wraps a Stream so mark is called on every event actually
// pulled through it, letting run track when a conversation's episode has
// started consuming (as opposed to merely having events queued for it).
type markingStream struct {
	base stream.Stream
	mark func()
}

func (s markingStream) Next(ctx context.Context) (event.Messageable, stream.Stream, bool) {
	ev, rest, ok := s.base.Next(ctx)
	if !ok {
		return ev, rest, ok
	}
	s.mark()
	return ev, markingStream{base: rest, mark: s.mark}, ok
}

// run drives one conversation's scenario.RunRepeating to completion (or
// to ctx cancellation) and removes the conversation from the Demux once
// it ends, so a later event for the same ConversationID spins up fresh.
func (d *Demux[A]) run(ctx context.Context, c *conversation[A]) {
	defer d.forget(c.id, c)

	in := markingStream{base: stream.FromChannel(c.delivery), mark: c.markMidEpisode}
	for r := range scenario.RunRepeating(ctx, func() scenario.Scenario[A] { return d.build(c.id) }, in) {
		c.clearMidEpisode()
		if d.onOutcome != nil {
			d.onOutcome(c.id, r)
		}
	}
}

// forget is run's own cleanup: it removes c from the Demux only if c is
// still the conversation registered under id. An external eviction
// (evict, via ApplyOp or sweepIdle) may already have replaced c with a
// fresh conversation under the same id by the time run unwinds, and
// forget must not delete that replacement.
func (d *Demux[A]) forget(id string, c *conversation[A]) {
	d.mu.Lock()
	if cur, ok := d.convos[id]; ok && cur == c {
		delete(d.convos, id)
	}
	d.mu.Unlock()
	c.cancel()
}

// evict removes whatever conversation is currently registered under id,
// if any, and cancels it. Used by ApplyOp and sweepIdle, which know only
// the id, not the conversation's identity.
func (d *Demux[A]) evict(id string) {
	d.mu.Lock()
	c, ok := d.convos[id]
	if ok {
		delete(d.convos, id)
	}
	d.mu.Unlock()
	if ok {
		c.cancel()
	}
}

// Dispatch admits ev into its conversation's staging queue, spinning up
// a new conversation on first sighting of its ConversationID.
func (d *Demux[A]) Dispatch(ctx context.Context, ev event.Messageable) {
	id := ev.ConversationID()

	d.mu.Lock()
	c, ok := d.convos[id]
	if !ok {
		c = newConversation(ctx, d, id)
		d.convos[id] = c
	}
	d.mu.Unlock()

	c.enqueue(ev)
}

// Run consumes events from in and Dispatches each one, until in is
// exhausted or ctx is done. If idleTimeout is nonzero, a sweep runs
// concurrently to evict conversations that have gone quiet.
func (d *Demux[A]) Run(ctx context.Context, in <-chan event.Messageable) {
	if d.idleTimeout > 0 {
		go d.evictIdle(ctx)
	}
	for {
		select {
		case ev, ok := <-in:
			if !ok {
				return
			}
			d.Dispatch(ctx, ev)
		case <-ctx.Done():
			return
		}
	}
}

func (d *Demux[A]) evictIdle(ctx context.Context) {
	ticker := time.NewTicker(d.idleTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.sweepIdle()
		}
	}
}

// sweepIdle scans for conversations idle past the cutoff and evicts
// them. The scan and the eviction that follows are not atomic with
// concurrent Dispatch calls: a conversation can receive a fresh event
// (and start a new episode) between being listed as stale here and
// being evicted below. evict only ever removes whatever is currently
// registered under an id, so this races the conversation's liveness,
// not its correctness.
func (d *Demux[A]) sweepIdle() {
	cutoff := time.Now().Add(-d.idleTimeout)

	d.mu.Lock()
	stale := make([]string, 0)
	for id, c := range d.convos {
		if c.idleAndFree(cutoff) {
			stale = append(stale, id)
		}
	}
	d.mu.Unlock()

	for _, id := range stale {
		d.evict(id)
	}
}

// Op is the admin protocol for out-of-band conversation management,
// the generalization of sio/captainspec.go's CrewOp to a demultiplexer
// keyed by conversation rather than by machine id.
type Op struct {
	// Evict terminates the named conversations without restarting
	// them; the next event for that ConversationID starts fresh.
	Evict []string `json:"evict,omitempty"`

	// Reset terminates and immediately restarts the named
	// conversations, even without a pending event.
	Reset []string `json:"reset,omitempty"`
}

// ApplyOp executes op against the live conversation set.
func (d *Demux[A]) ApplyOp(ctx context.Context, op Op) {
	for _, id := range op.Evict {
		d.evict(id)
	}
	for _, id := range op.Reset {
		d.evict(id)
		d.mu.Lock()
		if _, ok := d.convos[id]; !ok {
			d.convos[id] = newConversation(ctx, d, id)
		}
		d.mu.Unlock()
	}
}

// Active returns the ConversationIDs with a live conversation right now.
func (d *Demux[A]) Active() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]string, 0, len(d.convos))
	for id := range d.convos {
		ids = append(ids, id)
	}
	return ids
}
