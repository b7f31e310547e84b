// Package runtime owns the application state and drives the update loop.
//
// A single goroutine pulls messages from a FIFO inbox, applies app.Update,
// re-renders with app.View unless the transition asked to skip it, and
// publishes an immutable Frame. Readers only ever see Frame copies.
package runtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rustacademy/academy/internal/app"
	"github.com/rustacademy/academy/internal/event"
	"github.com/rustacademy/academy/internal/model"
	"github.com/rustacademy/academy/internal/tree"
)

// Frame is a published snapshot: the state after the last transition and
// the tree from the last render.
type Frame struct {
	Rev   uint64     `json:"rev"`
	Seq   uint64     `json:"seq"`
	State app.State  `json:"state"`
	Tree  *tree.Node `json:"tree"`
}

type item struct {
	msg  app.Msg
	done chan struct{}
}

// Loop is the single owner of the application state.
type Loop struct {
	env   app.Env
	inbox chan item
	sinks []model.TransitionSink
	now   func() time.Time

	mu    sync.RWMutex
	frame Frame
	subs  map[int]chan Frame
	subID int

	records chan record
	dropped atomic.Uint64

	// gate orders enqueues against shutdown: once closed is set under the
	// write lock, no send can reach the inbox and the remainder is drained.
	gate    sync.RWMutex
	closed  bool
	closing chan struct{}

	running atomic.Bool
	stopped chan struct{}
	once    sync.Once
}

type record struct {
	transition model.Transition
	keys       []model.KeyEvent
}

// Option configures a Loop.
type Option func(*Loop)

// WithInboxSize sets the inbox capacity.
func WithInboxSize(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.inbox = make(chan item, n)
		}
	}
}

// WithSink adds a transition sink.
func WithSink(s model.TransitionSink) Option {
	return func(l *Loop) {
		if s != nil {
			l.sinks = append(l.sinks, s)
		}
	}
}

// WithSinkBuffer sets how many transitions may wait for the sinks before
// new ones are dropped.
func WithSinkBuffer(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.records = make(chan record, n)
		}
	}
}

// WithClock overrides the time source used to stamp transitions.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) {
		if now != nil {
			l.now = now
		}
	}
}

// New creates a loop with the initial state rendered as revision 1.
func New(env app.Env, opts ...Option) *Loop {
	l := &Loop{
		env:     env,
		inbox:   make(chan item, model.DefaultInboxSize),
		now:     time.Now,
		subs:    make(map[int]chan Frame),
		records: make(chan record, model.DefaultInboxSize),
		closing: make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	s := app.Init(env)
	l.frame = Frame{Rev: 1, State: s, Tree: app.View(s)}
	return l
}

// Run processes messages until ctx is cancelled. Messages accepted before
// that are still applied before Run returns.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return nil
	}
	defer l.stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.drainSinks()
	}()
	defer func() {
		close(l.records)
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			l.shutdown()
			return ctx.Err()
		case it := <-l.inbox:
			l.process(it)
		}
	}
}

func (l *Loop) process(it item) {
	l.apply(it.msg)
	if it.done != nil {
		close(it.done)
	}
}

// shutdown refuses new messages and applies the ones already accepted.
func (l *Loop) shutdown() {
	close(l.closing)
	l.gate.Lock()
	l.closed = true
	l.gate.Unlock()

	for {
		select {
		case it := <-l.inbox:
			l.process(it)
		default:
			return
		}
	}
}

func (l *Loop) stop() {
	l.once.Do(func() {
		close(l.stopped)
		l.mu.Lock()
		for id, ch := range l.subs {
			close(ch)
			delete(l.subs, id)
		}
		l.mu.Unlock()
	})
}

// Submit enqueues msg. It blocks while the inbox is full.
func (l *Loop) Submit(ctx context.Context, msg app.Msg) error {
	return l.enqueue(ctx, item{msg: msg})
}

// SubmitAndWait enqueues msg and returns once the loop has applied it.
func (l *Loop) SubmitAndWait(ctx context.Context, msg app.Msg) error {
	it := item{msg: msg, done: make(chan struct{})}
	if err := l.enqueue(ctx, it); err != nil {
		return err
	}
	select {
	case <-it.done:
		return nil
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) enqueue(ctx context.Context, it item) error {
	l.gate.RLock()
	defer l.gate.RUnlock()
	if l.closed {
		return ErrStopped
	}
	select {
	case l.inbox <- it:
		return nil
	case <-l.closing:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the current frame.
func (l *Loop) Snapshot() Frame {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.frame
}

// Subscribe returns a channel receiving every rendered frame. Slow
// subscribers miss frames rather than blocking the loop. The returned
// function cancels the subscription.
func (l *Loop) Subscribe() (<-chan Frame, func()) {
	ch := make(chan Frame, 1)

	l.mu.Lock()
	select {
	case <-l.stopped:
		l.mu.Unlock()
		close(ch)
		return ch, func() {}
	default:
	}
	id := l.subID
	l.subID++
	l.subs[id] = ch
	l.mu.Unlock()

	return ch, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if c, ok := l.subs[id]; ok {
			close(c)
			delete(l.subs, id)
		}
	}
}

// Waiter adapts the loop so Submit waits for the transition to be applied.
func (l *Loop) Waiter() event.Submitter {
	return waiter{l}
}

type waiter struct{ l *Loop }

func (w waiter) Submit(ctx context.Context, msg app.Msg) error {
	return w.l.SubmitAndWait(ctx, msg)
}

func (l *Loop) apply(msg app.Msg) {
	prev := l.Snapshot()
	next, effects := app.Update(msg, prev.State, l.env)

	frame := Frame{Rev: prev.Rev, Seq: prev.Seq + 1, State: next, Tree: prev.Tree}
	rendered := !next.SkipNextRender
	if rendered {
		frame.Rev++
		frame.Tree = app.View(next)
	}

	l.mu.Lock()
	l.frame = frame
	if rendered {
		for _, ch := range l.subs {
			select {
			case ch <- frame:
			default:
				// Drop the stale frame so the subscriber sees the newest one.
				select {
				case <-ch:
				default:
				}
				select {
				case ch <- frame:
				default:
				}
			}
		}
	}
	l.mu.Unlock()

	l.emit(msg, frame, rendered, effects)
}

func (l *Loop) emit(msg app.Msg, frame Frame, rendered bool, effects []app.Effect) {
	if len(l.sinks) == 0 {
		return
	}
	at := l.now()
	clock, _ := frame.State.Clock()
	rec := record{transition: model.Transition{
		Seq:          frame.Seq,
		At:           at,
		Message:      msg.Name(),
		Payload:      event.Encode(msg).PayloadString(),
		ClickCount:   frame.State.ClickCount,
		SearchText:   frame.State.SearchText,
		RandomNumber: frame.State.RandomNumber,
		ClockTime:    clock,
		Rendered:     rendered,
		Cards:        len(frame.Tree.FindAll(tree.ByClass(app.ClassCard))),
	}}
	for _, eff := range effects {
		if k, ok := eff.(app.KeyLogged); ok {
			rec.keys = append(rec.keys, model.KeyEvent{Seq: frame.Seq, At: at, Key: k.Key})
		}
	}

	select {
	case l.records <- rec:
	default:
		l.dropped.Add(1)
	}
}

func (l *Loop) drainSinks() {
	for rec := range l.records {
		for _, s := range l.sinks {
			s.RecordTransition(rec.transition)
			for _, k := range rec.keys {
				s.RecordKey(k)
			}
		}
	}
}

// DroppedRecords reports transitions the sinks could not keep up with.
func (l *Loop) DroppedRecords() uint64 {
	return l.dropped.Load()
}
