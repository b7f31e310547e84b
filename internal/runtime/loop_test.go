package runtime

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustacademy/academy/internal/app"
	"github.com/rustacademy/academy/internal/model"
	"github.com/rustacademy/academy/internal/tree"
)

type memSink struct {
	mu          sync.Mutex
	transitions []model.Transition
	keys        []model.KeyEvent
}

func (m *memSink) RecordTransition(t model.Transition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, t)
}

func (m *memSink) RecordKey(k model.KeyEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, k)
}

func (m *memSink) snapshot() ([]model.Transition, []model.KeyEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Transition(nil), m.transitions...), append([]model.KeyEvent(nil), m.keys...)
}

func fixedEnv(n int) app.Env {
	return app.Env{Random: app.RandomFunc(func(min, max int) int { return n })}
}

func startLoop(t *testing.T, opts ...Option) *Loop {
	t.Helper()
	l := New(fixedEnv(42), opts...)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return l
}

func TestNewRendersInitialFrame(t *testing.T) {
	l := New(fixedEnv(42))
	f := l.Snapshot()
	assert.Equal(t, uint64(1), f.Rev)
	assert.Equal(t, uint64(0), f.Seq)
	assert.Equal(t, 42, f.State.RandomNumber)
	require.NotNil(t, f.Tree)
	assert.Len(t, f.Tree.FindAll(tree.ByClass(app.ClassCard)), 5)
}

func TestScenarioThroughLoop(t *testing.T) {
	l := startLoop(t)
	ctx := context.Background()

	require.NoError(t, l.Submit(ctx, app.Increment{}))
	require.NoError(t, l.Submit(ctx, app.Increment{}))
	require.NoError(t, l.SubmitAndWait(ctx, app.SearchTyped{Text: "Gitdb"}))

	f := l.Snapshot()
	assert.Equal(t, 2, f.State.ClickCount)
	assert.Equal(t, "Gitdb", f.State.SearchText)
	assert.Equal(t, uint64(4), f.Rev)
	assert.Equal(t, uint64(3), f.Seq)

	titles := f.Tree.FindAll(tree.ByClass(app.ClassCardTitle))
	require.Len(t, titles, 1)
	assert.Equal(t, "O102 - Introduction to Gitdb", titles[0].Text)
}

func TestKeyPressedSkipsRender(t *testing.T) {
	sink := &memSink{}
	l := startLoop(t, WithSink(sink))
	ctx := context.Background()

	before := l.Snapshot()
	require.NoError(t, l.SubmitAndWait(ctx, app.KeyPressed{Key: "x"}))

	after := l.Snapshot()
	assert.Equal(t, before.Rev, after.Rev)
	assert.Equal(t, before.Seq+1, after.Seq)
	assert.True(t, after.State.SkipNextRender)
	assert.Same(t, before.Tree, after.Tree)

	require.NoError(t, l.SubmitAndWait(ctx, app.Increment{}))
	assert.Equal(t, before.Rev+1, l.Snapshot().Rev)
	assert.False(t, l.Snapshot().State.SkipNextRender)

	require.Eventually(t, func() bool {
		trs, keys := sink.snapshot()
		return len(trs) == 2 && len(keys) == 1
	}, time.Second, 5*time.Millisecond)

	trs, keys := sink.snapshot()
	assert.Equal(t, "KeyPressed", trs[0].Message)
	assert.Equal(t, "x", trs[0].Payload)
	assert.False(t, trs[0].Rendered)
	assert.Equal(t, "Increment", trs[1].Message)
	assert.True(t, trs[1].Rendered)
	assert.Equal(t, 5, trs[1].Cards)
	assert.Equal(t, "x", keys[0].Key)
	assert.Equal(t, trs[0].Seq, keys[0].Seq)
}

func TestFIFOOrder(t *testing.T) {
	sink := &memSink{}
	l := startLoop(t, WithSink(sink), WithSinkBuffer(512))
	ctx := context.Background()

	const n = 200
	for i := 0; i < n; i++ {
		require.NoError(t, l.Submit(ctx, app.Increment{}))
	}
	require.NoError(t, l.SubmitAndWait(ctx, app.ClockTick{Time: "end"}))

	f := l.Snapshot()
	assert.Equal(t, n, f.State.ClickCount)
	clock, ok := f.State.Clock()
	require.True(t, ok)
	assert.Equal(t, "end", clock)

	require.Eventually(t, func() bool {
		trs, _ := sink.snapshot()
		return len(trs) == n+1
	}, time.Second, 5*time.Millisecond)

	trs, _ := sink.snapshot()
	for i, tr := range trs {
		assert.Equal(t, uint64(i+1), tr.Seq)
	}
	assert.Equal(t, n, trs[n-1].ClickCount)
	assert.Equal(t, "end", trs[n].ClockTime)
}

func TestConcurrentSubmitters(t *testing.T) {
	l := startLoop(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = l.Submit(ctx, app.Increment{})
			}
		}()
	}
	wg.Wait()
	require.NoError(t, l.SubmitAndWait(ctx, app.NewRandomNumber{}))
	assert.Equal(t, 400, l.Snapshot().State.ClickCount)
}

func TestSubmitAfterStop(t *testing.T) {
	l := New(fixedEnv(1))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	require.NoError(t, l.SubmitAndWait(context.Background(), app.Increment{}))
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	assert.ErrorIs(t, l.Submit(context.Background(), app.Increment{}), ErrStopped)
	assert.ErrorIs(t, l.SubmitAndWait(context.Background(), app.Increment{}), ErrStopped)
}

func TestAcceptedMessagesApplyDuringShutdown(t *testing.T) {
	l := New(fixedEnv(1), WithInboxSize(4))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	var accepted atomic.Int64
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if err := l.Submit(context.Background(), app.Increment{}); err != nil {
					assert.ErrorIs(t, err, ErrStopped)
					return
				}
				accepted.Add(1)
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	wg.Wait()

	assert.Equal(t, int(accepted.Load()), l.Snapshot().State.ClickCount)
}

func TestSubmitHonoursContext(t *testing.T) {
	l := New(fixedEnv(1), WithInboxSize(1))
	require.NoError(t, l.Submit(context.Background(), app.Increment{}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Submit(ctx, app.Increment{}), context.DeadlineExceeded)
}

func TestSubscribe(t *testing.T) {
	l := New(fixedEnv(1))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(ctx)
	}()

	frames, unsubscribe := l.Subscribe()
	require.NoError(t, l.SubmitAndWait(context.Background(), app.SearchTyped{Text: "Onat"}))

	select {
	case f := <-frames:
		assert.Equal(t, "Onat", f.State.SearchText)
		assert.Equal(t, uint64(2), f.Rev)
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
	}

	other, _ := l.Subscribe()
	unsubscribe()
	_, open := <-frames
	assert.False(t, open)

	cancel()
	<-done
	_, open = <-other
	assert.False(t, open)
}

func TestWaiterAppliesBeforeReturning(t *testing.T) {
	l := startLoop(t)
	w := l.Waiter()
	require.NoError(t, w.Submit(context.Background(), app.Increment{}))
	assert.Equal(t, 1, l.Snapshot().State.ClickCount)
}
