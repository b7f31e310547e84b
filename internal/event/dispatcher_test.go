package event

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustacademy/academy/internal/app"
)

type recordingSubmitter struct {
	msgs []app.Msg
	err  error
}

func (r *recordingSubmitter) Submit(_ context.Context, msg app.Msg) error {
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, msg)
	return nil
}

type memJournal struct {
	entries   []Envelope
	committed uint64
	appendErr error
}

func (m *memJournal) Append(e Envelope) (uint64, error) {
	if m.appendErr != nil {
		return 0, m.appendErr
	}
	m.entries = append(m.entries, e)
	return uint64(len(m.entries)), nil
}

func (m *memJournal) Commit(seq uint64) error {
	m.committed = seq
	return nil
}

func TestDispatcherSubmitsValid(t *testing.T) {
	sub := &recordingSubmitter{}
	d := NewDispatcher(sub)

	require.NoError(t, d.Dispatch(context.Background(), Bare("Increment")))
	require.NoError(t, d.Dispatch(context.Background(), New("OnClockTick", "t")))

	assert.Equal(t, []app.Msg{app.Increment{}, app.ClockTick{Time: "t"}}, sub.msgs)
	assert.Equal(t, DispatcherStats{Accepted: 2}, d.Stats())
}

func TestDispatcherDropsInvalid(t *testing.T) {
	sub := &recordingSubmitter{}
	d := NewDispatcher(sub)

	err := d.Dispatch(context.Background(), Bare("Nope"))
	assert.ErrorIs(t, err, ErrUnknownEvent)
	err = d.Dispatch(context.Background(), Bare("SearchTyped"))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	assert.Empty(t, sub.msgs)
	assert.Equal(t, DispatcherStats{Dropped: 2}, d.Stats())
}

func TestDispatcherSubmitError(t *testing.T) {
	boom := errors.New("stopped")
	d := NewDispatcher(&recordingSubmitter{err: boom})

	err := d.Dispatch(context.Background(), Bare("Increment"))
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, d.Stats().Accepted)
}

func TestDispatcherJournalsAndCommits(t *testing.T) {
	sub := &recordingSubmitter{}
	j := &memJournal{}
	d := NewDispatcher(sub)
	d.SetJournal(j)

	require.NoError(t, d.Dispatch(context.Background(), New("SearchTyped", "a")))
	require.NoError(t, d.Dispatch(context.Background(), Bare("Increment")))
	_ = d.Dispatch(context.Background(), Bare("Unknown"))

	assert.Len(t, j.entries, 2)
	assert.Equal(t, uint64(2), j.committed)
}

func TestDispatcherJournalFailureStillSubmits(t *testing.T) {
	sub := &recordingSubmitter{}
	j := &memJournal{appendErr: errors.New("disk full")}
	d := NewDispatcher(sub)
	d.SetJournal(j)

	require.NoError(t, d.Dispatch(context.Background(), Bare("Increment")))
	assert.Len(t, sub.msgs, 1)
	assert.Zero(t, j.committed)
}

func TestDispatcherReplayDoesNotJournal(t *testing.T) {
	sub := &recordingSubmitter{}
	j := &memJournal{}
	d := NewDispatcher(sub)
	d.SetJournal(j)

	require.NoError(t, d.Replay(context.Background(), Bare("Increment")))
	require.NoError(t, d.Replay(context.Background(), Bare("Bogus")))

	assert.Empty(t, j.entries)
	assert.Len(t, sub.msgs, 1)
	assert.Equal(t, DispatcherStats{Accepted: 1, Dropped: 1}, d.Stats())
}
