package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustacademy/academy/internal/event"
	"github.com/rustacademy/academy/internal/model"
)

type recordingSink struct {
	envelopes []event.Envelope
	err       error
}

func (s *recordingSink) Dispatch(_ context.Context, e event.Envelope) error {
	s.envelopes = append(s.envelopes, e)
	return s.err
}

func TestNewEnvelopeProcessorDefaultParse(t *testing.T) {
	t.Parallel()

	p, err := NewEnvelopeProcessor("", nil, "")
	require.NoError(t, err)
	assert.Equal(t, ProcessorModeParse, p.Name())
	assert.IsType(t, &Processor{}, p)
}

func TestNewEnvelopeProcessorPassthrough(t *testing.T) {
	t.Parallel()

	p, err := NewEnvelopeProcessor(" Passthrough ", nil, "")
	require.NoError(t, err)
	assert.Equal(t, ProcessorModePassthrough, p.Name())
	assert.IsType(t, &PassthroughProcessor{}, p)
}

func TestNewEnvelopeProcessorInvalidMode(t *testing.T) {
	t.Parallel()

	_, err := NewEnvelopeProcessor("unknown", nil, "")
	assert.Error(t, err)
}

func TestPassthroughEmitsKeyPressed(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	p := NewPassthroughProcessor(sink, "stdin")

	res := p.ProcessEnvelope(context.Background(), model.IngestEnvelope{Line: "ArrowUp"})
	require.NotNil(t, res)
	assert.Equal(t, "stdin", res.Source)
	assert.Equal(t, []event.Envelope{event.New("KeyPressed", "ArrowUp")}, sink.envelopes)

	assert.Nil(t, p.ProcessEnvelope(context.Background(), model.IngestEnvelope{}))

	p.SetSourceName("tty")
	res = p.ProcessLine(context.Background(), "q")
	assert.Equal(t, "tty", res.Source)
}

func TestPassthroughWrapsSinkError(t *testing.T) {
	t.Parallel()

	boom := errors.New("stopped")
	p := NewPassthroughProcessor(&recordingSink{err: boom}, "stdin")
	res := p.ProcessLine(context.Background(), "a")
	assert.ErrorIs(t, res.Err, boom)
}
