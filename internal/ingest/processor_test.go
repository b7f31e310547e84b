package ingest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustacademy/academy/internal/event"
	"github.com/rustacademy/academy/internal/model"
)

func TestProcessorSingleLineJSON(t *testing.T) {
	sink := &recordingSink{}
	p := NewProcessor(sink, "tcp")

	res := p.ProcessLine(context.Background(), `{"name":"SearchTyped","payload":"Onat"}`)
	require.NotNil(t, res)
	require.NoError(t, res.Err)
	assert.Equal(t, "tcp", res.Source)
	assert.Equal(t, event.New("SearchTyped", "Onat"), res.Envelope)
	assert.Len(t, sink.envelopes, 1)
}

func TestProcessorTaggedAndTextForms(t *testing.T) {
	sink := &recordingSink{}
	p := NewProcessor(sink, "stdin")
	ctx := context.Background()

	p.ProcessLine(ctx, `{"OnClockTick":"12:00:00"}`)
	p.ProcessLine(ctx, `"Increment"`)
	p.ProcessLine(ctx, `SearchTyped Lunch with Onat`)
	p.ProcessLine(ctx, `NewRandomNumber`)

	assert.Equal(t, []event.Envelope{
		event.New("OnClockTick", "12:00:00"),
		event.Bare("Increment"),
		event.New("SearchTyped", "Lunch with Onat"),
		event.Bare("NewRandomNumber"),
	}, sink.envelopes)
}

func TestProcessorMultiLineJSON(t *testing.T) {
	sink := &recordingSink{}
	p := NewProcessor(sink, "stdin")
	ctx := context.Background()

	assert.Nil(t, p.ProcessLine(ctx, `{`))
	assert.Nil(t, p.ProcessLine(ctx, `  "name": "KeyPressed",`))
	assert.Equal(t, 1, p.Pending())
	res := p.ProcessLine(ctx, `  "payload": "}" }`)
	require.NotNil(t, res)
	require.NoError(t, res.Err)
	assert.Equal(t, event.New("KeyPressed", "}"), res.Envelope)
	assert.Zero(t, p.Pending())
}

func TestProcessorInterleavedSources(t *testing.T) {
	sink := &recordingSink{}
	p := NewProcessor(sink, "")
	ctx := context.Background()

	assert.Nil(t, p.ProcessEnvelope(ctx, model.IngestEnvelope{Source: "a", Line: `{"name":`}))
	res := p.ProcessEnvelope(ctx, model.IngestEnvelope{Source: "b", Line: `Increment`})
	require.NotNil(t, res)
	assert.Equal(t, "b", res.Source)

	res = p.ProcessEnvelope(ctx, model.IngestEnvelope{Source: "a", Line: `"NewRandomNumber"}`})
	require.NotNil(t, res)
	assert.Equal(t, "a", res.Source)
	assert.Equal(t, event.Bare("NewRandomNumber"), res.Envelope)
}

func TestProcessorInvalidJSONNotDispatched(t *testing.T) {
	sink := &recordingSink{}
	p := NewProcessor(sink, "tcp")

	res := p.ProcessLine(context.Background(), `{"name": 12}`)
	require.NotNil(t, res)
	assert.ErrorIs(t, res.Err, event.ErrInvalidPayload)
	assert.Empty(t, sink.envelopes)
}

func TestProcessorBlankLine(t *testing.T) {
	p := NewProcessor(&recordingSink{}, "tcp")
	assert.Nil(t, p.ProcessLine(context.Background(), "   "))
}

func TestCountJSONDepth(t *testing.T) {
	tests := []struct {
		line string
		want int
	}{
		{`{`, 1},
		{`}`, -1},
		{`{"a": [1, 2]}`, 0},
		{`{"a": "{["`, 1},
		{`"\"{"`, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CountJSONDepth(tt.line), tt.line)
	}
}

func TestParseTextEvent(t *testing.T) {
	assert.Equal(t, event.Bare("Increment"), ParseTextEvent("Increment"))
	assert.Equal(t, event.New("KeyPressed", " "), ParseTextEvent("KeyPressed  "))
}

func TestProcessorRecoversFromUnbalancedLine(t *testing.T) {
	sink := &recordingSink{}
	p := NewProcessor(sink, "")
	p.SetLimits(4, 0)
	ctx := context.Background()
	src := func(line string) model.IngestEnvelope {
		return model.IngestEnvelope{Source: "tcp#1", Line: line}
	}

	assert.Nil(t, p.ProcessEnvelope(ctx, src(`{"name": "Increment"`)))
	assert.Nil(t, p.ProcessEnvelope(ctx, src(`Increment`)))
	assert.Nil(t, p.ProcessEnvelope(ctx, src(`Increment`)))

	res := p.ProcessEnvelope(ctx, src(`Increment`))
	require.NotNil(t, res)
	assert.ErrorIs(t, res.Err, event.ErrInvalidPayload)
	assert.Zero(t, p.Pending())

	for i := 0; i < 100; i++ {
		res = p.ProcessEnvelope(ctx, src(`Increment`))
		require.NotNil(t, res)
		require.NoError(t, res.Err)
	}
	assert.Len(t, sink.envelopes, 100)
}

func TestProcessorCapsEventBytes(t *testing.T) {
	sink := &recordingSink{}
	p := NewProcessor(sink, "tcp")
	p.SetLimits(0, 32)
	ctx := context.Background()

	assert.Nil(t, p.ProcessLine(ctx, `{`))
	res := p.ProcessLine(ctx, fmt.Sprintf(`"name": "%s",`, strings.Repeat("x", 40)))
	require.NotNil(t, res)
	assert.ErrorIs(t, res.Err, event.ErrInvalidPayload)
	assert.Zero(t, p.Pending())
	assert.Empty(t, sink.envelopes)
}

func TestProcessorDropsPendingOnSourceClose(t *testing.T) {
	sink := &recordingSink{}
	p := NewProcessor(sink, "")
	ctx := context.Background()

	assert.Nil(t, p.ProcessEnvelope(ctx, model.IngestEnvelope{Source: "tcp#1", Line: `{"name":`}))
	assert.Nil(t, p.ProcessEnvelope(ctx, model.IngestEnvelope{Source: "tcp#2", Closed: true}))
	assert.Equal(t, 1, p.Pending())

	res := p.ProcessEnvelope(ctx, model.IngestEnvelope{Source: "tcp#1", Closed: true})
	require.NotNil(t, res)
	assert.ErrorIs(t, res.Err, event.ErrInvalidPayload)
	assert.Zero(t, p.Pending())
	assert.Empty(t, sink.envelopes)
}

func TestPassthroughIgnoresSourceClose(t *testing.T) {
	sink := &recordingSink{}
	p := NewPassthroughProcessor(sink, "tcp")

	assert.Nil(t, p.ProcessEnvelope(context.Background(), model.IngestEnvelope{Source: "tcp#1", Closed: true}))
	assert.Empty(t, sink.envelopes)
}
