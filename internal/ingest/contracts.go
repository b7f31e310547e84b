package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/rustacademy/academy/internal/event"
	"github.com/rustacademy/academy/internal/model"
)

const (
	// ProcessorModeParse decodes each line as a host event.
	ProcessorModeParse = "parse"
	// ProcessorModePassthrough forwards each raw line as a key press.
	ProcessorModePassthrough = "passthrough"
)

// EnvelopeSink receives decoded host events.
type EnvelopeSink interface {
	Dispatch(ctx context.Context, e event.Envelope) error
}

// ProcessResult holds the outcome of processing one complete event.
type ProcessResult struct {
	Source   string
	Envelope event.Envelope
	Err      error
}

// EnvelopeProcessor consumes source-tagged lines and emits host events.
type EnvelopeProcessor interface {
	Name() string
	ProcessEnvelope(ctx context.Context, env model.IngestEnvelope) *ProcessResult
}

// NewEnvelopeProcessor creates the processor for mode. An empty mode selects parse.
func NewEnvelopeProcessor(mode string, sink EnvelopeSink, sourceName string) (EnvelopeProcessor, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ProcessorModeParse:
		return NewProcessor(sink, sourceName), nil
	case ProcessorModePassthrough:
		return NewPassthroughProcessor(sink, sourceName), nil
	default:
		return nil, fmt.Errorf("ingest: unknown processor mode %q", mode)
	}
}
