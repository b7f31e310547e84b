package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/rustacademy/academy/internal/app"
	"github.com/rustacademy/academy/internal/event"
	"github.com/rustacademy/academy/internal/model"
)

// PassthroughProcessor treats every line as a raw key name, for bridges
// that only capture keyboard input.
type PassthroughProcessor struct {
	mu         sync.RWMutex
	sink       EnvelopeSink
	sourceName string
}

// NewPassthroughProcessor creates a new passthrough processor.
func NewPassthroughProcessor(sink EnvelopeSink, sourceName string) *PassthroughProcessor {
	return &PassthroughProcessor{
		sink:       sink,
		sourceName: sourceName,
	}
}

func (p *PassthroughProcessor) Name() string { return ProcessorModePassthrough }

// ProcessLine processes an untagged line using the processor source name.
func (p *PassthroughProcessor) ProcessLine(ctx context.Context, line string) *ProcessResult {
	return p.ProcessEnvelope(ctx, model.IngestEnvelope{
		Source: p.getSourceName(),
		Line:   line,
	})
}

// ProcessEnvelope turns one line into a KeyPressed event.
func (p *PassthroughProcessor) ProcessEnvelope(ctx context.Context, in model.IngestEnvelope) *ProcessResult {
	if in.Line == "" {
		return nil
	}

	source := in.Source
	if source == "" {
		source = p.getSourceName()
	}

	res := &ProcessResult{Source: source, Envelope: event.New(app.NameKeyPressed, in.Line)}
	if p.sink != nil {
		if err := p.sink.Dispatch(ctx, res.Envelope); err != nil {
			res.Err = fmt.Errorf("ingest: %s: %w", source, err)
		}
	}
	return res
}

// SetSourceName updates the default source name for untagged lines.
func (p *PassthroughProcessor) SetSourceName(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sourceName = name
}

func (p *PassthroughProcessor) getSourceName() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sourceName
}
