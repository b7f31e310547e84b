package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rustacademy/academy/internal/event"
	"github.com/rustacademy/academy/internal/model"
)

const (
	// DefaultMaxEventLines caps the lines of one multi-line JSON event.
	DefaultMaxEventLines = 64
	// DefaultMaxEventBytes caps the size of one multi-line JSON event.
	DefaultMaxEventBytes = 64 * 1024
)

// accumulator collects a JSON event spread over several lines.
type accumulator struct {
	buf   strings.Builder
	lines int
	depth int
}

// Processor decodes host event lines and hands them to a sink.
//
// Lines are JSON events (see event.DecodeJSON), possibly spread over several
// lines, or the text form "<Name> [payload]". Multi-line accumulation is
// tracked per source so interleaved sources do not corrupt each other.
type Processor struct {
	sink EnvelopeSink

	mu         sync.Mutex
	sourceName string
	pending    map[string]*accumulator
	maxLines   int
	maxBytes   int
}

// NewProcessor creates a new event line processor.
func NewProcessor(sink EnvelopeSink, sourceName string) *Processor {
	return &Processor{
		sink:       sink,
		sourceName: sourceName,
		pending:    make(map[string]*accumulator),
		maxLines:   DefaultMaxEventLines,
		maxBytes:   DefaultMaxEventBytes,
	}
}

// SetLimits caps a multi-line event. Non-positive values keep the current cap.
func (p *Processor) SetLimits(maxLines, maxBytes int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if maxLines > 0 {
		p.maxLines = maxLines
	}
	if maxBytes > 0 {
		p.maxBytes = maxBytes
	}
}

func (p *Processor) Name() string { return ProcessorModeParse }

// ProcessLine processes an untagged line using the default source name.
func (p *Processor) ProcessLine(ctx context.Context, line string) *ProcessResult {
	return p.ProcessEnvelope(ctx, model.IngestEnvelope{Line: line})
}

// ProcessEnvelope processes one source-tagged line. It returns nil while a
// multi-line JSON event is still being accumulated. An event that outgrows
// the limits, or whose source closes mid-event, is reported with
// event.ErrInvalidPayload and discarded.
func (p *Processor) ProcessEnvelope(ctx context.Context, in model.IngestEnvelope) *ProcessResult {
	source := in.Source
	if source == "" {
		source = p.getSourceName()
	}

	if in.Closed {
		if p.discard(source) {
			return &ProcessResult{Source: source, Err: fmt.Errorf("%w: %s closed inside a multi-line event", event.ErrInvalidPayload, source)}
		}
		return nil
	}

	complete, ok, err := p.accumulate(source, in.Line)
	if err != nil {
		return &ProcessResult{Source: source, Err: err}
	}
	if !ok {
		return nil
	}
	if strings.TrimSpace(complete) == "" {
		return nil
	}
	return p.processEntry(ctx, source, complete)
}

// accumulate returns the complete event text once one is available.
func (p *Processor) accumulate(source, line string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, inObject := p.pending[source]
	if !inObject {
		if !strings.HasPrefix(strings.TrimSpace(line), "{") {
			return line, true, nil
		}
		acc = &accumulator{}
	}

	acc.buf.WriteString(line)
	acc.buf.WriteString("\n")
	acc.lines++
	acc.depth += CountJSONDepth(line)

	if acc.depth <= 0 {
		delete(p.pending, source)
		return strings.TrimSpace(acc.buf.String()), true, nil
	}
	if acc.lines >= p.maxLines || acc.buf.Len() > p.maxBytes {
		delete(p.pending, source)
		return "", false, fmt.Errorf("%w: multi-line event from %s exceeds %d lines or %d bytes",
			event.ErrInvalidPayload, source, p.maxLines, p.maxBytes)
	}
	p.pending[source] = acc
	return "", false, nil
}

// discard drops the unfinished event of source and reports whether there was one.
func (p *Processor) discard(source string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.pending[source]
	delete(p.pending, source)
	return ok
}

func (p *Processor) processEntry(ctx context.Context, source, text string) *ProcessResult {
	res := &ProcessResult{Source: source}

	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, `"`) {
		res.Envelope, res.Err = event.DecodeJSON([]byte(trimmed))
	} else {
		res.Envelope = ParseTextEvent(trimmed)
	}
	if res.Err != nil {
		return res
	}

	if p.sink != nil {
		if err := p.sink.Dispatch(ctx, res.Envelope); err != nil {
			res.Err = fmt.Errorf("ingest: %s: %w", source, err)
		}
	}
	return res
}

// ParseTextEvent parses "<Name> [payload]". Everything after the first space
// is the payload, kept verbatim.
func ParseTextEvent(line string) event.Envelope {
	name, payload, found := strings.Cut(line, " ")
	if !found {
		return event.Bare(name)
	}
	return event.New(name, payload)
}

// CountJSONDepth counts the net change in JSON nesting depth for a line.
func CountJSONDepth(line string) int {
	depth := 0
	inString := false
	escaped := false

	for _, char := range line {
		if escaped {
			escaped = false
			continue
		}

		switch char {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{', '[':
			if !inString {
				depth++
			}
		case '}', ']':
			if !inString {
				depth--
			}
		}
	}

	return depth
}

// Pending reports how many sources have an unfinished multi-line event.
func (p *Processor) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// SetSourceName updates the default source name for untagged lines.
func (p *Processor) SetSourceName(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sourceName = name
}

func (p *Processor) getSourceName() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sourceName
}
