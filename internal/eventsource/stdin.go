package eventsource

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/rustacademy/academy/internal/model"
)

const (
	// DefaultStdinBuffer is the default channel buffer for stdin lines.
	DefaultStdinBuffer = 1024

	// DefaultStdinMaxLineSize caps a single stdin line in bytes.
	DefaultStdinMaxLineSize = 64 * 1024
)

// StdinConfig holds tunable parameters for the stdin source.
type StdinConfig struct {
	BufferSize  int
	MaxLineSize int
}

// StdinSource replays an event script piped into the service: one event
// per line, blank lines and lines starting with '#' ignored.
type StdinSource struct {
	ch   chan model.IngestEnvelope
	stop context.CancelFunc
	once sync.Once
}

// NewStdinSource creates a StdinSource reading os.Stdin in the background.
func NewStdinSource(ctx context.Context, conf ...StdinConfig) *StdinSource {
	return newStdinSourceWithReader(ctx, os.Stdin, conf...)
}

func newStdinSourceWithReader(ctx context.Context, r io.Reader, conf ...StdinConfig) *StdinSource {
	c := StdinConfig{BufferSize: DefaultStdinBuffer, MaxLineSize: DefaultStdinMaxLineSize}
	if len(conf) > 0 {
		if conf[0].BufferSize > 0 {
			c.BufferSize = conf[0].BufferSize
		}
		if conf[0].MaxLineSize > 0 {
			c.MaxLineSize = conf[0].MaxLineSize
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &StdinSource{ch: make(chan model.IngestEnvelope, c.BufferSize), stop: cancel}

	// The scanner may stay blocked in Read after Stop; it hands lines over
	// an unbuffered channel so the forwarder below can close Lines promptly.
	scanned := make(chan string)
	go func() {
		defer close(scanned)
		err := scanScript(r, c.MaxLineSize, func(line string) bool {
			select {
			case scanned <- line:
				return true
			case <-ctx.Done():
				return false
			}
		})
		if err != nil {
			log.Printf("eventsource: stdin: %v", err)
		}
	}()
	go s.forward(ctx, scanned)
	return s
}

func (s *StdinSource) forward(ctx context.Context, scanned <-chan string) {
	defer close(s.ch)
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-scanned:
			if !ok {
				// Let the processor drop an event cut off by EOF.
				select {
				case s.ch <- model.IngestEnvelope{Source: s.Name(), Closed: true}:
				case <-ctx.Done():
				}
				return
			}
			select {
			case s.ch <- model.IngestEnvelope{Source: s.Name(), Line: line}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// scanScript calls emit for each event line in r until emit returns false
// or r is exhausted.
func scanScript(r io.Reader, maxLineSize int, emit func(string) bool) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, min(4096, maxLineSize)), maxLineSize)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if trimmed := strings.TrimSpace(line); trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if !emit(line) {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return fmt.Errorf("line exceeds %d bytes, stopping", maxLineSize)
		}
		return err
	}
	return nil
}

func (s *StdinSource) Lines() <-chan model.IngestEnvelope { return s.ch }
func (s *StdinSource) Stop()                              { s.once.Do(s.stop) }
func (s *StdinSource) Name() string                       { return "stdin" }
