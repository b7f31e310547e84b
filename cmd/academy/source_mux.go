package main

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/rustacademy/academy/internal/model"
)

// DefaultMuxBuffer is the default channel buffer size for the source multiplexer.
const DefaultMuxBuffer = 4096

type muxInput struct {
	src       NamedSource
	forwarded atomic.Uint64
	live      atomic.Bool
}

// SourceMultiplexer fans several event sources into one stream for the
// line processor. Order is kept per source, not across sources. Lines
// arriving untagged are tagged with their source's name.
type SourceMultiplexer struct {
	ctx    context.Context
	cancel context.CancelFunc
	inputs []*muxInput
	out    chan model.IngestEnvelope

	start sync.Once
	stop  sync.Once
	done  chan struct{}
}

func NewSourceMultiplexer(parent context.Context, sources []NamedSource, buffer int) *SourceMultiplexer {
	if buffer <= 0 {
		buffer = DefaultMuxBuffer
	}
	ctx, cancel := context.WithCancel(parent)
	m := &SourceMultiplexer{
		ctx:    ctx,
		cancel: cancel,
		out:    make(chan model.IngestEnvelope, buffer),
		done:   make(chan struct{}),
	}
	for _, src := range sources {
		m.inputs = append(m.inputs, &muxInput{src: src})
	}
	return m
}

// Start begins forwarding. Lines closes once every source has ended or
// the multiplexer is stopped.
func (m *SourceMultiplexer) Start() {
	m.start.Do(func() {
		var g errgroup.Group
		for _, in := range m.inputs {
			in.live.Store(true)
			g.Go(func() error {
				defer in.live.Store(false)
				m.pump(in)
				return nil
			})
		}
		go func() {
			_ = g.Wait()
			close(m.out)
			close(m.done)
		}()
	})
}

func (m *SourceMultiplexer) pump(in *muxInput) {
	name := in.src.Name()
	lines := in.src.Lines()
	for {
		var env model.IngestEnvelope
		var ok bool
		select {
		case <-m.ctx.Done():
			return
		case env, ok = <-lines:
			if !ok {
				return
			}
		}
		if env.Line == "" {
			continue
		}
		if env.Source == "" {
			env.Source = name
		}
		select {
		case m.out <- env:
			in.forwarded.Add(1)
		case <-m.ctx.Done():
			return
		}
	}
}

// Stop stops every source and waits for the forwarders to exit.
func (m *SourceMultiplexer) Stop() {
	m.stop.Do(func() {
		m.Start() // make sure done is eventually closed
		m.cancel()
		for _, in := range m.inputs {
			in.src.Stop()
		}
		<-m.done
	})
}

func (m *SourceMultiplexer) Lines() <-chan model.IngestEnvelope {
	return m.out
}

func (m *SourceMultiplexer) HasSources() bool {
	return len(m.inputs) > 0
}

// SourceNames lists the multiplexed sources in registration order.
func (m *SourceMultiplexer) SourceNames() []string {
	names := make([]string, 0, len(m.inputs))
	for _, in := range m.inputs {
		names = append(names, in.src.Name())
	}
	return names
}

// Forwarded reports how many lines each source has delivered.
func (m *SourceMultiplexer) Forwarded() map[string]uint64 {
	out := make(map[string]uint64, len(m.inputs))
	for _, in := range m.inputs {
		out[in.src.Name()] = in.forwarded.Load()
	}
	return out
}

// Live lists sources that are still producing.
func (m *SourceMultiplexer) Live() []string {
	var names []string
	for _, in := range m.inputs {
		if in.live.Load() {
			names = append(names, in.src.Name())
		}
	}
	return names
}
