package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rustacademy/academy/internal/eventsource"
	"github.com/rustacademy/academy/internal/tcpserver"
)

// NamedSource aliases the shared source abstraction to keep app-layer APIs explicit.
type NamedSource = eventsource.Source

// InputSourcePlugin is a small plugin primitive for wiring event inputs.
type InputSourcePlugin interface {
	Name() string
	Enabled() bool
	Build(ctx context.Context) (NamedSource, error)
}

// InputPluginConfig defines runtime input selection.
type InputPluginConfig struct {
	ClockEnabled  bool
	TickInterval  time.Duration
	ClockFormat   string
	TCPEnabled    bool
	TCPAddr       string
	StdinEnabled  bool
	stdinIsPipeFn func() bool
}

func buildInputPlugins(cfg InputPluginConfig) []InputSourcePlugin {
	isPipe := cfg.stdinIsPipeFn
	if isPipe == nil {
		isPipe = stdinIsPipe
	}
	return []InputSourcePlugin{
		clockInputPlugin{
			enabled:  cfg.ClockEnabled,
			interval: cfg.TickInterval,
			format:   cfg.ClockFormat,
		},
		tcpInputPlugin{
			addr:    cfg.TCPAddr,
			enabled: cfg.TCPEnabled,
		},
		stdinInputPlugin{
			enabled: cfg.StdinEnabled,
			isPipe:  isPipe,
		},
	}
}

// buildSources builds every enabled plugin, logging and skipping failures.
func buildSources(ctx context.Context, plugins []InputSourcePlugin, logf func(string, ...any)) []NamedSource {
	sources := make([]NamedSource, 0, len(plugins))
	for _, plugin := range plugins {
		if !plugin.Enabled() {
			continue
		}
		src, err := plugin.Build(ctx)
		if err != nil {
			logf("Error initializing input plugin %q: %v", plugin.Name(), err)
			continue
		}
		sources = append(sources, src)
	}
	return sources
}

type clockInputPlugin struct {
	enabled  bool
	interval time.Duration
	format   string
}

func (p clockInputPlugin) Name() string { return "clock" }

func (p clockInputPlugin) Enabled() bool { return p.enabled }

func (p clockInputPlugin) Build(ctx context.Context) (NamedSource, error) {
	return eventsource.NewClockSource(ctx, eventsource.ClockConfig{
		Interval: p.interval,
		Format:   p.format,
	}), nil
}

type tcpInputPlugin struct {
	addr    string
	enabled bool
}

func (p tcpInputPlugin) Name() string { return "tcp" }

func (p tcpInputPlugin) Enabled() bool { return p.enabled }

func (p tcpInputPlugin) Build(_ context.Context) (NamedSource, error) {
	server := tcpserver.NewServer(p.addr)
	if err := server.Start(); err != nil {
		return nil, fmt.Errorf("start tcp server: %w", err)
	}
	return eventsource.NewTCPSource(server), nil
}

type stdinInputPlugin struct {
	enabled bool
	isPipe  func() bool
}

func (p stdinInputPlugin) Name() string { return "stdin" }

// Enabled reports true only when stdin is piped; an interactive terminal is
// never read.
func (p stdinInputPlugin) Enabled() bool {
	return p.enabled && p.isPipe != nil && p.isPipe()
}

func (p stdinInputPlugin) Build(ctx context.Context) (NamedSource, error) {
	return eventsource.NewStdinSource(ctx), nil
}

func stdinIsPipe() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}
