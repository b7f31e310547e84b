package eventsource

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/rustacademy/academy/internal/app"
	"github.com/rustacademy/academy/internal/event"
	"github.com/rustacademy/academy/internal/model"
)

// ClockConfig configures the host clock bridge.
type ClockConfig struct {
	Interval time.Duration
	Format   string
	Now      func() time.Time
}

// ClockSource emits a ClockTick event line every interval, carrying the
// current time formatted with Format.
type ClockSource struct {
	ch     chan model.IngestEnvelope
	cancel context.CancelFunc
	once   sync.Once
}

// NewClockSource starts the clock bridge. The first tick fires immediately.
func NewClockSource(ctx context.Context, conf ClockConfig) *ClockSource {
	if conf.Interval <= 0 {
		conf.Interval = model.DefaultTickInterval
	}
	if conf.Format == "" {
		conf.Format = model.DefaultClockFormat
	}
	if conf.Now == nil {
		conf.Now = time.Now
	}
	ctx, cancel := context.WithCancel(ctx)
	c := &ClockSource{
		ch:     make(chan model.IngestEnvelope, 1),
		cancel: cancel,
	}
	go c.run(ctx, conf)
	return c
}

func (c *ClockSource) run(ctx context.Context, conf ClockConfig) {
	defer close(c.ch)

	ticker := time.NewTicker(conf.Interval)
	defer ticker.Stop()

	emit := func() bool {
		line, err := tickLine(conf.Now().Format(conf.Format))
		if err != nil {
			log.Printf("eventsource: clock encode: %v", err)
			return true
		}
		select {
		case c.ch <- model.IngestEnvelope{Source: c.Name(), Line: line}:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !emit() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !emit() {
				return
			}
		}
	}
}

func tickLine(value string) (string, error) {
	data, err := json.Marshal(event.New(app.NameClockTick, value))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (c *ClockSource) Lines() <-chan model.IngestEnvelope { return c.ch }
func (c *ClockSource) Stop()                              { c.once.Do(c.cancel) }
func (c *ClockSource) Name() string                       { return "clock" }
