package event

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/rustacademy/academy/internal/app"
)

// Submitter accepts messages into the runtime loop.
type Submitter interface {
	Submit(ctx context.Context, msg app.Msg) error
}

// Journal durably records accepted envelopes until they are committed.
type Journal interface {
	Append(e Envelope) (uint64, error)
	Commit(seq uint64) error
}

// DispatcherStats reports dispatcher counters.
type DispatcherStats struct {
	Accepted uint64 `json:"accepted"`
	Dropped  uint64 `json:"dropped"`
}

// Dispatcher decodes host envelopes and submits the resulting messages.
// Invalid envelopes are logged and dropped before reaching the runtime.
type Dispatcher struct {
	sub     Submitter
	journal Journal

	accepted atomic.Uint64
	dropped  atomic.Uint64
}

// NewDispatcher creates a dispatcher feeding sub.
func NewDispatcher(sub Submitter) *Dispatcher {
	return &Dispatcher{sub: sub}
}

// SetJournal enables write-ahead journaling of accepted envelopes. The
// submitter should return only after the message has been applied, so the
// commit that follows marks durable progress.
func (d *Dispatcher) SetJournal(j Journal) {
	d.journal = j
}

// Dispatch decodes e and submits it. Decode failures are returned wrapped
// with ErrUnknownEvent or ErrInvalidPayload.
func (d *Dispatcher) Dispatch(ctx context.Context, e Envelope) error {
	msg, err := Decode(e)
	if err != nil {
		d.dropped.Add(1)
		log.Printf("event: drop %q: %v", e.Name, err)
		return err
	}

	var seq uint64
	if d.journal != nil {
		seq, err = d.journal.Append(e)
		if err != nil {
			log.Printf("event: journal append failed: %v", err)
			seq = 0
		}
	}

	if err := d.sub.Submit(ctx, msg); err != nil {
		return fmt.Errorf("event: submit %s: %w", msg.Name(), err)
	}
	d.accepted.Add(1)

	if seq > 0 {
		if err := d.journal.Commit(seq); err != nil {
			log.Printf("event: journal commit failed: %v", err)
		}
	}
	return nil
}

// Replay submits an already journaled envelope without journaling it again.
func (d *Dispatcher) Replay(ctx context.Context, e Envelope) error {
	msg, err := Decode(e)
	if err != nil {
		d.dropped.Add(1)
		log.Printf("event: drop replayed %q: %v", e.Name, err)
		return nil
	}
	if err := d.sub.Submit(ctx, msg); err != nil {
		return fmt.Errorf("event: replay %s: %w", msg.Name(), err)
	}
	d.accepted.Add(1)
	return nil
}

// Stats returns a snapshot of the dispatcher counters.
func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Accepted: d.accepted.Load(),
		Dropped:  d.dropped.Load(),
	}
}
