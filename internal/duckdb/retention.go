package duckdb

import (
	"context"
	"log"
	"time"
)

const (
	// DefaultRetentionDays is used when no retention is configured.
	DefaultRetentionDays = 30

	defaultSweepInterval = time.Hour
)

// RetentionConfig controls how long recorded history is kept.
type RetentionConfig struct {
	RetentionDays int
	// SweepInterval defaults to one hour.
	SweepInterval time.Duration
}

// historyPruner is the part of Store the sweeper needs.
type historyPruner interface {
	DeleteBefore(cutoff time.Time) (int64, error)
}

// RetentionSweeper deletes transitions and key presses older than the
// retention window.
type RetentionSweeper struct {
	store    historyPruner
	keep     time.Duration
	interval time.Duration
	now      func() time.Time
}

// NewRetentionSweeper returns nil when retention is disabled (days <= 0).
func NewRetentionSweeper(store *Store, conf RetentionConfig) *RetentionSweeper {
	if conf.RetentionDays <= 0 {
		return nil
	}
	return newRetentionSweeper(store, conf)
}

func newRetentionSweeper(store historyPruner, conf RetentionConfig) *RetentionSweeper {
	interval := conf.SweepInterval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &RetentionSweeper{
		store:    store,
		keep:     time.Duration(conf.RetentionDays) * 24 * time.Hour,
		interval: interval,
		now:      time.Now,
	}
}

// Run sweeps at startup to catch up after downtime and then every interval
// until ctx ends.
func (r *RetentionSweeper) Run(ctx context.Context) error {
	r.Sweep()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Sweep deletes expired history once and returns the number of rows removed.
func (r *RetentionSweeper) Sweep() int64 {
	cutoff := r.now().Add(-r.keep)
	n, err := r.store.DeleteBefore(cutoff)
	if err != nil {
		log.Printf("duckdb: retention sweep failed: %v", err)
		return n
	}
	if n > 0 {
		log.Printf("duckdb: retention removed %d rows recorded before %s", n, cutoff.UTC().Format(time.RFC3339))
	}
	return n
}
