package backup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const (
	defaultInterval = 6 * time.Hour
	defaultKeepLast = 24
	defaultPrefix   = "academy"
	stampLayout     = "20060102T150405Z"
	snapshotExt     = ".duckdb"
)

// Manager snapshots the store on a schedule and keeps the newest KeepLast.
type Manager struct {
	store Snapshotter
	cfg   Config
	now   func() time.Time
}

// NewManager validates cfg and prepares the backup directory. It returns a
// nil manager when backups are disabled.
func NewManager(store Snapshotter, cfg Config) (*Manager, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if store == nil {
		return nil, errors.New("backup: no store to snapshot")
	}
	if strings.TrimSpace(cfg.LocalDir) == "" {
		return nil, errors.New("backup: backup-dir is required when backups are enabled")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.KeepLast <= 0 {
		cfg.KeepLast = defaultKeepLast
	}
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	if err := os.MkdirAll(cfg.LocalDir, 0o755); err != nil {
		return nil, fmt.Errorf("backup: create backup-dir: %w", err)
	}
	return &Manager{store: store, cfg: cfg, now: time.Now}, nil
}

// Run snapshots immediately and then every interval until ctx ends.
// Failures are logged; a failed snapshot never stops the schedule.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := m.RunOnce(ctx); err != nil && ctx.Err() == nil {
			log.Printf("backup: %v", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce writes one snapshot, rotates old ones and returns the new path.
func (m *Manager) RunOnce(ctx context.Context) (string, error) {
	at := m.now().UTC()
	path := filepath.Join(m.cfg.LocalDir, m.cfg.Prefix+"-"+at.Format(stampLayout)+snapshotExt)

	start := time.Now()
	if err := m.store.SnapshotTo(ctx, path); err != nil {
		return "", fmt.Errorf("snapshot failed: %w", err)
	}

	removed, err := m.rotate()
	if err != nil {
		return path, fmt.Errorf("rotate: %w", err)
	}
	log.Printf("backup: wrote %s in %s (rotated out %d)", filepath.Base(path), time.Since(start).Round(time.Millisecond), removed)
	return path, nil
}

// Snapshots lists this manager's snapshots, newest first. Files that do
// not carry the configured prefix and timestamp are ignored.
func (m *Manager) Snapshots() ([]Snapshot, error) {
	entries, err := os.ReadDir(m.cfg.LocalDir)
	if err != nil {
		return nil, err
	}

	var out []Snapshot
	for _, e := range entries {
		at, ok := m.parseName(e.Name())
		if !ok || e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Snapshot{Path: filepath.Join(m.cfg.LocalDir, e.Name()), At: at, Size: info.Size()})
	}
	slices.SortFunc(out, func(a, b Snapshot) int { return b.At.Compare(a.At) })
	return out, nil
}

func (m *Manager) parseName(name string) (time.Time, bool) {
	stamp, ok := strings.CutPrefix(name, m.cfg.Prefix+"-")
	if !ok {
		return time.Time{}, false
	}
	stamp, ok = strings.CutSuffix(stamp, snapshotExt)
	if !ok {
		return time.Time{}, false
	}
	at, err := time.Parse(stampLayout, stamp)
	return at, err == nil
}

func (m *Manager) rotate() (int, error) {
	snaps, err := m.Snapshots()
	if err != nil || len(snaps) <= m.cfg.KeepLast {
		return 0, err
	}
	removed := 0
	for _, s := range snaps[m.cfg.KeepLast:] {
		if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
