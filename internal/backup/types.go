// Package backup takes periodic snapshots of the transition store and
// rotates them in a local directory.
package backup

import (
	"context"
	"time"
)

// Config controls periodic snapshots of the transition store.
type Config struct {
	Enabled  bool
	Interval time.Duration
	LocalDir string
	KeepLast int
	// Prefix names snapshot files: <Prefix>-<UTC timestamp>.duckdb.
	Prefix string
}

// Snapshotter writes a consistent copy of the store to a path.
type Snapshotter interface {
	SnapshotTo(ctx context.Context, dstPath string) error
}

// Snapshot describes one snapshot file on disk.
type Snapshot struct {
	Path string
	At   time.Time
	Size int64
}
