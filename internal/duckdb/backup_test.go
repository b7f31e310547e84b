package duckdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rustacademy/academy/internal/model"
)

func TestSnapshotToCopiesHistory(t *testing.T) {
	t.Parallel()

	store, err := NewStore(filepath.Join(t.TempDir(), "academy.duckdb"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	insertTransitions(t, store, []*model.Transition{
		transition(1, "Increment", time.Now()),
		transition(2, "SearchTyped", time.Now()),
	})

	snapshotPath := filepath.Join(t.TempDir(), "backups", "snapshot.duckdb")
	if err := store.SnapshotTo(context.Background(), snapshotPath); err != nil {
		t.Fatalf("SnapshotTo: %v", err)
	}
	if _, err := os.Stat(snapshotPath + ".partial"); !os.IsNotExist(err) {
		t.Fatalf("partial snapshot left behind: %v", err)
	}

	snap := openSnapshot(t, snapshotPath)
	total, err := snap.TotalTransitions()
	if err != nil {
		t.Fatalf("TotalTransitions on snapshot: %v", err)
	}
	if total != 2 {
		t.Fatalf("snapshot holds %d transitions, want 2", total)
	}
}

func TestSnapshotToInMemoryStore(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	insertTransitions(t, store, []*model.Transition{transition(1, "Increment", time.Now())})

	snapshotPath := filepath.Join(t.TempDir(), "snapshot.duckdb")
	if err := store.SnapshotTo(context.Background(), snapshotPath); err != nil {
		t.Fatalf("SnapshotTo: %v", err)
	}

	snap := openSnapshot(t, snapshotPath)
	total, err := snap.TotalTransitions()
	if err != nil {
		t.Fatalf("TotalTransitions on snapshot: %v", err)
	}
	if total != 1 {
		t.Fatalf("snapshot holds %d transitions, want 1", total)
	}
}

func openSnapshot(t *testing.T, path string) *Store {
	t.Helper()
	snap, err := NewStore(path)
	if err != nil {
		t.Fatalf("open snapshot: %v", err)
	}
	t.Cleanup(func() { _ = snap.Close() })
	return snap
}
