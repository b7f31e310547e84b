package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

type fakeSnapshotter struct {
	data  []byte
	err   error
	calls atomic.Int32
}

func (f *fakeSnapshotter) SnapshotTo(_ context.Context, dstPath string) error {
	f.calls.Add(1)
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(dstPath, f.data, 0o644)
}

func TestNewManagerDisabled(t *testing.T) {
	t.Parallel()

	m, err := NewManager(&fakeSnapshotter{}, Config{})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	if m != nil {
		t.Fatal("expected nil manager when disabled")
	}
}

func TestNewManagerValidates(t *testing.T) {
	t.Parallel()

	if _, err := NewManager(&fakeSnapshotter{}, Config{Enabled: true}); err == nil {
		t.Fatal("expected error for missing backup dir")
	}
	if _, err := NewManager(nil, Config{Enabled: true, LocalDir: t.TempDir()}); err == nil {
		t.Fatal("expected error for nil snapshotter")
	}
}

func TestNewManagerDefaults(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "backups")
	m, err := NewManager(&fakeSnapshotter{}, Config{Enabled: true, LocalDir: dir})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if m.cfg.Interval != defaultInterval || m.cfg.KeepLast != defaultKeepLast || m.cfg.Prefix != defaultPrefix {
		t.Fatalf("defaults not applied: %+v", m.cfg)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("backup dir not created: %v", err)
	}
}

func TestRunOnceCreatesAndRotates(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m, err := NewManager(&fakeSnapshotter{data: []byte("snap")}, Config{
		Enabled:  true,
		LocalDir: dir,
		KeepLast: 2,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	// Foreign files in the directory are left alone.
	foreign := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(foreign, []byte("keep"), 0o644); err != nil {
		t.Fatalf("write foreign file: %v", err)
	}

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var paths []string
	for i := 0; i < 4; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		m.now = func() time.Time { return at }
		p, err := m.RunOnce(context.Background())
		if err != nil {
			t.Fatalf("RunOnce #%d: %v", i, err)
		}
		paths = append(paths, p)
	}

	snaps, err := m.Snapshots()
	if err != nil {
		t.Fatalf("Snapshots: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("kept %d snapshots, want 2: %v", len(snaps), snaps)
	}
	if snaps[0].Path != paths[3] || snaps[1].Path != paths[2] {
		t.Fatalf("Snapshots = %v, want newest first %v", snaps, paths[2:])
	}
	if !snaps[0].At.Equal(base.Add(3*time.Minute)) || snaps[0].Size != 4 {
		t.Fatalf("newest snapshot = %+v", snaps[0])
	}
	if _, err := os.Stat(paths[0]); !os.IsNotExist(err) {
		t.Errorf("oldest snapshot %s should be rotated out", paths[0])
	}
	if _, err := os.Stat(foreign); err != nil {
		t.Errorf("foreign file removed: %v", err)
	}
}

func TestRunOnceSnapshotError(t *testing.T) {
	t.Parallel()

	m, err := NewManager(&fakeSnapshotter{err: errors.New("disk full")}, Config{Enabled: true, LocalDir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := m.RunOnce(context.Background()); err == nil {
		t.Fatal("expected snapshot error")
	}
}

func TestRunSnapshotsAtStartAndStopsOnCancel(t *testing.T) {
	t.Parallel()

	snap := &fakeSnapshotter{data: []byte("x")}
	m, err := NewManager(snap, Config{
		Enabled:  true,
		LocalDir: t.TempDir(),
		Interval: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for snap.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no startup snapshot")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
