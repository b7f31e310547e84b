package duckdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const snapshotAlias = "academy_snapshot"

// SnapshotTo writes a consistent copy of the database to dstPath using
// DuckDB's COPY FROM DATABASE into a freshly attached file. It works for
// in-memory stores too. The file appears at dstPath only once complete.
func (s *Store) SnapshotTo(ctx context.Context, dstPath string) error {
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("duckdb: create snapshot dir: %w", err)
	}
	tmp := dstPath + ".partial"
	if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("duckdb: clear stale snapshot: %w", err)
	}

	// Writers hold the lock for their transactions; the copy sees only
	// committed batches.
	s.mu.Lock()
	err := s.copyInto(ctx, tmp)
	s.mu.Unlock()
	if err != nil {
		_ = os.Remove(tmp)
		_ = os.Remove(tmp + ".wal")
		return err
	}

	if err := os.Rename(tmp, dstPath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("duckdb: publish snapshot: %w", err)
	}
	return nil
}

func (s *Store) copyInto(ctx context.Context, path string) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("duckdb: snapshot conn: %w", err)
	}
	defer conn.Close()

	attach := fmt.Sprintf("ATTACH '%s' AS %s", strings.ReplaceAll(path, "'", "''"), snapshotAlias)
	if _, err := conn.ExecContext(ctx, attach); err != nil {
		return fmt.Errorf("duckdb: attach snapshot: %w", err)
	}

	_, copyErr := conn.ExecContext(ctx, "COPY FROM DATABASE "+s.catalog(ctx)+" TO "+snapshotAlias)
	// DETACH flushes the attached file; it must run even after a failed copy.
	_, detachErr := conn.ExecContext(context.WithoutCancel(ctx), "DETACH "+snapshotAlias)
	if copyErr != nil {
		return fmt.Errorf("duckdb: copy database: %w", copyErr)
	}
	if detachErr != nil {
		return fmt.Errorf("duckdb: detach snapshot: %w", detachErr)
	}
	return nil
}

// catalog returns the name of the store's own database, which DuckDB derives
// from the file name ("memory" for in-memory stores).
func (s *Store) catalog(ctx context.Context) string {
	var name string
	if err := s.db.QueryRowContext(ctx, "SELECT current_database()").Scan(&name); err != nil || name == "" {
		return "memory"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
