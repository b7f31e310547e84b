// Package migrate applies the embedded, versioned schema of the transition
// store. Files are named NNN_description.sql; each one runs in its own
// transaction and is recorded with a checksum so an edited migration is
// caught instead of silently skipped.
package migrate

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var embedded embed.FS

// ErrChecksumMismatch reports an applied migration whose file has changed.
var ErrChecksumMismatch = errors.New("migrate: applied migration was modified")

// Migration is one schema step.
type Migration struct {
	Version  int
	Name     string
	Checksum string
	body     string
}

// Status summarizes the schema state of a database.
type Status struct {
	Current int
	Latest  int
	Pending []string
}

// Runner applies migrations to one database.
type Runner struct {
	db   *sql.DB
	migs []Migration
	err  error
}

// NewRunner creates a runner over the embedded migrations.
func NewRunner(db *sql.DB) *Runner {
	migs, err := Load(embedded)
	return &Runner{db: db, migs: migs, err: err}
}

// Load reads migrations from the "migrations" directory of fsys, ordered by
// version. Duplicate versions are an error.
func Load(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrate: read migrations: %w", err)
	}

	var migs []Migration
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".sql" {
			continue
		}
		prefix, _, ok := strings.Cut(e.Name(), "_")
		if !ok {
			return nil, fmt.Errorf("migrate: %s: name must be NNN_description.sql", e.Name())
		}
		version, err := strconv.Atoi(prefix)
		if err != nil || version <= 0 {
			return nil, fmt.Errorf("migrate: %s: bad version %q", e.Name(), prefix)
		}
		data, err := fs.ReadFile(fsys, path.Join("migrations", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("migrate: read %s: %w", e.Name(), err)
		}
		sum := sha256.Sum256(data)
		migs = append(migs, Migration{
			Version:  version,
			Name:     e.Name(),
			Checksum: hex.EncodeToString(sum[:]),
			body:     string(data),
		})
	}

	slices.SortFunc(migs, func(a, b Migration) int { return a.Version - b.Version })
	for i := 1; i < len(migs); i++ {
		if migs[i].Version == migs[i-1].Version {
			return nil, fmt.Errorf("migrate: duplicate version %d (%s, %s)", migs[i].Version, migs[i-1].Name, migs[i].Name)
		}
	}
	return migs, nil
}

// Run verifies applied migrations and applies pending ones in order.
func (r *Runner) Run(ctx context.Context) error {
	applied, err := r.applied(ctx)
	if err != nil {
		return err
	}
	for _, m := range r.migs {
		sum, done := applied[m.Version]
		if done {
			if sum != m.Checksum {
				return fmt.Errorf("%w: %s", ErrChecksumMismatch, m.Name)
			}
			continue
		}
		if err := r.apply(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// Status reports the applied version and the pending migration names.
func (r *Runner) Status(ctx context.Context) (Status, error) {
	applied, err := r.applied(ctx)
	if err != nil {
		return Status{}, err
	}
	var st Status
	for v := range applied {
		st.Current = max(st.Current, v)
	}
	for _, m := range r.migs {
		st.Latest = max(st.Latest, m.Version)
		if _, ok := applied[m.Version]; !ok {
			st.Pending = append(st.Pending, m.Name)
		}
	}
	return st, nil
}

// applied returns version -> checksum for every recorded migration.
func (r *Runner) applied(ctx context.Context) (map[int]string, error) {
	if r.err != nil {
		return nil, r.err
	}
	if _, err := r.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		name       VARCHAR NOT NULL,
		checksum   VARCHAR NOT NULL,
		applied_at TIMESTAMP DEFAULT current_timestamp
	)`); err != nil {
		return nil, fmt.Errorf("migrate: create schema_migrations: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, "SELECT version, checksum FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("migrate: read schema_migrations: %w", err)
	}
	defer rows.Close()

	out := make(map[int]string)
	for rows.Next() {
		var v int
		var sum string
		if err := rows.Scan(&v, &sum); err != nil {
			return nil, fmt.Errorf("migrate: scan schema_migrations: %w", err)
		}
		out[v] = sum
	}
	return out, rows.Err()
}

func (r *Runner) apply(ctx context.Context, m Migration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: begin %s: %w", m.Name, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range statements(m.body) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %s: %w", m.Name, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name, checksum) VALUES (?, ?, ?)",
		m.Version, m.Name, m.Checksum,
	); err != nil {
		return fmt.Errorf("migrate: record %s: %w", m.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit %s: %w", m.Name, err)
	}
	return nil
}

// statements splits a migration body on semicolons and drops "--" comment
// lines. Migrations never put semicolons inside string literals.
func statements(body string) []string {
	var b strings.Builder
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	var out []string
	for _, part := range strings.Split(b.String(), ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
