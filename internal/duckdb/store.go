// Package duckdb persists the runtime's transition and key press history
// in DuckDB and answers the stats queries served by the HTTP and socket
// surfaces.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/rustacademy/academy/internal/duckdb/migrate"
)

// DefaultQueryTimeout bounds every store query.
const DefaultQueryTimeout = 30 * time.Second

// Store keeps the transition history. Writes and snapshots are serialized
// by mu; reads share it.
type Store struct {
	db           *sql.DB
	mu           sync.RWMutex
	QueryTimeout time.Duration
}

// NewStore opens the database at dbPath, creating parent directories, and
// brings the schema up to date. An empty path opens an in-memory database.
func NewStore(dbPath string, queryTimeout ...time.Duration) (*Store, error) {
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("duckdb: create db dir: %w", err)
		}
	}

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("duckdb: open %q: %w", dbPath, err)
	}

	s := &Store{db: db, QueryTimeout: DefaultQueryTimeout}
	if len(queryTimeout) > 0 && queryTimeout[0] > 0 {
		s.QueryTimeout = queryTimeout[0]
	}

	ctx, cancel := s.queryCtx()
	defer cancel()
	if err := migrate.NewRunner(db).Run(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("duckdb: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) queryCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.QueryTimeout)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for ad-hoc queries.
func (s *Store) DB() *sql.DB {
	return s.db
}
