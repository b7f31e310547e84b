package duckdb

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rustacademy/academy/internal/model"
)

// TotalTransitions returns the number of recorded transitions.
func (s *Store) TotalTransitions() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transitions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("duckdb: total transitions: %w", err)
	}
	return n, nil
}

// MessageCounts returns how often each message was applied, most frequent first.
func (s *Store) MessageCounts() ([]model.MessageCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT message, COUNT(*) AS count
		FROM transitions
		GROUP BY message
		ORDER BY count DESC, message ASC`)
	if err != nil {
		return nil, fmt.Errorf("duckdb: message counts: %w", err)
	}
	defer rows.Close()

	var out []model.MessageCount
	for rows.Next() {
		var mc model.MessageCount
		if err := rows.Scan(&mc.Message, &mc.Count); err != nil {
			return nil, fmt.Errorf("duckdb: scan message count: %w", err)
		}
		out = append(out, mc)
	}
	return out, rows.Err()
}

// RecentKeys returns the latest key presses, newest first.
func (s *Store) RecentKeys(limit int) ([]model.KeyEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, at, key
		FROM key_presses
		ORDER BY seq DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("duckdb: recent keys: %w", err)
	}
	defer rows.Close()

	var out []model.KeyEvent
	for rows.Next() {
		var k model.KeyEvent
		if err := rows.Scan(&k.Seq, &k.At, &k.Key); err != nil {
			return nil, fmt.Errorf("duckdb: scan key: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// LastTransition returns the most recent transition, or nil when none exist.
func (s *Store) LastTransition() (*model.Transition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var t model.Transition
	err := s.db.QueryRowContext(ctx, `
		SELECT seq, at, message, payload, click_count, search_text, random_number, clock_time, rendered, cards
		FROM transitions
		ORDER BY seq DESC
		LIMIT 1`).Scan(
		&t.Seq, &t.At, &t.Message, &t.Payload, &t.ClickCount, &t.SearchText,
		&t.RandomNumber, &t.ClockTime, &t.Rendered, &t.Cards,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("duckdb: last transition: %w", err)
	}
	return &t, nil
}

// DeleteBefore removes transitions and key presses recorded before cutoff.
func (s *Store) DeleteBefore(cutoff time.Time) (int64, error) {
	ctx, cancel := s.queryCtx()
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, table := range []string{"transitions", "key_presses"} {
		res, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE at < ?", cutoff.UTC())
		if err != nil {
			return total, fmt.Errorf("duckdb: delete from %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}
