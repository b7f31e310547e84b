package duckdb

import (
	"context"
	"fmt"
	"log"

	"github.com/rustacademy/academy/internal/model"
)

const (
	insertTransitionSQL = `INSERT INTO transitions
		(seq, at, message, payload, click_count, search_text, random_number, clock_time, rendered, cards)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	insertKeySQL = `INSERT INTO key_presses (seq, at, key) VALUES (?, ?, ?)`
)

func transitionArgs(t *model.Transition) []any {
	return []any{t.Seq, t.At.UTC(), t.Message, t.Payload, t.ClickCount, t.SearchText,
		t.RandomNumber, t.ClockTime, t.Rendered, t.Cards}
}

func keyArgs(k *model.KeyEvent) []any {
	return []any{k.Seq, k.At.UTC(), k.Key}
}

// InsertTransitionBatch writes transitions in one transaction. If that
// fails the rows are retried one by one and the bad ones are dropped.
func (s *Store) InsertTransitionBatch(rows []*model.Transition) error {
	return insertWithFallback(s, "transition", insertTransitionSQL, rows, transitionArgs)
}

// InsertKeyBatch writes key presses the same way.
func (s *Store) InsertKeyBatch(rows []*model.KeyEvent) error {
	return insertWithFallback(s, "key press", insertKeySQL, rows, keyArgs)
}

func insertWithFallback[T any](s *Store, kind, query string, rows []*T, args func(*T) []any) error {
	if len(rows) == 0 {
		return nil
	}
	ctx, cancel := s.queryCtx()
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := execBatch(ctx, s, query, rows, args); err == nil {
		return nil
	} else if ctx.Err() != nil {
		return fmt.Errorf("duckdb: %s batch: %w", kind, err)
	}

	failed := 0
	for _, r := range rows {
		if err := execBatch(ctx, s, query, []*T{r}, args); err != nil {
			failed++
			log.Printf("duckdb: dropping %s %v: %v", kind, args(r)[0], err)
		}
	}
	if failed == len(rows) {
		return fmt.Errorf("duckdb: every %s in the batch failed", kind)
	}
	if failed > 0 {
		log.Printf("duckdb: %s batch partially failed, %d/%d rows dropped", kind, failed, len(rows))
	}
	return nil
}

// execBatch runs query once per row inside a single transaction.
func execBatch[T any](ctx context.Context, s *Store, query string, rows []*T, args func(*T) []any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, args(r)...); err != nil {
			return err
		}
	}
	return tx.Commit()
}
