package store

import (
	"context"
	"fmt"

	"github.com/roach88/bpkit/internal/syncer"
)

// Put stores value under key, replacing any previous value.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	return put(ctx, s.db, key, value)
}

// Append adds entry to the end of stream and returns its seq.
func (s *Store) Append(ctx context.Context, stream string, entry []byte) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("append %s: begin tx: %w", stream, err)
	}
	defer tx.Rollback() // No-op if committed

	seq, err := appendLog(ctx, tx, stream, entry)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("append %s: commit: %w", stream, err)
	}
	return seq, nil
}

// Batch runs fn against a transaction-scoped store. Every write fn makes
// commits together; any error rolls all of them back.
func (s *Store) Batch(ctx context.Context, fn func(syncer.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("batch: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(&txStore{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("batch: commit: %w", err)
	}
	return nil
}

// txStore is the view of a Store inside Batch.
type txStore struct {
	q querier
}

func (t *txStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return get(ctx, t.q, key)
}

func (t *txStore) Put(ctx context.Context, key string, value []byte) error {
	return put(ctx, t.q, key, value)
}

func (t *txStore) Append(ctx context.Context, stream string, entry []byte) (int64, error) {
	return appendLog(ctx, t.q, stream, entry)
}

func (t *txStore) Stream(ctx context.Context, stream string) ([]syncer.Record, error) {
	return readStream(ctx, t.q, stream, 0)
}

func put(ctx context.Context, q querier, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, revision = kv.revision + 1
	`, key, value)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// appendLog must run inside a transaction so the seq read and the insert
// cannot interleave with another writer.
func appendLog(ctx context.Context, q querier, stream string, entry []byte) (int64, error) {
	var seq int64
	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM log WHERE stream = ?
	`, stream).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("append %s: next seq: %w", stream, err)
	}

	if entry == nil {
		entry = []byte{}
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO log (stream, seq, data) VALUES (?, ?, ?)
	`, stream, seq, entry)
	if err != nil {
		return 0, fmt.Errorf("append %s: insert: %w", stream, err)
	}
	return seq, nil
}
