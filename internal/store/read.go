package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/bpkit/internal/syncer"
)

// Get returns the value stored under key. The bool is false when the key
// has never been written.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return get(ctx, s.db, key)
}

// Stream returns every entry of stream ordered by seq.
func (s *Store) Stream(ctx context.Context, stream string) ([]syncer.Record, error) {
	return readStream(ctx, s.db, stream, 0)
}

// Keys returns every stored key with the given prefix, sorted.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key FROM kv
		WHERE substr(key, 1, length(?)) = ?
		ORDER BY key ASC COLLATE BINARY
	`, prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("list keys: scan: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return keys, nil
}

// Revision returns how many times key has been written, or 0 if never.
func (s *Store) Revision(ctx context.Context, key string) (int64, error) {
	var rev int64
	err := s.db.QueryRowContext(ctx, `SELECT revision FROM kv WHERE key = ?`, key).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("revision %s: %w", key, err)
	}
	return rev, nil
}

func get(ctx context.Context, q querier, key string) ([]byte, bool, error) {
	var value []byte
	err := q.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func readStream(ctx context.Context, q querier, stream string, after int64) ([]syncer.Record, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT seq, data FROM log
		WHERE stream = ? AND seq > ?
		ORDER BY seq ASC
	`, stream, after)
	if err != nil {
		return nil, fmt.Errorf("read stream %s: %w", stream, err)
	}
	defer rows.Close()

	records := []syncer.Record{}
	for rows.Next() {
		var r syncer.Record
		if err := rows.Scan(&r.Seq, &r.Data); err != nil {
			return nil, fmt.Errorf("read stream %s: scan: %w", stream, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read stream %s: %w", stream, err)
	}
	return records, nil
}
