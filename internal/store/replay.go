package store

import (
	"context"
	"fmt"

	"github.com/roach88/bpkit/internal/syncer"
)

// StreamSince returns the entries of stream with seq greater than after.
// The changelog command uses it to list entries after a known seq.
func (s *Store) StreamSince(ctx context.Context, stream string, after int64) ([]syncer.Record, error) {
	return readStream(ctx, s.db, stream, after)
}

// LastSeq returns the highest seq in stream, or 0 for an empty stream.
func (s *Store) LastSeq(ctx context.Context, stream string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM log WHERE stream = ?
	`, stream).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq %s: %w", stream, err)
	}
	return seq, nil
}

// Streams lists every stream with at least one entry, sorted.
func (s *Store) Streams(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT stream FROM log ORDER BY stream ASC COLLATE BINARY
	`)
	if err != nil {
		return nil, fmt.Errorf("list streams: %w", err)
	}
	defer rows.Close()

	var streams []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("list streams: scan: %w", err)
		}
		streams = append(streams, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list streams: %w", err)
	}
	return streams, nil
}
