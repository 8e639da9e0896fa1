package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/stockroom/internal/transport"
)

// readBatchSize bounds how many records one query loads.
const readBatchSize = 500

// Head returns the highest committed seq, or 0 for an empty store.
func (s *Store) Head(ctx context.Context) (int64, error) {
	if s.isClosed() {
		return 0, transport.ErrClosed
	}
	var head int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM actions`).Scan(&head)
	if err != nil {
		return 0, fmt.Errorf("head: %w", err)
	}
	return head, nil
}

// ReadRange returns up to limit records with seq >= from.
// Results ordered by seq ASC.
func (s *Store) ReadRange(ctx context.Context, from int64, limit int) ([]transport.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, actor, committed_at, kind, payload
		FROM actions
		WHERE seq >= ?
		ORDER BY seq ASC
		LIMIT ?
	`, from, limit)
	if err != nil {
		return nil, fmt.Errorf("read range: %w", err)
	}
	defer rows.Close()

	var out []transport.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("read range: scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read range: %w", err)
	}
	return out, nil
}

// Subscribe delivers every record with seq >= from, then follows new
// appends until ctx is done.
func (s *Store) Subscribe(ctx context.Context, from int64, deliver func(transport.Record) error) error {
	next := max(from, 1)
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		// Take the wake channel before reading so an append that lands
		// between the read and the wait is not missed.
		wake, open := s.waiter()
		if !open {
			return transport.ErrClosed
		}

		batch, err := s.ReadRange(ctx, next, readBatchSize)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if s.isClosed() {
				return transport.ErrClosed
			}
			return fmt.Errorf("subscribe: %w", err)
		}

		for _, rec := range batch {
			if err := deliver(rec); err != nil {
				return err
			}
			next = rec.Seq + 1
		}
		if len(batch) > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wake:
		case <-ticker.C:
		}
	}
}

// KindCounts returns how many actions of each kind the log holds.
func (s *Store) KindCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*) FROM actions
		GROUP BY kind
		ORDER BY kind
	`)
	if err != nil {
		return nil, fmt.Errorf("kind counts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var (
			kind string
			n    int64
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("kind counts: scan: %w", err)
		}
		out[kind] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("kind counts: %w", err)
	}
	return out, nil
}

func unixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

var _ transport.Log = (*Store)(nil)
