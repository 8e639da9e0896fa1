package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/stockroom/internal/transport"
)

// Append commits an envelope and returns the committed record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - a duplicate ID returns
// the record stored by the first append.
func (s *Store) Append(ctx context.Context, env transport.Envelope) (transport.Record, error) {
	if err := transport.CheckEnvelope(env); err != nil {
		return transport.Record{}, err
	}
	if s.isClosed() {
		return transport.Record{}, transport.ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return transport.Record{}, fmt.Errorf("append: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO actions (id, actor, committed_at, kind, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		env.ID,
		env.Actor,
		s.now().UTC().UnixNano(),
		env.Kind,
		env.Payload,
	)
	if err != nil {
		return transport.Record{}, fmt.Errorf("append: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return transport.Record{}, fmt.Errorf("append: %w", err)
	}

	rec, err := scanRecord(tx.QueryRowContext(ctx, `
		SELECT seq, id, actor, committed_at, kind, payload
		FROM actions WHERE id = ?
	`, env.ID))
	if err != nil {
		return transport.Record{}, fmt.Errorf("append: read back %s: %w", env.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return transport.Record{}, fmt.Errorf("append: commit: %w", err)
	}

	if inserted > 0 {
		s.notify()
		s.logger.Debug().Int64("seq", rec.Seq).Str("kind", rec.Kind).Str("id", rec.ID).Msg("action appended")
	} else {
		s.logger.Debug().Int64("seq", rec.Seq).Str("id", rec.ID).Msg("duplicate append")
	}
	return rec, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (transport.Record, error) {
	var (
		rec  transport.Record
		nano int64
	)
	if err := row.Scan(&rec.Seq, &rec.ID, &rec.Actor, &nano, &rec.Kind, &rec.Payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return transport.Record{}, fmt.Errorf("record not found: %w", err)
		}
		return transport.Record{}, err
	}
	rec.CommittedAt = unixNano(nano)
	return rec, nil
}
