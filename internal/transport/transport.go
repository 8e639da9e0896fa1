// Package transport defines the ordered, append-only action log that every
// client shares.
//
// The log is the only serialization point in the system: it assigns each
// appended envelope a gapless sequence number and delivers records to all
// subscribers in that order. Implementations differ only in where the log
// lives (SQLite file, Redis stream, process memory).
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaxPayloadBytes is the hard per-append payload ceiling.
// Bulk writers must chunk below this size.
const MaxPayloadBytes = 256 * 1024

var (
	// ErrPayloadTooLarge is returned by Append when the payload exceeds MaxPayloadBytes.
	ErrPayloadTooLarge = errors.New("transport: payload too large")

	// ErrClosed is returned by operations on a closed log.
	ErrClosed = errors.New("transport: log closed")

	// ErrInvalidEnvelope is returned when an envelope is missing required fields.
	ErrInvalidEnvelope = errors.New("transport: invalid envelope")
)

// Envelope is what a client appends. ID is generated by the client so it
// can track the action as pending before the log echoes it back.
type Envelope struct {
	ID      string
	Actor   string
	Kind    string
	Payload []byte
}

// Record is a committed envelope as delivered by the log.
type Record struct {
	Seq         int64
	ID          string
	Actor       string
	CommittedAt time.Time
	Kind        string
	Payload     []byte
}

// Log is an append-only, totally ordered action log.
type Log interface {
	// Append commits env and returns the committed record. Appending an
	// envelope whose ID was already committed returns the original record.
	Append(ctx context.Context, env Envelope) (Record, error)

	// Subscribe delivers every record with Seq >= from in order, then keeps
	// delivering new appends until ctx is done or deliver returns an error.
	// It returns ctx.Err() on cancellation.
	Subscribe(ctx context.Context, from int64, deliver func(Record) error) error

	// Head returns the highest committed Seq, or 0 for an empty log.
	Head(ctx context.Context) (int64, error)

	// Close releases resources. Blocked subscriptions return ErrClosed.
	Close() error
}

// NewID returns a time-ordered UUIDv7 for a new envelope.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the random source fails.
		return uuid.NewString()
	}
	return id.String()
}

// CheckEnvelope validates an envelope before append.
func CheckEnvelope(env Envelope) error {
	if env.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidEnvelope)
	}
	if env.Kind == "" {
		return fmt.Errorf("%w: empty kind", ErrInvalidEnvelope)
	}
	if len(env.Payload) > MaxPayloadBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(env.Payload), MaxPayloadBytes)
	}
	return nil
}

// ReadAll returns every record currently in the log, in order.
func ReadAll(ctx context.Context, log Log) ([]Record, error) {
	head, err := log.Head(ctx)
	if err != nil {
		return nil, fmt.Errorf("read all: %w", err)
	}
	if head == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make([]Record, 0, head)
	err = log.Subscribe(ctx, 1, func(r Record) error {
		out = append(out, r)
		if r.Seq >= head {
			return errReachedHead
		}
		return nil
	})
	if err != nil && !errors.Is(err, errReachedHead) {
		return nil, fmt.Errorf("read all: %w", err)
	}
	return out, nil
}

var errReachedHead = errors.New("reached head")
