// Package memlog is an in-process transport.Log used by tests, the scenario
// harness, and the "memory" transport setting.
package memlog

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/roach88/stockroom/internal/transport"
)

// Log is a mutex-guarded slice of records. Subscribers wait on a channel
// that is closed and replaced on every append.
type Log struct {
	mu      sync.Mutex
	records []transport.Record
	byID    map[string]int
	wake    chan struct{}
	closed  bool
	now     func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithClock sets the commit timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// New returns an empty log.
func New(opts ...Option) *Log {
	l := &Log{
		byID: make(map[string]int),
		wake: make(chan struct{}),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append implements transport.Log.
func (l *Log) Append(ctx context.Context, env transport.Envelope) (transport.Record, error) {
	if err := ctx.Err(); err != nil {
		return transport.Record{}, err
	}
	if err := transport.CheckEnvelope(env); err != nil {
		return transport.Record{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return transport.Record{}, transport.ErrClosed
	}
	if i, ok := l.byID[env.ID]; ok {
		return l.records[i], nil
	}

	rec := transport.Record{
		Seq:         int64(len(l.records) + 1),
		ID:          env.ID,
		Actor:       env.Actor,
		CommittedAt: l.now().UTC(),
		Kind:        env.Kind,
		Payload:     bytes.Clone(env.Payload),
	}
	l.records = append(l.records, rec)
	l.byID[env.ID] = len(l.records) - 1

	close(l.wake)
	l.wake = make(chan struct{})
	return rec, nil
}

// Subscribe implements transport.Log.
func (l *Log) Subscribe(ctx context.Context, from int64, deliver func(transport.Record) error) error {
	next := max(from, 1)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			return transport.ErrClosed
		}
		batch := l.records[min(next-1, int64(len(l.records))):]
		wake := l.wake
		l.mu.Unlock()

		// Records are never mutated after append, so the batch is safe to
		// read without the lock.
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
		}
	}
}

// Head implements transport.Log.
func (l *Log) Head(ctx context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, transport.ErrClosed
	}
	return int64(len(l.records)), nil
}

// Close implements transport.Log.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	close(l.wake)
	return nil
}

var _ transport.Log = (*Log)(nil)
