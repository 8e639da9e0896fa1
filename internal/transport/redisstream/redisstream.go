// Package redisstream is a transport.Log on a Redis stream.
//
// Each record is one stream entry with the explicit ID 0-<seq>, so the
// stream ID doubles as the gapless sequence number. Appends run as one Lua
// script so dedup, sequence assignment, timestamping, and XADD are atomic
// with respect to every other client of the same server.
package redisstream

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/roach88/stockroom/internal/transport"
)

const (
	// DefaultStream is the stream key used when none is configured.
	DefaultStream = "stockroom:actions"

	// DefaultBlock is how long one XREAD waits before rechecking ctx.
	DefaultBlock = 500 * time.Millisecond

	readCount = 500
)

// appendScript returns {seq, created}. KEYS: stream, seq counter, id index.
var appendScript = redis.NewScript(`
local stream = KEYS[1]
local counter = KEYS[2]
local index = KEYS[3]

local existing = redis.call('HGET', index, ARGV[1])
if existing then
	return {tonumber(existing), 0}
end

local seq = redis.call('INCR', counter)
local now = redis.call('TIME')
redis.call('XADD', stream, '0-' .. seq,
	'id', ARGV[1],
	'actor', ARGV[2],
	'kind', ARGV[3],
	'payload', ARGV[4],
	'sec', now[1],
	'usec', now[2])
redis.call('HSET', index, ARGV[1], seq)
return {seq, 1}
`)

// Log is a transport.Log backed by a Redis stream.
type Log struct {
	client    *redis.Client
	ownClient bool
	stream    string
	block     time.Duration
	logger    zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// Option configures a Log.
type Option func(*Log)

// WithStream sets the stream key. Companion keys use it as a prefix.
func WithStream(name string) Option {
	return func(l *Log) {
		if name != "" {
			l.stream = name
		}
	}
}

// WithBlock sets the XREAD block duration.
func WithBlock(d time.Duration) Option {
	return func(l *Log) {
		if d > 0 {
			l.block = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(lg zerolog.Logger) Option {
	return func(l *Log) { l.logger = lg }
}

// New wraps an existing client. The caller keeps ownership of client.
func New(client *redis.Client, opts ...Option) *Log {
	l := &Log{
		client: client,
		stream: DefaultStream,
		block:  DefaultBlock,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Dial connects to addr and returns a Log that owns the client.
func Dial(ctx context.Context, addr string, opts ...Option) (*Log, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	l := New(client, opts...)
	l.ownClient = true
	l.logger.Debug().Str("addr", addr).Str("stream", l.stream).Msg("redis log connected")
	return l, nil
}

func (l *Log) seqKey() string   { return l.stream + ":seq" }
func (l *Log) indexKey() string { return l.stream + ":ids" }

func (l *Log) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Append implements transport.Log.
func (l *Log) Append(ctx context.Context, env transport.Envelope) (transport.Record, error) {
	if err := transport.CheckEnvelope(env); err != nil {
		return transport.Record{}, err
	}
	if l.isClosed() {
		return transport.Record{}, transport.ErrClosed
	}

	res, err := appendScript.Run(ctx, l.client,
		[]string{l.stream, l.seqKey(), l.indexKey()},
		env.ID, env.Actor, env.Kind, string(env.Payload),
	).Int64Slice()
	if err != nil {
		return transport.Record{}, fmt.Errorf("append: %w", err)
	}
	if len(res) != 2 {
		return transport.Record{}, fmt.Errorf("append: unexpected script result %v", res)
	}
	seq, created := res[0], res[1] == 1

	rec, err := l.record(ctx, seq)
	if err != nil {
		return transport.Record{}, fmt.Errorf("append: read back seq %d: %w", seq, err)
	}

	if created {
		l.logger.Debug().Int64("seq", seq).Str("kind", rec.Kind).Str("id", rec.ID).Msg("action appended")
	} else {
		l.logger.Debug().Int64("seq", seq).Str("id", rec.ID).Msg("duplicate append")
	}
	return rec, nil
}

// record loads the entry for one seq.
func (l *Log) record(ctx context.Context, seq int64) (transport.Record, error) {
	id := entryID(seq)
	msgs, err := l.client.XRange(ctx, l.stream, id, id).Result()
	if err != nil {
		return transport.Record{}, err
	}
	if len(msgs) == 0 {
		return transport.Record{}, fmt.Errorf("entry %s missing", id)
	}
	return parseMessage(msgs[0])
}

// Subscribe implements transport.Log.
func (l *Log) Subscribe(ctx context.Context, from int64, deliver func(transport.Record) error) error {
	last := entryID(max(from, 1) - 1)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if l.isClosed() {
			return transport.ErrClosed
		}

		streams, err := l.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{l.stream, last},
			Count:   readCount,
			Block:   l.block,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if l.isClosed() {
				return transport.ErrClosed
			}
			return fmt.Errorf("subscribe: %w", err)
		}

		for _, s := range streams {
			for _, msg := range s.Messages {
				rec, err := parseMessage(msg)
				if err != nil {
					return fmt.Errorf("subscribe: %w", err)
				}
				if err := deliver(rec); err != nil {
					return err
				}
				last = msg.ID
			}
		}
	}
}

// Head implements transport.Log.
func (l *Log) Head(ctx context.Context) (int64, error) {
	if l.isClosed() {
		return 0, transport.ErrClosed
	}
	n, err := l.client.Get(ctx, l.seqKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("head: %w", err)
	}
	return n, nil
}

// Close implements transport.Log. The client is closed only if Dial created it.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if l.ownClient {
		return l.client.Close()
	}
	return nil
}

func entryID(seq int64) string {
	return "0-" + strconv.FormatInt(seq, 10)
}

func parseMessage(msg redis.XMessage) (transport.Record, error) {
	_, seqPart, ok := strings.Cut(msg.ID, "-")
	if !ok {
		return transport.Record{}, fmt.Errorf("malformed entry id %q", msg.ID)
	}
	seq, err := strconv.ParseInt(seqPart, 10, 64)
	if err != nil {
		return transport.Record{}, fmt.Errorf("malformed entry id %q: %w", msg.ID, err)
	}

	field := func(name string) string {
		v, _ := msg.Values[name].(string)
		return v
	}
	sec, err := strconv.ParseInt(field("sec"), 10, 64)
	if err != nil {
		return transport.Record{}, fmt.Errorf("entry %s: bad sec: %w", msg.ID, err)
	}
	usec, err := strconv.ParseInt(field("usec"), 10, 64)
	if err != nil {
		return transport.Record{}, fmt.Errorf("entry %s: bad usec: %w", msg.ID, err)
	}

	return transport.Record{
		Seq:         seq,
		ID:          field("id"),
		Actor:       field("actor"),
		CommittedAt: time.Unix(sec, usec*int64(time.Microsecond)).UTC(),
		Kind:        field("kind"),
		Payload:     []byte(field("payload")),
	}, nil
}

var _ transport.Log = (*Log)(nil)
