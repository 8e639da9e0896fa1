package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/roach88/stockroom/internal/history"
	"github.com/roach88/stockroom/internal/ir"
	"github.com/roach88/stockroom/internal/reducer"
	"github.com/roach88/stockroom/internal/transport"
)

// DefaultDiagnosticsBuffer is the capacity of the Diagnostics channel.
const DefaultDiagnosticsBuffer = 64

// ErrAlreadyRunning is returned by Run when another Run is active.
var ErrAlreadyRunning = errors.New("engine: already running")

// Engine is the single-writer replay loop for one client.
//
// CRITICAL: All state mutations happen in the Run goroutine.
//
// Thread-safety model:
//   - Dispatch, Snapshot, Seq, IsPending, WaitFor, Subscribe: safe from any goroutine
//   - Run: at most one active call
type Engine struct {
	log     transport.Log
	actor   string
	logger  zerolog.Logger
	ids     IDGenerator
	history *history.Projection

	mu       sync.RWMutex
	state    *ir.State
	seq      int64
	pending  map[string]ir.Kind
	advanced chan struct{} // Closed and replaced after every apply

	diags   chan reducer.Diagnostic
	dropped atomic.Int64

	lmu       sync.Mutex
	listeners map[int]*changeQueue
	nextID    int

	running atomic.Bool
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithActor sets the actor stamped on dispatched envelopes.
func WithActor(actor string) Option {
	return func(e *Engine) { e.actor = actor }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithHistory attaches a history projection fed from the replay loop.
func WithHistory(p *history.Projection) Option {
	return func(e *Engine) { e.history = p }
}

// WithIDGenerator replaces the UUIDv7 envelope ID generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithDiagnosticsBuffer sets the capacity of the Diagnostics channel.
// When the channel is full, new diagnostics are counted and dropped.
func WithDiagnosticsBuffer(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.diags = make(chan reducer.Diagnostic, n)
		}
	}
}

// New creates an Engine reading from and appending to log.
// The engine starts at the empty state; call Run to catch up.
func New(log transport.Log, opts ...Option) *Engine {
	e := &Engine{
		log:       log,
		logger:    zerolog.Nop(),
		ids:       UUIDv7Generator{},
		state:     ir.NewState(),
		pending:   make(map[string]ir.Kind),
		advanced:  make(chan struct{}),
		diags:     make(chan reducer.Diagnostic, DefaultDiagnosticsBuffer),
		listeners: make(map[int]*changeQueue),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Receipt identifies a dispatched action.
type Receipt struct {
	ID   string
	Seq  int64
	Kind ir.Kind
}

// Dispatch appends an action to the log and returns once the log accepted
// it. The local snapshot is not touched; the action takes effect when Run
// applies its echo.
func (e *Engine) Dispatch(ctx context.Context, a ir.Action) (Receipt, error) {
	kind, payload, err := ir.EncodeAction(a)
	if err != nil {
		return Receipt{}, fmt.Errorf("dispatch: %w", err)
	}

	id := e.ids.Generate()

	e.mu.Lock()
	e.pending[id] = kind
	e.mu.Unlock()

	rec, err := e.log.Append(ctx, transport.Envelope{
		ID:      id,
		Actor:   e.actor,
		Kind:    string(kind),
		Payload: payload,
	})
	if err != nil {
		e.mu.Lock()
		delete(e.pending, id)
		e.mu.Unlock()
		return Receipt{}, fmt.Errorf("dispatch %s: %w", kind, err)
	}

	e.logger.Debug().Str("id", id).Str("kind", string(kind)).Int64("seq", rec.Seq).Msg("action dispatched")
	return Receipt{ID: id, Seq: rec.Seq, Kind: kind}, nil
}

// IsPending reports whether a dispatched action has not been applied yet.
func (e *Engine) IsPending(id string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.pending[id]
	return ok
}

// Pending returns the number of dispatched actions awaiting their echo.
func (e *Engine) Pending() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.pending)
}

// Snapshot returns a deep copy of the current state.
func (e *Engine) Snapshot() *ir.State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Clone()
}

// Seq returns the seq of the last applied record, or 0.
func (e *Engine) Seq() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.seq
}

// WaitFor blocks until the record at seq has been applied.
func (e *Engine) WaitFor(ctx context.Context, seq int64) error {
	for {
		e.mu.RLock()
		applied := e.seq
		advanced := e.advanced
		e.mu.RUnlock()

		if applied >= seq {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-advanced:
		}
	}
}

// Diagnostics returns the channel diagnostics are published on.
func (e *Engine) Diagnostics() <-chan reducer.Diagnostic {
	return e.diags
}

// DroppedDiagnostics returns how many diagnostics were dropped because
// the Diagnostics channel was full.
func (e *Engine) DroppedDiagnostics() int64 {
	return e.dropped.Load()
}

// Subscribe registers a listener called once per applied record, in log
// order, from a dedicated goroutine. The returned func unregisters it.
func (e *Engine) Subscribe(listener func(Change)) (cancel func()) {
	q := newChangeQueue()

	e.lmu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = q
	e.lmu.Unlock()

	go q.drain(listener)

	var once sync.Once
	return func() {
		once.Do(func() {
			e.lmu.Lock()
			delete(e.listeners, id)
			e.lmu.Unlock()
			q.Close()
		})
	}
}

// Run starts the single-writer replay loop.
// Blocks until ctx is cancelled or the log fails.
//
// CRITICAL: Must be called from exactly ONE goroutine.
//
// ERROR HANDLING: A record that fails to decode is reported as a
// DECODE_ERROR diagnostic and skipped. Replay never stops on bad data.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer e.running.Store(false)

	from := e.Seq() + 1
	e.logger.Info().Int64("from", from).Msg("engine starting")

	err := e.log.Subscribe(ctx, from, func(rec transport.Record) error {
		e.apply(rec)
		return nil
	})

	if ctx.Err() != nil {
		e.logger.Info().Int64("seq", e.Seq()).Msg("engine stopping: context cancelled")
		return ctx.Err()
	}
	e.logger.Error().Err(err).Int64("seq", e.Seq()).Msg("engine stopping: log failed")
	return fmt.Errorf("engine: %w", err)
}

// apply runs one record through the reducer.
// CRITICAL: Called only from the Run goroutine.
func (e *Engine) apply(rec transport.Record) {
	c, decodeErr := decodeRecord(rec)

	var diags []reducer.Diagnostic

	e.mu.Lock()
	if rec.Seq <= e.seq {
		// Already applied; a transport may redeliver after reconnect.
		e.mu.Unlock()
		return
	}
	if decodeErr != nil {
		diags = []reducer.Diagnostic{*reducer.NewDecodeDiagnostic(rec.Seq, rec.ID, rec.Kind, decodeErr)}
	} else {
		if e.history != nil {
			e.history.Observe(e.state, c)
		}
		diags = reducer.Step(e.state, c)
	}
	e.seq = rec.Seq
	delete(e.pending, rec.ID)
	close(e.advanced)
	e.advanced = make(chan struct{})
	e.mu.Unlock()

	for _, d := range diags {
		e.logger.Warn().
			Str("code", string(d.Code)).
			Int64("seq", d.Seq).
			Str("id", d.ActionID).
			Str("kind", d.Kind).
			Msg(d.Message)
		e.publish(d)
	}

	e.fanout(Change{Seq: rec.Seq, Committed: c, Diagnostics: diags})
}

func (e *Engine) publish(d reducer.Diagnostic) {
	select {
	case e.diags <- d:
	default:
		e.dropped.Add(1)
	}
}

func (e *Engine) fanout(c Change) {
	e.lmu.Lock()
	defer e.lmu.Unlock()
	for _, q := range e.listeners {
		q.Enqueue(c)
	}
}

// decodeRecord turns a transport record into a committed action.
// On failure the returned Committed carries the envelope metadata only.
func decodeRecord(rec transport.Record) (ir.Committed, error) {
	c := ir.Committed{
		Seq:         rec.Seq,
		ID:          rec.ID,
		Actor:       rec.Actor,
		CommittedAt: rec.CommittedAt,
	}
	a, err := ir.DecodeAction(ir.Kind(rec.Kind), rec.Payload)
	if err != nil {
		return c, err
	}
	c.Action = a
	return c, nil
}
