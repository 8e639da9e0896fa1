package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"github.com/roach88/stockroom/internal/engine"
	"github.com/roach88/stockroom/internal/history"
	"github.com/roach88/stockroom/internal/importer"
	"github.com/roach88/stockroom/internal/ir"
	"github.com/roach88/stockroom/internal/testutil"
	"github.com/roach88/stockroom/internal/transport"
	"github.com/roach88/stockroom/internal/transport/memlog"
)

// Option configures a harness run.
type Option func(*Harness)

// WithLogger sets the logger passed to every client engine.
func WithLogger(l zerolog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// Harness executes one scenario. It is not reusable.
type Harness struct {
	scenario *Scenario
	logger   zerolog.Logger
	log      *memlog.Log
	clients  map[string]*client
	order    []string // actors in join order

	stepSeqs [][]int64 // seqs appended by each step
	errs     []error
}

type client struct {
	actor  string
	engine *engine.Engine
	cancel context.CancelFunc
	done   chan error
}

// Run executes scenario against a fresh in-memory log.
//
// The returned error reports a scenario that could not be executed (bad
// payload, transport failure, cancelled context). Failed expectations are
// collected in Result.Errors instead.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		scenario: scenario,
		logger:   zerolog.Nop(),
		log:      memlog.New(memlog.WithClock(testutil.NewDeterministicClock().Now)),
		clients:  make(map[string]*client),
	}
	for _, opt := range opts {
		opt(h)
	}
	defer h.close()

	for i, step := range scenario.Steps {
		seqs, err := h.execute(ctx, i, step)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		h.stepSeqs = append(h.stepSeqs, seqs)
	}

	return h.finish(ctx)
}

func (h *Harness) close() {
	for _, actor := range h.order {
		c := h.clients[actor]
		c.cancel()
		<-c.done
	}
	h.log.Close()
}

// clientFor returns the actor's engine, starting it on first use. A client
// that joins late replays the log from the start.
func (h *Harness) clientFor(actor string) *client {
	if c, ok := h.clients[actor]; ok {
		return c
	}

	e := engine.New(h.log,
		engine.WithActor(actor),
		engine.WithIDGenerator(testutil.NewSequenceIDGenerator(actor)),
		engine.WithLogger(h.logger.With().Str("actor", actor).Logger()),
	)
	ctx, cancel := context.WithCancel(context.Background())
	c := &client{actor: actor, engine: e, cancel: cancel, done: make(chan error, 1)}
	go func() { c.done <- e.Run(ctx) }()

	h.clients[actor] = c
	h.order = append(h.order, actor)
	return c
}

// execute runs one step and returns the seqs it appended.
func (h *Harness) execute(ctx context.Context, index int, step Step) ([]int64, error) {
	c := h.clientFor(h.scenario.ActorFor(step))

	// Every step sees everything appended before it.
	head, err := h.log.Head(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.engine.WaitFor(ctx, head); err != nil {
		return nil, fmt.Errorf("catch up %s: %w", c.actor, err)
	}

	if step.Import != nil {
		return h.runImport(ctx, index, c, step.Import)
	}

	action, err := decodeStep(step)
	if err != nil {
		return nil, err
	}
	r, err := c.engine.Dispatch(ctx, action)
	if err != nil {
		return nil, err
	}
	if err := c.engine.WaitFor(ctx, r.Seq); err != nil {
		return nil, err
	}
	return []int64{r.Seq}, nil
}

// decodeStep turns a YAML payload into an action through the wire codec,
// so scenarios exercise the same validation as the log.
func decodeStep(step Step) (ir.Action, error) {
	payload, err := json.Marshal(step.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return ir.DecodeAction(ir.Kind(step.Action), payload)
}

func (h *Harness) runImport(ctx context.Context, index int, c *client, step *ImportStep) ([]int64, error) {
	opts := []importer.SessionOption{}
	if step.ChunkSize > 0 {
		opts = append(opts, importer.WithChunkSize(step.ChunkSize))
	}

	snap := c.engine.Snapshot()
	session := importer.NewSession(step.Rows, opts...)
	session.Recompute(snap)

	rejected := session.ApplyResolutions(&importer.ResolutionFile{Resolutions: step.Resolutions})
	if len(rejected) != step.ExpectRejected {
		h.errs = append(h.errs, &AssertionError{
			Type:     "import",
			Expected: fmt.Sprintf("steps[%d]: %d rejected resolution(s)", index, step.ExpectRejected),
			Actual:   fmt.Sprintf("%d rejected: %v", len(rejected), errors.Join(rejected...)),
		})
	}
	if len(rejected) > 0 {
		return nil, nil
	}

	res, err := session.Commit(ctx, c.engine, snap)
	if err != nil {
		return nil, err
	}

	seqs := make([]int64, 0, len(res.Receipts))
	for _, r := range res.Receipts {
		seqs = append(seqs, r.Seq)
	}
	if len(seqs) > 0 {
		if err := c.engine.WaitFor(ctx, seqs[len(seqs)-1]); err != nil {
			return nil, err
		}
	}
	return seqs, nil
}

// finish waits for convergence, replays the log and evaluates assertions.
func (h *Harness) finish(ctx context.Context) (*Result, error) {
	head, err := h.log.Head(ctx)
	if err != nil {
		return nil, err
	}

	p := history.New()
	replay, err := engine.ReplayWithHistory(ctx, h.log, p)
	if err != nil {
		return nil, err
	}

	for _, actor := range h.order {
		e := h.clients[actor].engine
		if err := e.WaitFor(ctx, head); err != nil {
			return nil, fmt.Errorf("converge %s: %w", actor, err)
		}
		if got := ir.MustStateHash(e.Snapshot()); got != replay.Hash {
			h.errs = append(h.errs, &AssertionError{
				Type:     "convergence",
				Expected: fmt.Sprintf("client %s at replay hash %s", actor, replay.Hash),
				Actual:   got,
			})
		}
	}

	trace, err := h.trace(ctx, replay)
	if err != nil {
		return nil, err
	}

	h.checkSteps(trace)

	result := &Result{
		Trace: trace,
		State: replay.State,
		Hash:  replay.Hash,
		Head:  head,
	}

	for _, a := range h.scenario.Assertions {
		if err := evaluate(a, result, replay, p); err != nil {
			h.errs = append(h.errs, err)
		}
	}

	result.Errors = h.errs
	result.Pass = len(h.errs) == 0
	return result, nil
}

func (h *Harness) trace(ctx context.Context, replay engine.ReplayResult) ([]TraceEvent, error) {
	recs, err := transport.ReadAll(ctx, h.log)
	if err != nil {
		return nil, err
	}

	codes := make(map[int64][]string)
	for _, d := range replay.Diagnostics {
		codes[d.Seq] = append(codes[d.Seq], string(d.Code))
	}

	trace := make([]TraceEvent, 0, len(recs))
	for _, rec := range recs {
		trace = append(trace, TraceEvent{
			Seq:         rec.Seq,
			ID:          rec.ID,
			Actor:       rec.Actor,
			Kind:        rec.Kind,
			Diagnostics: codes[rec.Seq],
		})
	}
	return trace, nil
}

// checkSteps compares each step's diagnostics to expect_diagnostics.
// A step without expectations must produce none.
func (h *Harness) checkSteps(trace []TraceEvent) {
	bySeq := make(map[int64]TraceEvent, len(trace))
	for _, ev := range trace {
		bySeq[ev.Seq] = ev
	}

	for i, step := range h.scenario.Steps {
		var got []string
		for _, seq := range h.stepSeqs[i] {
			got = append(got, bySeq[seq].Diagnostics...)
		}
		want := step.ExpectDiagnostics
		if !slices.Equal(got, want) {
			h.errs = append(h.errs, &AssertionError{
				Type:     "diagnostics",
				Expected: fmt.Sprintf("steps[%d]: %v", i, want),
				Actual:   fmt.Sprintf("%v", got),
				Trace:    trace,
			})
		}
	}
}
