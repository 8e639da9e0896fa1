package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/roach88/stockroom/internal/config"
	"github.com/roach88/stockroom/internal/engine"
	"github.com/roach88/stockroom/internal/reducer"
	"github.com/roach88/stockroom/internal/store"
	"github.com/roach88/stockroom/internal/transport"
	"github.com/roach88/stockroom/internal/transport/memlog"
	"github.com/roach88/stockroom/internal/transport/redisstream"
)

// runtime is the transport a command talks to, opened from config.
type runtime struct {
	cfg    *config.Config
	logger zerolog.Logger
	log    transport.Log
	store  *store.Store // set for the sqlite transport only
}

func openRuntime(ctx context.Context, opts *RootOptions) (*runtime, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, NewExitError(ExitCommandError, "configuration not loaded")
	}
	rt := &runtime{cfg: cfg, logger: opts.Logger}

	switch cfg.Transport {
	case config.TransportSQLite:
		st, err := store.Open(cfg.DB, store.WithLogger(opts.Logger))
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		rt.store = st
		rt.log = st
	case config.TransportRedis:
		l, err := redisstream.Dial(ctx, cfg.Redis.Addr,
			redisstream.WithStream(cfg.Redis.Stream),
			redisstream.WithLogger(opts.Logger),
		)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to connect to redis", err)
		}
		rt.log = l
	case config.TransportMemory:
		rt.log = memlog.New()
	default:
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown transport %q", cfg.Transport))
	}

	rt.logger.Debug().Str("transport", cfg.Transport).Msg("transport opened")
	return rt, nil
}

func (r *runtime) Close() error {
	return r.log.Close()
}

// liveEngine is an engine whose Run loop is active in the background.
type liveEngine struct {
	*engine.Engine
	cancel context.CancelFunc
	done   chan struct{}
	err    error // Run's result, valid once done is closed
}

// startEngine runs an engine on the transport and waits until it has
// applied everything up to the current head.
func (r *runtime) startEngine(ctx context.Context) (*liveEngine, error) {
	e := engine.New(r.log,
		engine.WithActor(r.cfg.Actor),
		engine.WithLogger(r.logger),
	)

	runCtx, cancel := context.WithCancel(ctx)
	le := &liveEngine{Engine: e, cancel: cancel, done: make(chan struct{})}
	go func() {
		le.err = e.Run(runCtx)
		close(le.done)
	}()

	head, err := r.log.Head(ctx)
	if err != nil {
		le.stop()
		return nil, WrapExitError(ExitCommandError, "failed to read log head", err)
	}
	if err := le.wait(ctx, head); err != nil {
		le.stop()
		return nil, WrapExitError(ExitCommandError, "failed to catch up with log", err)
	}
	return le, nil
}

// wait blocks until seq is applied, the context ends, or Run exits.
func (l *liveEngine) wait(ctx context.Context, seq int64) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-l.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	err := l.WaitFor(ctx, seq)
	if err == nil {
		return nil
	}
	select {
	case <-l.done:
		if l.err != nil {
			return l.err
		}
	default:
	}
	return err
}

func (l *liveEngine) stop() {
	l.cancel()
	<-l.done
}

// drainDiagnostics returns the diagnostics already buffered by the engine.
func (l *liveEngine) drainDiagnostics() []reducer.Diagnostic {
	var out []reducer.Diagnostic
	for {
		select {
		case d := <-l.Diagnostics():
			out = append(out, d)
		default:
			return out
		}
	}
}

// DiagnosticView is the JSON form of a reducer diagnostic.
type DiagnosticView struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Seq     int64  `json:"seq"`
	ID      string `json:"id,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

func diagnosticViews(diags []reducer.Diagnostic) []DiagnosticView {
	out := make([]DiagnosticView, 0, len(diags))
	for _, d := range diags {
		out = append(out, DiagnosticView{
			Code:    string(d.Code),
			Message: d.Message,
			Seq:     d.Seq,
			ID:      d.ActionID,
			Kind:    d.Kind,
		})
	}
	return out
}
