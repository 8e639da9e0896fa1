package engine

import (
	"context"
	"fmt"

	"github.com/roach88/stockroom/internal/history"
	"github.com/roach88/stockroom/internal/ir"
	"github.com/roach88/stockroom/internal/reducer"
	"github.com/roach88/stockroom/internal/transport"
)

// Replay Determinism
//
// Replay is not a special mode. Run and Replay feed records through the
// same decodeRecord and reducer.Step path, so a snapshot built live and one
// rebuilt from seq 1 are identical. ReplayResult.Hash is the
// domain-separated state hash; two clients at the same Head must agree on it.

// ReplayResult is the outcome of replaying a log from the start.
type ReplayResult struct {
	State       *ir.State
	Diagnostics []reducer.Diagnostic
	Count       int
	Head        int64
	Hash        string
}

// Replay reads the log from seq 1 to its current head and returns the
// resulting state. It does not follow new appends.
func Replay(ctx context.Context, log transport.Log) (ReplayResult, error) {
	return ReplayWithHistory(ctx, log, nil)
}

// ReplayWithHistory is Replay that also feeds p (if non-nil).
func ReplayWithHistory(ctx context.Context, log transport.Log, p *history.Projection) (ReplayResult, error) {
	recs, err := transport.ReadAll(ctx, log)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay: %w", err)
	}

	res := ReplayResult{State: ir.NewState()}
	for _, rec := range recs {
		c, err := decodeRecord(rec)
		if err != nil {
			res.Diagnostics = append(res.Diagnostics, *reducer.NewDecodeDiagnostic(rec.Seq, rec.ID, rec.Kind, err))
		} else {
			if p != nil {
				p.Observe(res.State, c)
			}
			res.Diagnostics = append(res.Diagnostics, reducer.Step(res.State, c)...)
		}
		res.Count++
		res.Head = rec.Seq
	}

	hash, err := ir.StateHash(res.State)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay: %w", err)
	}
	res.Hash = hash
	return res, nil
}
