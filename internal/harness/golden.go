package harness

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/stockroom/internal/ir"
)

// Snapshot is the golden record of a run: the trace and the replayed state.
type Snapshot struct {
	ScenarioName string          `json:"scenario_name"`
	Head         int64           `json:"head"`
	Trace        []TraceEvent    `json:"trace"`
	State        json.RawMessage `json:"state"`
}

// SnapshotJSON renders the result as canonical JSON.
func SnapshotJSON(name string, res *Result) ([]byte, error) {
	state, err := ir.MarshalState(res.State)
	if err != nil {
		return nil, err
	}
	trace := res.Trace
	if trace == nil {
		trace = []TraceEvent{}
	}
	return ir.MarshalCanonical(Snapshot{
		ScenarioName: name,
		Head:         res.Head,
		Trace:        trace,
		State:        state,
	})
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := SnapshotJSON(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
