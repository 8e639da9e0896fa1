package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stockroom/internal/ir"
)

func TestRunWithGolden_NewItemImport(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/new_item_import.yaml")
	require.NoError(t, err)

	res, err := RunWithGolden(t, s)
	require.NoError(t, err)
	assert.True(t, res.Pass, "%v", res.Errors)
}

func TestRunWithGolden_MultiActorPackaging(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/multi_actor_packaging.yaml")
	require.NoError(t, err)

	res, err := RunWithGolden(t, s)
	require.NoError(t, err)
	assert.True(t, res.Pass, "%v", res.Errors)
}

func TestSnapshotJSON_EmptyRun(t *testing.T) {
	data, err := SnapshotJSON("empty", &Result{State: ir.NewState()})
	require.NoError(t, err)
	assert.Equal(t, `{"head":0,"scenario_name":"empty","state":{"items":[],"names":{},"orders":[]},"trace":[]}`, string(data))
}
