package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_Testdata(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/multi_actor_packaging.yaml")
	require.NoError(t, err)

	assert.Equal(t, "multi_actor_packaging", s.Name)
	assert.Equal(t, "alice", s.Actor)
	require.Len(t, s.Steps, 8)
	assert.Equal(t, "bob", s.ActorFor(s.Steps[2]))
	assert.Equal(t, "alice", s.ActorFor(s.Steps[3]))
	assert.Equal(t, []string{"RETYPE_SAME_KEY"}, s.Steps[6].ExpectDiagnostics)
	require.Len(t, s.Assertions, 6)
	assert.Equal(t, []LineSpec{{Code: "X", Subtype: "A", Qty: 4}}, s.Assertions[1].Lines)
}

func TestLoadScenario_ImportStep(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/ambiguous_split.yaml")
	require.NoError(t, err)

	imp := s.Steps[2].Import
	require.NotNil(t, imp)
	require.Len(t, imp.Rows, 1)
	assert.Equal(t, 2, imp.Rows[0].Line)
	assert.Equal(t, 10, imp.Rows[0].Qty)
	require.Len(t, imp.Resolutions, 1)
	assert.Len(t, imp.Resolutions[0].Split, 2)
	assert.Equal(t, DefaultActor, s.ActorFor(s.Steps[0]))
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: typo
description: d
stepz: []
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Validation(t *testing.T) {
	const head = "name: n\ndescription: d\n"
	const step = "steps:\n  - action: add_name\n    payload: {id: c, name: n}\n"
	const assertion = "assertions:\n  - type: item_count\n"

	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"no name", "description: d\n" + step + assertion, "name is required"},
		{"no description", "name: n\n" + step + assertion, "description is required"},
		{"no steps", head + assertion, "steps list is required"},
		{"no assertions", head + step, "assertions list is required"},
		{
			"empty step",
			head + "steps:\n  - actor: bob\n" + assertion,
			"steps[0]: action or import is required",
		},
		{
			"missing payload",
			head + "steps:\n  - action: add_name\n" + assertion,
			"steps[0]: payload is required",
		},
		{
			"action and import",
			head + "steps:\n  - action: add_name\n    payload: {}\n    import: {rows: [{code: X, qty: 1}]}\n" + assertion,
			"mutually exclusive",
		},
		{
			"import without rows",
			head + "steps:\n  - import: {rows: []}\n" + assertion,
			"steps[0].import: rows are required",
		},
		{
			"assertion without type",
			head + step + "assertions:\n  - code: X\n",
			"assertions[0]: type is required",
		},
		{
			"unknown assertion",
			head + step + "assertions:\n  - type: vibes\n",
			`unknown assertion type "vibes"`,
		},
		{
			"item without expect",
			head + step + "assertions:\n  - type: item\n    code: X\n",
			"expect is required for item",
		},
		{
			"item with unknown field",
			head + step + "assertions:\n  - type: item\n    code: X\n    expect: {colour: red}\n",
			`unknown item field "colour"`,
		},
		{
			"history without text",
			head + step + "assertions:\n  - type: history_contains\n    code: X\n",
			"text is required",
		},
		{
			"order without id",
			head + step + "assertions:\n  - type: order\n",
			"order is required",
		},
		{
			"names without classification",
			head + step + "assertions:\n  - type: names\n",
			"classification is required",
		},
		{
			"diagnostic count without code",
			head + step + "assertions:\n  - type: diagnostic_count\n    count: 1\n",
			"diagnostic is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFindScenarios(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt", "sub/c.yaml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}

	files, err := FindScenarios(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.yml"),
		filepath.Join(dir, "b.yaml"),
		filepath.Join(dir, "sub", "c.yaml"),
	}, files)

	files, err = FindScenarios(dir, "b*")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.yaml")}, files)

	_, err = FindScenarios(dir, "[")
	assert.Error(t, err)
}
