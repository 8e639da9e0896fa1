package importer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stockroom/internal/ir"
)

func TestReadResolutions(t *testing.T) {
	f, err := ReadResolutions(strings.NewReader("resolutions:\n  - line: 5\n    choice: existing\n  - line: 2\n    split:\n      - {subtype: A, qty: 6}\n"))
	require.NoError(t, err)
	assert.Equal(t, []ResolutionSpec{
		{Line: 5, Choice: "existing"},
		{Line: 2, Split: []SplitSpec{{Subtype: "A", Qty: 6}}},
	}, f.Resolutions)

	_, err = ReadResolutions(strings.NewReader("resolutions:\n  - line: 5\n    pick: existing\n"))
	assert.Error(t, err, "unknown keys are rejected")

	empty, err := ReadResolutions(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, empty.Resolutions)
}

func TestApplyResolutions(t *testing.T) {
	snap := twoSubtypes()
	snap.Items[ir.NewItemKey("Y", "")] = ir.Item{Code: "Y", Classification: "4202"}

	s := NewSession([]Row{
		{Line: 2, Code: "X", Qty: 10},
		{Line: 3, Code: "Y", Classification: "6307", Qty: 1},
		{Line: 4, Code: "N", Qty: 1},
	})
	s.Recompute(snap)

	errs := s.ApplyResolutions(&ResolutionFile{Resolutions: []ResolutionSpec{
		{Line: 2, Split: []SplitSpec{{Subtype: "A", Qty: 6}, {Subtype: "B", Qty: 4}}},
		{Line: 3, Choice: "incoming"},
	}})
	require.Empty(t, errs)

	items := s.Items()
	assert.Equal(t, StatusResolved, items[0].Status)
	assert.Equal(t, []Allocation{{Key: keyA, Qty: 6}, {Key: keyB, Qty: 4}}, items[0].Resolution.Split)
	assert.Equal(t, StatusResolved, items[1].Status)
	assert.Equal(t, ChooseIncoming, items[1].Resolution.Pick)
}

func TestApplyResolutionsRejects(t *testing.T) {
	s := NewSession([]Row{
		{Line: 2, Code: "X", Qty: 10},
		{Line: 4, Code: "N", Qty: 1},
	})
	s.Recompute(twoSubtypes())

	errs := s.ApplyResolutions(&ResolutionFile{Resolutions: []ResolutionSpec{
		{Line: 2, Split: []SplitSpec{{Subtype: "A", Qty: 6}, {Subtype: "A", Qty: 4}}},
		{Line: 2, Choice: "incoming"},
		{Line: 4, Choice: "incoming"},
		{Line: 9, Choice: "incoming"},
		{Line: 3},
	}})
	require.Len(t, errs, 5)
	assert.Contains(t, errs[0].Error(), "allocated twice")
	assert.Contains(t, errs[1].Error(), "more than once")
	assert.ErrorIs(t, errs[2], ErrNotConflict)
	assert.Contains(t, errs[3].Error(), "no such row")
	assert.Contains(t, errs[4].Error(), "no such row")

	assert.Equal(t, StatusConflict, s.Items()[0].Status, "a rejected spec leaves the row unresolved")
}
