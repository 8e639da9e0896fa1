package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stockroom/internal/engine"
	"github.com/roach88/stockroom/internal/history"
	"github.com/roach88/stockroom/internal/ir"
	"github.com/roach88/stockroom/internal/reducer"
)

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertItem,
		Expected: "item X#A with map[qty:3]",
		Actual:   "qty=2 (want 3)",
		Trace: []TraceEvent{
			{Seq: 1, Kind: "update_item", Actor: "alice"},
			{Seq: 2, Kind: "retype_item", Actor: "bob", Diagnostics: []string{"RETYPE_SAME_KEY"}},
		},
	}

	assert.Equal(t, "Assertion failed: item\n"+
		"  Expected: item X#A with map[qty:3]\n"+
		"  Actual: qty=2 (want 3)\n"+
		"\nFull trace:\n"+
		"  [1] update_item by alice\n"+
		"  [2] retype_item by bob [RETYPE_SAME_KEY]\n", err.Error())
}

func TestAssertionError_NoTrace(t *testing.T) {
	err := &AssertionError{Type: "convergence", Expected: "a", Actual: "b"}
	assert.NotContains(t, err.Error(), "Full trace")
}

func evalState(s *ir.State, diags ...reducer.Diagnostic) (*Result, engine.ReplayResult) {
	return &Result{State: s}, engine.ReplayResult{State: s, Diagnostics: diags}
}

func TestEvaluate_Item(t *testing.T) {
	s := ir.NewState()
	key := ir.NewItemKey("X", "A")
	s.Items[key] = ir.Item{Code: "X", Subtype: "A", Qty: 4, Shipped: 1, Classification: "4202", Description: "Tote"}
	res, rr := evalState(s)
	p := history.New()

	ok := Assertion{Type: AssertItem, Code: "X", Subtype: "A", Expect: map[string]any{
		"qty": 4, "shipped": 1, "classification": "4202", "description": "Tote", "pieces": 0, "image": "",
	}}
	assert.NoError(t, evaluate(ok, res, rr, p))

	bad := Assertion{Type: AssertItem, Code: "X", Subtype: "A", Expect: map[string]any{"shipped": 2, "qty": 5}}
	err := evaluate(bad, res, rr, p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "qty=4 (want 5), shipped=1 (want 2)")

	missing := Assertion{Type: AssertItem, Code: "X", Subtype: "B", Expect: map[string]any{"qty": 1}}
	err = evaluate(missing, res, rr, p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestEvaluate_Order(t *testing.T) {
	s := ir.NewState()
	s.Orders["O-1"] = ir.OrderInfo{ID: "O-1", Lines: []ir.LineItem{
		{Key: ir.NewItemKey("X", "A"), Qty: 2},
		{Key: ir.NewItemKey("X", "B"), Qty: 1},
	}}
	res, rr := evalState(s)
	p := history.New()

	assert.NoError(t, evaluate(Assertion{Type: AssertOrder, Order: "O-1"}, res, rr, p))
	assert.NoError(t, evaluate(Assertion{Type: AssertOrder, Order: "O-1", Lines: []LineSpec{
		{Code: "X", Subtype: "A", Qty: 2},
		{Code: "X", Subtype: "B", Qty: 1},
	}}, res, rr, p))

	// Line order matters.
	assert.Error(t, evaluate(Assertion{Type: AssertOrder, Order: "O-1", Lines: []LineSpec{
		{Code: "X", Subtype: "B", Qty: 1},
		{Code: "X", Subtype: "A", Qty: 2},
	}}, res, rr, p))
	assert.Error(t, evaluate(Assertion{Type: AssertOrder, Order: "O-1", Lines: []LineSpec{}}, res, rr, p))
}

func TestEvaluate_DiagnosticCount(t *testing.T) {
	res, rr := evalState(ir.NewState(),
		reducer.Diagnostic{Code: reducer.CodeMissingItem},
		reducer.Diagnostic{Code: reducer.CodeMissingItem},
		reducer.Diagnostic{Code: reducer.CodeMissingOrder},
	)
	p := history.New()

	assert.NoError(t, evaluate(Assertion{Type: AssertDiagnosticCount, Diagnostic: "MISSING_ITEM", Count: 2}, res, rr, p))
	assert.NoError(t, evaluate(Assertion{Type: AssertDiagnosticCount, Diagnostic: "RETYPE_SAME_KEY"}, res, rr, p))
	assert.Error(t, evaluate(Assertion{Type: AssertDiagnosticCount, Diagnostic: "MISSING_ORDER", Count: 2}, res, rr, p))
}

func TestEvaluate_NamesAndCount(t *testing.T) {
	s := ir.NewState()
	s.Names["4202"] = []string{"bags", "totes"}
	s.Items[ir.NewItemKey("X", "")] = ir.Item{Code: "X", Qty: 1}
	res, rr := evalState(s)
	p := history.New()

	assert.NoError(t, evaluate(Assertion{Type: AssertNames, Classification: "4202", Names: []string{"bags", "totes"}}, res, rr, p))
	assert.Error(t, evaluate(Assertion{Type: AssertNames, Classification: "4202", Names: []string{"totes", "bags"}}, res, rr, p))
	assert.NoError(t, evaluate(Assertion{Type: AssertNames, Classification: "6307"}, res, rr, p))

	assert.NoError(t, evaluate(Assertion{Type: AssertItemCount, Count: 1}, res, rr, p))
	assert.NoError(t, evaluate(Assertion{Type: AssertItemAbsent, Code: "Y"}, res, rr, p))
	assert.Error(t, evaluate(Assertion{Type: AssertItemAbsent, Code: "X"}, res, rr, p))
}
