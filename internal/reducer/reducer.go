// Package reducer maps (state, action) to the next state.
//
// Every client replays the same ordered log through Step, so Step must be
// deterministic: it never reads the wall clock, never iterates a map in a
// way that affects output, and never fails. Conditions that would be errors
// elsewhere (missing references, impossible retypes, unknown actions) are
// reported as Diagnostics and leave state unchanged or partially changed.
//
// The only time source is the action's own CommittedAt, which is part of
// the log and therefore identical on replay.
package reducer

import (
	"fmt"

	"github.com/roach88/stockroom/internal/ir"
)

// Apply is the pure form of Step: s is never modified.
func Apply(s *ir.State, c ir.Committed) (*ir.State, []Diagnostic) {
	next := s.Clone()
	diags := Step(next, c)
	return next, diags
}

// Step applies one committed action to s in place.
// CRITICAL: s must be owned by the caller (the replay goroutine).
func Step(s *ir.State, c ir.Committed) []Diagnostic {
	st := &step{state: s, c: c}

	switch a := c.Action.(type) {
	case ir.UpdateItem:
		st.updateItem(a)
	case ir.UpdateField:
		st.updateField(a)
	case ir.PackageItem:
		st.packageItem(a)
	case ir.QuantifyItem:
		st.quantifyItem(a)
	case ir.RetypeItem:
		st.retypeItem(a)
	case ir.NewOrder:
		st.newOrder(a)
	case ir.BulkImportItems:
		st.bulkImport(a)
	case ir.AddName:
		st.addName(a)
	case ir.RemoveName:
		st.removeName(a)
	default:
		st.report(CodeUnknownAction, fmt.Sprintf("unhandled action type %T", c.Action))
	}

	return st.diags
}

// Replay applies actions in order starting from the empty state.
func Replay(actions []ir.Committed) (*ir.State, []Diagnostic) {
	s := ir.NewState()
	var diags []Diagnostic
	for _, c := range actions {
		diags = append(diags, Step(s, c)...)
	}
	return s, diags
}

// step carries the state and diagnostics for one action.
type step struct {
	state *ir.State
	c     ir.Committed
	diags []Diagnostic
}

func (st *step) report(code DiagnosticCode, msg string) {
	kind := ""
	if st.c.Action != nil {
		kind = string(st.c.Action.Kind())
	}
	st.diags = append(st.diags, Diagnostic{
		Code:     code,
		Message:  msg,
		Seq:      st.c.Seq,
		ActionID: st.c.ID,
		Kind:     kind,
	})
}

func (st *step) updateItem(a ir.UpdateItem) {
	if a.ID.IsZero() {
		st.report(CodeMissingItem, "update_item without an item key")
		return
	}
	st.state.Items[a.ID] = a.Item
}

func (st *step) updateField(a ir.UpdateField) {
	it, ok := st.state.Items[a.ID]
	if !ok {
		st.report(CodeMissingItem, fmt.Sprintf("update_field %s on missing item %s", a.Field, a.ID))
		return
	}

	next, ok := it.Set(a.Field, a.To)
	if !ok {
		st.report(CodeInvalidField, fmt.Sprintf("cannot set %s to %v", a.Field, a.To))
		return
	}

	// Zero qty via field edit is the only path that removes an item.
	if a.Field == ir.FieldQty && next.Qty == 0 {
		delete(st.state.Items, a.ID)
		return
	}
	st.state.Items[a.ID] = next
}

// adjustShipped adds delta to the item's shipped count if the item exists.
func (st *step) adjustShipped(key ir.ItemKey, delta int) bool {
	it, ok := st.state.Items[key]
	if !ok {
		return false
	}
	it.Shipped += delta
	st.state.Items[key] = it
	return true
}
