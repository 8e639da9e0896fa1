package reducer

import (
	"fmt"
	"slices"

	"github.com/roach88/stockroom/internal/ir"
)

// packageItem adds a quantity of an item to an order. The order is created
// on first use, dated by the action's commit time.
func (st *step) packageItem(a ir.PackageItem) {
	o, ok := st.state.Orders[a.OrderID]
	if !ok {
		o = ir.OrderInfo{ID: a.OrderID, Date: st.c.CommittedAt.UTC()}
	}

	o.Lines = addToLine(o.Lines, a.Key, a.Qty)
	st.state.Orders[a.OrderID] = o

	if !st.adjustShipped(a.Key, a.Qty) {
		st.report(CodeMissingItem, fmt.Sprintf("package_item %s into %s: item not in inventory", a.Key, a.OrderID))
	}
}

// quantifyItem sets the line quantity. Shipped moves by the difference, so
// repeated quantify actions never double count.
func (st *step) quantifyItem(a ir.QuantifyItem) {
	o, ok := st.state.Orders[a.OrderID]
	if !ok {
		st.report(CodeMissingOrder, fmt.Sprintf("quantify_item on missing order %s", a.OrderID))
		return
	}

	prior := 0
	idx := o.Line(a.Key)
	if idx >= 0 {
		prior = o.Lines[idx].Qty
	}

	switch {
	case a.Qty <= 0 && idx >= 0:
		o.Lines = slices.Delete(o.Lines, idx, idx+1)
	case a.Qty <= 0:
		// nothing to remove
	case idx >= 0:
		o.Lines[idx].Qty = a.Qty
	default:
		o.Lines = append(o.Lines, ir.LineItem{Key: a.Key, Qty: a.Qty})
	}
	st.state.Orders[a.OrderID] = o

	target := max(a.Qty, 0)
	if delta := target - prior; delta != 0 {
		if !st.adjustShipped(a.Key, delta) {
			st.report(CodeMissingItem, fmt.Sprintf("quantify_item %s in %s: item not in inventory", a.Key, a.OrderID))
		}
	}
}

// retypeItem moves up to qty of a line from one key to another within an
// order.
func (st *step) retypeItem(a ir.RetypeItem) {
	to := a.NewKey()
	if to == a.Key {
		st.report(CodeRetypeSameKey, fmt.Sprintf("retype_item %s to itself", a.Key))
		return
	}

	o, ok := st.state.Orders[a.OrderID]
	if !ok {
		st.report(CodeMissingOrder, fmt.Sprintf("retype_item on missing order %s", a.OrderID))
		return
	}

	idx := o.Line(a.Key)
	if idx < 0 {
		st.report(CodeMissingLineItem, fmt.Sprintf("retype_item: order %s has no line for %s", a.OrderID, a.Key))
		return
	}

	// The move is clamped to the source line so the order total and the
	// shipped counts never grow.
	moved := min(a.Qty, o.Lines[idx].Qty)
	if moved <= 0 {
		st.report(CodeRetypeQtyOutOfRange, fmt.Sprintf("retype_item qty %d in %s", a.Qty, a.OrderID))
		return
	}
	if moved < a.Qty {
		st.report(CodeRetypeQtyOutOfRange, fmt.Sprintf("retype_item qty %d exceeds line %s (%d) in %s; moved %d",
			a.Qty, a.Key, o.Lines[idx].Qty, a.OrderID, moved))
	}

	o.Lines = addToLine(o.Lines, a.Key, -moved)
	o.Lines = addToLine(o.Lines, to, moved)
	st.state.Orders[a.OrderID] = o

	// Shipped counts only move when both sides are known items; moving one
	// side alone would leave inventory totals inconsistent.
	_, fromOK := st.state.Items[a.Key]
	_, toOK := st.state.Items[to]
	if !fromOK || !toOK {
		missing := a.Key
		if fromOK {
			missing = to
		}
		st.report(CodeMissingItem, fmt.Sprintf("retype_item in %s: item %s not in inventory", a.OrderID, missing))
		return
	}
	st.adjustShipped(a.Key, -moved)
	st.adjustShipped(to, moved)
}

// newOrder creates or updates order metadata. Existing lines are kept.
func (st *step) newOrder(a ir.NewOrder) {
	o, ok := st.state.Orders[a.OrderID]
	if !ok {
		o = ir.OrderInfo{ID: a.OrderID, Date: st.c.CommittedAt.UTC()}
	}
	if !a.Date.IsZero() {
		o.Date = a.Date.UTC()
	}
	o.Email = a.Email
	o.Product = a.Product
	st.state.Orders[a.OrderID] = o
}

// addToLine adds delta to the line for key, appending a new line if absent.
// Lines whose quantity drops to zero or below are removed.
func addToLine(lines []ir.LineItem, key ir.ItemKey, delta int) []ir.LineItem {
	for i := range lines {
		if lines[i].Key != key {
			continue
		}
		lines[i].Qty += delta
		if lines[i].Qty <= 0 {
			return slices.Delete(lines, i, i+1)
		}
		return lines
	}
	if delta <= 0 {
		return lines
	}
	return append(lines, ir.LineItem{Key: key, Qty: delta})
}
