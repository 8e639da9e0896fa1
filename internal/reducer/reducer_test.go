package reducer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stockroom/internal/ir"
)

var (
	keyA = ir.NewItemKey("X", "A")
	keyB = ir.NewItemKey("X", "B")
	t0   = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
)

// log builds committed actions with sequential seqs and commit times.
func log(actions ...ir.Action) []ir.Committed {
	out := make([]ir.Committed, len(actions))
	for i, a := range actions {
		out[i] = ir.Committed{
			Seq:         int64(i + 1),
			ID:          "id-" + string(rune('a'+i)),
			Actor:       "test",
			CommittedAt: t0.Add(time.Duration(i) * time.Minute),
			Action:      a,
		}
	}
	return out
}

func codes(diags []Diagnostic) []DiagnosticCode {
	out := make([]DiagnosticCode, len(diags))
	for i, d := range diags {
		out[i] = d.Code
	}
	return out
}

func item(key ir.ItemKey, qty, shipped int) ir.UpdateItem {
	return ir.UpdateItem{ID: key, Item: ir.Item{Code: key.Code, Subtype: key.Subtype, Qty: qty, Shipped: shipped}}
}

func TestUpdateItemUpserts(t *testing.T) {
	s, diags := Replay(log(
		item(keyA, 5, 0),
		item(keyA, 7, 1),
	))
	require.Empty(t, diags)

	got, ok := s.Item(keyA)
	require.True(t, ok)
	assert.Equal(t, 7, got.Qty)
	assert.Equal(t, 1, got.Shipped)
}

func TestUpdateFieldZeroQtyRemovesItem(t *testing.T) {
	s, diags := Replay(log(
		item(keyA, 5, 0),
		ir.UpdateField{ID: keyA, Field: ir.FieldQty, To: ir.IntValue(0)},
	))
	require.Empty(t, diags)
	_, ok := s.Item(keyA)
	assert.False(t, ok)
}

func TestUpdateFieldAfterRemovalIsMissing(t *testing.T) {
	s, diags := Replay(log(
		item(keyA, 5, 0),
		ir.UpdateField{ID: keyA, Field: ir.FieldQty, To: ir.IntValue(0)},
		ir.UpdateField{ID: keyA, Field: ir.FieldDescription, To: ir.StringValue("gone")},
		item(keyA, 1, 0),
	))

	assert.Equal(t, []DiagnosticCode{CodeMissingItem}, codes(diags))
	assert.Equal(t, int64(3), diags[0].Seq)

	got, ok := s.Item(keyA)
	require.True(t, ok, "update_item recreates a removed item")
	assert.Equal(t, 1, got.Qty)
	assert.Empty(t, got.Description)
}

func TestUpdateFieldTypeMismatch(t *testing.T) {
	s, diags := Replay(log(
		item(keyA, 5, 0),
		ir.UpdateField{ID: keyA, Field: ir.FieldQty, To: ir.StringValue("5")},
	))
	assert.Equal(t, []DiagnosticCode{CodeInvalidField}, codes(diags))
	assert.Equal(t, 5, s.Items[keyA].Qty)
}

func TestPackageItemAdditive(t *testing.T) {
	s, diags := Replay(log(
		item(keyA, 10, 0),
		ir.PackageItem{OrderID: "O-1", Key: keyA, Qty: 2},
		ir.PackageItem{OrderID: "O-1", Key: keyA, Qty: 3},
	))
	require.Empty(t, diags)

	o, ok := s.Order("O-1")
	require.True(t, ok)
	assert.Equal(t, t0.Add(time.Minute), o.Date, "order dated by first commit")
	assert.Equal(t, []ir.LineItem{{Key: keyA, Qty: 5}}, o.Lines)
	assert.Equal(t, 5, s.Items[keyA].Shipped)
}

func TestPackageItemMissingItemStillRecordsLine(t *testing.T) {
	s, diags := Replay(log(
		ir.PackageItem{OrderID: "O-1", Key: keyA, Qty: 2},
	))
	assert.Equal(t, []DiagnosticCode{CodeMissingItem}, codes(diags))
	assert.Equal(t, []ir.LineItem{{Key: keyA, Qty: 2}}, s.Orders["O-1"].Lines)
	_, ok := s.Item(keyA)
	assert.False(t, ok)
}

func TestQuantifyItemAppliesDelta(t *testing.T) {
	// shipped=5 with line qty 3; quantify to 7 moves shipped by +4.
	s, diags := Replay(log(
		item(keyA, 10, 2),
		ir.PackageItem{OrderID: "O-1", Key: keyA, Qty: 3},
		ir.QuantifyItem{OrderID: "O-1", Key: keyA, Qty: 7},
	))
	require.Empty(t, diags)
	assert.Equal(t, 9, s.Items[keyA].Shipped)
	assert.Equal(t, 7, s.Orders["O-1"].Lines[0].Qty)
}

func TestQuantifyItemIdempotentOnRepeat(t *testing.T) {
	s, _ := Replay(log(
		item(keyA, 10, 0),
		ir.PackageItem{OrderID: "O-1", Key: keyA, Qty: 3},
		ir.QuantifyItem{OrderID: "O-1", Key: keyA, Qty: 7},
		ir.QuantifyItem{OrderID: "O-1", Key: keyA, Qty: 7},
	))
	assert.Equal(t, 7, s.Items[keyA].Shipped)
}

func TestQuantifyItemZeroRemovesLine(t *testing.T) {
	s, diags := Replay(log(
		item(keyA, 10, 0),
		ir.PackageItem{OrderID: "O-1", Key: keyA, Qty: 3},
		ir.QuantifyItem{OrderID: "O-1", Key: keyA, Qty: 0},
	))
	require.Empty(t, diags)
	assert.Empty(t, s.Orders["O-1"].Lines)
	assert.Equal(t, 0, s.Items[keyA].Shipped)
}

func TestQuantifyItemMissingLineTreatsPriorAsZero(t *testing.T) {
	s, diags := Replay(log(
		item(keyA, 10, 0),
		ir.NewOrder{OrderID: "O-1"},
		ir.QuantifyItem{OrderID: "O-1", Key: keyA, Qty: 4},
	))
	require.Empty(t, diags)
	assert.Equal(t, []ir.LineItem{{Key: keyA, Qty: 4}}, s.Orders["O-1"].Lines)
	assert.Equal(t, 4, s.Items[keyA].Shipped)
}

func TestQuantifyItemMissingOrder(t *testing.T) {
	s, diags := Replay(log(
		item(keyA, 10, 0),
		ir.QuantifyItem{OrderID: "nope", Key: keyA, Qty: 4},
	))
	assert.Equal(t, []DiagnosticCode{CodeMissingOrder}, codes(diags))
	assert.Empty(t, s.Orders)
	assert.Equal(t, 0, s.Items[keyA].Shipped)
}

func TestRetypeItemSameKeyIsNoop(t *testing.T) {
	before, _ := Replay(log(
		item(keyA, 10, 0),
		ir.PackageItem{OrderID: "O-1", Key: keyA, Qty: 3},
	))

	after, diags := Apply(before, ir.Committed{
		Seq:    3,
		Action: ir.RetypeItem{OrderID: "O-1", Key: keyA, JanCode: "X", Subtype: "A", Qty: 3},
	})

	assert.Equal(t, []DiagnosticCode{CodeRetypeSameKey}, codes(diags))
	assert.Equal(t, ir.MustStateHash(before), ir.MustStateHash(after))
}

func TestRetypeItemMovesLineAndShipped(t *testing.T) {
	s, diags := Replay(log(
		item(keyA, 10, 0),
		item(keyB, 10, 0),
		ir.PackageItem{OrderID: "O-1", Key: keyA, Qty: 3},
		ir.PackageItem{OrderID: "O-1", Key: keyB, Qty: 1},
		ir.RetypeItem{OrderID: "O-1", Key: keyA, JanCode: "X", Subtype: "B", Qty: 2},
	))
	require.Empty(t, diags)

	assert.Equal(t, []ir.LineItem{{Key: keyA, Qty: 1}, {Key: keyB, Qty: 3}}, s.Orders["O-1"].Lines)
	assert.Equal(t, 1, s.Items[keyA].Shipped)
	assert.Equal(t, 3, s.Items[keyB].Shipped)
}

func TestRetypeItemFullMoveRemovesOldLine(t *testing.T) {
	s, diags := Replay(log(
		item(keyA, 10, 0),
		item(keyB, 10, 0),
		ir.PackageItem{OrderID: "O-1", Key: keyA, Qty: 3},
		ir.RetypeItem{OrderID: "O-1", Key: keyA, JanCode: "X", Subtype: "B", Qty: 3},
	))
	require.Empty(t, diags)
	assert.Equal(t, []ir.LineItem{{Key: keyB, Qty: 3}}, s.Orders["O-1"].Lines)
}

func TestRetypeItemUnknownTargetKeepsShipped(t *testing.T) {
	s, diags := Replay(log(
		item(keyA, 10, 0),
		ir.PackageItem{OrderID: "O-1", Key: keyA, Qty: 3},
		ir.RetypeItem{OrderID: "O-1", Key: keyA, JanCode: "Y", Qty: 3},
	))
	assert.Equal(t, []DiagnosticCode{CodeMissingItem}, codes(diags))
	assert.Equal(t, []ir.LineItem{{Key: ir.NewItemKey("Y", ""), Qty: 3}}, s.Orders["O-1"].Lines)
	assert.Equal(t, 3, s.Items[keyA].Shipped)
}

func TestRetypeItemClampedToSourceLine(t *testing.T) {
	s, diags := Replay(log(
		item(keyA, 10, 0),
		item(keyB, 10, 0),
		ir.PackageItem{OrderID: "O-1", Key: keyA, Qty: 3},
		ir.RetypeItem{OrderID: "O-1", Key: keyA, JanCode: "X", Subtype: "B", Qty: 5},
	))
	assert.Equal(t, []DiagnosticCode{CodeRetypeQtyOutOfRange}, codes(diags))

	assert.Equal(t, []ir.LineItem{{Key: keyB, Qty: 3}}, s.Orders["O-1"].Lines)
	assert.Equal(t, 0, s.Items[keyA].Shipped)
	assert.Equal(t, 3, s.Items[keyB].Shipped)
}

func TestRetypeItemNonPositiveQtyIsNoop(t *testing.T) {
	for _, qty := range []int{0, -2} {
		s, diags := Replay(log(
			item(keyA, 10, 0),
			item(keyB, 10, 0),
			ir.PackageItem{OrderID: "O-1", Key: keyA, Qty: 3},
			ir.RetypeItem{OrderID: "O-1", Key: keyA, JanCode: "X", Subtype: "B", Qty: qty},
		))
		assert.Equal(t, []DiagnosticCode{CodeRetypeQtyOutOfRange}, codes(diags), "qty %d", qty)
		assert.Equal(t, []ir.LineItem{{Key: keyA, Qty: 3}}, s.Orders["O-1"].Lines, "qty %d", qty)
		assert.Equal(t, 3, s.Items[keyA].Shipped, "qty %d", qty)
		assert.Equal(t, 0, s.Items[keyB].Shipped, "qty %d", qty)
	}
}

func TestRetypeItemMissingLine(t *testing.T) {
	_, diags := Replay(log(
		ir.NewOrder{OrderID: "O-1"},
		ir.RetypeItem{OrderID: "O-1", Key: keyA, JanCode: "X", Subtype: "B", Qty: 1},
	))
	assert.Equal(t, []DiagnosticCode{CodeMissingLineItem}, codes(diags))
}

func TestNewOrderPreservesLines(t *testing.T) {
	date := time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC)
	s, diags := Replay(log(
		item(keyA, 10, 0),
		ir.PackageItem{OrderID: "O-1", Key: keyA, Qty: 3},
		ir.NewOrder{OrderID: "O-1", Date: date, Email: "a@example.com", Product: "gift box"},
	))
	require.Empty(t, diags)

	o := s.Orders["O-1"]
	assert.Equal(t, date, o.Date)
	assert.Equal(t, "a@example.com", o.Email)
	assert.Equal(t, "gift box", o.Product)
	assert.Len(t, o.Lines, 1)
}

func TestNewOrderZeroDateKeepsExisting(t *testing.T) {
	s, _ := Replay(log(
		ir.NewOrder{OrderID: "O-1"},
		ir.NewOrder{OrderID: "O-1", Email: "b@example.com"},
	))
	assert.Equal(t, t0, s.Orders["O-1"].Date)
	assert.Equal(t, "b@example.com", s.Orders["O-1"].Email)
}

func TestBulkImportDeltaAndCreate(t *testing.T) {
	newKey := ir.NewItemKey("4901234567890", "")
	s, diags := Replay(log(
		item(keyA, 5, 2),
		ir.BulkImportItems{Entries: []ir.BulkEntry{
			{Type: ir.EntryUpdate, Key: keyA, Item: ir.Item{Classification: "4202"}, Qty: 6},
			{Type: ir.EntryNew, Key: newKey, Item: ir.Item{Code: "4901234567890", Description: "tote", Shipped: 9}, Qty: 50},
		}},
	))
	require.Empty(t, diags)

	a := s.Items[keyA]
	assert.Equal(t, 11, a.Qty)
	assert.Equal(t, 2, a.Shipped)
	assert.Equal(t, "4202", a.Classification)

	n := s.Items[newKey]
	assert.Equal(t, 50, n.Qty)
	assert.Equal(t, 0, n.Shipped, "created items start unshipped")
	assert.Equal(t, "tote", n.Description)
}

func TestBulkImportBlankClassificationKeepsExisting(t *testing.T) {
	s, _ := Replay(log(
		ir.UpdateItem{ID: keyA, Item: ir.Item{Code: "X", Subtype: "A", Qty: 1, Classification: "6307"}},
		ir.BulkImportItems{Entries: []ir.BulkEntry{{Type: ir.EntryUpdate, Key: keyA, Qty: 1}}},
	))
	assert.Equal(t, "6307", s.Items[keyA].Classification)
	assert.Equal(t, 2, s.Items[keyA].Qty)
}

func TestNamesSortedAndDeduplicated(t *testing.T) {
	s, diags := Replay(log(
		ir.AddName{ID: "4202", Name: "totes"},
		ir.AddName{ID: "4202", Name: "bags"},
		ir.AddName{ID: "4202", Name: "totes"},
		ir.AddName{ID: "6307", Name: "cloths"},
		ir.RemoveName{ID: "6307", Name: "cloths"},
		ir.RemoveName{ID: "4202", Name: "missing"},
	))
	require.Empty(t, diags)
	assert.Equal(t, map[string][]string{"4202": {"bags", "totes"}}, s.Names)
}

type rogueAction struct{ ir.AddName }

func (rogueAction) Kind() ir.Kind { return "rogue" }

func TestUnknownActionDiagnostic(t *testing.T) {
	s := ir.NewState()
	diags := Step(s, ir.Committed{Seq: 1, Action: rogueAction{}})
	require.Len(t, diags, 1)
	assert.Equal(t, CodeUnknownAction, diags[0].Code)
	assert.True(t, IsCode(&diags[0], CodeUnknownAction))
	assert.Equal(t, ir.MustStateHash(ir.NewState()), ir.MustStateHash(s))
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	before, _ := Replay(log(
		item(keyA, 10, 0),
		ir.PackageItem{OrderID: "O-1", Key: keyA, Qty: 3},
	))
	hash := ir.MustStateHash(before)

	_, _ = Apply(before, ir.Committed{Seq: 3, Action: ir.QuantifyItem{OrderID: "O-1", Key: keyA, Qty: 9}})
	assert.Equal(t, hash, ir.MustStateHash(before))
}

func TestReplayDeterminism(t *testing.T) {
	actions := log(
		item(keyA, 10, 0),
		item(keyB, 4, 0),
		ir.PackageItem{OrderID: "O-2", Key: keyB, Qty: 1},
		ir.PackageItem{OrderID: "O-1", Key: keyA, Qty: 3},
		ir.RetypeItem{OrderID: "O-1", Key: keyA, JanCode: "X", Subtype: "B", Qty: 1},
		ir.AddName{ID: "4202", Name: "bags"},
		ir.BulkImportItems{Entries: []ir.BulkEntry{{Type: ir.EntryUpdate, Key: keyA, Qty: 2}}},
	)

	first, _ := Replay(actions)
	for range 10 {
		again, _ := Replay(actions)
		assert.Equal(t, ir.MustStateHash(first), ir.MustStateHash(again))
	}
}
