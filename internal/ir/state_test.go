package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewItemKeyTrims(t *testing.T) {
	k := NewItemKey(" 4901234567890 ", " A")
	assert.Equal(t, ItemKey{Code: "4901234567890", Subtype: "A"}, k)
	assert.Equal(t, "4901234567890#A", k.String())
	assert.Equal(t, "X", NewItemKey("X", "").String())
}

func TestItemKeyNoConcatenationCollision(t *testing.T) {
	// "AB"+"C" and "A"+"BC" concatenate to the same string but are distinct keys.
	assert.NotEqual(t, NewItemKey("AB", "C"), NewItemKey("A", "BC"))
}

func TestCloneIsDeep(t *testing.T) {
	s := sampleState()
	c := s.Clone()

	o := c.Orders["O-1"]
	o.Lines[0].Qty = 99
	c.Orders["O-1"] = o
	c.Names["hs"][0] = "changed"
	delete(c.Items, NewItemKey("X", "A"))

	assert.Equal(t, 1, s.Orders["O-1"].Lines[0].Qty)
	assert.Equal(t, "bags", s.Names["hs"][0])
	_, ok := s.Item(NewItemKey("X", "A"))
	assert.True(t, ok)
}

func TestItemsByCode(t *testing.T) {
	s := sampleState()
	s.Items[NewItemKey("Y", "")] = Item{Code: "Y"}

	items := s.ItemsByCode("X")
	require.Len(t, items, 2)
	assert.Equal(t, "A", items[0].Subtype)
	assert.Equal(t, "B", items[1].Subtype)
	assert.Empty(t, s.ItemsByCode("missing"))
}

func TestItemSetAndGet(t *testing.T) {
	it := Item{Code: "X"}

	it, ok := it.Set(FieldQty, IntValue(4))
	require.True(t, ok)
	assert.Equal(t, 4, it.Qty)

	_, ok = it.Set(FieldQty, StringValue("4"))
	assert.False(t, ok, "type mismatch rejected")

	_, ok = it.Set(Field("code"), StringValue("Y"))
	assert.False(t, ok, "key fields are not editable")

	v, ok := it.Get(FieldQty)
	require.True(t, ok)
	assert.Equal(t, IntValue(4), v)
}

func TestOrderLine(t *testing.T) {
	o := sampleState().Orders["O-1"]
	assert.Equal(t, 1, o.Line(NewItemKey("X", "A")))
	assert.Equal(t, -1, o.Line(NewItemKey("Z", "")))
}
