package ir

import (
	"slices"
	"time"
)

// Item is a single inventory entry.
type Item struct {
	Code           string `json:"code"`
	Subtype        string `json:"subtype"`
	Description    string `json:"description"`
	Classification string `json:"classification"`
	Image          string `json:"image"`
	Qty            int    `json:"qty"`
	Pieces         int    `json:"pieces"`  // units per pack, 0 = qty already in final units
	Shipped        int    `json:"shipped"` // cumulative amount dispatched
}

// Key returns the composite key derived from the item's own code and subtype.
func (it Item) Key() ItemKey {
	return NewItemKey(it.Code, it.Subtype)
}

// LineItem is a quantity of one item inside an order.
type LineItem struct {
	Key ItemKey `json:"key"`
	Qty int     `json:"qty"`
}

// OrderInfo holds order metadata and its line items in insertion order.
// Each item key appears at most once in Lines.
type OrderInfo struct {
	ID      string     `json:"id"`
	Date    time.Time  `json:"date"`
	Email   string     `json:"email"`
	Product string     `json:"product"`
	Lines   []LineItem `json:"lines"`
}

// Line returns the index of the line item for key, or -1.
func (o *OrderInfo) Line(key ItemKey) int {
	for i, l := range o.Lines {
		if l.Key == key {
			return i
		}
	}
	return -1
}

// State is the materialized snapshot produced by replaying the action log.
type State struct {
	Items  map[ItemKey]Item
	Orders map[string]OrderInfo
	Names  map[string][]string
}

// NewState returns the empty state every replay starts from.
func NewState() *State {
	return &State{
		Items:  make(map[ItemKey]Item),
		Orders: make(map[string]OrderInfo),
		Names:  make(map[string][]string),
	}
}

// Clone returns a deep copy. Mutating the copy never affects s.
func (s *State) Clone() *State {
	out := &State{
		Items:  make(map[ItemKey]Item, len(s.Items)),
		Orders: make(map[string]OrderInfo, len(s.Orders)),
		Names:  make(map[string][]string, len(s.Names)),
	}
	for k, v := range s.Items {
		out.Items[k] = v
	}
	for k, v := range s.Orders {
		v.Lines = slices.Clone(v.Lines)
		out.Orders[k] = v
	}
	for k, v := range s.Names {
		out.Names[k] = slices.Clone(v)
	}
	return out
}

// Item returns the item stored under key.
func (s *State) Item(key ItemKey) (Item, bool) {
	it, ok := s.Items[key]
	return it, ok
}

// Order returns the order with the given id.
func (s *State) Order(id string) (OrderInfo, bool) {
	o, ok := s.Orders[id]
	return o, ok
}

// SortedKeys returns every item key ordered by code, then subtype.
func (s *State) SortedKeys() []ItemKey {
	keys := make([]ItemKey, 0, len(s.Items))
	for k := range s.Items {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, ItemKey.Compare)
	return keys
}

// ItemsByCode returns all items sharing a product code regardless of
// subtype, ordered by subtype.
func (s *State) ItemsByCode(code string) []Item {
	var out []Item
	for k, it := range s.Items {
		if k.Code == code {
			out = append(out, it)
		}
	}
	slices.SortFunc(out, func(a, b Item) int {
		return a.Key().Compare(b.Key())
	})
	return out
}
