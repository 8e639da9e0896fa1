// Package history keeps a per-item audit trail derived from the action log.
//
// The projection is observed with the state as it was before each action,
// so it can describe transitions ("qty 5 -> 0") that the post-action state
// no longer shows. Entries survive item deletion.
package history

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/roach88/stockroom/internal/ir"
)

// Entry is one line of an item's history.
type Entry struct {
	Seq   int64     `json:"seq"`
	At    time.Time `json:"at"`
	Actor string    `json:"actor"`
	Kind  ir.Kind   `json:"kind"`
	Text  string    `json:"text"`
}

// Projection accumulates entries per item key.
// Thread-safety: Observe and Entries may be called from any goroutine.
type Projection struct {
	mu      sync.RWMutex
	entries map[ir.ItemKey][]Entry
}

// New returns an empty projection.
func New() *Projection {
	return &Projection{entries: make(map[ir.ItemKey][]Entry)}
}

// Entries returns a copy of the history for key, oldest first.
func (p *Projection) Entries(key ir.ItemKey) []Entry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.entries[key])
}

// Keys returns every key with at least one entry, sorted.
func (p *Projection) Keys() []ir.ItemKey {
	p.mu.RLock()
	defer p.mu.RUnlock()
	keys := make([]ir.ItemKey, 0, len(p.entries))
	for k := range p.entries {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, ir.ItemKey.Compare)
	return keys
}

// Observe records the effect c will have on before. It must be called
// before c is applied and never modifies before.
func (p *Projection) Observe(before *ir.State, c ir.Committed) {
	notes := describe(before, c.Action)
	if len(notes) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range notes {
		p.entries[n.key] = append(p.entries[n.key], Entry{
			Seq:   c.Seq,
			At:    c.CommittedAt,
			Actor: c.Actor,
			Kind:  c.Action.Kind(),
			Text:  n.text,
		})
	}
}

type note struct {
	key  ir.ItemKey
	text string
}

func describe(s *ir.State, a ir.Action) []note {
	switch a := a.(type) {
	case ir.UpdateItem:
		prev, ok := s.Items[a.ID]
		if !ok {
			return []note{{a.ID, fmt.Sprintf("created (qty %d)", a.Item.Qty)}}
		}
		changes := diffItems(prev, a.Item)
		if len(changes) == 0 {
			return []note{{a.ID, "saved without changes"}}
		}
		return []note{{a.ID, strings.Join(changes, ", ")}}

	case ir.UpdateField:
		prev, ok := s.Items[a.ID]
		if !ok {
			return nil
		}
		from, _ := prev.Get(a.Field)
		text := fmt.Sprintf("%s %s -> %s", a.Field, quote(a.Field, from), quote(a.Field, a.To))
		if a.Field == ir.FieldQty && a.To == ir.IntValue(0) {
			text += " (removed)"
		}
		return []note{{a.ID, text}}

	case ir.PackageItem:
		return []note{{a.Key, fmt.Sprintf("packaged %d into order %s", a.Qty, a.OrderID)}}

	case ir.QuantifyItem:
		o, ok := s.Orders[a.OrderID]
		if !ok {
			return nil
		}
		prior := 0
		if i := o.Line(a.Key); i >= 0 {
			prior = o.Lines[i].Qty
		}
		return []note{{a.Key, fmt.Sprintf("order %s quantity %d -> %d", a.OrderID, prior, max(a.Qty, 0))}}

	case ir.RetypeItem:
		to := a.NewKey()
		if to == a.Key {
			return nil
		}
		o, ok := s.Orders[a.OrderID]
		if !ok {
			return nil
		}
		idx := o.Line(a.Key)
		if idx < 0 {
			return nil
		}
		moved := min(a.Qty, o.Lines[idx].Qty)
		if moved <= 0 {
			return nil
		}
		return []note{
			{a.Key, fmt.Sprintf("retyped %d in order %s to %s", moved, a.OrderID, to)},
			{to, fmt.Sprintf("retyped %d in order %s from %s", moved, a.OrderID, a.Key)},
		}

	case ir.BulkImportItems:
		notes := make([]note, 0, len(a.Entries))
		for _, e := range a.Entries {
			if e.Key.IsZero() {
				continue
			}
			prev, ok := s.Items[e.Key]
			if !ok {
				notes = append(notes, note{e.Key, fmt.Sprintf("imported new (qty %d)", e.Qty)})
				continue
			}
			notes = append(notes, note{e.Key, fmt.Sprintf("imported %+d (qty %d -> %d)", e.Qty, prev.Qty, prev.Qty+e.Qty)})
		}
		return notes
	}
	return nil
}

func diffItems(a, b ir.Item) []string {
	fields := []ir.Field{
		ir.FieldQty, ir.FieldPieces, ir.FieldShipped,
		ir.FieldDescription, ir.FieldClassification, ir.FieldImage,
	}
	var out []string
	for _, f := range fields {
		from, _ := a.Get(f)
		to, _ := b.Get(f)
		if from != to {
			out = append(out, fmt.Sprintf("%s %s -> %s", f, quote(f, from), quote(f, to)))
		}
	}
	return out
}

func quote(f ir.Field, v ir.FieldValue) string {
	if v == nil {
		return "?"
	}
	if f.IsInt() {
		return v.String()
	}
	return fmt.Sprintf("%q", v.String())
}
