package importer

import (
	"fmt"

	"github.com/roach88/stockroom/internal/ir"
)

// PlannedRow is the set of bulk entries one accepted row turns into.
// A row's entries are always committed together.
type PlannedRow struct {
	Index   int
	Entries []ir.BulkEntry
}

// Plan converts an accepted row into bulk entries.
// Returns an error for rows that are not NEW, MATCH, or RESOLVED.
func Plan(item AnalyzedItem) (PlannedRow, error) {
	row := item.Row
	p := PlannedRow{Index: item.Index}

	switch item.Status {
	case StatusNew:
		key := ir.NewItemKey(row.Code, "")
		p.Entries = []ir.BulkEntry{{
			Type: ir.EntryNew,
			Key:  key,
			Item: ir.Item{
				Code:           key.Code,
				Description:    row.Description,
				Classification: row.Classification,
			},
			Qty: row.Qty,
		}}

	case StatusMatch:
		c := item.Candidates[0]
		p.Entries = []ir.BulkEntry{update(c.Key(), row.Classification, row.Qty)}

	case StatusResolved:
		if item.Resolution == nil {
			return PlannedRow{}, fmt.Errorf("plan line %d: resolved row without resolution", row.Line)
		}
		entries, err := resolvedEntries(item)
		if err != nil {
			return PlannedRow{}, err
		}
		p.Entries = entries

	default:
		return PlannedRow{}, fmt.Errorf("plan line %d: status %s is not committable", row.Line, item.Status)
	}

	return p, nil
}

func resolvedEntries(item AnalyzedItem) ([]ir.BulkEntry, error) {
	res := item.Resolution
	switch res.Kind {
	case ConflictAmbiguousSubtype:
		var out []ir.BulkEntry
		for _, a := range res.Split {
			if a.Qty > 0 {
				out = append(out, update(a.Key, "", a.Qty))
			}
		}
		return out, nil

	case ConflictClassificationMismatch:
		if len(item.Candidates) != 1 {
			return nil, fmt.Errorf("plan line %d: classification resolution needs one candidate, have %d", item.Row.Line, len(item.Candidates))
		}
		c := item.Candidates[0]
		class := c.Classification
		if res.Pick == ChooseIncoming {
			class = item.Row.Classification
		}
		return []ir.BulkEntry{update(c.Key(), class, item.Row.Qty)}, nil
	}
	return nil, fmt.Errorf("plan line %d: unknown resolution kind %q", item.Row.Line, res.Kind)
}

func update(key ir.ItemKey, classification string, qty int) ir.BulkEntry {
	return ir.BulkEntry{
		Type: ir.EntryUpdate,
		Key:  key,
		Item: ir.Item{Code: key.Code, Subtype: key.Subtype, Classification: classification},
		Qty:  qty,
	}
}
