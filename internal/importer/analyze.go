package importer

import (
	"github.com/roach88/stockroom/internal/ir"
)

// Analyze classifies every row against snap. It never reads or writes
// anything else, so the same (rows, snap) pair always yields the same
// result.
func Analyze(rows []Row, snap *ir.State) []AnalyzedItem {
	out := make([]AnalyzedItem, len(rows))
	for i, row := range rows {
		out[i] = analyzeRow(i, row, snap)
	}
	return out
}

func analyzeRow(index int, row Row, snap *ir.State) AnalyzedItem {
	code := ir.NewItemKey(row.Code, "").Code
	candidates := snap.ItemsByCode(code)

	item := AnalyzedItem{Index: index, Row: row, Candidates: candidates}
	switch len(candidates) {
	case 0:
		item.Status = StatusNew
	case 1:
		if classificationsDiffer(row.Classification, candidates[0].Classification) {
			item.Status = StatusConflict
			item.Conflict = ConflictClassificationMismatch
		} else {
			item.Status = StatusMatch
		}
	default:
		item.Status = StatusConflict
		item.Conflict = ConflictAmbiguousSubtype
	}
	return item
}

// classificationsDiffer reports a mismatch only when both sides are set.
func classificationsDiffer(incoming, existing string) bool {
	return incoming != "" && existing != "" && incoming != existing
}
