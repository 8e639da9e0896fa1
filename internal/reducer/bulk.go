package reducer

import "github.com/roach88/stockroom/internal/ir"

// bulkImport applies every entry of one import chunk as a single step.
// Entry qty is always a delta; replaying a chunk applies it exactly once
// because the log delivers each record exactly once.
func (st *step) bulkImport(a ir.BulkImportItems) {
	for _, e := range a.Entries {
		if e.Key.IsZero() {
			st.report(CodeMissingItem, "bulk_import_items entry without an item key")
			continue
		}

		it, ok := st.state.Items[e.Key]
		if !ok {
			created := e.Item
			created.Code = e.Key.Code
			created.Subtype = e.Key.Subtype
			created.Qty = e.Qty
			created.Shipped = 0
			st.state.Items[e.Key] = created
			continue
		}

		// A "new" entry whose key appeared between analysis and commit
		// merges like an update.
		it.Qty += e.Qty
		if e.Type == ir.EntryUpdate && e.Item.Classification != "" {
			it.Classification = e.Item.Classification
		}
		st.state.Items[e.Key] = it
	}
}
