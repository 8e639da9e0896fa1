package importer

import (
	"fmt"

	"github.com/roach88/stockroom/internal/ir"
	"github.com/roach88/stockroom/internal/transport"
)

const (
	// DefaultChunkSize is the maximum number of entries per bulk action.
	DefaultChunkSize = 100

	// DefaultMaxBytes is the encoded payload ceiling per bulk action.
	DefaultMaxBytes = transport.MaxPayloadBytes
)

// Chunk is one bulk_import_items action and the rows it carries.
type Chunk struct {
	Rows   []int // PlannedRow.Index values, in input order
	Action ir.BulkImportItems
}

// Batch groups planned rows into chunks of at most maxEntries entries whose
// encoded payload stays within maxBytes. A row is never split across
// chunks. Zero or negative limits select the defaults.
func Batch(rows []PlannedRow, maxEntries, maxBytes int) ([]Chunk, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultChunkSize
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	var (
		chunks []Chunk
		cur    Chunk
	)
	flush := func() {
		if len(cur.Rows) > 0 {
			chunks = append(chunks, cur)
		}
		cur = Chunk{}
	}

	for _, row := range rows {
		if len(row.Entries) > maxEntries {
			return nil, fmt.Errorf("batch: row %d has %d entries, limit %d", row.Index, len(row.Entries), maxEntries)
		}
		if ok, err := fits(row.Entries, maxBytes); err != nil {
			return nil, fmt.Errorf("batch: row %d: %w", row.Index, err)
		} else if !ok {
			return nil, fmt.Errorf("batch: row %d alone exceeds %d bytes", row.Index, maxBytes)
		}

		next := append(cloneEntries(cur.Action.Entries), row.Entries...)
		ok, err := fits(next, maxBytes)
		if err != nil {
			return nil, fmt.Errorf("batch: row %d: %w", row.Index, err)
		}
		if len(next) > maxEntries || !ok {
			flush()
			next = cloneEntries(row.Entries)
		}
		cur.Rows = append(cur.Rows, row.Index)
		cur.Action.Entries = next
	}
	flush()

	return chunks, nil
}

// fits reports whether entries encode within maxBytes.
func fits(entries []ir.BulkEntry, maxBytes int) (bool, error) {
	_, payload, err := ir.EncodeAction(ir.BulkImportItems{Entries: entries})
	if err != nil {
		return false, err
	}
	return len(payload) <= maxBytes, nil
}

func cloneEntries(e []ir.BulkEntry) []ir.BulkEntry {
	return append([]ir.BulkEntry(nil), e...)
}
