package importer

import (
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/stockroom/internal/ir"
)

// Choice picks which classification survives a mismatch.
type Choice string

const (
	ChooseIncoming Choice = "incoming"
	ChooseExisting Choice = "existing"
)

// Allocation is the quantity assigned to one candidate in a split.
type Allocation struct {
	Key ir.ItemKey `json:"key"`
	Qty int        `json:"qty"`
}

// Resolution is a validated user decision for one conflicted row.
type Resolution struct {
	Kind  ConflictKind `json:"kind"`
	Split []Allocation `json:"split,omitempty"`  // ambiguous_subtype, ordered by key
	Pick  Choice       `json:"choice,omitempty"` // classification_mismatch
}

// ResolveSplit validates a quantity split across an ambiguous row's
// candidates. The allocations must cover the row quantity exactly.
func ResolveSplit(item AnalyzedItem, alloc map[ir.ItemKey]int) (Resolution, error) {
	if item.Status != StatusConflict {
		return Resolution{}, fmt.Errorf("resolve split line %d: %w", item.Row.Line, ErrNotConflict)
	}
	if item.Conflict != ConflictAmbiguousSubtype {
		return Resolution{}, &ValidationError{
			Code:    CodeWrongKind,
			Line:    item.Row.Line,
			Message: fmt.Sprintf("split given for %s conflict", item.Conflict),
		}
	}

	known := make(map[ir.ItemKey]bool, len(item.Candidates))
	for _, c := range item.Candidates {
		known[c.Key()] = true
	}

	keys := slices.SortedFunc(maps.Keys(alloc), ir.ItemKey.Compare)
	sum := 0
	split := make([]Allocation, 0, len(keys))
	for _, k := range keys {
		qty := alloc[k]
		if !known[k] {
			return Resolution{}, &ValidationError{
				Code:    CodeUnknownCandidate,
				Line:    item.Row.Line,
				Message: fmt.Sprintf("%s is not a candidate for code %s", k, item.Row.Code),
			}
		}
		if qty < 0 {
			return Resolution{}, &ValidationError{
				Code:    CodeNegativeAllocation,
				Line:    item.Row.Line,
				Message: fmt.Sprintf("allocation %d to %s", qty, k),
			}
		}
		sum += qty
		split = append(split, Allocation{Key: k, Qty: qty})
	}

	if sum != item.Row.Qty {
		return Resolution{}, &ValidationError{
			Code:    CodeSumMismatch,
			Line:    item.Row.Line,
			Message: fmt.Sprintf("allocated %d of %d", sum, item.Row.Qty),
		}
	}

	return Resolution{Kind: ConflictAmbiguousSubtype, Split: split}, nil
}

// ResolveClassification records which classification wins a mismatch.
func ResolveClassification(item AnalyzedItem, choice Choice) (Resolution, error) {
	if item.Status != StatusConflict {
		return Resolution{}, fmt.Errorf("resolve classification line %d: %w", item.Row.Line, ErrNotConflict)
	}
	if item.Conflict != ConflictClassificationMismatch {
		return Resolution{}, &ValidationError{
			Code:    CodeWrongKind,
			Line:    item.Row.Line,
			Message: fmt.Sprintf("classification choice given for %s conflict", item.Conflict),
		}
	}
	if choice != ChooseIncoming && choice != ChooseExisting {
		return Resolution{}, &ValidationError{
			Code:    CodeInvalidChoice,
			Line:    item.Row.Line,
			Message: fmt.Sprintf("choice %q", choice),
		}
	}
	return Resolution{Kind: ConflictClassificationMismatch, Pick: choice}, nil
}

// revalidate runs res back through ResolveSplit or ResolveClassification
// against item, so a hand-built Resolution gets the same checks as one
// produced by those functions.
func revalidate(item AnalyzedItem, res Resolution) (Resolution, error) {
	switch res.Kind {
	case ConflictAmbiguousSubtype:
		alloc := make(map[ir.ItemKey]int, len(res.Split))
		for _, a := range res.Split {
			if _, dup := alloc[a.Key]; dup {
				return Resolution{}, &ValidationError{
					Code:    CodeDuplicateAllocation,
					Line:    item.Row.Line,
					Message: fmt.Sprintf("%s allocated twice", a.Key),
				}
			}
			alloc[a.Key] = a.Qty
		}
		return ResolveSplit(item, alloc)
	case ConflictClassificationMismatch:
		return ResolveClassification(item, res.Pick)
	}
	return Resolution{}, &ValidationError{
		Code:    CodeWrongKind,
		Line:    item.Row.Line,
		Message: fmt.Sprintf("unknown resolution kind %q", res.Kind),
	}
}
