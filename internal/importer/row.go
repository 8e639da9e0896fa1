package importer

import (
	"github.com/roach88/stockroom/internal/ir"
)

// Row is one line of incoming stock.
type Row struct {
	Line           int    `json:"line" yaml:"line"` // 1-based source line, for messages
	Code           string `json:"code" yaml:"code"`
	Description    string `json:"description" yaml:"description"`
	Classification string `json:"classification" yaml:"classification"`
	Qty            int    `json:"qty" yaml:"qty"`
	CartonID       string `json:"carton_id" yaml:"carton_id"`
}

// Status is the reconciliation state of a row.
type Status string

const (
	StatusNew      Status = "NEW"
	StatusMatch    Status = "MATCH"
	StatusConflict Status = "CONFLICT"
	StatusResolved Status = "RESOLVED"
	StatusDone     Status = "DONE"
)

// ConflictKind says why a row needs a user decision.
type ConflictKind string

const (
	ConflictNone                   ConflictKind = ""
	ConflictAmbiguousSubtype       ConflictKind = "ambiguous_subtype"
	ConflictClassificationMismatch ConflictKind = "classification_mismatch"
)

// AnalyzedItem is a row with its reconciliation result.
type AnalyzedItem struct {
	Index      int          `json:"index"` // position in the session's rows
	Row        Row          `json:"row"`
	Status     Status       `json:"status"`
	Conflict   ConflictKind `json:"conflict,omitempty"`
	Candidates []ir.Item    `json:"candidates,omitempty"` // existing items sharing Row.Code, by subtype
	Resolution *Resolution  `json:"resolution,omitempty"` // set when Status is RESOLVED
}
