package reducer

import (
	"errors"
	"fmt"
)

// DiagnosticCode categorizes conditions detected while applying an action.
type DiagnosticCode string

const (
	// CodeDecodeError indicates a delivered payload could not be parsed.
	CodeDecodeError DiagnosticCode = "DECODE_ERROR"

	// CodeUnknownAction indicates an action type the reducer does not handle.
	CodeUnknownAction DiagnosticCode = "UNKNOWN_ACTION"

	// CodeMissingItem indicates the action references an item key that does not exist.
	CodeMissingItem DiagnosticCode = "MISSING_ITEM"

	// CodeMissingOrder indicates the action references an order that does not exist.
	CodeMissingOrder DiagnosticCode = "MISSING_ORDER"

	// CodeMissingLineItem indicates the order has no line for the referenced key.
	CodeMissingLineItem DiagnosticCode = "MISSING_LINE_ITEM"

	// CodeRetypeSameKey indicates a retype whose target key equals its source.
	CodeRetypeSameKey DiagnosticCode = "RETYPE_SAME_KEY"

	// CodeRetypeQtyOutOfRange indicates a retype quantity that is not
	// positive or exceeds the source line.
	CodeRetypeQtyOutOfRange DiagnosticCode = "RETYPE_QTY_OUT_OF_RANGE"

	// CodeInvalidField indicates an update_field that cannot be applied to the field.
	CodeInvalidField DiagnosticCode = "INVALID_FIELD"
)

// Diagnostic describes a non-fatal condition found during replay.
//
// Diagnostics never stop replay: one bad historical action must not prevent
// any client from reconstructing state.
type Diagnostic struct {
	// Code identifies the diagnostic category.
	Code DiagnosticCode

	// Message is a human-readable description.
	Message string

	// Seq is the log position of the offending action.
	Seq int64

	// ActionID is the envelope ID of the offending action.
	ActionID string

	// Kind is the action kind, when known.
	Kind string
}

// Error implements the error interface.
func (d *Diagnostic) Error() string {
	if d.Seq != 0 {
		return fmt.Sprintf("%s: %s (seq=%d, kind=%s)", d.Code, d.Message, d.Seq, d.Kind)
	}
	return fmt.Sprintf("%s: %s", d.Code, d.Message)
}

// IsCode reports whether err is a Diagnostic with the given code.
// Uses errors.As to handle wrapped errors.
func IsCode(err error, code DiagnosticCode) bool {
	var d *Diagnostic
	if errors.As(err, &d) {
		return d.Code == code
	}
	return false
}

// NewDecodeDiagnostic creates a Diagnostic for a payload that failed to decode.
func NewDecodeDiagnostic(seq int64, id, kind string, err error) *Diagnostic {
	return &Diagnostic{
		Code:     CodeDecodeError,
		Message:  err.Error(),
		Seq:      seq,
		ActionID: id,
		Kind:     kind,
	}
}
