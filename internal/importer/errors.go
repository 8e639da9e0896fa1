package importer

import (
	"errors"
	"fmt"
)

// ErrNotConflict is returned when a resolution targets a row that is not
// currently in CONFLICT.
var ErrNotConflict = errors.New("importer: row is not in conflict")

// ValidationCode categorizes a rejected resolution.
type ValidationCode string

const (
	// CodeWrongKind indicates the resolution does not fit the row's conflict kind.
	CodeWrongKind ValidationCode = "WRONG_CONFLICT_KIND"

	// CodeUnknownCandidate indicates an allocation to a key that is not a candidate.
	CodeUnknownCandidate ValidationCode = "UNKNOWN_CANDIDATE"

	// CodeNegativeAllocation indicates an allocation below zero.
	CodeNegativeAllocation ValidationCode = "NEGATIVE_ALLOCATION"

	// CodeSumMismatch indicates allocations that do not add up to the row quantity.
	CodeSumMismatch ValidationCode = "SUM_MISMATCH"

	// CodeDuplicateAllocation indicates a split naming the same key twice.
	CodeDuplicateAllocation ValidationCode = "DUPLICATE_ALLOCATION"

	// CodeInvalidChoice indicates a classification choice other than incoming or existing.
	CodeInvalidChoice ValidationCode = "INVALID_CHOICE"
)

// ValidationError is a resolution rejected before any action is emitted.
type ValidationError struct {
	Code    ValidationCode
	Line    int
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: %s (line %d)", e.Code, e.Message, e.Line)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsValidation reports whether err is a ValidationError with the given code.
// Uses errors.As to handle wrapped errors.
func IsValidation(err error, code ValidationCode) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Code == code
	}
	return false
}

// ParseError reports a malformed import file.
type ParseError struct {
	Line   int
	Column string
	Err    error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("line %d: %s: %v", e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}
