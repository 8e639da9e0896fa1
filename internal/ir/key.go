package ir

import "strings"

// ItemKey identifies an item by product code plus an optional subtype.
//
// The two parts are kept separate so that a subtype containing any
// character can never collide with another code/subtype split. Use
// NewItemKey to construct keys.
type ItemKey struct {
	Code    string `json:"code"`
	Subtype string `json:"subtype"`
}

// NewItemKey builds the composite key for a product code and subtype.
// Surrounding whitespace is trimmed from both parts.
func NewItemKey(code, subtype string) ItemKey {
	return ItemKey{
		Code:    strings.TrimSpace(code),
		Subtype: strings.TrimSpace(subtype),
	}
}

// IsZero reports whether the key has no product code.
func (k ItemKey) IsZero() bool {
	return k.Code == ""
}

// String renders the key for display. It is not a parseable format.
func (k ItemKey) String() string {
	if k.Subtype == "" {
		return k.Code
	}
	return k.Code + "#" + k.Subtype
}

// Compare orders keys by code, then subtype.
func (k ItemKey) Compare(other ItemKey) int {
	if c := strings.Compare(k.Code, other.Code); c != 0 {
		return c
	}
	return strings.Compare(k.Subtype, other.Subtype)
}
