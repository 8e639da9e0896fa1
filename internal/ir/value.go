package ir

import "fmt"

// Field names an item attribute editable through UpdateField.
type Field string

const (
	FieldQty            Field = "qty"
	FieldPieces         Field = "pieces"
	FieldShipped        Field = "shipped"
	FieldDescription    Field = "description"
	FieldClassification Field = "classification"
	FieldImage          Field = "image"
)

// IsInt reports whether the field carries an integer value.
func (f Field) IsInt() bool {
	switch f {
	case FieldQty, FieldPieces, FieldShipped:
		return true
	}
	return false
}

// Valid reports whether f is an editable field.
// Code and subtype are part of the key and cannot be edited in place.
func (f Field) Valid() bool {
	switch f {
	case FieldQty, FieldPieces, FieldShipped,
		FieldDescription, FieldClassification, FieldImage:
		return true
	}
	return false
}

// FieldValue is a sealed interface for the new value of an UpdateField.
// Only IntValue and StringValue implement it.
type FieldValue interface {
	fieldValue() // Sealed
	String() string
}

// IntValue is an integer field value.
type IntValue int

func (IntValue) fieldValue() {}

func (v IntValue) String() string { return fmt.Sprintf("%d", int(v)) }

// StringValue is a text field value.
type StringValue string

func (StringValue) fieldValue() {}

func (v StringValue) String() string { return string(v) }

// Get reads field f from the item.
func (it Item) Get(f Field) (FieldValue, bool) {
	switch f {
	case FieldQty:
		return IntValue(it.Qty), true
	case FieldPieces:
		return IntValue(it.Pieces), true
	case FieldShipped:
		return IntValue(it.Shipped), true
	case FieldDescription:
		return StringValue(it.Description), true
	case FieldClassification:
		return StringValue(it.Classification), true
	case FieldImage:
		return StringValue(it.Image), true
	}
	return nil, false
}

// Set returns a copy of the item with field f replaced by v.
// Returns false if f is not editable or v has the wrong type for f.
func (it Item) Set(f Field, v FieldValue) (Item, bool) {
	switch val := v.(type) {
	case IntValue:
		switch f {
		case FieldQty:
			it.Qty = int(val)
		case FieldPieces:
			it.Pieces = int(val)
		case FieldShipped:
			it.Shipped = int(val)
		default:
			return it, false
		}
	case StringValue:
		switch f {
		case FieldDescription:
			it.Description = string(val)
		case FieldClassification:
			it.Classification = string(val)
		case FieldImage:
			it.Image = string(val)
		default:
			return it, false
		}
	default:
		return it, false
	}
	return it, true
}
