package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// DecodeError reports an action payload that could not be decoded.
type DecodeError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("decode %s: %s", e.Kind, e.Message)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Wire shapes. All keys are snake_case; these types never leave this file.

type wireItem struct {
	Code           string `json:"code"`
	Subtype        string `json:"subtype"`
	Description    string `json:"description"`
	Classification string `json:"classification"`
	Image          string `json:"image"`
	Qty            int    `json:"qty"`
	Pieces         int    `json:"pieces"`
	Shipped        *int   `json:"shipped,omitempty"` // absent means 0
}

func toWireItem(it Item) wireItem {
	w := wireItem{
		Code:           it.Code,
		Subtype:        it.Subtype,
		Description:    it.Description,
		Classification: it.Classification,
		Image:          it.Image,
		Qty:            it.Qty,
		Pieces:         it.Pieces,
	}
	if it.Shipped != 0 {
		shipped := it.Shipped
		w.Shipped = &shipped
	}
	return w
}

// wireKey rebuilds a decoded key through NewItemKey so keys from the log
// compare equal to keys built anywhere else.
func wireKey(k ItemKey) ItemKey {
	return NewItemKey(k.Code, k.Subtype)
}

func (w wireItem) item() Item {
	key := NewItemKey(w.Code, w.Subtype)
	it := Item{
		Code:           key.Code,
		Subtype:        key.Subtype,
		Description:    w.Description,
		Classification: w.Classification,
		Image:          w.Image,
		Qty:            w.Qty,
		Pieces:         w.Pieces,
	}
	if w.Shipped != nil {
		it.Shipped = *w.Shipped
	}
	return it
}

type wireUpdateItem struct {
	ID   ItemKey  `json:"id"`
	Item wireItem `json:"item"`
}

type wireUpdateField struct {
	ID    ItemKey         `json:"id"`
	Field Field           `json:"field"`
	To    json.RawMessage `json:"to"`
}

type wireLine struct {
	OrderID string  `json:"order_id"`
	Key     ItemKey `json:"key"`
	Qty     int     `json:"qty"`
}

type wireRetype struct {
	OrderID string  `json:"order_id"`
	Key     ItemKey `json:"key"`
	JanCode string  `json:"jan_code"`
	Subtype string  `json:"subtype"`
	Qty     int     `json:"qty"`
}

type wireNewOrder struct {
	OrderID string `json:"order_id"`
	Date    string `json:"date"` // RFC 3339, "" = unset
	Email   string `json:"email"`
	Product string `json:"product"`
}

type wireBulkEntry struct {
	Type EntryType `json:"type"`
	ID   ItemKey   `json:"id"`
	Item wireItem  `json:"item"`
	Qty  int       `json:"qty"`
}

type wireBulk struct {
	Items []wireBulkEntry `json:"items"`
}

type wireName struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// EncodeAction serializes an action to its wire kind and canonical payload.
func EncodeAction(a Action) (Kind, []byte, error) {
	var wire any

	switch act := a.(type) {
	case UpdateItem:
		wire = wireUpdateItem{ID: act.ID, Item: toWireItem(act.Item)}
	case UpdateField:
		if act.To == nil {
			return "", nil, fmt.Errorf("encode %s: missing value", act.Kind())
		}
		to, err := json.Marshal(act.To)
		if err != nil {
			return "", nil, fmt.Errorf("encode %s: %w", act.Kind(), err)
		}
		wire = wireUpdateField{ID: act.ID, Field: act.Field, To: to}
	case PackageItem:
		wire = wireLine{OrderID: act.OrderID, Key: act.Key, Qty: act.Qty}
	case QuantifyItem:
		wire = wireLine{OrderID: act.OrderID, Key: act.Key, Qty: act.Qty}
	case RetypeItem:
		wire = wireRetype{
			OrderID: act.OrderID,
			Key:     act.Key,
			JanCode: act.JanCode,
			Subtype: act.Subtype,
			Qty:     act.Qty,
		}
	case NewOrder:
		w := wireNewOrder{OrderID: act.OrderID, Email: act.Email, Product: act.Product}
		if !act.Date.IsZero() {
			w.Date = act.Date.UTC().Format(time.RFC3339Nano)
		}
		wire = w
	case BulkImportItems:
		entries := make([]wireBulkEntry, len(act.Entries))
		for i, e := range act.Entries {
			entries[i] = wireBulkEntry{Type: e.Type, ID: e.Key, Item: toWireItem(e.Item), Qty: e.Qty}
		}
		wire = wireBulk{Items: entries}
	case AddName:
		wire = wireName{ID: act.ID, Name: act.Name}
	case RemoveName:
		wire = wireName{ID: act.ID, Name: act.Name}
	case nil:
		return "", nil, fmt.Errorf("encode: nil action")
	default:
		return "", nil, fmt.Errorf("encode: unsupported action type %T", a)
	}

	payload, err := MarshalCanonical(wire)
	if err != nil {
		return "", nil, fmt.Errorf("encode %s: %w", a.Kind(), err)
	}
	return a.Kind(), payload, nil
}

// DecodeAction parses a wire payload of the given kind.
// Returns *DecodeError for unknown kinds and malformed payloads.
func DecodeAction(kind Kind, payload []byte) (Action, error) {
	switch kind {
	case KindUpdateItem:
		var w wireUpdateItem
		if err := decodeStrict(kind, payload, &w); err != nil {
			return nil, err
		}
		return UpdateItem{ID: wireKey(w.ID), Item: w.Item.item()}, nil

	case KindUpdateField:
		var w wireUpdateField
		if err := decodeStrict(kind, payload, &w); err != nil {
			return nil, err
		}
		if !w.Field.Valid() {
			return nil, &DecodeError{Kind: kind, Message: fmt.Sprintf("field %q is not editable", w.Field)}
		}
		to, err := decodeFieldValue(w.Field, w.To)
		if err != nil {
			return nil, &DecodeError{Kind: kind, Message: "bad value for " + string(w.Field), Err: err}
		}
		return UpdateField{ID: wireKey(w.ID), Field: w.Field, To: to}, nil

	case KindPackageItem:
		var w wireLine
		if err := decodeStrict(kind, payload, &w); err != nil {
			return nil, err
		}
		if w.OrderID == "" {
			return nil, &DecodeError{Kind: kind, Message: "missing order_id"}
		}
		return PackageItem{OrderID: w.OrderID, Key: wireKey(w.Key), Qty: w.Qty}, nil

	case KindQuantifyItem:
		var w wireLine
		if err := decodeStrict(kind, payload, &w); err != nil {
			return nil, err
		}
		if w.OrderID == "" {
			return nil, &DecodeError{Kind: kind, Message: "missing order_id"}
		}
		return QuantifyItem{OrderID: w.OrderID, Key: wireKey(w.Key), Qty: w.Qty}, nil

	case KindRetypeItem:
		var w wireRetype
		if err := decodeStrict(kind, payload, &w); err != nil {
			return nil, err
		}
		if w.OrderID == "" {
			return nil, &DecodeError{Kind: kind, Message: "missing order_id"}
		}
		return RetypeItem{
			OrderID: w.OrderID,
			Key:     wireKey(w.Key),
			JanCode: w.JanCode,
			Subtype: w.Subtype,
			Qty:     w.Qty,
		}, nil

	case KindNewOrder:
		var w wireNewOrder
		if err := decodeStrict(kind, payload, &w); err != nil {
			return nil, err
		}
		if w.OrderID == "" {
			return nil, &DecodeError{Kind: kind, Message: "missing order_id"}
		}
		a := NewOrder{OrderID: w.OrderID, Email: w.Email, Product: w.Product}
		if w.Date != "" {
			date, err := time.Parse(time.RFC3339Nano, w.Date)
			if err != nil {
				return nil, &DecodeError{Kind: kind, Message: "bad date", Err: err}
			}
			a.Date = date.UTC()
		}
		return a, nil

	case KindBulkImportItems:
		var w wireBulk
		if err := decodeStrict(kind, payload, &w); err != nil {
			return nil, err
		}
		entries := make([]BulkEntry, len(w.Items))
		for i, e := range w.Items {
			if e.Type != EntryNew && e.Type != EntryUpdate {
				return nil, &DecodeError{Kind: kind, Message: fmt.Sprintf("items[%d]: unknown entry type %q", i, e.Type)}
			}
			entries[i] = BulkEntry{Type: e.Type, Key: wireKey(e.ID), Item: e.Item.item(), Qty: e.Qty}
		}
		return BulkImportItems{Entries: entries}, nil

	case KindAddName:
		var w wireName
		if err := decodeStrict(kind, payload, &w); err != nil {
			return nil, err
		}
		return AddName{ID: w.ID, Name: w.Name}, nil

	case KindRemoveName:
		var w wireName
		if err := decodeStrict(kind, payload, &w); err != nil {
			return nil, err
		}
		return RemoveName{ID: w.ID, Name: w.Name}, nil

	default:
		return nil, &DecodeError{Kind: kind, Message: "unknown action kind"}
	}
}

// decodeStrict rejects floats and trailing garbage before decoding into v.
func decodeStrict(kind Kind, payload []byte, v any) error {
	if _, err := Canonicalize(payload); err != nil {
		return &DecodeError{Kind: kind, Message: "malformed payload", Err: err}
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	if err := dec.Decode(v); err != nil {
		return &DecodeError{Kind: kind, Message: "malformed payload", Err: err}
	}
	return nil
}

func decodeFieldValue(f Field, raw json.RawMessage) (FieldValue, error) {
	if f.IsInt() {
		var n int
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, err
		}
		return IntValue(n), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return StringValue(s), nil
}
