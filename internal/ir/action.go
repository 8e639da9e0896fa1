package ir

import "time"

// Kind is the wire tag of an action.
type Kind string

const (
	KindUpdateItem      Kind = "update_item"
	KindUpdateField     Kind = "update_field"
	KindPackageItem     Kind = "package_item"
	KindQuantifyItem    Kind = "quantify_item"
	KindRetypeItem      Kind = "retype_item"
	KindNewOrder        Kind = "new_order"
	KindBulkImportItems Kind = "bulk_import_items"
	KindAddName         Kind = "add_name"
	KindRemoveName      Kind = "remove_name"
)

// Kinds lists every action kind in declaration order.
var Kinds = []Kind{
	KindUpdateItem,
	KindUpdateField,
	KindPackageItem,
	KindQuantifyItem,
	KindRetypeItem,
	KindNewOrder,
	KindBulkImportItems,
	KindAddName,
	KindRemoveName,
}

// Action is a sealed interface over the closed set of log events.
// Actions are immutable values once appended.
type Action interface {
	Kind() Kind
	action() // Sealed
}

// UpdateItem upserts a full item under ID.
type UpdateItem struct {
	ID   ItemKey
	Item Item
}

// UpdateField sets a single field on an existing item.
// Setting qty to zero removes the item from the live map.
type UpdateField struct {
	ID    ItemKey
	Field Field
	To    FieldValue
}

// PackageItem adds Qty of Key to an order, creating the order if needed.
type PackageItem struct {
	OrderID string
	Key     ItemKey
	Qty     int
}

// QuantifyItem sets (not adds) the quantity of a line item.
type QuantifyItem struct {
	OrderID string
	Key     ItemKey
	Qty     int
}

// RetypeItem moves Qty of a line item from Key to the key JanCode+Subtype.
type RetypeItem struct {
	OrderID string
	Key     ItemKey
	JanCode string
	Subtype string
	Qty     int
}

// NewKey is the key the line item is moved to.
func (a RetypeItem) NewKey() ItemKey {
	return NewItemKey(a.JanCode, a.Subtype)
}

// NewOrder creates or updates order metadata, keeping existing line items.
type NewOrder struct {
	OrderID string
	Date    time.Time
	Email   string
	Product string
}

// BulkImportItems applies all entries as one replay step.
type BulkImportItems struct {
	Entries []BulkEntry
}

// AddName inserts Name into the sorted name list for ID.
type AddName struct {
	ID   string
	Name string
}

// RemoveName deletes Name from the name list for ID.
type RemoveName struct {
	ID   string
	Name string
}

func (UpdateItem) Kind() Kind      { return KindUpdateItem }
func (UpdateField) Kind() Kind     { return KindUpdateField }
func (PackageItem) Kind() Kind     { return KindPackageItem }
func (QuantifyItem) Kind() Kind    { return KindQuantifyItem }
func (RetypeItem) Kind() Kind      { return KindRetypeItem }
func (NewOrder) Kind() Kind        { return KindNewOrder }
func (BulkImportItems) Kind() Kind { return KindBulkImportItems }
func (AddName) Kind() Kind         { return KindAddName }
func (RemoveName) Kind() Kind      { return KindRemoveName }

func (UpdateItem) action()      {}
func (UpdateField) action()     {}
func (PackageItem) action()     {}
func (QuantifyItem) action()    {}
func (RetypeItem) action()      {}
func (NewOrder) action()        {}
func (BulkImportItems) action() {}
func (AddName) action()         {}
func (RemoveName) action()      {}

// EntryType distinguishes bulk import entries.
type EntryType string

const (
	EntryNew    EntryType = "new"
	EntryUpdate EntryType = "update"
)

// BulkEntry is one item change inside a BulkImportItems action.
//
// Qty is always a delta added to the item's on-hand count. If the key does
// not exist at replay time, Item is created with qty = Qty.
type BulkEntry struct {
	Type EntryType
	Key  ItemKey
	Item Item
	Qty  int
}

// Committed is an action as delivered by the log: decoded, ordered, and
// stamped. CommittedAt and Actor are for audit and history only.
type Committed struct {
	Seq         int64
	ID          string
	Actor       string
	CommittedAt time.Time
	Action      Action
}
