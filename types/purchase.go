package types

import "time"

// PurchaseLog is an immutable-once-created record of one raw-material
// purchase event. It links the item, the vendor, the item's inventory
// log, and the user who recorded it.
type PurchaseLog struct {
	ID int `json:"id" db:"id"`

	// LogDate is the system time the purchase was recorded.
	LogDate time.Time `json:"log_date" db:"log_date"`

	// PurchaseDate is the user-supplied date of the purchase itself.
	PurchaseDate time.Time `json:"purchase_date" db:"purchase_date"`

	Brand          string  `json:"brand" db:"brand"`
	PurchaseAmount float64 `json:"purchase_amount" db:"purchase_amount"`
	PurchaseUnit   string  `json:"purchase_unit" db:"purchase_unit"`
	Cost           float64 `json:"cost" db:"cost"`
	Notes          string  `json:"notes" db:"notes"`

	InventoryLogID int `json:"inventory_log_id" db:"inventory_log_id"`
	ItemID         int `json:"item_id" db:"item_id"`
	VendorID       int `json:"vendor_id" db:"vendor_id"`
	UserID         int `json:"user_id" db:"user_id"`
}

// PurchaseIngestion is the resolved, validated input to the purchase
// ingestion workflow. Vendor contact fields are used only when the
// vendor is newly created; category/subcategory only when the item is.
type PurchaseIngestion struct {
	UserID int

	ItemName        string
	ItemCategory    string
	ItemSubcategory string

	Brand        string
	PurchaseDate time.Time

	PurchaseQuantity  float64
	PurchaseUnit      string
	InventoryQuantity float64
	InventoryUnit     string

	Cost  float64
	Notes string

	VendorName    string
	VendorPhone   string
	VendorEmail   string
	VendorWebsite string

	ReceiptFilename string
	ReceiptImageURL string
	ReceiptMemo     string
}

// IngestionResult reports the rows touched by one ingestion.
type IngestionResult struct {
	PurchaseLog PurchaseLog `json:"raw_material_purchase_log"`
	ReceiptID   int         `json:"receipt_id"`

	// AmountOnHand is the item's balance after the purchase was applied.
	AmountOnHand float64 `json:"amount_on_hand"`
}
