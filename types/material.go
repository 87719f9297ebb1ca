package types

import "time"

// RawMaterial is a purchasable item tracked in inventory. Each material
// owns exactly one InventoryLog holding its running balance.
type RawMaterial struct {
	ID          int       `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Category    string    `json:"category" db:"category"`
	Subcategory string    `json:"subcategory" db:"subcategory"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// InventoryLog holds the running stock balance for one raw material.
// It is mutated in place on every purchase against its item, never
// replaced.
type InventoryLog struct {
	ID int `json:"id" db:"id"`

	// AmountOnHand is the running balance. A null value is treated as
	// zero when a purchase is applied.
	AmountOnHand     *float64 `json:"amount_on_hand" db:"amount_on_hand"`
	AmountOnHandUnit string   `json:"amount_on_hand_unit" db:"amount_on_hand_unit"`

	// PeriodicAutoReplace is an optional restock threshold.
	PeriodicAutoReplace     *float64 `json:"periodic_auto_replace" db:"periodic_auto_replace"`
	PeriodicAutoReplaceUnit string   `json:"periodic_auto_replace_unit" db:"periodic_auto_replace_unit"`

	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	LastUpdated time.Time `json:"last_updated" db:"last_updated"`

	ItemID int `json:"item_id" db:"item_id"`
}
