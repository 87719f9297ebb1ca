package types

// Vendor represents a supplier that raw materials are purchased from.
// Vendors are looked up by name during purchase ingestion and created
// on first sight.
type Vendor struct {
	ID      int    `json:"id" db:"id"`
	Name    string `json:"name" db:"name"`
	Phone   string `json:"phone" db:"phone"`
	Email   string `json:"email" db:"email"`
	Website string `json:"website" db:"website"`
}
