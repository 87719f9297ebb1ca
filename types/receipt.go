package types

import "time"

// ReceiptEntry documents a purchase with an out-of-band uploaded image.
// The image itself is uploaded directly to object storage by the client
// using a signed upload grant; only the resulting URL is stored here.
type ReceiptEntry struct {
	ID        int       `json:"id" db:"id"`
	Date      time.Time `json:"date" db:"date"`
	ImageURL  string    `json:"image_url" db:"image_url"`
	Filename  string    `json:"filename" db:"filename"`
	Memo      string    `json:"memo" db:"memo"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	VendorID      int  `json:"vendor_id" db:"vendor_id"`
	UserID        int  `json:"user_id" db:"user_id"`
	PurchaseLogID *int `json:"purchase_log_id" db:"purchase_log_id"`
}

// UploadGrant is a time-limited credential permitting a direct
// client-to-storage upload.
type UploadGrant struct {
	UploadURL string `json:"uploadUrl"`
	FileKey   string `json:"fileKey"`
	PublicURL string `json:"publicUrl"`
}
