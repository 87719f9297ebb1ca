package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mycolab/apiserver/types"
)

// ReceiptRepository handles persistence for receipt entries. Creation
// happens inside the purchase ingestion transaction; this repository
// covers the read side.
type ReceiptRepository struct {
	db *sql.DB
}

func NewReceiptRepository(db *sql.DB) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

func (r *ReceiptRepository) ListByUser(ctx context.Context, userID int) ([]types.ReceiptEntry, error) {
	const query = `
		SELECT id, date, image_url, filename, memo, created_at, vendor_id, user_id, purchase_log_id
		FROM receipt_entries
		WHERE user_id = $1
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	receipts := make([]types.ReceiptEntry, 0)
	for rows.Next() {
		var receipt types.ReceiptEntry
		if err := rows.Scan(
			&receipt.ID,
			&receipt.Date,
			&receipt.ImageURL,
			&receipt.Filename,
			&receipt.Memo,
			&receipt.CreatedAt,
			&receipt.VendorID,
			&receipt.UserID,
			&receipt.PurchaseLogID,
		); err != nil {
			return nil, err
		}
		receipts = append(receipts, receipt)
	}
	return receipts, rows.Err()
}

func (r *ReceiptRepository) Get(ctx context.Context, id int) (types.ReceiptEntry, error) {
	const query = `
		SELECT id, date, image_url, filename, memo, created_at, vendor_id, user_id, purchase_log_id
		FROM receipt_entries
		WHERE id = $1`
	var receipt types.ReceiptEntry
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&receipt.ID,
		&receipt.Date,
		&receipt.ImageURL,
		&receipt.Filename,
		&receipt.Memo,
		&receipt.CreatedAt,
		&receipt.VendorID,
		&receipt.UserID,
		&receipt.PurchaseLogID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.ReceiptEntry{}, ErrNotFound
		}
		return types.ReceiptEntry{}, err
	}
	return receipt, nil
}
