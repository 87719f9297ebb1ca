package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mycolab/apiserver/types"
)

// PurchaseRepository handles persistence for purchase logs, including
// the multi-entity ingestion transaction.
type PurchaseRepository struct {
	db *sql.DB
}

func NewPurchaseRepository(db *sql.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

// Ingest records one purchase event as a single transaction: the vendor
// and material are upserted by name, the material's inventory balance
// is incremented, and the purchase log and receipt entry rows are
// created. Either all writes persist or none do.
func (r *PurchaseRepository) Ingest(ctx context.Context, in types.PurchaseIngestion) (types.IngestionResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.IngestionResult{}, err
	}
	defer tx.Rollback()

	now := time.Now()

	vendorID, err := upsertVendor(ctx, tx, in)
	if err != nil {
		return types.IngestionResult{}, err
	}

	itemID, inventoryLogID, balance, err := upsertMaterial(ctx, tx, in, now)
	if err != nil {
		return types.IngestionResult{}, err
	}

	log := types.PurchaseLog{
		LogDate:        now,
		PurchaseDate:   in.PurchaseDate,
		Brand:          in.Brand,
		PurchaseAmount: in.PurchaseQuantity,
		PurchaseUnit:   in.PurchaseUnit,
		Cost:           in.Cost,
		Notes:          in.Notes,
		InventoryLogID: inventoryLogID,
		ItemID:         itemID,
		VendorID:       vendorID,
		UserID:         in.UserID,
	}

	const insertLog = `
		INSERT INTO raw_material_purchase_logs (
			log_date, purchase_date, brand, purchase_amount, purchase_unit,
			cost, notes, inventory_log_id, item_id, vendor_id, user_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`
	if err := tx.QueryRowContext(
		ctx,
		insertLog,
		log.LogDate,
		log.PurchaseDate,
		log.Brand,
		log.PurchaseAmount,
		log.PurchaseUnit,
		log.Cost,
		log.Notes,
		log.InventoryLogID,
		log.ItemID,
		log.VendorID,
		log.UserID,
	).Scan(&log.ID); err != nil {
		return types.IngestionResult{}, err
	}

	const insertReceipt = `
		INSERT INTO receipt_entries (date, image_url, filename, memo, created_at, vendor_id, user_id, purchase_log_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	var receiptID int
	if err := tx.QueryRowContext(
		ctx,
		insertReceipt,
		in.PurchaseDate,
		in.ReceiptImageURL,
		in.ReceiptFilename,
		in.ReceiptMemo,
		now,
		vendorID,
		in.UserID,
		log.ID,
	).Scan(&receiptID); err != nil {
		return types.IngestionResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return types.IngestionResult{}, err
	}

	return types.IngestionResult{
		PurchaseLog:  log,
		ReceiptID:    receiptID,
		AmountOnHand: balance,
	}, nil
}

// upsertVendor resolves the vendor by exact name, creating it from the
// payload's contact fields on first sight. Two transactions racing on
// the same new name serialize on the unique constraint: the loser's
// insert returns no row and the winner's id is re-read.
func upsertVendor(ctx context.Context, tx *sql.Tx, in types.PurchaseIngestion) (int, error) {
	const selectVendor = `SELECT id FROM vendors WHERE name = $1`

	var vendorID int
	err := tx.QueryRowContext(ctx, selectVendor, in.VendorName).Scan(&vendorID)
	if err == nil {
		return vendorID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	const insertVendor = `
		INSERT INTO vendors (name, phone, email, website)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO NOTHING
		RETURNING id`
	err = tx.QueryRowContext(
		ctx,
		insertVendor,
		in.VendorName,
		in.VendorPhone,
		in.VendorEmail,
		in.VendorWebsite,
	).Scan(&vendorID)
	if err == nil {
		return vendorID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	// Lost the race; the conflicting row is committed by now.
	if err := tx.QueryRowContext(ctx, selectVendor, in.VendorName).Scan(&vendorID); err != nil {
		return 0, err
	}
	return vendorID, nil
}

// upsertMaterial resolves the material by exact name. A new material
// gets a fresh inventory log seeded with the payload's inventory
// quantity; an existing one has its balance incremented in place, with
// a null prior balance treated as zero.
func upsertMaterial(ctx context.Context, tx *sql.Tx, in types.PurchaseIngestion, now time.Time) (itemID, inventoryLogID int, balance float64, err error) {
	const selectMaterial = `SELECT id FROM raw_materials WHERE name = $1`

	err = tx.QueryRowContext(ctx, selectMaterial, in.ItemName).Scan(&itemID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, 0, 0, err
	}

	if errors.Is(err, sql.ErrNoRows) {
		const insertMaterial = `
			INSERT INTO raw_materials (name, category, subcategory, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (name) DO NOTHING
			RETURNING id`
		err = tx.QueryRowContext(
			ctx,
			insertMaterial,
			in.ItemName,
			in.ItemCategory,
			in.ItemSubcategory,
			now,
		).Scan(&itemID)
		switch {
		case err == nil:
			const insertInventory = `
				INSERT INTO raw_material_inventory_logs (
					amount_on_hand, amount_on_hand_unit, created_at, last_updated, item_id
				)
				VALUES ($1, $2, $3, $3, $4)
				RETURNING id`
			if err := tx.QueryRowContext(
				ctx,
				insertInventory,
				in.InventoryQuantity,
				in.InventoryUnit,
				now,
				itemID,
			).Scan(&inventoryLogID); err != nil {
				return 0, 0, 0, err
			}
			return itemID, inventoryLogID, in.InventoryQuantity, nil
		case errors.Is(err, sql.ErrNoRows):
			// Lost the race; fall through to the increment path.
			if err := tx.QueryRowContext(ctx, selectMaterial, in.ItemName).Scan(&itemID); err != nil {
				return 0, 0, 0, err
			}
		default:
			return 0, 0, 0, err
		}
	}

	// The UPDATE takes a row lock, so concurrent purchases of the same
	// item are both reflected in the balance.
	const applyQuantity = `
		UPDATE raw_material_inventory_logs
		SET amount_on_hand = COALESCE(amount_on_hand, 0) + $1,
			amount_on_hand_unit = $2,
			last_updated = $3
		WHERE item_id = $4
		RETURNING id, amount_on_hand`
	err = tx.QueryRowContext(
		ctx,
		applyQuantity,
		in.InventoryQuantity,
		in.InventoryUnit,
		now,
		itemID,
	).Scan(&inventoryLogID, &balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, 0, ErrNotFound
		}
		return 0, 0, 0, err
	}
	return itemID, inventoryLogID, balance, nil
}

func (r *PurchaseRepository) List(ctx context.Context) ([]types.PurchaseLog, error) {
	const query = `
		SELECT id, log_date, purchase_date, brand, purchase_amount, purchase_unit,
		       cost, notes, inventory_log_id, item_id, vendor_id, user_id
		FROM raw_material_purchase_logs
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]types.PurchaseLog, 0)
	for rows.Next() {
		var log types.PurchaseLog
		if err := rows.Scan(
			&log.ID,
			&log.LogDate,
			&log.PurchaseDate,
			&log.Brand,
			&log.PurchaseAmount,
			&log.PurchaseUnit,
			&log.Cost,
			&log.Notes,
			&log.InventoryLogID,
			&log.ItemID,
			&log.VendorID,
			&log.UserID,
		); err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

func (r *PurchaseRepository) Get(ctx context.Context, id int) (types.PurchaseLog, error) {
	const query = `
		SELECT id, log_date, purchase_date, brand, purchase_amount, purchase_unit,
		       cost, notes, inventory_log_id, item_id, vendor_id, user_id
		FROM raw_material_purchase_logs
		WHERE id = $1`
	var log types.PurchaseLog
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&log.ID,
		&log.LogDate,
		&log.PurchaseDate,
		&log.Brand,
		&log.PurchaseAmount,
		&log.PurchaseUnit,
		&log.Cost,
		&log.Notes,
		&log.InventoryLogID,
		&log.ItemID,
		&log.VendorID,
		&log.UserID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.PurchaseLog{}, ErrNotFound
		}
		return types.PurchaseLog{}, err
	}
	return log, nil
}

// Update overwrites the descriptive fields of an existing purchase log.
// Inventory balances are not re-derived.
func (r *PurchaseRepository) Update(ctx context.Context, log types.PurchaseLog) (types.PurchaseLog, error) {
	const query = `
		UPDATE raw_material_purchase_logs
		SET purchase_date = $1,
			brand = $2,
			purchase_amount = $3,
			purchase_unit = $4,
			cost = $5,
			notes = $6
		WHERE id = $7`
	result, err := r.db.ExecContext(
		ctx,
		query,
		log.PurchaseDate,
		log.Brand,
		log.PurchaseAmount,
		log.PurchaseUnit,
		log.Cost,
		log.Notes,
		log.ID,
	)
	if err != nil {
		return types.PurchaseLog{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.PurchaseLog{}, err
	}
	if affected == 0 {
		return types.PurchaseLog{}, ErrNotFound
	}
	return log, nil
}

func (r *PurchaseRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM raw_material_purchase_logs WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
