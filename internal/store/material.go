package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mycolab/apiserver/types"
)

// MaterialRepository handles persistence for raw materials and their
// inventory logs.
type MaterialRepository struct {
	db *sql.DB
}

func NewMaterialRepository(db *sql.DB) *MaterialRepository {
	return &MaterialRepository{db: db}
}

func (r *MaterialRepository) List(ctx context.Context) ([]types.RawMaterial, error) {
	const query = `
		SELECT id, name, category, subcategory, created_at
		FROM raw_materials
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	materials := make([]types.RawMaterial, 0)
	for rows.Next() {
		var material types.RawMaterial
		if err := rows.Scan(
			&material.ID,
			&material.Name,
			&material.Category,
			&material.Subcategory,
			&material.CreatedAt,
		); err != nil {
			return nil, err
		}
		materials = append(materials, material)
	}
	return materials, rows.Err()
}

func (r *MaterialRepository) Get(ctx context.Context, id int) (types.RawMaterial, error) {
	const query = `
		SELECT id, name, category, subcategory, created_at
		FROM raw_materials
		WHERE id = $1`
	var material types.RawMaterial
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&material.ID,
		&material.Name,
		&material.Category,
		&material.Subcategory,
		&material.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.RawMaterial{}, ErrNotFound
		}
		return types.RawMaterial{}, err
	}
	return material, nil
}

// Create inserts a material together with a fresh, empty inventory log.
func (r *MaterialRepository) Create(ctx context.Context, material types.RawMaterial) (types.RawMaterial, error) {
	material.CreatedAt = time.Now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.RawMaterial{}, err
	}
	defer tx.Rollback()

	const insertMaterial = `
		INSERT INTO raw_materials (name, category, subcategory, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err := tx.QueryRowContext(
		ctx,
		insertMaterial,
		material.Name,
		material.Category,
		material.Subcategory,
		material.CreatedAt,
	).Scan(&material.ID); err != nil {
		if isUniqueViolation(err) {
			return types.RawMaterial{}, ErrDuplicate
		}
		return types.RawMaterial{}, err
	}

	const insertInventory = `
		INSERT INTO raw_material_inventory_logs (item_id, created_at, last_updated)
		VALUES ($1, $2, $2)`
	if _, err := tx.ExecContext(ctx, insertInventory, material.ID, material.CreatedAt); err != nil {
		return types.RawMaterial{}, err
	}

	if err := tx.Commit(); err != nil {
		return types.RawMaterial{}, err
	}
	return material, nil
}

func (r *MaterialRepository) Update(ctx context.Context, material types.RawMaterial) (types.RawMaterial, error) {
	const query = `
		UPDATE raw_materials
		SET name = $1,
			category = $2,
			subcategory = $3
		WHERE id = $4`
	result, err := r.db.ExecContext(
		ctx,
		query,
		material.Name,
		material.Category,
		material.Subcategory,
		material.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.RawMaterial{}, ErrDuplicate
		}
		return types.RawMaterial{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.RawMaterial{}, err
	}
	if affected == 0 {
		return types.RawMaterial{}, ErrNotFound
	}
	return material, nil
}

// Delete removes a material and, via cascade, its inventory log.
// Materials with purchase history cannot be deleted; the attempt fails
// with ErrHasReferences.
func (r *MaterialRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM raw_materials WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrHasReferences
		}
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

// GetInventoryLog returns the inventory log owned by the given material.
func (r *MaterialRepository) GetInventoryLog(ctx context.Context, itemID int) (types.InventoryLog, error) {
	const query = `
		SELECT id, amount_on_hand, amount_on_hand_unit, periodic_auto_replace, periodic_auto_replace_unit,
		       created_at, last_updated, item_id
		FROM raw_material_inventory_logs
		WHERE item_id = $1`
	var log types.InventoryLog
	err := r.db.QueryRowContext(ctx, query, itemID).Scan(
		&log.ID,
		&log.AmountOnHand,
		&log.AmountOnHandUnit,
		&log.PeriodicAutoReplace,
		&log.PeriodicAutoReplaceUnit,
		&log.CreatedAt,
		&log.LastUpdated,
		&log.ItemID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.InventoryLog{}, ErrNotFound
		}
		return types.InventoryLog{}, err
	}
	return log, nil
}
