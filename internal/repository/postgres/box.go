package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"kioskops-backend/internal/domain"
)

type boxRepository struct {
	db DBTX
}

func (r *boxRepository) GetByID(ctx context.Context, id int64) (*domain.Box, error) {
	b := &domain.Box{}
	var createdOn, updatedOn time.Time
	query := `SELECT id, name, active, currency, address, open_hours, created_on, updated_on
	          FROM boxes WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&b.ID, &b.Name, &b.Active, &b.Currency, &b.Address, &b.OpenHours, &createdOn, &updatedOn)
	if err == sql.ErrNoRows {
		return nil, domain.NotFound("error.box.not_found", fmt.Sprintf("%d", id))
	}
	if err != nil {
		return nil, err
	}
	b.CreatedOn = createdOn.Format(time.RFC3339)
	b.UpdatedOn = updatedOn.Format(time.RFC3339)
	return b, nil
}

func (r *boxRepository) GetInventory(ctx context.Context, boxID, itemID int64) (int64, error) {
	var qty int64
	query := `SELECT quantity FROM box_inventory WHERE box_id = $1 AND item_id = $2`
	err := r.db.QueryRowContext(ctx, query, boxID, itemID).Scan(&qty)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return qty, nil
}

func (r *boxRepository) AdjustInventory(ctx context.Context, boxID, itemID int64, delta int64) error {
	if delta >= 0 {
		// Restores may target a box that never stocked this item before.
		query := `INSERT INTO box_inventory (box_id, item_id, quantity) VALUES ($1, $2, $3)
		          ON CONFLICT (box_id, item_id) DO UPDATE SET quantity = box_inventory.quantity + EXCLUDED.quantity`
		_, err := r.db.ExecContext(ctx, query, boxID, itemID, delta)
		return err
	}

	query := `UPDATE box_inventory SET quantity = quantity + $1
	          WHERE box_id = $2 AND item_id = $3 AND quantity + $1 >= 0`
	res, err := r.db.ExecContext(ctx, query, delta, boxID, itemID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ResourceExhausted("error.box.out_of_stock", fmt.Sprintf("%d/%d", boxID, itemID))
	}
	return nil
}
