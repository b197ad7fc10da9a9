package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"kioskops-backend/internal/domain"

	"github.com/lib/pq"
)

type productRepository struct {
	db DBTX
}

func (r *productRepository) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	p := &domain.Product{}
	var names []byte
	var createdOn, updatedOn time.Time
	query := `SELECT id, active, price_cents, currency, names, created_on, updated_on
	          FROM products WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Active, &p.PriceCents, &p.Currency, &names, &createdOn, &updatedOn)
	if err == sql.ErrNoRows {
		return nil, domain.NotFound("error.product.not_found", fmt.Sprintf("%d", id))
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(names, &p.Names); err != nil {
		return nil, fmt.Errorf("failed to decode product names: %w", err)
	}
	p.CreatedOn = createdOn.Format(time.RFC3339)
	p.UpdatedOn = updatedOn.Format(time.RFC3339)
	return p, nil
}

func (r *productRepository) GetManyByIDs(ctx context.Context, ids []int64) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT id, active, price_cents, currency, names, created_on, updated_on
	          FROM products WHERE id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[int64]domain.Product, len(ids))
	for rows.Next() {
		var p domain.Product
		var names []byte
		var createdOn, updatedOn time.Time
		if err := rows.Scan(&p.ID, &p.Active, &p.PriceCents, &p.Currency, &names, &createdOn, &updatedOn); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(names, &p.Names); err != nil {
			return nil, fmt.Errorf("failed to decode product names: %w", err)
		}
		p.CreatedOn = createdOn.Format(time.RFC3339)
		p.UpdatedOn = updatedOn.Format(time.RFC3339)
		byID[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Preserve input order and report every missing id.
	out := make([]domain.Product, 0, len(ids))
	var missing []string
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			missing = append(missing, fmt.Sprintf("%d", id))
			continue
		}
		out = append(out, p)
	}
	if len(missing) > 0 {
		return nil, domain.NotFound("error.product.not_found", strings.Join(missing, ","))
	}
	return out, nil
}

type rentalItemRepository struct {
	db DBTX
}

func (r *rentalItemRepository) GetByID(ctx context.Context, id int64) (*domain.RentalItem, error) {
	ri := &domain.RentalItem{}
	var names []byte
	var createdOn, updatedOn time.Time
	query := `SELECT id, active, deposit_cents, base_fee_cents, currency, names, created_on, updated_on
	          FROM rental_items WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&ri.ID, &ri.Active, &ri.DepositCents, &ri.BaseFeeCents, &ri.Currency, &names, &createdOn, &updatedOn)
	if err == sql.ErrNoRows {
		return nil, domain.NotFound("error.rental_item.not_found", fmt.Sprintf("%d", id))
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(names, &ri.Names); err != nil {
		return nil, fmt.Errorf("failed to decode rental item names: %w", err)
	}
	ri.CreatedOn = createdOn.Format(time.RFC3339)
	ri.UpdatedOn = updatedOn.Format(time.RFC3339)
	return ri, nil
}
