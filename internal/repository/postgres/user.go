package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"kioskops-backend/internal/domain"
)

type userRepository struct {
	db DBTX
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	u := &domain.User{}
	var createdOn, updatedOn time.Time
	query := `SELECT id, name, role, active, loyalty_balance_cents, language, gateway_customer_id, box_id, created_on, updated_on
	          FROM users WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.Name, &u.Role, &u.Active, &u.LoyaltyBalance, &u.Language,
		&u.GatewayCustomerID, &u.BoxID, &createdOn, &updatedOn)
	if err == sql.ErrNoRows {
		return nil, domain.NotFound("error.user.not_found", fmt.Sprintf("%d", id))
	}
	if err != nil {
		return nil, err
	}
	u.CreatedOn = createdOn.Format(time.RFC3339)
	u.UpdatedOn = updatedOn.Format(time.RFC3339)
	return u, nil
}

func (r *userRepository) AdjustLoyaltyBalance(ctx context.Context, userID int64, delta int64) error {
	query := `UPDATE users SET loyalty_balance_cents = loyalty_balance_cents + $1, updated_on = NOW()
	          WHERE id = $2 AND loyalty_balance_cents + $1 >= 0`
	res, err := r.db.ExecContext(ctx, query, delta, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if delta >= 0 {
			return domain.NotFound("error.user.not_found", fmt.Sprintf("%d", userID))
		}
		return domain.ResourceExhausted("error.user.loyalty_insufficient", fmt.Sprintf("%d", userID))
	}
	return nil
}
