package postgres

import (
	"context"
	"database/sql"
	"time"

	"kioskops-backend/internal/domain"
)

type promoRepository struct {
	db DBTX
}

func (r *promoRepository) GetByCode(ctx context.Context, code string) (*domain.PromoCode, error) {
	p := &domain.PromoCode{}
	var createdOn time.Time
	query := `SELECT code, active, discount_cents, valid_from, valid_until, max_uses, use_count, created_on
	          FROM promo_codes WHERE code = $1`
	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&p.Code, &p.Active, &p.DiscountCents, &p.ValidFrom, &p.ValidUntil, &p.MaxUses, &p.UseCount, &createdOn)
	if err == sql.ErrNoRows {
		return nil, domain.NotFound("error.promo.not_found", code)
	}
	if err != nil {
		return nil, err
	}
	p.CreatedOn = createdOn.Format(time.RFC3339)
	return p, nil
}

func (r *promoRepository) ConsumeUse(ctx context.Context, code string, now time.Time) error {
	// The increment is conditional on every redemption rule so the cap holds
	// under concurrent order creation.
	query := `UPDATE promo_codes SET use_count = use_count + 1
	          WHERE code = $1 AND active AND $2 BETWEEN valid_from AND valid_until AND use_count < max_uses`
	res, err := r.db.ExecContext(ctx, query, code, now)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	// Classify the miss for the caller.
	p, err := r.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	if !p.Active || now.Before(p.ValidFrom) || now.After(p.ValidUntil) {
		return domain.FailedPrecondition("error.promo.not_valid", code)
	}
	return domain.ResourceExhausted("error.promo.exhausted", code)
}
