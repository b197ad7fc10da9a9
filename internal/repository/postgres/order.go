package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"kioskops-backend/internal/domain"
)

type orderRepository struct {
	db DBTX
}

const orderColumns = `id, user_id, box_id, items, status, status_history, payment, totals,
	coupon_code, loyalty_used_cents, cancellation_phase, cancellation_processed_at, created_on, updated_on`

func (r *orderRepository) Create(ctx context.Context, o *domain.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	history, err := json.Marshal(o.StatusHistory)
	if err != nil {
		return err
	}
	payment, err := json.Marshal(o.Payment)
	if err != nil {
		return err
	}
	totals, err := json.Marshal(o.Totals)
	if err != nil {
		return err
	}

	query := `INSERT INTO orders (id, user_id, box_id, items, status, status_history, payment, totals,
	              coupon_code, loyalty_used_cents, cancellation_phase, created_on, updated_on)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())`
	_, err = r.db.ExecContext(ctx, query,
		o.ID, o.UserID, o.BoxID, items, o.Status, history, payment, totals,
		o.CouponCode, o.LoyaltyUsedCents, o.CancellationLedger.Phase)
	return err
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	o, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, domain.NotFound("error.order.not_found", id)
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *orderRepository) ListByUser(ctx context.Context, userID int64, page, pageSize int32) ([]domain.Order, int32, error) {
	var count int32
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM orders WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_on DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, userID, pageSize, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, *o)
	}
	return orders, count, rows.Err()
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, change domain.StatusChange) error {
	entry, err := json.Marshal(change)
	if err != nil {
		return err
	}
	query := `UPDATE orders SET status = $1, status_history = status_history || $2::jsonb, updated_on = NOW()
	          WHERE id = $3 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, to, entry, id, from)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.Aborted("error.order.status_conflict", id)
	}
	return nil
}

func (r *orderRepository) UpdatePayment(ctx context.Context, id string, payment domain.PaymentRecord) error {
	data, err := json.Marshal(payment)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET payment = $1, updated_on = NOW() WHERE id = $2`, data, id)
	if err != nil {
		return err
	}
	return requireRow(res, "error.order.not_found", id)
}

func (r *orderRepository) SetCancellationPhase(ctx context.Context, id string, phase domain.ProcessingPhase, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET cancellation_phase = $1, cancellation_processed_at = $2, updated_on = NOW() WHERE id = $3`,
		phase, at, id)
	if err != nil {
		return err
	}
	return requireRow(res, "error.order.not_found", id)
}

func (r *orderRepository) ListCancelledUnprocessed(ctx context.Context, limit int32) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
	          WHERE status = $1 AND cancellation_phase = $2 ORDER BY updated_on LIMIT $3`
	rows, err := r.db.QueryContext(ctx, query, domain.OrderStatusCancelled, domain.PhasePending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	o := &domain.Order{}
	var items, history, payment, totals []byte
	err := row.Scan(&o.ID, &o.UserID, &o.BoxID, &items, &o.Status, &history, &payment, &totals,
		&o.CouponCode, &o.LoyaltyUsedCents, &o.CancellationLedger.Phase, &o.CancellationLedger.ProcessedAt,
		&o.CreatedOn, &o.UpdatedOn)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("failed to decode order items: %w", err)
	}
	if err := json.Unmarshal(history, &o.StatusHistory); err != nil {
		return nil, fmt.Errorf("failed to decode order history: %w", err)
	}
	if err := json.Unmarshal(payment, &o.Payment); err != nil {
		return nil, fmt.Errorf("failed to decode order payment: %w", err)
	}
	if err := json.Unmarshal(totals, &o.Totals); err != nil {
		return nil, fmt.Errorf("failed to decode order totals: %w", err)
	}
	return o, nil
}

func requireRow(res sql.Result, messageKey, detail string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NotFound(messageKey, detail)
	}
	return nil
}
