package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"kioskops-backend/internal/domain"
)

type bookingRepository struct {
	db DBTX
}

const bookingColumns = `id, user_id, item_id, item_name, pickup_box_id, return_box_id, status, status_history,
	expected_return, picked_up_at, pickup_courier_id, returned_at, return_courier_id, return_condition,
	return_notes, deposit_cents, base_fee_cents, currency, charge, payment, deposit_phase,
	deposit_processed_at, created_on, updated_on`

func (r *bookingRepository) Create(ctx context.Context, b *domain.RentalBooking) error {
	history, err := json.Marshal(b.StatusHistory)
	if err != nil {
		return err
	}
	payment, err := json.Marshal(b.Payment)
	if err != nil {
		return err
	}

	query := `INSERT INTO rental_bookings (id, user_id, item_id, item_name, pickup_box_id, status, status_history,
	              expected_return, deposit_cents, base_fee_cents, currency, payment, deposit_phase, created_on, updated_on)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())`
	_, err = r.db.ExecContext(ctx, query,
		b.ID, b.UserID, b.ItemID, b.ItemName, b.PickupBoxID, b.Status, history,
		b.ExpectedReturn, b.DepositCents, b.BaseFeeCents, b.Currency, payment, b.DepositLedger.Phase)
	return err
}

func (r *bookingRepository) GetByID(ctx context.Context, id string) (*domain.RentalBooking, error) {
	query := `SELECT ` + bookingColumns + ` FROM rental_bookings WHERE id = $1`
	b, err := scanBooking(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, domain.NotFound("error.booking.not_found", id)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *bookingRepository) ListByUser(ctx context.Context, userID int64, page, pageSize int32) ([]domain.RentalBooking, int32, error) {
	var count int32
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM rental_bookings WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	query := `SELECT ` + bookingColumns + ` FROM rental_bookings WHERE user_id = $1 ORDER BY created_on DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, userID, pageSize, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var bookings []domain.RentalBooking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, 0, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, count, rows.Err()
}

func (r *bookingRepository) UpdateStatus(ctx context.Context, id string, from, to domain.BookingStatus, change domain.StatusChange) error {
	entry, err := json.Marshal(change)
	if err != nil {
		return err
	}
	query := `UPDATE rental_bookings SET status = $1, status_history = status_history || $2::jsonb, updated_on = NOW()
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
		return domain.Aborted("error.booking.status_conflict", id)
	}
	return nil
}

func (r *bookingRepository) UpdatePayment(ctx context.Context, id string, payment domain.PaymentRecord) error {
	data, err := json.Marshal(payment)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE rental_bookings SET payment = $1, updated_on = NOW() WHERE id = $2`, data, id)
	if err != nil {
		return err
	}
	return requireRow(res, "error.booking.not_found", id)
}

func (r *bookingRepository) MarkPickedUp(ctx context.Context, id string, courierID int64, at time.Time, change domain.StatusChange) error {
	entry, err := json.Marshal(change)
	if err != nil {
		return err
	}
	query := `UPDATE rental_bookings
	          SET status = $1, picked_up_at = $2, pickup_courier_id = $3,
	              status_history = status_history || $4::jsonb, updated_on = NOW()
	          WHERE id = $5 AND status = $6`
	res, err := r.db.ExecContext(ctx, query,
		domain.BookingStatusPickedUp, at, courierID, entry, id, domain.BookingStatusAwaitingPickup)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.Aborted("error.booking.status_conflict", id)
	}
	return nil
}

func (r *bookingRepository) MarkReturned(ctx context.Context, id string, returnBoxID, courierID int64, at time.Time, condition domain.ReturnCondition, notes string, change domain.StatusChange) error {
	entry, err := json.Marshal(change)
	if err != nil {
		return err
	}
	query := `UPDATE rental_bookings
	          SET status = $1, return_box_id = $2, returned_at = $3, return_courier_id = $4,
	              return_condition = $5, return_notes = $6,
	              status_history = status_history || $7::jsonb, updated_on = NOW()
	          WHERE id = $8 AND status = $9`
	res, err := r.db.ExecContext(ctx, query,
		domain.BookingStatusReturnedPendingInspection, returnBoxID, at, courierID,
		condition, notes, entry, id, domain.BookingStatusPickedUp)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.Aborted("error.booking.status_conflict", id)
	}
	return nil
}

func (r *bookingRepository) RecordSettlement(ctx context.Context, id string, charge domain.RentalCharge, payment domain.PaymentRecord, phase domain.ProcessingPhase, at time.Time, from, to domain.BookingStatus, change domain.StatusChange) error {
	chargeData, err := json.Marshal(charge)
	if err != nil {
		return err
	}
	paymentData, err := json.Marshal(payment)
	if err != nil {
		return err
	}
	entry, err := json.Marshal(change)
	if err != nil {
		return err
	}
	query := `UPDATE rental_bookings
	          SET status = $1, charge = $2, payment = $3, deposit_phase = $4, deposit_processed_at = $5,
	              status_history = status_history || $6::jsonb, updated_on = NOW()
	          WHERE id = $7 AND status = $8`
	res, err := r.db.ExecContext(ctx, query, to, chargeData, paymentData, phase, at, entry, id, from)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.Aborted("error.booking.status_conflict", id)
	}
	return nil
}

func (r *bookingRepository) SetDepositPhase(ctx context.Context, id string, phase domain.ProcessingPhase, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE rental_bookings SET deposit_phase = $1, deposit_processed_at = $2, updated_on = NOW() WHERE id = $3`,
		phase, at, id)
	if err != nil {
		return err
	}
	return requireRow(res, "error.booking.not_found", id)
}

func (r *bookingRepository) ListReturnedUnprocessed(ctx context.Context, limit int32) ([]domain.RentalBooking, error) {
	query := `SELECT ` + bookingColumns + ` FROM rental_bookings
	          WHERE status = $1 AND deposit_phase = $2 ORDER BY updated_on LIMIT $3`
	return r.queryBookings(ctx, query, domain.BookingStatusReturnedPendingInspection, domain.PhasePending, limit)
}

func (r *bookingRepository) ListOverdue(ctx context.Context, now time.Time, limit int32) ([]domain.RentalBooking, error) {
	query := `SELECT ` + bookingColumns + ` FROM rental_bookings
	          WHERE status = $1 AND expected_return IS NOT NULL AND expected_return < $2 ORDER BY expected_return LIMIT $3`
	return r.queryBookings(ctx, query, domain.BookingStatusPickedUp, now, limit)
}

func (r *bookingRepository) queryBookings(ctx context.Context, query string, args ...any) ([]domain.RentalBooking, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.RentalBooking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func scanBooking(row rowScanner) (*domain.RentalBooking, error) {
	b := &domain.RentalBooking{}
	var history, payment []byte
	var charge []byte
	var condition sql.NullString
	err := row.Scan(&b.ID, &b.UserID, &b.ItemID, &b.ItemName, &b.PickupBoxID, &b.ReturnBoxID,
		&b.Status, &history, &b.ExpectedReturn, &b.PickedUpAt, &b.PickupCourierID,
		&b.ReturnedAt, &b.ReturnCourierID, &condition, &b.ReturnNotes,
		&b.DepositCents, &b.BaseFeeCents, &b.Currency, &charge, &payment,
		&b.DepositLedger.Phase, &b.DepositLedger.ProcessedAt, &b.CreatedOn, &b.UpdatedOn)
	if err != nil {
		return nil, err
	}
	if condition.Valid {
		b.ReturnCondition = domain.ReturnCondition(condition.String)
	}
	if err := json.Unmarshal(history, &b.StatusHistory); err != nil {
		return nil, fmt.Errorf("failed to decode booking history: %w", err)
	}
	if err := json.Unmarshal(payment, &b.Payment); err != nil {
		return nil, fmt.Errorf("failed to decode booking payment: %w", err)
	}
	if len(charge) > 0 {
		if err := json.Unmarshal(charge, &b.Charge); err != nil {
			return nil, fmt.Errorf("failed to decode booking charge: %w", err)
		}
	}
	return b, nil
}
