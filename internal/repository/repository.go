package repository

import (
	"context"
	"time"

	"kioskops-backend/internal/domain"
)

// Store bundles the entity repositories with the atomic transaction
// primitive. ExecTx runs fn against a transaction-scoped Store whose reads
// and writes commit atomically iff fn returns nil; on a conflicting
// concurrent write the whole transaction is retried and, past the retry
// budget, reported as domain.Aborted. Counter mutations exposed here are
// relative (conditional increments/decrements), never blind overwrites.
type Store interface {
	Users() UserRepository
	Boxes() BoxRepository
	Products() ProductRepository
	RentalItems() RentalItemRepository
	Promos() PromoRepository
	Orders() OrderRepository
	Bookings() BookingRepository

	ExecTx(ctx context.Context, fn func(Store) error) error
}

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	// AdjustLoyaltyBalance applies a relative delta. A negative delta that
	// would take the balance below zero fails with ResourceExhausted.
	AdjustLoyaltyBalance(ctx context.Context, userID int64, delta int64) error
}

type BoxRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Box, error)
	GetInventory(ctx context.Context, boxID, itemID int64) (int64, error)
	// AdjustInventory applies a relative delta to one stock counter. A
	// negative delta that would take the count below zero fails with
	// ResourceExhausted and leaves the row untouched.
	AdjustInventory(ctx context.Context, boxID, itemID int64, delta int64) error
}

type ProductRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	// GetManyByIDs preserves the input order; each missing id is reported
	// as a NotFound error naming that id.
	GetManyByIDs(ctx context.Context, ids []int64) ([]domain.Product, error)
}

type RentalItemRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.RentalItem, error)
}

type PromoRepository interface {
	GetByCode(ctx context.Context, code string) (*domain.PromoCode, error)
	// ConsumeUse increments the use counter iff the code is active, inside
	// its validity window and under its cap at the time of the write.
	ConsumeUse(ctx context.Context, code string, now time.Time) error
}

type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID int64, page, pageSize int32) ([]domain.Order, int32, error)
	// UpdateStatus moves the order from -> to and appends the history entry.
	// The write is conditional on the current status still being from; a
	// miss is reported as domain.Aborted.
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, change domain.StatusChange) error
	UpdatePayment(ctx context.Context, id string, payment domain.PaymentRecord) error
	SetCancellationPhase(ctx context.Context, id string, phase domain.ProcessingPhase, at time.Time) error
	// ListCancelledUnprocessed returns cancelled orders whose side-effect
	// ledger is still pending, for the safety-net sweep.
	ListCancelledUnprocessed(ctx context.Context, limit int32) ([]domain.Order, error)
}

type BookingRepository interface {
	Create(ctx context.Context, booking *domain.RentalBooking) error
	GetByID(ctx context.Context, id string) (*domain.RentalBooking, error)
	ListByUser(ctx context.Context, userID int64, page, pageSize int32) ([]domain.RentalBooking, int32, error)
	UpdateStatus(ctx context.Context, id string, from, to domain.BookingStatus, change domain.StatusChange) error
	UpdatePayment(ctx context.Context, id string, payment domain.PaymentRecord) error
	// MarkPickedUp is conditional on status AWAITING_PICKUP
	MarkPickedUp(ctx context.Context, id string, courierID int64, at time.Time, change domain.StatusChange) error
	// MarkReturned is conditional on status PICKED_UP
	MarkReturned(ctx context.Context, id string, returnBoxID, courierID int64, at time.Time, condition domain.ReturnCondition, notes string, change domain.StatusChange) error
	// RecordSettlement persists the deposit outcome: charge breakdown,
	// payment state, ledger phase and the terminal status, in one write.
	RecordSettlement(ctx context.Context, id string, charge domain.RentalCharge, payment domain.PaymentRecord, phase domain.ProcessingPhase, at time.Time, from, to domain.BookingStatus, change domain.StatusChange) error
	SetDepositPhase(ctx context.Context, id string, phase domain.ProcessingPhase, at time.Time) error
	ListReturnedUnprocessed(ctx context.Context, limit int32) ([]domain.RentalBooking, error)
	// ListOverdue returns picked-up bookings past their expected return
	ListOverdue(ctx context.Context, now time.Time, limit int32) ([]domain.RentalBooking, error)
}
