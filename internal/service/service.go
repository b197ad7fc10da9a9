package service

import (
	"context"
	"time"

	"kioskops-backend/internal/domain"
)

// Actor is the authenticated caller identity, established by the external
// auth layer before a request reaches this system.
type Actor struct {
	ID   int64
	Role domain.UserRole
}

// OrderItemInput is one requested line of an order
type OrderItemInput struct {
	ProductID int64
	Quantity  int64
}

// CreateOrderInput carries the createOrder operation parameters
type CreateOrderInput struct {
	BoxID        int64
	Items        []OrderItemInput
	Method       domain.PaymentMethod
	CouponCode   string
	LoyaltyCents int64
	TipCents     int64
	PaymentToken string
}

// CreateBookingInput carries the createRentalBooking operation parameters
type CreateBookingInput struct {
	ItemID         int64
	PickupBoxID    int64
	ExpectedReturn *time.Time
	PaymentToken   string
}

// BookingAction is returned when the gateway demands an extra customer step
// before the deposit hold exists. No booking is committed in that case; the
// client completes the action and retries.
type BookingAction struct {
	RequiresAction bool
	ActionURL      string
}

type OrderService interface {
	CreateOrder(ctx context.Context, actor Actor, in CreateOrderInput) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, actor Actor, orderID string, newStatus string, reason string) error
	CancelOrder(ctx context.Context, actor Actor, orderID string, reason string) error
	GetOrder(ctx context.Context, actor Actor, orderID string) (*domain.Order, error)
	ListOrders(ctx context.Context, actor Actor, page, pageSize int32) ([]domain.Order, int32, error)
}

type RentalService interface {
	CreateBooking(ctx context.Context, actor Actor, in CreateBookingInput) (*domain.RentalBooking, *BookingAction, error)
	ConfirmPickup(ctx context.Context, actor Actor, bookingID string) error
	ConfirmReturn(ctx context.Context, actor Actor, bookingID string, returnBoxID int64, condition domain.ReturnCondition, notes string) error
	CancelBooking(ctx context.Context, actor Actor, bookingID string, reason string) error
	GetBooking(ctx context.Context, actor Actor, bookingID string) (*domain.RentalBooking, error)
	ListBookings(ctx context.Context, actor Actor, page, pageSize int32) ([]domain.RentalBooking, int32, error)
}
