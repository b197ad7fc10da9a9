package domain

import "time"

type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "CREATED"
	OrderStatusPreparing OrderStatus = "PREPARING"
	OrderStatusReady     OrderStatus = "READY"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

type PaymentMethod string

const (
	PaymentMethodCard    PaymentMethod = "CARD"
	PaymentMethodOnSite  PaymentMethod = "ON_SITE"
	PaymentMethodLoyalty PaymentMethod = "LOYALTY_ONLY"
)

// RequiresAuthorization reports whether the method needs an up-front
// gateway hold before the order can be committed.
func (m PaymentMethod) RequiresAuthorization() bool {
	return m == PaymentMethodCard
}

type PaymentStatus string

const (
	PaymentStatusNone       PaymentStatus = "NONE"
	PaymentStatusAuthorized PaymentStatus = "AUTHORIZED"
	PaymentStatusCaptured   PaymentStatus = "CAPTURED"
	PaymentStatusVoided     PaymentStatus = "VOIDED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
)

// PaymentRecord is the embedded gateway authorization/settlement state. It is
// part of the owning Order or RentalBooking row, not a standalone aggregate.
type PaymentRecord struct {
	Method           PaymentMethod `json:"method"`
	Status           PaymentStatus `json:"status"`
	AuthorizationID  string        `json:"authorization_id,omitempty"`
	AuthorizedCents  int64         `json:"authorized_cents"`
	Currency         string        `json:"currency"`
	AuthorizedAt     *time.Time    `json:"authorized_at,omitempty"`
	SettlementID     string        `json:"settlement_id,omitempty"`
	CapturedCents    int64         `json:"captured_cents"`
	SettledAt        *time.Time    `json:"settled_at,omitempty"`
	GatewayErrorCode string        `json:"gateway_error_code,omitempty"`
}

// StatusChange is one append-only status history entry
type StatusChange struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	ActorID   int64     `json:"actor_id"`
	Role      UserRole  `json:"role"`
	Reason    string    `json:"reason,omitempty"`
}

// ProcessingPhase tracks a deferred side effect on an entity. Pending means
// the queued work has not run yet; Done means it ran exactly once; manual
// review means it failed after the point of no return.
type ProcessingPhase string

const (
	PhasePending      ProcessingPhase = "PENDING"
	PhaseDone         ProcessingPhase = "DONE"
	PhaseManualReview ProcessingPhase = "MANUAL_REVIEW"
)

// ProcessingLedger is the per-entity idempotency marker for queued work
type ProcessingLedger struct {
	Phase       ProcessingPhase `json:"phase"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
}

// Done reports whether the side effect has already been applied
func (l ProcessingLedger) Done() bool {
	return l.Phase == PhaseDone
}

// OrderItem is a price/quantity snapshot of a product at order time
type OrderItem struct {
	ProductID      int64  `json:"product_id"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int64  `json:"quantity"`
}

// OrderTotals is the computed money breakdown persisted with the order
type OrderTotals struct {
	ItemsTotalCents      int64 `json:"items_total_cents"`
	CouponDiscountCents  int64 `json:"coupon_discount_cents"`
	LoyaltyDiscountCents int64 `json:"loyalty_discount_cents"`
	TipCents             int64 `json:"tip_cents"`
	FinalAmountCents     int64 `json:"final_amount_cents"`
}

// Order is a kiosk purchase. Orders are never deleted; cancellation is a
// status. Cancellation side effects (inventory restore) run asynchronously
// and are guarded by the cancellation ledger.
type Order struct {
	ID                 string           `json:"id"`
	UserID             int64            `json:"user_id"`
	BoxID              int64            `json:"box_id"`
	Items              []OrderItem      `json:"items"`
	Status             OrderStatus      `json:"status"`
	StatusHistory      []StatusChange   `json:"status_history"`
	Payment            PaymentRecord    `json:"payment"`
	Totals             OrderTotals      `json:"totals"`
	CouponCode         string           `json:"coupon_code,omitempty"`
	LoyaltyUsedCents   int64            `json:"loyalty_used_cents"`
	CancellationLedger ProcessingLedger `json:"cancellation_ledger"`
	CreatedOn          time.Time        `json:"created_on"`
	UpdatedOn          time.Time        `json:"updated_on"`
}

// Terminal reports whether the order status admits no further transitions
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}
