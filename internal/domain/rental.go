package domain

import "time"

type BookingStatus string

const (
	BookingStatusAwaitingPickup            BookingStatus = "AWAITING_PICKUP"
	BookingStatusPickedUp                  BookingStatus = "PICKED_UP"
	BookingStatusReturnedPendingInspection BookingStatus = "RETURNED_PENDING_INSPECTION"
	BookingStatusCompleted                 BookingStatus = "COMPLETED"
	BookingStatusCancelled                 BookingStatus = "CANCELLED"
	BookingStatusRequiresManualReview      BookingStatus = "REQUIRES_MANUAL_REVIEW"
)

// Terminal reports whether the booking status admits no further transitions
func (s BookingStatus) Terminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled || s == BookingStatusRequiresManualReview
}

type ReturnCondition string

const (
	ReturnConditionGood    ReturnCondition = "GOOD"
	ReturnConditionDirty   ReturnCondition = "DIRTY"
	ReturnConditionDamaged ReturnCondition = "DAMAGED"
)

// RentalCharge is the fee breakdown computed at deposit settlement time.
// DamageFeeCents is an implied back-computed number when the charge was
// capped at the deposit; such bookings always end in manual review.
type RentalCharge struct {
	BaseFeeCents     int64 `json:"base_fee_cents"`
	OvertimeFeeCents int64 `json:"overtime_fee_cents"`
	CleaningFeeCents int64 `json:"cleaning_fee_cents"`
	DamageFeeCents   int64 `json:"damage_fee_cents"`
	FinalChargeCents int64 `json:"final_charge_cents"`
	CappedAtDeposit  bool  `json:"capped_at_deposit"`
}

// RentalBooking is one rental lifecycle: created (inventory unit held at the
// pickup box, deposit authorized), picked up, returned (unit restored at the
// return box), then the deposit is settled by the async worker.
type RentalBooking struct {
	ID              string           `json:"id"`
	UserID          int64            `json:"user_id"`
	ItemID          int64            `json:"item_id"`
	ItemName        string           `json:"item_name"`
	PickupBoxID     int64            `json:"pickup_box_id"`
	ReturnBoxID     *int64           `json:"return_box_id,omitempty"`
	Status          BookingStatus    `json:"status"`
	StatusHistory   []StatusChange   `json:"status_history"`
	ExpectedReturn  *time.Time       `json:"expected_return,omitempty"`
	PickedUpAt      *time.Time       `json:"picked_up_at,omitempty"`
	PickupCourierID *int64           `json:"pickup_courier_id,omitempty"`
	ReturnedAt      *time.Time       `json:"returned_at,omitempty"`
	ReturnCourierID *int64           `json:"return_courier_id,omitempty"`
	ReturnCondition ReturnCondition  `json:"return_condition,omitempty"`
	ReturnNotes     string           `json:"return_notes,omitempty"`
	DepositCents    int64            `json:"deposit_cents"` // snapshot from the item
	BaseFeeCents    int64            `json:"base_fee_cents"`
	Currency        string           `json:"currency"`
	Charge          *RentalCharge    `json:"charge,omitempty"`
	Payment         PaymentRecord    `json:"payment"`
	DepositLedger   ProcessingLedger `json:"deposit_ledger"`
	CreatedOn       time.Time        `json:"created_on"`
	UpdatedOn       time.Time        `json:"updated_on"`
}
