package utils

import (
	"time"

	"kioskops-backend/internal/domain"
)

// OrderTotalsInput carries everything the order total computation needs.
// Amounts are in the smallest currency unit.
type OrderTotalsInput struct {
	Items               []domain.OrderItem
	CouponDiscountCents int64
	LoyaltyRequested    int64
	LoyaltyBalance      int64
	TipCents            int64
}

// CalculateOrderTotals computes the money breakdown for an order. Loyalty
// redemption is capped at the available balance; the final amount is floored
// at zero. A breakdown that would otherwise go negative is not an error —
// discounts simply stop reducing below zero — but negative inputs are an
// internal-error condition and must never reach a charge.
func CalculateOrderTotals(in OrderTotalsInput) (domain.OrderTotals, error) {
	if in.CouponDiscountCents < 0 || in.LoyaltyRequested < 0 || in.LoyaltyBalance < 0 || in.TipCents < 0 {
		return domain.OrderTotals{}, domain.Internal("error.pricing.negative_input")
	}

	var itemsTotal int64
	for _, item := range in.Items {
		if item.UnitPriceCents < 0 || item.Quantity <= 0 {
			return domain.OrderTotals{}, domain.Internal("error.pricing.invalid_item")
		}
		itemsTotal += item.UnitPriceCents * item.Quantity
	}

	loyaltyDiscount := in.LoyaltyRequested
	if loyaltyDiscount > in.LoyaltyBalance {
		loyaltyDiscount = in.LoyaltyBalance
	}

	final := itemsTotal - in.CouponDiscountCents - loyaltyDiscount + in.TipCents
	if final < 0 {
		final = 0
	}

	return domain.OrderTotals{
		ItemsTotalCents:      itemsTotal,
		CouponDiscountCents:  in.CouponDiscountCents,
		LoyaltyDiscountCents: loyaltyDiscount,
		TipCents:             in.TipCents,
		FinalAmountCents:     final,
	}, nil
}

// RentalChargeInput carries the deposit settlement computation inputs. The
// fee policy (interval, per-interval fee, cleaning fee) comes from config;
// deposit and base fee are the snapshots taken at booking time.
type RentalChargeInput struct {
	BaseFeeCents     int64
	DepositCents     int64
	ExpectedReturn   *time.Time
	ReturnedAt       time.Time
	Condition        domain.ReturnCondition
	OvertimeInterval time.Duration
	OvertimeFeeCents int64
	CleaningFeeCents int64
}

// CalculateRentalCharge computes the final deposit settlement. Overtime is
// billed per started interval past the expected return (zero when no expected
// return was set). A flat cleaning fee applies to dirty returns. Damaged
// returns cap the total at the deposit, with the shortfall attributed to an
// implied damage fee; those bookings go to manual review because the implied
// number is arithmetic, not a priced assessment.
func CalculateRentalCharge(in RentalChargeInput) (domain.RentalCharge, error) {
	if in.BaseFeeCents < 0 || in.DepositCents < 0 || in.OvertimeFeeCents < 0 || in.CleaningFeeCents < 0 {
		return domain.RentalCharge{}, domain.Internal("error.pricing.negative_input")
	}

	charge := domain.RentalCharge{BaseFeeCents: in.BaseFeeCents}

	if in.ExpectedReturn != nil && in.ReturnedAt.After(*in.ExpectedReturn) && in.OvertimeInterval > 0 {
		overdue := in.ReturnedAt.Sub(*in.ExpectedReturn)
		intervals := int64(overdue / in.OvertimeInterval)
		if overdue%in.OvertimeInterval > 0 {
			intervals++
		}
		charge.OvertimeFeeCents = intervals * in.OvertimeFeeCents
	}

	if in.Condition == domain.ReturnConditionDirty {
		charge.CleaningFeeCents = in.CleaningFeeCents
	}

	total := charge.BaseFeeCents + charge.OvertimeFeeCents + charge.CleaningFeeCents

	if in.Condition == domain.ReturnConditionDamaged {
		// The real damage cost is unknown; charge the whole deposit and
		// book the difference as the implied damage fee.
		if total < in.DepositCents {
			charge.DamageFeeCents = in.DepositCents - total
		}
		total = in.DepositCents
		charge.CappedAtDeposit = true
	} else if total > in.DepositCents {
		// The hold is the most we can capture.
		total = in.DepositCents
		charge.CappedAtDeposit = true
	}

	if total < 0 {
		return domain.RentalCharge{}, domain.Internal("error.pricing.negative_charge")
	}

	charge.FinalChargeCents = total
	return charge, nil
}
