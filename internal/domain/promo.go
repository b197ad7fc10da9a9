package domain

import "time"

// PromoCode is a fixed-amount discount coupon with a usage cap. The use
// counter is incremented in the same transaction that commits the order, so
// the cap holds under concurrent redemption.
type PromoCode struct {
	Code          string    `json:"code"`
	Active        bool      `json:"active"`
	DiscountCents int64     `json:"discount_cents"`
	ValidFrom     time.Time `json:"valid_from"`
	ValidUntil    time.Time `json:"valid_until"`
	MaxUses       int64     `json:"max_uses"`
	UseCount      int64     `json:"use_count"`
	CreatedOn     string    `json:"created_on"`
}

// Redeemable reports whether the code can still be applied at the given time.
// This is the advisory check; the authoritative one is the conditional
// counter increment inside the order transaction.
func (p *PromoCode) Redeemable(now time.Time) bool {
	if !p.Active {
		return false
	}
	if now.Before(p.ValidFrom) || now.After(p.ValidUntil) {
		return false
	}
	return p.UseCount < p.MaxUses
}
