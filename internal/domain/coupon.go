package domain

import (
	"errors"
	"time"
)

// Discount kinds.
const (
	DiscountPercentage  = "percentage"
	DiscountFixedAmount = "fixed_amount"
)

// Coupon validation failures. These are expected, user-facing conditions;
// the service layer maps them to structured API errors.
var (
	ErrCouponNotFound     = errors.New("coupon not found")
	ErrCouponExpired      = errors.New("coupon expired")
	ErrCouponExhausted    = errors.New("coupon usage limit reached")
	ErrCouponBelowMinimum = errors.New("cart total below coupon minimum")
)

// Coupon is a shared discount code with bounded capacity. The invariant
// 0 <= UsedCount <= MaxUses holds at all times, including under concurrent
// redemption; the usage counter is only moved through the repository's
// conditional reserve/release operations.
type Coupon struct {
	ID                string    `json:"id"`
	Code              string    `json:"code"`
	DiscountKind      string    `json:"discount_kind"`
	Value             int64     `json:"value"`
	MinPurchaseAmount int64     `json:"min_purchase_amount"`
	MaxDiscountAmount *int64    `json:"max_discount_amount,omitempty"`
	ExpiresAt         time.Time `json:"expires_at"`
	MaxUses           int       `json:"max_uses"`
	UsedCount         int       `json:"used_count"`
	Active            bool      `json:"active"`
	CreatedAt         time.Time `json:"created_at"`
}

// IsExpired reports whether the coupon has passed its expiry.
func (c *Coupon) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// IsExhausted reports whether the usage limit has been reached.
func (c *Coupon) IsExhausted() bool {
	return c.UsedCount >= c.MaxUses
}

// DiscountFor computes the discount for the given subtotal from this coupon
// snapshot. Percentage values are in whole percent (10 == 10%). The result is
// capped by MaxDiscountAmount when set and never exceeds the subtotal.
func (c *Coupon) DiscountFor(subtotal int64) int64 {
	var discount int64
	switch c.DiscountKind {
	case DiscountPercentage:
		discount = subtotal * c.Value / 100
	case DiscountFixedAmount:
		discount = c.Value
	}

	if c.MaxDiscountAmount != nil && discount > *c.MaxDiscountAmount {
		discount = *c.MaxDiscountAmount
	}
	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}
