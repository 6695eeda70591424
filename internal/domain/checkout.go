package domain

import (
	"time"
)

// Checkout statuses.
const (
	CheckoutPendingPayment = "pending_payment"
	CheckoutCompleted      = "completed"
	CheckoutFailed         = "failed"
)

// Checkout tracks one checkout attempt from stock decrement to payment
// outcome. It exists so that compensation can be re-run safely: RolledBack is
// flipped exactly once through a conditional update, and only the caller that
// wins that flip performs the ledger reversal.
type Checkout struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Lines          []CartLine `json:"lines"`
	Subtotal       int64      `json:"subtotal"`
	DiscountAmount int64      `json:"discount_amount"`
	CouponID       *string    `json:"coupon_id,omitempty"`
	CouponCode     *string    `json:"coupon_code,omitempty"`
	Total          int64      `json:"total"`
	Currency       string     `json:"currency"`
	Status         string     `json:"status"`
	PaymentRef     string     `json:"payment_ref,omitempty"`
	OrderID        *string    `json:"order_id,omitempty"`
	RolledBack     bool       `json:"rolled_back"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
