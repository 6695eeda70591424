package domain

import (
	"time"
)

// Order statuses. The lifecycle is pending -> paid -> shipped -> delivered,
// with refunded reachable from any post-paid state.
const (
	OrderPending   = "pending"
	OrderPaid      = "paid"
	OrderShipped   = "shipped"
	OrderDelivered = "delivered"
	OrderRefunded  = "refunded"
)

// orderTransitions is the order status state machine.
var orderTransitions = map[string][]string{
	OrderPending:   {OrderPaid},
	OrderPaid:      {OrderShipped, OrderRefunded},
	OrderShipped:   {OrderDelivered, OrderRefunded},
	OrderDelivered: {OrderRefunded},
	OrderRefunded:  {},
}

// CanTransitionOrder reports whether an order may move from one status to another.
func CanTransitionOrder(from, to string) bool {
	for _, allowed := range orderTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// OrderLine is one frozen line of a placed order.
type OrderLine struct {
	ProductID string `json:"product_id"`
	Color     string `json:"color,omitempty"`
	Material  string `json:"material,omitempty"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// Key returns the SKU tuple of the line.
func (l *OrderLine) Key() SKUKey {
	return SKUKey{ProductID: l.ProductID, Color: l.Color, Material: l.Material, Size: l.Size}
}

// Order is created once, after payment confirmation and ledger decrement.
// Monetary fields are a frozen snapshot taken at checkout time and are never
// recomputed; only Status changes afterwards.
type Order struct {
	ID             string      `json:"id"`
	UserID         string      `json:"user_id"`
	Status         string      `json:"status"`
	Lines          []OrderLine `json:"lines"`
	Subtotal       int64       `json:"subtotal"`
	DiscountAmount int64       `json:"discount_amount"`
	CouponCode     *string     `json:"coupon_code,omitempty"`
	Total          int64       `json:"total"`
	Currency       string      `json:"currency"`
	PaymentID      string      `json:"payment_id"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}
