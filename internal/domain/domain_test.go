package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionOrder(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{OrderPending, OrderPaid, true},
		{OrderPaid, OrderShipped, true},
		{OrderPaid, OrderRefunded, true},
		{OrderShipped, OrderDelivered, true},
		{OrderShipped, OrderRefunded, true},
		{OrderDelivered, OrderRefunded, true},
		{OrderPending, OrderShipped, false},
		{OrderPaid, OrderDelivered, false},
		{OrderDelivered, OrderShipped, false},
		{OrderRefunded, OrderPaid, false},
		{"bogus", OrderPaid, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransitionOrder(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestSKUKey_String(t *testing.T) {
	full := SKUKey{ProductID: "p-1", Color: "blue", Material: "cotton", Size: "M"}
	assert.Equal(t, "p-1/blue/cotton/M", full.String())

	plain := SKUKey{ProductID: "p-1", Size: "M"}
	assert.Equal(t, "p-1///M", plain.String())
}

func TestSKUKey_Label(t *testing.T) {
	full := SKUKey{ProductID: "p-1", Color: "blue", Material: "cotton", Size: "M"}
	assert.Equal(t, "blue/cotton/M", full.Label())

	plain := SKUKey{ProductID: "p-1", Size: "M"}
	assert.Equal(t, "M", plain.Label())

	colorOnly := SKUKey{ProductID: "p-1", Color: "blue", Size: "M"}
	assert.Equal(t, "blue/M", colorOnly.Label())
}

func TestSKU_IsLow(t *testing.T) {
	sku := SKU{QuantityOnHand: 3, LowStockThreshold: 3}
	assert.True(t, sku.IsLow())

	sku.QuantityOnHand = 4
	assert.False(t, sku.IsLow())

	sku.QuantityOnHand = 0
	assert.True(t, sku.IsLow())
}

func TestSubtotal(t *testing.T) {
	lines := []CartLine{
		{ProductID: "p-1", Size: "M", Quantity: 2, PriceSnapshot: 1500},
		{ProductID: "p-2", Size: "L", Quantity: 3, PriceSnapshot: 700},
	}
	assert.Equal(t, int64(5100), Subtotal(lines))
	assert.Equal(t, int64(0), Subtotal(nil))
}

func TestCoupon_DiscountFor(t *testing.T) {
	cap := int64(300)
	tests := []struct {
		name     string
		coupon   Coupon
		subtotal int64
		want     int64
	}{
		{"percentage", Coupon{DiscountKind: DiscountPercentage, Value: 10}, 5000, 500},
		{"percentage capped", Coupon{DiscountKind: DiscountPercentage, Value: 10, MaxDiscountAmount: &cap}, 5000, 300},
		{"fixed", Coupon{DiscountKind: DiscountFixedAmount, Value: 1000}, 5000, 1000},
		{"fixed exceeds subtotal", Coupon{DiscountKind: DiscountFixedAmount, Value: 1000}, 400, 400},
		{"full percentage", Coupon{DiscountKind: DiscountPercentage, Value: 100}, 5000, 5000},
		{"unknown kind", Coupon{DiscountKind: "bogus", Value: 10}, 5000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.coupon.DiscountFor(tt.subtotal))
		})
	}
}

func TestCoupon_IsExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := Coupon{ExpiresAt: now.Add(time.Hour)}
	assert.False(t, c.IsExpired(now))
	assert.True(t, c.IsExpired(now.Add(2*time.Hour)))
}

func TestCoupon_IsExhausted(t *testing.T) {
	c := Coupon{MaxUses: 2, UsedCount: 1}
	assert.False(t, c.IsExhausted())
	c.UsedCount = 2
	assert.True(t, c.IsExhausted())
}

func TestStockAlertSubscription_Matches(t *testing.T) {
	sizeM := "M"
	withSize := StockAlertSubscription{Size: &sizeM}
	assert.True(t, withSize.Matches([]string{"S", "M"}))
	assert.False(t, withSize.Matches([]string{"S", "L"}))

	agnostic := StockAlertSubscription{}
	assert.True(t, agnostic.Matches([]string{"XS"}))
	assert.True(t, agnostic.Matches(nil))
}

func TestIsValidMovementType(t *testing.T) {
	for _, v := range ValidMovementTypes() {
		assert.True(t, IsValidMovementType(v))
	}
	assert.False(t, IsValidMovementType("teleport"))
	assert.False(t, IsValidMovementType(""))
}

func TestInsufficientStockError_Message(t *testing.T) {
	err := &InsufficientStockError{
		Key:       SKUKey{ProductID: "p-1", Size: "M"},
		Requested: 5,
		Available: 2,
	}
	assert.Equal(t, "insufficient stock for p-1///M: requested 5, available 2", err.Error())
}
