package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ecomstack/storefront/internal/domain"
	apperrors "github.com/ecomstack/storefront/pkg/errors"
)

func newCouponFixture(now time.Time) (*mockCouponRepo, *CouponService) {
	repo := &mockCouponRepo{}
	svc := NewCouponService(repo, newTestLogger())
	svc.now = func() time.Time { return now }
	return repo, svc
}

func activeCoupon(now time.Time) *domain.Coupon {
	return &domain.Coupon{
		ID:                "coupon-1",
		Code:              "TEN",
		DiscountKind:      domain.DiscountPercentage,
		Value:             10,
		MinPurchaseAmount: 1000,
		ExpiresAt:         now.Add(24 * time.Hour),
		MaxUses:           100,
		UsedCount:         10,
		Active:            true,
	}
}

func TestCoupon_Validate_Success(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	repo, svc := newCouponFixture(now)
	repo.On("GetByCode", mock.Anything, "ten").Return(activeCoupon(now), nil)

	coupon, discount, err := svc.Validate(context.Background(), "ten", 5000)
	require.NoError(t, err)
	assert.Equal(t, "coupon-1", coupon.ID)
	assert.Equal(t, int64(500), discount)
}

func TestCoupon_Validate_Expired(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	repo, svc := newCouponFixture(now)
	c := activeCoupon(now)
	c.ExpiresAt = now.Add(-time.Hour)
	repo.On("GetByCode", mock.Anything, "TEN").Return(c, nil)

	_, _, err := svc.Validate(context.Background(), "TEN", 5000)
	assert.ErrorIs(t, err, domain.ErrCouponExpired)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "COUPON_EXPIRED", appErr.Code)
}

func TestCoupon_Validate_Exhausted(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	repo, svc := newCouponFixture(now)
	c := activeCoupon(now)
	c.UsedCount = c.MaxUses
	repo.On("GetByCode", mock.Anything, "TEN").Return(c, nil)

	_, _, err := svc.Validate(context.Background(), "TEN", 5000)
	assert.ErrorIs(t, err, domain.ErrCouponExhausted)
}

func TestCoupon_Validate_BelowMinimum(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	repo, svc := newCouponFixture(now)
	repo.On("GetByCode", mock.Anything, "TEN").Return(activeCoupon(now), nil)

	_, _, err := svc.Validate(context.Background(), "TEN", 500)
	assert.ErrorIs(t, err, domain.ErrCouponBelowMinimum)
}

func TestCoupon_Validate_InactiveLooksLikeUnknown(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	repo, svc := newCouponFixture(now)
	c := activeCoupon(now)
	c.Active = false
	repo.On("GetByCode", mock.Anything, "TEN").Return(c, nil)

	_, _, err := svc.Validate(context.Background(), "TEN", 5000)
	assert.ErrorIs(t, err, domain.ErrCouponNotFound)
}

func TestCoupon_Reserve_ExhaustedAtTheCounter(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	repo, svc := newCouponFixture(now)
	// The conditional increment found no capacity left.
	repo.On("TryReserveUse", mock.Anything, "coupon-1").Return(nil, nil)

	_, err := svc.Reserve(context.Background(), "coupon-1")
	assert.ErrorIs(t, err, domain.ErrCouponExhausted)
}

func TestCoupon_Create_RejectsBadPercentage(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	_, svc := newCouponFixture(now)

	_, err := svc.Create(context.Background(), CreateCouponCommand{
		Code:         "BAD",
		DiscountKind: domain.DiscountPercentage,
		Value:        150,
		ExpiresAt:    now.Add(time.Hour),
		MaxUses:      10,
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestCoupon_DiscountFor_CapsAndFloors(t *testing.T) {
	cap := int64(300)
	c := &domain.Coupon{DiscountKind: domain.DiscountPercentage, Value: 10, MaxDiscountAmount: &cap}
	assert.Equal(t, int64(300), c.DiscountFor(10000))
	assert.Equal(t, int64(100), c.DiscountFor(1000))

	fixed := &domain.Coupon{DiscountKind: domain.DiscountFixedAmount, Value: 2000}
	// Never exceeds the subtotal.
	assert.Equal(t, int64(1500), fixed.DiscountFor(1500))
}
