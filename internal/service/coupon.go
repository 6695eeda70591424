package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ecomstack/storefront/internal/domain"
	"github.com/ecomstack/storefront/internal/repository"
	apperrors "github.com/ecomstack/storefront/pkg/errors"
)

// CreateCouponCommand describes a new coupon.
type CreateCouponCommand struct {
	Code              string
	DiscountKind      string
	Value             int64
	MinPurchaseAmount int64
	MaxDiscountAmount *int64
	ExpiresAt         time.Time
	MaxUses           int
}

// CouponService validates and redeems shared discount codes. The usage cap is
// enforced by the repository's conditional reserve; this layer adds the
// expiry, activity and minimum-purchase checks and maps outcomes to
// user-facing errors.
type CouponService struct {
	coupons repository.CouponRepository
	logger  *slog.Logger
	now     func() time.Time
}

// NewCouponService creates the coupon service.
func NewCouponService(coupons repository.CouponRepository, logger *slog.Logger) *CouponService {
	return &CouponService{coupons: coupons, logger: logger, now: time.Now}
}

// Create registers a new coupon. Codes are stored as given but matched
// case-insensitively.
func (s *CouponService) Create(ctx context.Context, cmd CreateCouponCommand) (*domain.Coupon, error) {
	code := strings.TrimSpace(cmd.Code)
	if code == "" {
		return nil, apperrors.InvalidInput("code is required")
	}
	switch cmd.DiscountKind {
	case domain.DiscountPercentage:
		if cmd.Value <= 0 || cmd.Value > 100 {
			return nil, apperrors.InvalidInput("percentage value must be between 1 and 100")
		}
	case domain.DiscountFixedAmount:
		if cmd.Value <= 0 {
			return nil, apperrors.InvalidInput("fixed amount value must be positive")
		}
	default:
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid discount kind %q", cmd.DiscountKind))
	}
	if cmd.MaxUses <= 0 {
		return nil, apperrors.InvalidInput("max uses must be positive")
	}
	if !cmd.ExpiresAt.After(s.now()) {
		return nil, apperrors.InvalidInput("expiry must be in the future")
	}

	coupon := &domain.Coupon{
		ID:                uuid.New().String(),
		Code:              code,
		DiscountKind:      cmd.DiscountKind,
		Value:             cmd.Value,
		MinPurchaseAmount: cmd.MinPurchaseAmount,
		MaxDiscountAmount: cmd.MaxDiscountAmount,
		ExpiresAt:         cmd.ExpiresAt.UTC(),
		MaxUses:           cmd.MaxUses,
		UsedCount:         0,
		Active:            true,
		CreatedAt:         s.now().UTC(),
	}

	if err := s.coupons.Create(ctx, coupon); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, apperrors.AlreadyExists("coupon", "code", code)
		}
		return nil, err
	}

	return coupon, nil
}

// Validate checks whether a code can currently be applied to the given
// subtotal and returns the coupon with the discount it would grant. This is a
// read-only preview; it does not consume a use.
func (s *CouponService) Validate(ctx context.Context, code string, subtotal int64) (*domain.Coupon, int64, error) {
	coupon, err := s.coupons.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, 0, couponError(domain.ErrCouponNotFound)
		}
		return nil, 0, err
	}

	if !coupon.Active {
		return nil, 0, couponError(domain.ErrCouponNotFound)
	}
	if coupon.IsExpired(s.now()) {
		return nil, 0, couponError(domain.ErrCouponExpired)
	}
	if coupon.IsExhausted() {
		return nil, 0, couponError(domain.ErrCouponExhausted)
	}
	if subtotal < coupon.MinPurchaseAmount {
		return nil, 0, couponError(domain.ErrCouponBelowMinimum)
	}

	return coupon, coupon.DiscountFor(subtotal), nil
}

// Reserve consumes one use of the coupon. The increment is conditional on
// remaining capacity, so concurrent checkouts cannot exceed MaxUses; losers
// get the exhausted error.
func (s *CouponService) Reserve(ctx context.Context, couponID string) (*domain.Coupon, error) {
	coupon, err := s.coupons.TryReserveUse(ctx, couponID)
	if err != nil {
		return nil, err
	}
	if coupon == nil {
		couponExhaustionsTotal.Inc()
		return nil, couponError(domain.ErrCouponExhausted)
	}
	return coupon, nil
}

// Release returns one reserved use after a failed checkout.
func (s *CouponService) Release(ctx context.Context, couponID string) error {
	if err := s.coupons.ReleaseUse(ctx, couponID); err != nil {
		return fmt.Errorf("release coupon %s: %w", couponID, err)
	}
	return nil
}

// GetByCode looks a coupon up without applying validity checks.
func (s *CouponService) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	return s.coupons.GetByCode(ctx, code)
}

// SetActive enables or disables a coupon.
func (s *CouponService) SetActive(ctx context.Context, couponID string, active bool) error {
	return s.coupons.SetActive(ctx, couponID, active)
}

// couponError maps the domain's validation sentinels to user-facing errors.
// The sentinel stays in the chain so callers can branch on it.
func couponError(sentinel error) error {
	switch {
	case errors.Is(sentinel, domain.ErrCouponNotFound):
		return &apperrors.AppError{
			Code:    "COUPON_INVALID",
			Message: "coupon code is not valid",
			Status:  http.StatusNotFound,
			Err:     sentinel,
		}
	case errors.Is(sentinel, domain.ErrCouponExpired):
		return &apperrors.AppError{
			Code:    "COUPON_EXPIRED",
			Message: "coupon code has expired",
			Status:  http.StatusUnprocessableEntity,
			Err:     sentinel,
		}
	case errors.Is(sentinel, domain.ErrCouponExhausted):
		return &apperrors.AppError{
			Code:    "COUPON_EXHAUSTED",
			Message: "coupon usage limit has been reached",
			Status:  http.StatusConflict,
			Err:     sentinel,
		}
	case errors.Is(sentinel, domain.ErrCouponBelowMinimum):
		return &apperrors.AppError{
			Code:    "COUPON_BELOW_MINIMUM",
			Message: "cart total is below the coupon minimum",
			Status:  http.StatusUnprocessableEntity,
			Err:     sentinel,
		}
	default:
		return sentinel
	}
}
