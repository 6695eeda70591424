package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ecomstack/storefront/internal/domain"
	"github.com/ecomstack/storefront/pkg/database"
	apperrors "github.com/ecomstack/storefront/pkg/errors"
)

// CouponRepository implements coupon storage and the atomic usage counter.
type CouponRepository struct {
	pool database.DBTX
}

// NewCouponRepository creates a PostgreSQL-backed coupon repository.
func NewCouponRepository(pool database.DBTX) *CouponRepository {
	return &CouponRepository{pool: pool}
}

const couponColumns = `id, code, discount_kind, value, min_purchase_amount, max_discount_amount, expires_at, max_uses, used_count, active, created_at`

func scanCoupon(row pgx.Row) (*domain.Coupon, error) {
	var c domain.Coupon
	err := row.Scan(
		&c.ID,
		&c.Code,
		&c.DiscountKind,
		&c.Value,
		&c.MinPurchaseAmount,
		&c.MaxDiscountAmount,
		&c.ExpiresAt,
		&c.MaxUses,
		&c.UsedCount,
		&c.Active,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a new coupon. Codes are unique case-insensitively.
func (r *CouponRepository) Create(ctx context.Context, coupon *domain.Coupon) error {
	query := `
		INSERT INTO coupons (` + couponColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		coupon.ID,
		coupon.Code,
		coupon.DiscountKind,
		coupon.Value,
		coupon.MinPurchaseAmount,
		coupon.MaxDiscountAmount,
		coupon.ExpiresAt,
		coupon.MaxUses,
		coupon.UsedCount,
		coupon.Active,
		coupon.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.ErrAlreadyExists
		}
		return fmt.Errorf("create coupon: %w", err)
	}

	return nil
}

// GetByCode looks a coupon up by its case-insensitive code.
func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	query := `
		SELECT ` + couponColumns + `
		FROM coupons
		WHERE LOWER(code) = LOWER($1)`

	coupon, err := scanCoupon(r.pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get coupon by code: %w", err)
	}

	return coupon, nil
}

// TryReserveUse increments used_count only while it is below max_uses. The
// check and the increment are a single UPDATE, so the cap holds under any
// number of concurrent checkouts. A nil coupon with nil error means the cap
// was already reached.
func (r *CouponRepository) TryReserveUse(ctx context.Context, couponID string) (*domain.Coupon, error) {
	query := `
		UPDATE coupons
		SET used_count = used_count + 1
		WHERE id = $1 AND used_count < max_uses
		RETURNING ` + couponColumns

	coupon, err := scanCoupon(r.pool.QueryRow(ctx, query, couponID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("reserve coupon use: %w", err)
	}

	return coupon, nil
}

// ReleaseUse returns one reserved use after a failed checkout. The floor at
// zero keeps a double release from going negative.
func (r *CouponRepository) ReleaseUse(ctx context.Context, couponID string) error {
	query := `
		UPDATE coupons
		SET used_count = GREATEST(used_count - 1, 0)
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, couponID)
	if err != nil {
		return fmt.Errorf("release coupon use: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// SetActive toggles whether a coupon is accepted at validation time.
func (r *CouponRepository) SetActive(ctx context.Context, couponID string, active bool) error {
	query := `UPDATE coupons SET active = $2 WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, couponID, active)
	if err != nil {
		return fmt.Errorf("set coupon active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}
