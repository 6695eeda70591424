package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecomstack/storefront/internal/domain"
	"github.com/ecomstack/storefront/pkg/database"
	apperrors "github.com/ecomstack/storefront/pkg/errors"
)

func setupCouponRepo(t *testing.T) (*CouponRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	return NewCouponRepository(mock), mock
}

var couponCols = []string{
	"id", "code", "discount_kind", "value", "min_purchase_amount",
	"max_discount_amount", "expires_at", "max_uses", "used_count",
	"active", "created_at",
}

func sampleCoupon() domain.Coupon {
	return domain.Coupon{
		ID:                "coupon-1",
		Code:              "SUMMER10",
		DiscountKind:      domain.DiscountPercentage,
		Value:             10,
		MinPurchaseAmount: 1000,
		ExpiresAt:         time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		MaxUses:           100,
		UsedCount:         40,
		Active:            true,
		CreatedAt:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func couponRow(c domain.Coupon) *pgxmock.Rows {
	return pgxmock.NewRows(couponCols).
		AddRow(c.ID, c.Code, c.DiscountKind, c.Value, c.MinPurchaseAmount,
			c.MaxDiscountAmount, c.ExpiresAt, c.MaxUses, c.UsedCount,
			c.Active, c.CreatedAt)
}

func TestCouponRepository_GetByCode_CaseInsensitive(t *testing.T) {
	repo, mock := setupCouponRepo(t)
	defer mock.Close()

	c := sampleCoupon()
	mock.ExpectQuery("SELECT .+ FROM coupons").
		WithArgs("summer10").
		WillReturnRows(couponRow(c))

	result, err := repo.GetByCode(context.Background(), "summer10")
	require.NoError(t, err)
	assert.Equal(t, c.ID, result.ID)
	assert.Equal(t, "SUMMER10", result.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCouponRepository_GetByCode_NotFound(t *testing.T) {
	repo, mock := setupCouponRepo(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM coupons").
		WithArgs("NOPE").
		WillReturnError(pgx.ErrNoRows)

	result, err := repo.GetByCode(context.Background(), "NOPE")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCouponRepository_TryReserveUse_Success(t *testing.T) {
	repo, mock := setupCouponRepo(t)
	defer mock.Close()

	c := sampleCoupon()
	c.UsedCount = 41
	mock.ExpectQuery("UPDATE coupons").
		WithArgs(c.ID).
		WillReturnRows(couponRow(c))

	result, err := repo.TryReserveUse(context.Background(), c.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 41, result.UsedCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCouponRepository_TryReserveUse_Exhausted(t *testing.T) {
	repo, mock := setupCouponRepo(t)
	defer mock.Close()

	// No row matched the guard: the cap is already reached.
	mock.ExpectQuery("UPDATE coupons").
		WithArgs("coupon-1").
		WillReturnError(pgx.ErrNoRows)

	result, err := repo.TryReserveUse(context.Background(), "coupon-1")
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCouponRepository_ReleaseUse(t *testing.T) {
	repo, mock := setupCouponRepo(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE coupons").
		WithArgs("coupon-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.ReleaseUse(context.Background(), "coupon-1")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCouponRepository_Create_DuplicateCode(t *testing.T) {
	repo, mock := setupCouponRepo(t)
	defer mock.Close()

	c := sampleCoupon()
	mock.ExpectExec("INSERT INTO coupons").
		WithArgs(c.ID, c.Code, c.DiscountKind, c.Value, c.MinPurchaseAmount,
			c.MaxDiscountAmount, c.ExpiresAt, c.MaxUses, c.UsedCount,
			c.Active, c.CreatedAt).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), &c)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}
