package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecomstack/storefront/internal/domain"
	"github.com/ecomstack/storefront/pkg/database"
)

func setupCheckoutRepo(t *testing.T) (*CheckoutRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	return NewCheckoutRepository(mock), mock
}

func TestCheckoutRepository_ClaimRollback_Winner(t *testing.T) {
	repo, mock := setupCheckoutRepo(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE checkouts").
		WithArgs("co-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	won, err := repo.ClaimRollback(context.Background(), "co-1")
	require.NoError(t, err)
	assert.True(t, won)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutRepository_ClaimRollback_AlreadyClaimed(t *testing.T) {
	repo, mock := setupCheckoutRepo(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE checkouts").
		WithArgs("co-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	won, err := repo.ClaimRollback(context.Background(), "co-1")
	require.NoError(t, err)
	assert.False(t, won)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutRepository_ClaimCompletion_Winner(t *testing.T) {
	repo, mock := setupCheckoutRepo(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE checkouts").
		WithArgs("co-1", domain.CheckoutCompleted, domain.CheckoutPendingPayment).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	won, err := repo.ClaimCompletion(context.Background(), "co-1")
	require.NoError(t, err)
	assert.True(t, won)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutRepository_ClaimCompletion_AlreadyCompletedOrRolledBack(t *testing.T) {
	repo, mock := setupCheckoutRepo(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE checkouts").
		WithArgs("co-1", domain.CheckoutCompleted, domain.CheckoutPendingPayment).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	won, err := repo.ClaimCompletion(context.Background(), "co-1")
	require.NoError(t, err)
	assert.False(t, won)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutRepository_GetByID_DecodesLines(t *testing.T) {
	repo, mock := setupCheckoutRepo(t)
	defer mock.Close()

	lines := []domain.CartLine{{ProductID: "prod-1", Size: "M", Quantity: 2, PriceSnapshot: 1500}}
	rawLines, err := json.Marshal(lines)
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cols := []string{
		"id", "user_id", "lines", "subtotal", "discount_amount", "coupon_id",
		"coupon_code", "total", "currency", "status", "payment_ref",
		"order_id", "rolled_back", "created_at", "updated_at",
	}
	mock.ExpectQuery("SELECT .+ FROM checkouts").
		WithArgs("co-1").
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("co-1", "user-1", rawLines, int64(3000), int64(0), nil,
				nil, int64(3000), "EUR", domain.CheckoutPendingPayment, "",
				nil, false, now, now))

	result, err := repo.GetByID(context.Background(), "co-1")
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)
	assert.Equal(t, "prod-1", result.Lines[0].ProductID)
	assert.Equal(t, 2, result.Lines[0].Quantity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertRepository_ClaimNotify(t *testing.T) {
	mockPool, err := database.NewMockPool()
	require.NoError(t, err)
	defer mockPool.Close()
	repo := NewAlertRepository(mockPool)

	mockPool.ExpectExec("UPDATE stock_alerts").
		WithArgs("sub-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mockPool.ExpectExec("UPDATE stock_alerts").
		WithArgs("sub-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	won, err := repo.ClaimNotify(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.True(t, won)

	won, err = repo.ClaimNotify(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.False(t, won)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
