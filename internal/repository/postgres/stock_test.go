package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecomstack/storefront/internal/domain"
	"github.com/ecomstack/storefront/pkg/database"
	apperrors "github.com/ecomstack/storefront/pkg/errors"
	"github.com/ecomstack/storefront/pkg/pagination"
)

func setupStockRepo(t *testing.T) (*StockRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	return NewStockRepository(mock), mock
}

var skuCols = []string{
	"id", "product_id", "color", "material", "size",
	"quantity_on_hand", "low_stock_threshold", "updated_at",
}

func sampleSKU() domain.SKU {
	return domain.SKU{
		ID:                "sku-1",
		ProductID:         "prod-1",
		Color:             "blue",
		Material:          "cotton",
		Size:              "M",
		QuantityOnHand:    12,
		LowStockThreshold: 5,
		UpdatedAt:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestStockRepository_GetSKU_Success(t *testing.T) {
	repo, mock := setupStockRepo(t)
	defer mock.Close()

	s := sampleSKU()
	mock.ExpectQuery("SELECT .+ FROM skus WHERE").
		WithArgs(s.ProductID, s.Color, s.Material, s.Size).
		WillReturnRows(pgxmock.NewRows(skuCols).
			AddRow(s.ID, s.ProductID, s.Color, s.Material, s.Size,
				s.QuantityOnHand, s.LowStockThreshold, s.UpdatedAt))

	result, err := repo.GetSKU(context.Background(), s.Key())
	require.NoError(t, err)
	assert.Equal(t, s.ID, result.ID)
	assert.Equal(t, s.QuantityOnHand, result.QuantityOnHand)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStockRepository_GetSKU_NotFound(t *testing.T) {
	repo, mock := setupStockRepo(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM skus WHERE").
		WithArgs("prod-x", "", "", "L").
		WillReturnError(pgx.ErrNoRows)

	result, err := repo.GetSKU(context.Background(), domain.SKUKey{ProductID: "prod-x", Size: "L"})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStockRepository_TryDecrement_Success(t *testing.T) {
	repo, mock := setupStockRepo(t)
	defer mock.Close()

	s := sampleSKU()
	mock.ExpectQuery("UPDATE skus").
		WithArgs(3, s.ProductID, s.Color, s.Material, s.Size).
		WillReturnRows(pgxmock.NewRows([]string{"quantity_on_hand"}).AddRow(9))

	prev, next, err := repo.TryDecrement(context.Background(), s.Key(), 3)
	require.NoError(t, err)
	assert.Equal(t, 12, prev)
	assert.Equal(t, 9, next)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStockRepository_TryDecrement_Insufficient(t *testing.T) {
	repo, mock := setupStockRepo(t)
	defer mock.Close()

	s := sampleSKU()
	s.QuantityOnHand = 2

	// The guard fails, then the follow-up read reports what is left.
	mock.ExpectQuery("UPDATE skus").
		WithArgs(5, s.ProductID, s.Color, s.Material, s.Size).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT .+ FROM skus WHERE").
		WithArgs(s.ProductID, s.Color, s.Material, s.Size).
		WillReturnRows(pgxmock.NewRows(skuCols).
			AddRow(s.ID, s.ProductID, s.Color, s.Material, s.Size,
				s.QuantityOnHand, s.LowStockThreshold, s.UpdatedAt))

	_, _, err := repo.TryDecrement(context.Background(), s.Key(), 5)
	var ise *domain.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, 5, ise.Requested)
	assert.Equal(t, 2, ise.Available)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStockRepository_TryDecrement_UnknownSKU(t *testing.T) {
	repo, mock := setupStockRepo(t)
	defer mock.Close()

	mock.ExpectQuery("UPDATE skus").
		WithArgs(1, "prod-x", "", "", "S").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT .+ FROM skus WHERE").
		WithArgs("prod-x", "", "", "S").
		WillReturnError(pgx.ErrNoRows)

	_, _, err := repo.TryDecrement(context.Background(), domain.SKUKey{ProductID: "prod-x", Size: "S"}, 1)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStockRepository_Adjust_Positive(t *testing.T) {
	repo, mock := setupStockRepo(t)
	defer mock.Close()

	s := sampleSKU()
	mock.ExpectQuery("UPDATE skus").
		WithArgs(8, s.ProductID, s.Color, s.Material, s.Size).
		WillReturnRows(pgxmock.NewRows([]string{"quantity_on_hand"}).AddRow(20))

	prev, next, err := repo.Adjust(context.Background(), s.Key(), 8)
	require.NoError(t, err)
	assert.Equal(t, 12, prev)
	assert.Equal(t, 20, next)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStockRepository_Adjust_WouldCrossZero(t *testing.T) {
	repo, mock := setupStockRepo(t)
	defer mock.Close()

	s := sampleSKU()
	s.QuantityOnHand = 4
	mock.ExpectQuery("UPDATE skus").
		WithArgs(-6, s.ProductID, s.Color, s.Material, s.Size).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT .+ FROM skus WHERE").
		WithArgs(s.ProductID, s.Color, s.Material, s.Size).
		WillReturnRows(pgxmock.NewRows(skuCols).
			AddRow(s.ID, s.ProductID, s.Color, s.Material, s.Size,
				s.QuantityOnHand, s.LowStockThreshold, s.UpdatedAt))

	_, _, err := repo.Adjust(context.Background(), s.Key(), -6)
	var ise *domain.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, 4, ise.Available)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStockRepository_ListLowStock(t *testing.T) {
	repo, mock := setupStockRepo(t)
	defer mock.Close()

	s := sampleSKU()
	s.QuantityOnHand = 2
	cols := append(append([]string{}, skuCols...), "total_count")
	mock.ExpectQuery("SELECT .+ FROM skus").
		WithArgs(20, 0).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(s.ID, s.ProductID, s.Color, s.Material, s.Size,
				s.QuantityOnHand, s.LowStockThreshold, s.UpdatedAt, 1))

	skus, total, err := repo.ListLowStock(context.Background(), pagination.Params{Page: 1, PerPage: 20})
	require.NoError(t, err)
	assert.Len(t, skus, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStockRepository_ListByProduct_Empty(t *testing.T) {
	repo, mock := setupStockRepo(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM skus").
		WithArgs("prod-9").
		WillReturnRows(pgxmock.NewRows(skuCols))

	skus, err := repo.ListByProduct(context.Background(), "prod-9")
	require.NoError(t, err)
	assert.Empty(t, skus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStockRepository_TryDecrement_DBError(t *testing.T) {
	repo, mock := setupStockRepo(t)
	defer mock.Close()

	s := sampleSKU()
	mock.ExpectQuery("UPDATE skus").
		WithArgs(1, s.ProductID, s.Color, s.Material, s.Size).
		WillReturnError(errors.New("connection reset"))

	_, _, err := repo.TryDecrement(context.Background(), s.Key(), 1)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "try decrement")
	assert.NoError(t, mock.ExpectationsWereMet())
}
