package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ecomstack/storefront/internal/domain"
	"github.com/ecomstack/storefront/pkg/database"
	apperrors "github.com/ecomstack/storefront/pkg/errors"
	"github.com/ecomstack/storefront/pkg/pagination"
)

// StockRepository implements the stock ledger over PostgreSQL. All quantity
// mutations are single conditional UPDATEs; the database evaluates the guard
// and applies the change as one indivisible step, which is what makes
// concurrent decrements safe without application-level locking.
type StockRepository struct {
	pool database.DBTX
}

// NewStockRepository creates a PostgreSQL-backed stock ledger.
func NewStockRepository(pool database.DBTX) *StockRepository {
	return &StockRepository{pool: pool}
}

const skuColumns = `id, product_id, color, material, size, quantity_on_hand, low_stock_threshold, updated_at`

func scanSKU(row pgx.Row) (*domain.SKU, error) {
	var s domain.SKU
	err := row.Scan(
		&s.ID,
		&s.ProductID,
		&s.Color,
		&s.Material,
		&s.Size,
		&s.QuantityOnHand,
		&s.LowStockThreshold,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSKU retrieves the ledger entry for one variant.
func (r *StockRepository) GetSKU(ctx context.Context, key domain.SKUKey) (*domain.SKU, error) {
	query := `
		SELECT ` + skuColumns + `
		FROM skus
		WHERE product_id = $1 AND color = $2 AND material = $3 AND size = $4`

	sku, err := scanSKU(r.pool.QueryRow(ctx, query, key.ProductID, key.Color, key.Material, key.Size))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get sku: %w", err)
	}

	return sku, nil
}

// ListByProduct returns all SKUs of a product ordered by variant.
func (r *StockRepository) ListByProduct(ctx context.Context, productID string) ([]domain.SKU, error) {
	query := `
		SELECT ` + skuColumns + `
		FROM skus
		WHERE product_id = $1
		ORDER BY color, material, size`

	rows, err := r.pool.Query(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("list skus by product: %w", err)
	}
	defer rows.Close()

	var skus []domain.SKU
	for rows.Next() {
		sku, err := scanSKU(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sku row: %w", err)
		}
		skus = append(skus, *sku)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sku rows: %w", err)
	}

	if skus == nil {
		skus = []domain.SKU{}
	}
	return skus, nil
}

// UpsertSKU creates a ledger entry or replaces quantity and threshold of an
// existing one. This is the admin seed path, not a checkout mutation.
func (r *StockRepository) UpsertSKU(ctx context.Context, sku *domain.SKU) (*domain.SKU, error) {
	query := `
		INSERT INTO skus (id, product_id, color, material, size, quantity_on_hand, low_stock_threshold, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (product_id, color, material, size) DO UPDATE SET
			quantity_on_hand = EXCLUDED.quantity_on_hand,
			low_stock_threshold = EXCLUDED.low_stock_threshold,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + skuColumns

	result, err := scanSKU(r.pool.QueryRow(ctx, query,
		sku.ID,
		sku.ProductID,
		sku.Color,
		sku.Material,
		sku.Size,
		sku.QuantityOnHand,
		sku.LowStockThreshold,
		sku.UpdatedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("upsert sku: %w", err)
	}

	return result, nil
}

// TryDecrement subtracts amount only if the quantity on hand covers it. The
// guard and the subtraction are one UPDATE, so two concurrent calls can never
// both pass a stale read and jointly oversell. On shortfall the quantity
// actually available is fetched and returned in the typed error.
func (r *StockRepository) TryDecrement(ctx context.Context, key domain.SKUKey, amount int) (int, int, error) {
	query := `
		UPDATE skus
		SET quantity_on_hand = quantity_on_hand - $1, updated_at = NOW()
		WHERE product_id = $2 AND color = $3 AND material = $4 AND size = $5
		  AND quantity_on_hand >= $1
		RETURNING quantity_on_hand`

	var next int
	err := r.pool.QueryRow(ctx, query, amount, key.ProductID, key.Color, key.Material, key.Size).Scan(&next)
	if err == nil {
		return next + amount, next, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, fmt.Errorf("try decrement sku: %w", err)
	}

	// The guard failed: either the SKU does not exist or stock is short.
	sku, getErr := r.GetSKU(ctx, key)
	if getErr != nil {
		return 0, 0, getErr
	}

	return 0, 0, &domain.InsufficientStockError{
		Key:       key,
		Requested: amount,
		Available: sku.QuantityOnHand,
	}
}

// Adjust applies delta in either direction; a negative delta that would cross
// zero fails with the same typed error as TryDecrement.
func (r *StockRepository) Adjust(ctx context.Context, key domain.SKUKey, delta int) (int, int, error) {
	query := `
		UPDATE skus
		SET quantity_on_hand = quantity_on_hand + $1, updated_at = NOW()
		WHERE product_id = $2 AND color = $3 AND material = $4 AND size = $5
		  AND quantity_on_hand + $1 >= 0
		RETURNING quantity_on_hand`

	var next int
	err := r.pool.QueryRow(ctx, query, delta, key.ProductID, key.Color, key.Material, key.Size).Scan(&next)
	if err == nil {
		return next - delta, next, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, fmt.Errorf("adjust sku: %w", err)
	}

	sku, getErr := r.GetSKU(ctx, key)
	if getErr != nil {
		return 0, 0, getErr
	}

	return 0, 0, &domain.InsufficientStockError{
		Key:       key,
		Requested: -delta,
		Available: sku.QuantityOnHand,
	}
}

// ListLowStock returns SKUs at or below their low stock threshold, lowest first.
func (r *StockRepository) ListLowStock(ctx context.Context, p pagination.Params) ([]domain.SKU, int, error) {
	query := `
		SELECT ` + skuColumns + `, count(*) OVER() AS total_count
		FROM skus
		WHERE quantity_on_hand <= low_stock_threshold
		ORDER BY quantity_on_hand ASC, updated_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, p.PerPage, p.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list low stock: %w", err)
	}
	defer rows.Close()

	var (
		skus       []domain.SKU
		totalCount int
	)
	for rows.Next() {
		var s domain.SKU
		if err := rows.Scan(
			&s.ID,
			&s.ProductID,
			&s.Color,
			&s.Material,
			&s.Size,
			&s.QuantityOnHand,
			&s.LowStockThreshold,
			&s.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan low stock row: %w", err)
		}
		skus = append(skus, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate low stock rows: %w", err)
	}

	if skus == nil {
		skus = []domain.SKU{}
	}
	return skus, totalCount, nil
}
