package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ecomstack/storefront/internal/domain"
	"github.com/ecomstack/storefront/pkg/database"
	apperrors "github.com/ecomstack/storefront/pkg/errors"
	"github.com/ecomstack/storefront/pkg/pagination"
)

// OrderRepository stores placed orders. Order lines are kept as a JSONB
// snapshot; they are immutable once the order exists.
type OrderRepository struct {
	pool database.DBTX
}

// NewOrderRepository creates a PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

const orderColumns = `id, user_id, status, lines, subtotal, discount_amount, coupon_code, total, currency, payment_id, created_at, updated_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o        domain.Order
		rawLines []byte
	)
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.Status,
		&rawLines,
		&o.Subtotal,
		&o.DiscountAmount,
		&o.CouponCode,
		&o.Total,
		&o.Currency,
		&o.PaymentID,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rawLines, &o.Lines); err != nil {
		return nil, fmt.Errorf("decode order lines: %w", err)
	}
	return &o, nil
}

// Create inserts a new order.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	lines, err := json.Marshal(o.Lines)
	if err != nil {
		return fmt.Errorf("encode order lines: %w", err)
	}

	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = r.pool.Exec(ctx, query,
		o.ID,
		o.UserID,
		o.Status,
		lines,
		o.Subtotal,
		o.DiscountAmount,
		o.CouponCode,
		o.Total,
		o.Currency,
		o.PaymentID,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}

	return nil
}

// GetByID retrieves one order.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	return order, nil
}

// ListByUser returns a user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, p pagination.Params) ([]domain.Order, int, error) {
	query := `
		SELECT ` + orderColumns + `, count(*) OVER() AS total_count
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, userID, p.PerPage, p.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders by user: %w", err)
	}
	defer rows.Close()

	var (
		orders     []domain.Order
		totalCount int
	)
	for rows.Next() {
		var (
			o        domain.Order
			rawLines []byte
		)
		if err := rows.Scan(
			&o.ID,
			&o.UserID,
			&o.Status,
			&rawLines,
			&o.Subtotal,
			&o.DiscountAmount,
			&o.CouponCode,
			&o.Total,
			&o.Currency,
			&o.PaymentID,
			&o.CreatedAt,
			&o.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}
		if err := json.Unmarshal(rawLines, &o.Lines); err != nil {
			return nil, 0, fmt.Errorf("decode order lines: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}

	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, totalCount, nil
}

// UpdateStatus moves an order from one status to another. The current status
// is part of the WHERE clause, so a concurrent transition that already moved
// the order away makes this a no-op reported as a conflict.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id, from, to string) error {
	query := `
		UPDATE orders
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`

	tag, err := r.pool.Exec(ctx, query, id, from, to)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing order from a lost transition race.
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return apperrors.ErrConflict
	}

	return nil
}
