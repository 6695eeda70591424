package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/ecomstack/storefront/internal/domain"
	"github.com/ecomstack/storefront/pkg/database"
	"github.com/ecomstack/storefront/pkg/pagination"
)

// MovementRepository persists the append-only stock movement log.
type MovementRepository struct {
	pool database.DBTX
}

// NewMovementRepository creates a PostgreSQL-backed movement log.
func NewMovementRepository(pool database.DBTX) *MovementRepository {
	return &MovementRepository{pool: pool}
}

// Record appends one movement and returns its ID. Rows are never updated or
// deleted afterwards.
func (r *MovementRepository) Record(ctx context.Context, m *domain.StockMovement) (string, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	query := `
		INSERT INTO stock_movements (
			id, product_id, color, material, size, type,
			quantity_delta, previous_quantity, new_quantity,
			reason, related_order_id, actor_user_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.pool.Exec(ctx, query,
		m.ID,
		m.ProductID,
		m.Color,
		m.Material,
		m.Size,
		m.Type,
		m.QuantityDelta,
		m.PreviousQuantity,
		m.NewQuantity,
		m.Reason,
		m.RelatedOrderID,
		m.ActorUserID,
		m.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("record stock movement: %w", err)
	}

	return m.ID, nil
}

// ListByProduct returns movements for a product, newest first, with optional
// type, size and time-range filters.
func (r *MovementRepository) ListByProduct(ctx context.Context, productID string, f domain.MovementFilter, p pagination.Params) ([]domain.StockMovement, int, error) {
	var (
		conditions = []string{"product_id = $1"}
		args       = []any{productID}
	)

	if f.Type != "" {
		args = append(args, f.Type)
		conditions = append(conditions, "type = $"+strconv.Itoa(len(args)))
	}
	if f.Size != "" {
		args = append(args, f.Size)
		conditions = append(conditions, "size = $"+strconv.Itoa(len(args)))
	}
	if f.From != nil {
		args = append(args, *f.From)
		conditions = append(conditions, "created_at >= $"+strconv.Itoa(len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		conditions = append(conditions, "created_at <= $"+strconv.Itoa(len(args)))
	}

	args = append(args, p.PerPage, p.Offset)
	query := fmt.Sprintf(`
		SELECT id, product_id, color, material, size, type,
		       quantity_delta, previous_quantity, new_quantity,
		       reason, related_order_id, actor_user_id, created_at,
		       count(*) OVER() AS total_count
		FROM stock_movements
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		strings.Join(conditions, " AND "), len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list stock movements: %w", err)
	}
	defer rows.Close()

	var (
		movements  []domain.StockMovement
		totalCount int
	)
	for rows.Next() {
		var m domain.StockMovement
		if err := rows.Scan(
			&m.ID,
			&m.ProductID,
			&m.Color,
			&m.Material,
			&m.Size,
			&m.Type,
			&m.QuantityDelta,
			&m.PreviousQuantity,
			&m.NewQuantity,
			&m.Reason,
			&m.RelatedOrderID,
			&m.ActorUserID,
			&m.CreatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan stock movement row: %w", err)
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate stock movement rows: %w", err)
	}

	if movements == nil {
		movements = []domain.StockMovement{}
	}
	return movements, totalCount, nil
}

// SaleVelocity returns units sold per product over the trailing number of
// days, counting only sale movements.
func (r *MovementRepository) SaleVelocity(ctx context.Context, productIDs []string, days int) (map[string]int, error) {
	if len(productIDs) == 0 {
		return map[string]int{}, nil
	}

	query := `
		SELECT product_id, COALESCE(SUM(-quantity_delta), 0)
		FROM stock_movements
		WHERE product_id = ANY($1)
		  AND type = $2
		  AND created_at >= NOW() - make_interval(days => $3)
		GROUP BY product_id`

	rows, err := r.pool.Query(ctx, query, productIDs, domain.MovementSale, days)
	if err != nil {
		return nil, fmt.Errorf("sale velocity: %w", err)
	}
	defer rows.Close()

	velocity := make(map[string]int, len(productIDs))
	for rows.Next() {
		var (
			id   string
			sold int
		)
		if err := rows.Scan(&id, &sold); err != nil {
			return nil, fmt.Errorf("scan sale velocity row: %w", err)
		}
		velocity[id] = sold
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sale velocity rows: %w", err)
	}

	return velocity, nil
}
