package postgres

import (
	"context"
	"fmt"

	"github.com/ecomstack/storefront/internal/domain"
	"github.com/ecomstack/storefront/pkg/database"
)

// AlertRepository stores restock alert subscriptions. A size-agnostic
// subscription is stored with an empty size; the unique key
// (user_id, product_id, size) makes re-subscribing an upsert.
type AlertRepository struct {
	pool database.DBTX
}

// NewAlertRepository creates a PostgreSQL-backed alert repository.
func NewAlertRepository(pool database.DBTX) *AlertRepository {
	return &AlertRepository{pool: pool}
}

// Upsert creates a subscription or reactivates an existing one. Reactivation
// clears the notified flag so the subscriber is eligible for the next restock.
func (r *AlertRepository) Upsert(ctx context.Context, sub *domain.StockAlertSubscription) (*domain.StockAlertSubscription, error) {
	query := `
		INSERT INTO stock_alerts (id, user_id, product_id, size, notified, created_at)
		VALUES ($1, $2, $3, COALESCE($4, ''), FALSE, $5)
		ON CONFLICT (user_id, product_id, size) DO UPDATE SET
			notified = FALSE,
			notified_at = NULL
		RETURNING id, user_id, product_id, NULLIF(size, ''), notified, created_at, notified_at`

	var out domain.StockAlertSubscription
	err := r.pool.QueryRow(ctx, query,
		sub.ID,
		sub.UserID,
		sub.ProductID,
		sub.Size,
		sub.CreatedAt,
	).Scan(
		&out.ID,
		&out.UserID,
		&out.ProductID,
		&out.Size,
		&out.Notified,
		&out.CreatedAt,
		&out.NotifiedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert stock alert: %w", err)
	}

	return &out, nil
}

// ListPending returns not-yet-notified subscriptions for the product whose
// size criterion is empty or matches one of the restocked sizes.
func (r *AlertRepository) ListPending(ctx context.Context, productID string, restockedSizes []string) ([]domain.StockAlertSubscription, error) {
	query := `
		SELECT id, user_id, product_id, NULLIF(size, ''), notified, created_at, notified_at
		FROM stock_alerts
		WHERE product_id = $1
		  AND notified = FALSE
		  AND (size = '' OR size = ANY($2))
		ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, productID, restockedSizes)
	if err != nil {
		return nil, fmt.Errorf("list pending stock alerts: %w", err)
	}
	defer rows.Close()

	var subs []domain.StockAlertSubscription
	for rows.Next() {
		var s domain.StockAlertSubscription
		if err := rows.Scan(
			&s.ID,
			&s.UserID,
			&s.ProductID,
			&s.Size,
			&s.Notified,
			&s.CreatedAt,
			&s.NotifiedAt,
		); err != nil {
			return nil, fmt.Errorf("scan stock alert row: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock alert rows: %w", err)
	}

	if subs == nil {
		subs = []domain.StockAlertSubscription{}
	}
	return subs, nil
}

// ClaimNotify flips notified to true if it was still false. Only the caller
// that wins the flip sends the notification, so a subscriber is notified at
// most once per restock cycle.
func (r *AlertRepository) ClaimNotify(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE stock_alerts
		SET notified = TRUE, notified_at = NOW()
		WHERE id = $1 AND notified = FALSE`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("claim stock alert notify: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}
