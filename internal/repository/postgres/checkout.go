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
)

// CheckoutRepository stores checkout attempts. The rolled_back column is the
// idempotence guard for compensation: whichever caller flips it first owns
// the compensating writes.
type CheckoutRepository struct {
	pool database.DBTX
}

// NewCheckoutRepository creates a PostgreSQL-backed checkout repository.
func NewCheckoutRepository(pool database.DBTX) *CheckoutRepository {
	return &CheckoutRepository{pool: pool}
}

const checkoutColumns = `id, user_id, lines, subtotal, discount_amount, coupon_id, coupon_code, total, currency, status, payment_ref, order_id, rolled_back, created_at, updated_at`

// Create inserts a new checkout attempt.
func (r *CheckoutRepository) Create(ctx context.Context, c *domain.Checkout) error {
	lines, err := json.Marshal(c.Lines)
	if err != nil {
		return fmt.Errorf("encode checkout lines: %w", err)
	}

	query := `
		INSERT INTO checkouts (` + checkoutColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err = r.pool.Exec(ctx, query,
		c.ID,
		c.UserID,
		lines,
		c.Subtotal,
		c.DiscountAmount,
		c.CouponID,
		c.CouponCode,
		c.Total,
		c.Currency,
		c.Status,
		c.PaymentRef,
		c.OrderID,
		c.RolledBack,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create checkout: %w", err)
	}

	return nil
}

// GetByID retrieves one checkout attempt.
func (r *CheckoutRepository) GetByID(ctx context.Context, id string) (*domain.Checkout, error) {
	query := `SELECT ` + checkoutColumns + ` FROM checkouts WHERE id = $1`

	var (
		c        domain.Checkout
		rawLines []byte
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.UserID,
		&rawLines,
		&c.Subtotal,
		&c.DiscountAmount,
		&c.CouponID,
		&c.CouponCode,
		&c.Total,
		&c.Currency,
		&c.Status,
		&c.PaymentRef,
		&c.OrderID,
		&c.RolledBack,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get checkout: %w", err)
	}
	if err := json.Unmarshal(rawLines, &c.Lines); err != nil {
		return nil, fmt.Errorf("decode checkout lines: %w", err)
	}

	return &c, nil
}

// SetStatus records the outcome of a checkout attempt.
func (r *CheckoutRepository) SetStatus(ctx context.Context, id, status string) error {
	return r.setColumn(ctx, id, "status", status, "set checkout status")
}

// SetOrderID links the order created for a completed checkout.
func (r *CheckoutRepository) SetOrderID(ctx context.Context, id, orderID string) error {
	return r.setColumn(ctx, id, "order_id", orderID, "set checkout order id")
}

// SetPaymentRef records the provider's payment reference once a charge has
// been attempted, so webhook reconciliation can find the checkout.
func (r *CheckoutRepository) SetPaymentRef(ctx context.Context, id, paymentRef string) error {
	return r.setColumn(ctx, id, "payment_ref", paymentRef, "set checkout payment ref")
}

func (r *CheckoutRepository) setColumn(ctx context.Context, id, column string, value any, op string) error {
	query := fmt.Sprintf(`UPDATE checkouts SET %s = $2, updated_at = NOW() WHERE id = $1`, column)

	tag, err := r.pool.Exec(ctx, query, id, value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// ClaimRollback flips rolled_back to true exactly once and reports whether
// this caller won the flip.
func (r *CheckoutRepository) ClaimRollback(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE checkouts
		SET rolled_back = TRUE, updated_at = NOW()
		WHERE id = $1 AND rolled_back = FALSE`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("claim checkout rollback: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// ClaimCompletion moves the checkout from pending_payment to completed exactly
// once and reports whether this caller won the transition. Duplicate success
// webhooks and a webhook racing the request path all funnel through this; only
// the winner creates the order.
func (r *CheckoutRepository) ClaimCompletion(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE checkouts
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3 AND rolled_back = FALSE`

	tag, err := r.pool.Exec(ctx, query, id, domain.CheckoutCompleted, domain.CheckoutPendingPayment)
	if err != nil {
		return false, fmt.Errorf("claim checkout completion: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}
