package repository

import (
	"context"

	"github.com/ecomstack/storefront/internal/domain"
	"github.com/ecomstack/storefront/pkg/pagination"
)

// StockRepository is the stock ledger. TryDecrement and Adjust are the only
// mutation paths and both are implemented as single atomic conditional updates
// against the store; callers never read-modify-write quantities.
type StockRepository interface {
	// GetSKU returns the ledger entry for one variant.
	GetSKU(ctx context.Context, key domain.SKUKey) (*domain.SKU, error)

	// ListByProduct returns all SKUs of a product.
	ListByProduct(ctx context.Context, productID string) ([]domain.SKU, error)

	// UpsertSKU creates or replaces a ledger entry (admin seed path).
	UpsertSKU(ctx context.Context, sku *domain.SKU) (*domain.SKU, error)

	// TryDecrement atomically subtracts amount if the quantity on hand covers
	// it, returning the previous and new quantities. On shortfall it returns
	// *domain.InsufficientStockError with the available quantity.
	TryDecrement(ctx context.Context, key domain.SKUKey, amount int) (prev, next int, err error)

	// Adjust atomically applies delta (positive or negative). A negative delta
	// that would cross zero fails like TryDecrement.
	Adjust(ctx context.Context, key domain.SKUKey, delta int) (prev, next int, err error)

	// ListLowStock returns SKUs at or below their low stock threshold.
	ListLowStock(ctx context.Context, p pagination.Params) ([]domain.SKU, int, error)
}

// MovementRepository is the append-only stock movement log.
type MovementRepository interface {
	// Record appends one movement and returns its id.
	Record(ctx context.Context, m *domain.StockMovement) (string, error)

	// ListByProduct returns movements of a product, newest first.
	ListByProduct(ctx context.Context, productID string, f domain.MovementFilter, p pagination.Params) ([]domain.StockMovement, int, error)

	// SaleVelocity returns units sold per product over the trailing number of
	// days, for restock suggestions.
	SaleVelocity(ctx context.Context, productIDs []string, days int) (map[string]int, error)
}

// CouponRepository guards the bounded usage counter of shared discount codes.
type CouponRepository interface {
	Create(ctx context.Context, c *domain.Coupon) error

	// GetByCode looks a coupon up case-insensitively.
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)

	// TryReserveUse atomically increments used_count if capacity remains,
	// returning the updated coupon, or (nil, nil) when the coupon is exhausted.
	TryReserveUse(ctx context.Context, couponID string) (*domain.Coupon, error)

	// ReleaseUse decrements used_count by one, floored at zero.
	ReleaseUse(ctx context.Context, couponID string) error

	SetActive(ctx context.Context, couponID string, active bool) error
}

// OrderRepository stores placed orders.
type OrderRepository interface {
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string, p pagination.Params) ([]domain.Order, int, error)

	// UpdateStatus moves an order between statuses conditionally on the
	// current status, so concurrent transitions cannot double-apply.
	UpdateStatus(ctx context.Context, id, from, to string) error
}

// CheckoutRepository stores checkout attempts for payment reconciliation and
// idempotent compensation.
type CheckoutRepository interface {
	Create(ctx context.Context, c *domain.Checkout) error
	GetByID(ctx context.Context, id string) (*domain.Checkout, error)
	SetStatus(ctx context.Context, id, status string) error
	SetOrderID(ctx context.Context, id, orderID string) error
	SetPaymentRef(ctx context.Context, id, paymentRef string) error

	// ClaimRollback flips rolled_back to true exactly once. It returns true
	// only for the caller that wins the flip; that caller performs the
	// compensating ledger writes.
	ClaimRollback(ctx context.Context, id string) (bool, error)

	// ClaimCompletion moves the checkout from pending_payment to completed
	// exactly once. It returns true only for the caller that wins the
	// transition; that caller creates the order. A rolled-back checkout can
	// never be claimed.
	ClaimCompletion(ctx context.Context, id string) (bool, error)
}

// AlertRepository stores restock alert subscriptions.
type AlertRepository interface {
	// Upsert creates a subscription or reactivates an existing one,
	// resetting notified to false.
	Upsert(ctx context.Context, sub *domain.StockAlertSubscription) (*domain.StockAlertSubscription, error)

	// ListPending returns active, not-yet-notified subscriptions for the
	// product whose size criterion matches one of the restocked sizes (or is
	// size-agnostic).
	ListPending(ctx context.Context, productID string, restockedSizes []string) ([]domain.StockAlertSubscription, error)

	// ClaimNotify flips notified to true if it was false, returning whether
	// this caller won the flip. This is the at-most-once guard.
	ClaimNotify(ctx context.Context, id string) (bool, error)
}
