package service

import (
	"context"
	"io"
	"log/slog"

	"github.com/stretchr/testify/mock"

	"github.com/ecomstack/storefront/internal/domain"
	"github.com/ecomstack/storefront/internal/event"
	"github.com/ecomstack/storefront/internal/notifier"
	"github.com/ecomstack/storefront/internal/payment"
	"github.com/ecomstack/storefront/internal/realtime"
	"github.com/ecomstack/storefront/pkg/pagination"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// --- Stock repository mock ---

type mockStockRepo struct {
	mock.Mock
}

func (m *mockStockRepo) GetSKU(ctx context.Context, key domain.SKUKey) (*domain.SKU, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SKU), args.Error(1)
}

func (m *mockStockRepo) ListByProduct(ctx context.Context, productID string) ([]domain.SKU, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SKU), args.Error(1)
}

func (m *mockStockRepo) UpsertSKU(ctx context.Context, sku *domain.SKU) (*domain.SKU, error) {
	args := m.Called(ctx, sku)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SKU), args.Error(1)
}

func (m *mockStockRepo) TryDecrement(ctx context.Context, key domain.SKUKey, amount int) (int, int, error) {
	args := m.Called(ctx, key, amount)
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *mockStockRepo) Adjust(ctx context.Context, key domain.SKUKey, delta int) (int, int, error) {
	args := m.Called(ctx, key, delta)
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *mockStockRepo) ListLowStock(ctx context.Context, p pagination.Params) ([]domain.SKU, int, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.SKU), args.Int(1), args.Error(2)
}

// --- Movement repository mock ---

type mockMovementRepo struct {
	mock.Mock
}

func (m *mockMovementRepo) Record(ctx context.Context, mv *domain.StockMovement) (string, error) {
	args := m.Called(ctx, mv)
	return args.String(0), args.Error(1)
}

func (m *mockMovementRepo) ListByProduct(ctx context.Context, productID string, f domain.MovementFilter, p pagination.Params) ([]domain.StockMovement, int, error) {
	args := m.Called(ctx, productID, f, p)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.StockMovement), args.Int(1), args.Error(2)
}

func (m *mockMovementRepo) SaleVelocity(ctx context.Context, productIDs []string, days int) (map[string]int, error) {
	args := m.Called(ctx, productIDs, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int), args.Error(1)
}

// --- Coupon repository mock ---

type mockCouponRepo struct {
	mock.Mock
}

func (m *mockCouponRepo) Create(ctx context.Context, c *domain.Coupon) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *mockCouponRepo) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Coupon), args.Error(1)
}

func (m *mockCouponRepo) TryReserveUse(ctx context.Context, couponID string) (*domain.Coupon, error) {
	args := m.Called(ctx, couponID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Coupon), args.Error(1)
}

func (m *mockCouponRepo) ReleaseUse(ctx context.Context, couponID string) error {
	args := m.Called(ctx, couponID)
	return args.Error(0)
}

func (m *mockCouponRepo) SetActive(ctx context.Context, couponID string, active bool) error {
	args := m.Called(ctx, couponID, active)
	return args.Error(0)
}

// --- Order repository mock ---

type mockOrderRepo struct {
	mock.Mock
}

func (m *mockOrderRepo) Create(ctx context.Context, o *domain.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *mockOrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepo) ListByUser(ctx context.Context, userID string, p pagination.Params) ([]domain.Order, int, error) {
	args := m.Called(ctx, userID, p)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Order), args.Int(1), args.Error(2)
}

func (m *mockOrderRepo) UpdateStatus(ctx context.Context, id, from, to string) error {
	args := m.Called(ctx, id, from, to)
	return args.Error(0)
}

// --- Checkout repository mock ---

type mockCheckoutRepo struct {
	mock.Mock
}

func (m *mockCheckoutRepo) Create(ctx context.Context, c *domain.Checkout) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *mockCheckoutRepo) GetByID(ctx context.Context, id string) (*domain.Checkout, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Checkout), args.Error(1)
}

func (m *mockCheckoutRepo) SetStatus(ctx context.Context, id, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *mockCheckoutRepo) SetOrderID(ctx context.Context, id, orderID string) error {
	args := m.Called(ctx, id, orderID)
	return args.Error(0)
}

func (m *mockCheckoutRepo) SetPaymentRef(ctx context.Context, id, paymentRef string) error {
	args := m.Called(ctx, id, paymentRef)
	return args.Error(0)
}

func (m *mockCheckoutRepo) ClaimRollback(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockCheckoutRepo) ClaimCompletion(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// --- Alert repository mock ---

type mockAlertRepo struct {
	mock.Mock
}

func (m *mockAlertRepo) Upsert(ctx context.Context, sub *domain.StockAlertSubscription) (*domain.StockAlertSubscription, error) {
	args := m.Called(ctx, sub)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StockAlertSubscription), args.Error(1)
}

func (m *mockAlertRepo) ListPending(ctx context.Context, productID string, restockedSizes []string) ([]domain.StockAlertSubscription, error) {
	args := m.Called(ctx, productID, restockedSizes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.StockAlertSubscription), args.Error(1)
}

func (m *mockAlertRepo) ClaimNotify(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// --- Ledger slice mock (for checkout and order tests) ---

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) Decrement(ctx context.Context, key domain.SKUKey, amount int, movementType string) (int, int, error) {
	args := m.Called(ctx, key, amount, movementType)
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *mockLedger) Increment(ctx context.Context, key domain.SKUKey, amount int, movementType string) (int, int, error) {
	args := m.Called(ctx, key, amount, movementType)
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *mockLedger) RecordMovement(ctx context.Context, mv *domain.StockMovement) {
	m.Called(ctx, mv)
}

// --- Coupon slice mock ---

type mockCoupons struct {
	mock.Mock
}

func (m *mockCoupons) Validate(ctx context.Context, code string, subtotal int64) (*domain.Coupon, int64, error) {
	args := m.Called(ctx, code, subtotal)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).(*domain.Coupon), args.Get(1).(int64), args.Error(2)
}

func (m *mockCoupons) Reserve(ctx context.Context, couponID string) (*domain.Coupon, error) {
	args := m.Called(ctx, couponID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Coupon), args.Error(1)
}

func (m *mockCoupons) Release(ctx context.Context, couponID string) error {
	args := m.Called(ctx, couponID)
	return args.Error(0)
}

// --- Payment provider mock ---

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Charge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.ChargeResult), args.Error(1)
}

func (m *mockProvider) Refund(ctx context.Context, paymentRef string, amount int64) error {
	args := m.Called(ctx, paymentRef, amount)
	return args.Error(0)
}

// --- Notification sender mock ---

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, n notifier.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// --- Event publisher and broadcaster spies ---

type spyPublisher struct {
	stockUpdated   []event.StockUpdatedPayload
	stockRestocked []event.StockRestockedPayload
	orderPaid      []event.OrderPaidPayload
	couponRedeemed []event.CouponRedeemedPayload
}

func (s *spyPublisher) StockUpdated(_ context.Context, p event.StockUpdatedPayload) {
	s.stockUpdated = append(s.stockUpdated, p)
}

func (s *spyPublisher) StockRestocked(_ context.Context, p event.StockRestockedPayload) {
	s.stockRestocked = append(s.stockRestocked, p)
}

func (s *spyPublisher) OrderPaid(_ context.Context, p event.OrderPaidPayload) {
	s.orderPaid = append(s.orderPaid, p)
}

func (s *spyPublisher) CouponRedeemed(_ context.Context, p event.CouponRedeemedPayload) {
	s.couponRedeemed = append(s.couponRedeemed, p)
}

type spyBroadcaster struct {
	updates  []realtime.StockUpdate
	restocks []realtime.Restock
}

func (s *spyBroadcaster) BroadcastStockUpdate(_ context.Context, u realtime.StockUpdate) {
	s.updates = append(s.updates, u)
}

func (s *spyBroadcaster) BroadcastRestock(_ context.Context, r realtime.Restock) {
	s.restocks = append(s.restocks, r)
}

type spyRestockListener struct {
	calls []string
}

func (s *spyRestockListener) OnRestock(_ context.Context, productID string, _ []string) (int, error) {
	s.calls = append(s.calls, productID)
	return 1, nil
}
