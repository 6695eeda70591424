package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ecomstack/storefront/internal/domain"
	"github.com/ecomstack/storefront/internal/payment"
	"github.com/ecomstack/storefront/internal/repository"
	apperrors "github.com/ecomstack/storefront/pkg/errors"
	"github.com/ecomstack/storefront/pkg/pagination"
)

// OrderService moves orders through their lifecycle. Transitions are
// validated against the state machine and applied conditionally on the
// current status, so two concurrent transitions cannot both win.
type OrderService struct {
	orders   repository.OrderRepository
	ledger   stockLedger
	provider payment.Provider
	logger   *slog.Logger
}

// NewOrderService creates the order lifecycle service.
func NewOrderService(orders repository.OrderRepository, ledger stockLedger, provider payment.Provider, logger *slog.Logger) *OrderService {
	return &OrderService{orders: orders, ledger: ledger, provider: provider, logger: logger}
}

// GetByID returns one order.
func (s *OrderService) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, err
	}
	return order, nil
}

// ListByUser returns a user's orders, newest first.
func (s *OrderService) ListByUser(ctx context.Context, userID string, p pagination.Params) ([]domain.Order, int, error) {
	if userID == "" {
		return nil, 0, apperrors.InvalidInput("user id is required")
	}
	return s.orders.ListByUser(ctx, userID, p)
}

// Ship marks a paid order as shipped.
func (s *OrderService) Ship(ctx context.Context, id string) (*domain.Order, error) {
	return s.transition(ctx, id, domain.OrderShipped)
}

// Deliver marks a shipped order as delivered.
func (s *OrderService) Deliver(ctx context.Context, id string) (*domain.Order, error) {
	return s.transition(ctx, id, domain.OrderDelivered)
}

// Refund refunds the payment, returns the order's units to the ledger and
// marks the order refunded. The status transition is claimed first so a
// double refund request cannot move money or stock twice.
func (s *OrderService) Refund(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransitionOrder(order.Status, domain.OrderRefunded) {
		return nil, transitionError(order.Status, domain.OrderRefunded)
	}

	if err := s.orders.UpdateStatus(ctx, id, order.Status, domain.OrderRefunded); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, transitionError(order.Status, domain.OrderRefunded)
		}
		return nil, err
	}

	if err := s.provider.Refund(ctx, order.PaymentID, order.Total); err != nil {
		// The order is already marked refunded; money follows manually.
		s.logger.ErrorContext(ctx, "provider refund failed, needs manual follow-up",
			slog.String("order_id", order.ID),
			slog.String("payment_ref", order.PaymentID),
			slog.String("error", err.Error()),
		)
	}

	for i := range order.Lines {
		line := &order.Lines[i]
		prev, next, err := s.ledger.Increment(ctx, line.Key(), line.Quantity, domain.MovementReturn)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to return refunded units to stock",
				slog.String("order_id", order.ID),
				slog.String("sku", line.Key().String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.ledger.RecordMovement(ctx, &domain.StockMovement{
			ProductID:        line.ProductID,
			Color:            line.Color,
			Material:         line.Material,
			Size:             line.Size,
			Type:             domain.MovementReturn,
			QuantityDelta:    line.Quantity,
			PreviousQuantity: prev,
			NewQuantity:      next,
			Reason:           "order refund",
			RelatedOrderID:   &order.ID,
			CreatedAt:        time.Now().UTC(),
		})
	}

	order.Status = domain.OrderRefunded
	return order, nil
}

func (s *OrderService) transition(ctx context.Context, id, to string) (*domain.Order, error) {
	order, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransitionOrder(order.Status, to) {
		return nil, transitionError(order.Status, to)
	}

	if err := s.orders.UpdateStatus(ctx, id, order.Status, to); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, transitionError(order.Status, to)
		}
		return nil, err
	}

	order.Status = to
	return order, nil
}

func transitionError(from, to string) error {
	return &apperrors.AppError{
		Code:    "INVALID_TRANSITION",
		Message: fmt.Sprintf("order cannot move from %s to %s", from, to),
		Status:  http.StatusConflict,
		Err:     apperrors.ErrConflict,
	}
}
