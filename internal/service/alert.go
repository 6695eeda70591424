package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ecomstack/storefront/internal/domain"
	"github.com/ecomstack/storefront/internal/notifier"
	"github.com/ecomstack/storefront/internal/repository"
	apperrors "github.com/ecomstack/storefront/pkg/errors"
)

// AlertService manages restock alert subscriptions and delivers them when a
// product comes back in stock.
type AlertService struct {
	alerts repository.AlertRepository
	stocks repository.StockRepository
	sender notifier.Sender
	logger *slog.Logger
}

// NewAlertService creates the alert service.
func NewAlertService(
	alerts repository.AlertRepository,
	stocks repository.StockRepository,
	sender notifier.Sender,
	logger *slog.Logger,
) *AlertService {
	return &AlertService{alerts: alerts, stocks: stocks, sender: sender, logger: logger}
}

// Subscribe registers interest in a restock of a product, optionally for one
// size. Re-subscribing after a notification re-arms the subscription.
func (s *AlertService) Subscribe(ctx context.Context, userID, productID string, size *string) (*domain.StockAlertSubscription, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	if productID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}

	// The product must exist in the ledger; subscribing to arbitrary ids
	// would make the pending set unbounded garbage.
	skus, err := s.stocks.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if len(skus) == 0 {
		return nil, apperrors.NotFound("product", productID)
	}
	if size != nil && *size != "" {
		found := false
		for i := range skus {
			if skus[i].Size == *size {
				found = true
				break
			}
		}
		if !found {
			return nil, apperrors.InvalidInput(fmt.Sprintf("product %s has no size %q", productID, *size))
		}
	}

	return s.alerts.Upsert(ctx, &domain.StockAlertSubscription{
		ID:        uuid.New().String(),
		UserID:    userID,
		ProductID: productID,
		Size:      size,
		CreatedAt: time.Now().UTC(),
	})
}

// OnRestock notifies pending subscribers of the product. Each subscription is
// claimed individually before sending, so a subscriber is notified at most
// once per restock cycle even when two restocks race; a send failure for one
// subscriber never blocks the rest. Returns how many notifications went out.
func (s *AlertService) OnRestock(ctx context.Context, productID string, restockedSizes []string) (int, error) {
	pending, err := s.alerts.ListPending(ctx, productID, restockedSizes)
	if err != nil {
		return 0, fmt.Errorf("list pending alerts: %w", err)
	}

	notified := 0
	for i := range pending {
		sub := &pending[i]

		won, err := s.alerts.ClaimNotify(ctx, sub.ID)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to claim alert notification",
				slog.String("subscription_id", sub.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !won {
			continue
		}

		if err := s.sender.Send(ctx, restockNotification(sub, restockedSizes)); err != nil {
			// The claim is already consumed. Losing a send here is the
			// documented trade-off for never notifying twice.
			s.logger.ErrorContext(ctx, "failed to send restock notification",
				slog.String("subscription_id", sub.ID),
				slog.String("user_id", sub.UserID),
				slog.String("error", err.Error()),
			)
			continue
		}
		restockAlertsTotal.Inc()
		notified++
	}

	return notified, nil
}

func restockNotification(sub *domain.StockAlertSubscription, sizes []string) notifier.Notification {
	body := fmt.Sprintf("Product %s is back in stock.", sub.ProductID)
	if sub.Size != nil && *sub.Size != "" {
		body = fmt.Sprintf("Product %s is back in stock in size %s.", sub.ProductID, *sub.Size)
	} else if len(sizes) > 0 {
		body = fmt.Sprintf("Product %s is back in stock (sizes: %v).", sub.ProductID, sizes)
	}
	return notifier.Notification{
		UserID:    sub.UserID,
		Subject:   "Back in stock",
		Body:      body,
		ProductID: sub.ProductID,
	}
}
