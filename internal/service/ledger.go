package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/ecomstack/storefront/internal/domain"
	"github.com/ecomstack/storefront/internal/event"
	"github.com/ecomstack/storefront/internal/realtime"
	"github.com/ecomstack/storefront/internal/repository"
	"github.com/ecomstack/storefront/pkg/database"
	apperrors "github.com/ecomstack/storefront/pkg/errors"
	"github.com/ecomstack/storefront/pkg/pagination"
)

// ledgerMaxRetries bounds retries of a mutation that lost a serialization
// race. The conditional updates themselves are single statements, so retries
// are rare and cheap.
const ledgerMaxRetries = 3

// restockWindowDays is the trailing sales window used for restock suggestions.
const restockWindowDays = 14

// RestockListener is notified after a product goes from zero to positive
// stock. The alert service implements it.
type RestockListener interface {
	OnRestock(ctx context.Context, productID string, restockedSizes []string) (int, error)
}

// AdjustCommand is a manual ledger correction.
type AdjustCommand struct {
	Key         domain.SKUKey
	Delta       int
	Type        string
	Reason      string
	ActorUserID string
}

// RestockSuggestion pairs a low SKU with a suggested reorder quantity derived
// from its recent sales.
type RestockSuggestion struct {
	SKU               domain.SKU `json:"sku"`
	SoldLast14Days    int        `json:"sold_last_14_days"`
	SuggestedQuantity int        `json:"suggested_quantity"`
}

// LedgerService owns every stock quantity mutation. All writes go through the
// repository's conditional updates; this layer adds conflict retry, movement
// logging, restock detection and fan-out.
type LedgerService struct {
	stocks      repository.StockRepository
	movements   repository.MovementRepository
	publisher   event.Publisher
	broadcaster realtime.Broadcaster
	restocks    RestockListener
	logger      *slog.Logger
}

// NewLedgerService creates the stock ledger service. restocks may be nil when
// no alert delivery is wired.
func NewLedgerService(
	stocks repository.StockRepository,
	movements repository.MovementRepository,
	publisher event.Publisher,
	broadcaster realtime.Broadcaster,
	restocks RestockListener,
	logger *slog.Logger,
) *LedgerService {
	return &LedgerService{
		stocks:      stocks,
		movements:   movements,
		publisher:   publisher,
		broadcaster: broadcaster,
		restocks:    restocks,
		logger:      logger,
	}
}

// GetSKU returns the ledger entry for one variant.
func (s *LedgerService) GetSKU(ctx context.Context, key domain.SKUKey) (*domain.SKU, error) {
	if key.ProductID == "" || key.Size == "" {
		return nil, apperrors.InvalidInput("product id and size are required")
	}
	return s.stocks.GetSKU(ctx, key)
}

// ListByProduct returns all variants of a product with their quantities.
func (s *LedgerService) ListByProduct(ctx context.Context, productID string) ([]domain.SKU, error) {
	if productID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}
	return s.stocks.ListByProduct(ctx, productID)
}

// UpsertSKU seeds or replaces a ledger entry.
func (s *LedgerService) UpsertSKU(ctx context.Context, sku *domain.SKU) (*domain.SKU, error) {
	if sku.ProductID == "" || sku.Size == "" {
		return nil, apperrors.InvalidInput("product id and size are required")
	}
	if sku.QuantityOnHand < 0 {
		return nil, apperrors.InvalidInput("quantity on hand cannot be negative")
	}
	if sku.ID == "" {
		sku.ID = uuid.New().String()
	}
	sku.UpdatedAt = time.Now().UTC()

	return s.stocks.UpsertSKU(ctx, sku)
}

// retry runs op, retrying only on serialization failures. Everything else is
// permanent and returned as-is.
func (s *LedgerService) retry(ctx context.Context, op func() (int, error)) (int, error) {
	attempt := func() (int, error) {
		n, err := op()
		if err != nil {
			if database.IsSerializationFailure(err) {
				return 0, err
			}
			return 0, backoff.Permanent(err)
		}
		return n, nil
	}

	return backoff.Retry(ctx, attempt,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(ledgerMaxRetries),
	)
}

// Decrement atomically takes amount units off the shelf, retrying lost
// serialization races. On success the new quantity is fanned out; movement
// logging is the caller's responsibility because only the caller knows what
// the decrement was for.
func (s *LedgerService) Decrement(ctx context.Context, key domain.SKUKey, amount int, movementType string) (int, int, error) {
	if amount <= 0 {
		return 0, 0, apperrors.InvalidInput("decrement amount must be positive")
	}

	var prev int
	next, err := s.retry(ctx, func() (int, error) {
		p, n, err := s.stocks.TryDecrement(ctx, key, amount)
		if err != nil {
			return 0, err
		}
		prev = p
		return n, nil
	})
	if err != nil {
		return 0, 0, err
	}

	s.fanOut(ctx, key, prev, next, movementType)
	return prev, next, nil
}

// Increment atomically puts amount units back, used for compensation and
// returns. Restocks (a zero-to-positive transition) trigger alert delivery.
func (s *LedgerService) Increment(ctx context.Context, key domain.SKUKey, amount int, movementType string) (int, int, error) {
	if amount <= 0 {
		return 0, 0, apperrors.InvalidInput("increment amount must be positive")
	}

	var prev int
	next, err := s.retry(ctx, func() (int, error) {
		p, n, err := s.stocks.Adjust(ctx, key, amount)
		if err != nil {
			return 0, err
		}
		prev = p
		return n, nil
	})
	if err != nil {
		return 0, 0, err
	}

	s.fanOut(ctx, key, prev, next, movementType)
	if prev == 0 && next > 0 {
		s.notifyRestock(ctx, key.ProductID, []string{key.Size})
	}
	return prev, next, nil
}

// Adjust applies a manual correction, records it in the movement log and fans
// the new quantity out. The movement type must be one of the known types.
func (s *LedgerService) Adjust(ctx context.Context, cmd AdjustCommand) (*domain.SKU, error) {
	if cmd.Delta == 0 {
		return nil, apperrors.InvalidInput("delta cannot be zero")
	}
	if !domain.IsValidMovementType(cmd.Type) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid movement type %q", cmd.Type))
	}
	if cmd.Reason == "" {
		return nil, apperrors.InvalidInput("reason is required")
	}

	var prev int
	next, err := s.retry(ctx, func() (int, error) {
		p, n, err := s.stocks.Adjust(ctx, cmd.Key, cmd.Delta)
		if err != nil {
			return 0, err
		}
		prev = p
		return n, nil
	})
	if err != nil {
		return nil, err
	}

	actor := cmd.ActorUserID
	s.RecordMovement(ctx, &domain.StockMovement{
		ProductID:        cmd.Key.ProductID,
		Color:            cmd.Key.Color,
		Material:         cmd.Key.Material,
		Size:             cmd.Key.Size,
		Type:             cmd.Type,
		QuantityDelta:    cmd.Delta,
		PreviousQuantity: prev,
		NewQuantity:      next,
		Reason:           cmd.Reason,
		ActorUserID:      &actor,
		CreatedAt:        time.Now().UTC(),
	})

	s.fanOut(ctx, cmd.Key, prev, next, cmd.Type)
	if prev == 0 && next > 0 {
		s.notifyRestock(ctx, cmd.Key.ProductID, []string{cmd.Key.Size})
	}

	return s.stocks.GetSKU(ctx, cmd.Key)
}

// RecordMovement appends to the audit log, best effort. The quantity change
// has already committed, so a logging failure must not surface as a mutation
// failure; it is logged and the movement is lost.
func (s *LedgerService) RecordMovement(ctx context.Context, m *domain.StockMovement) {
	if _, err := s.movements.Record(ctx, m); err != nil {
		s.logger.ErrorContext(ctx, "failed to record stock movement",
			slog.String("sku", m.Key().String()),
			slog.String("type", m.Type),
			slog.Int("delta", m.QuantityDelta),
			slog.String("error", err.Error()),
		)
	}
}

// fanOut publishes the new quantity to the event bus and the realtime hub.
func (s *LedgerService) fanOut(ctx context.Context, key domain.SKUKey, prev, next int, movementType string) {
	s.publisher.StockUpdated(ctx, event.StockUpdatedPayload{
		ProductID:        key.ProductID,
		Color:            key.Color,
		Material:         key.Material,
		Size:             key.Size,
		PreviousQuantity: prev,
		NewQuantity:      next,
		MovementType:     movementType,
	})
	s.broadcaster.BroadcastStockUpdate(ctx, realtime.StockUpdate{
		ProductID: key.ProductID,
		Color:     key.Color,
		Material:  key.Material,
		Size:      key.Size,
		Quantity:  next,
		InStock:   next > 0,
	})
}

func (s *LedgerService) notifyRestock(ctx context.Context, productID string, sizes []string) {
	s.publisher.StockRestocked(ctx, event.StockRestockedPayload{ProductID: productID, Sizes: sizes})
	s.broadcaster.BroadcastRestock(ctx, realtime.Restock{ProductID: productID, Sizes: sizes})

	if s.restocks == nil {
		return
	}
	notified, err := s.restocks.OnRestock(ctx, productID, sizes)
	if err != nil {
		s.logger.ErrorContext(ctx, "restock alert delivery failed",
			slog.String("product_id", productID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.InfoContext(ctx, "restock alerts delivered",
		slog.String("product_id", productID),
		slog.Int("notified", notified),
	)
}

// ListLowStock returns SKUs at or below their threshold.
func (s *LedgerService) ListLowStock(ctx context.Context, p pagination.Params) ([]domain.SKU, int, error) {
	return s.stocks.ListLowStock(ctx, p)
}

// RestockSuggestions pairs each low SKU with its recent sales and a suggested
// reorder quantity that covers the trailing sales window plus the threshold
// buffer.
func (s *LedgerService) RestockSuggestions(ctx context.Context, p pagination.Params) ([]RestockSuggestion, int, error) {
	low, total, err := s.stocks.ListLowStock(ctx, p)
	if err != nil {
		return nil, 0, err
	}
	if len(low) == 0 {
		return []RestockSuggestion{}, total, nil
	}

	seen := make(map[string]struct{}, len(low))
	productIDs := make([]string, 0, len(low))
	for i := range low {
		if _, ok := seen[low[i].ProductID]; ok {
			continue
		}
		seen[low[i].ProductID] = struct{}{}
		productIDs = append(productIDs, low[i].ProductID)
	}

	velocity, err := s.movements.SaleVelocity(ctx, productIDs, restockWindowDays)
	if err != nil {
		return nil, 0, err
	}

	suggestions := make([]RestockSuggestion, 0, len(low))
	for i := range low {
		sold := velocity[low[i].ProductID]
		suggested := sold + low[i].LowStockThreshold - low[i].QuantityOnHand
		if suggested < low[i].LowStockThreshold {
			suggested = low[i].LowStockThreshold
		}
		suggestions = append(suggestions, RestockSuggestion{
			SKU:               low[i],
			SoldLast14Days:    sold,
			SuggestedQuantity: suggested,
		})
	}

	return suggestions, total, nil
}

// ListMovements returns the audit log of a product.
func (s *LedgerService) ListMovements(ctx context.Context, productID string, f domain.MovementFilter, p pagination.Params) ([]domain.StockMovement, int, error) {
	if productID == "" {
		return nil, 0, apperrors.InvalidInput("product id is required")
	}
	if f.Type != "" && !domain.IsValidMovementType(f.Type) {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("invalid movement type %q", f.Type))
	}
	return s.movements.ListByProduct(ctx, productID, f, p)
}

// IsInsufficientStock reports whether err is a shortfall from the ledger.
func IsInsufficientStock(err error) bool {
	var ise *domain.InsufficientStockError
	return errors.As(err, &ise)
}
