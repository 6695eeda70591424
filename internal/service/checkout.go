package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ecomstack/storefront/internal/domain"
	"github.com/ecomstack/storefront/internal/event"
	"github.com/ecomstack/storefront/internal/payment"
	"github.com/ecomstack/storefront/internal/repository"
	apperrors "github.com/ecomstack/storefront/pkg/errors"
)

// CheckoutCommand is one checkout request. PriceSnapshot on each line is what
// the client saw; the server recomputes the total and charges that, never a
// client-submitted sum.
type CheckoutCommand struct {
	UserID     string
	Lines      []domain.CartLine
	CouponCode string
	Currency   string
	Metadata   map[string]string
}

// WebhookEvent is a payment status notification from the provider.
type WebhookEvent struct {
	CheckoutID string `json:"checkout_id"`
	PaymentRef string `json:"payment_ref"`
	Status     string `json:"status"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
}

// stockLedger is the slice of the ledger service checkout needs.
type stockLedger interface {
	Decrement(ctx context.Context, key domain.SKUKey, amount int, movementType string) (int, int, error)
	Increment(ctx context.Context, key domain.SKUKey, amount int, movementType string) (int, int, error)
	RecordMovement(ctx context.Context, m *domain.StockMovement)
}

// couponRedeemer is the slice of the coupon service checkout needs.
type couponRedeemer interface {
	Validate(ctx context.Context, code string, subtotal int64) (*domain.Coupon, int64, error)
	Reserve(ctx context.Context, couponID string) (*domain.Coupon, error)
	Release(ctx context.Context, couponID string) error
}

// decrementedLine remembers one committed decrement so compensation can put
// exactly that amount back.
type decrementedLine struct {
	key    domain.SKUKey
	amount int
}

// CheckoutService coordinates stock, coupon and payment into one checkout.
// Stock is decremented before charging; any later failure compensates by
// putting the stock back and releasing the coupon use. Compensation is
// idempotent: the checkout's rolled_back flag is claimed with a conditional
// update and only the winner performs the reversing writes.
type CheckoutService struct {
	checkouts repository.CheckoutRepository
	orders    repository.OrderRepository
	ledger    stockLedger
	coupons   couponRedeemer
	provider  payment.Provider
	publisher event.Publisher
	logger    *slog.Logger

	paymentTimeout time.Duration
}

// NewCheckoutService creates the checkout coordinator.
func NewCheckoutService(
	checkouts repository.CheckoutRepository,
	orders repository.OrderRepository,
	ledger stockLedger,
	coupons couponRedeemer,
	provider payment.Provider,
	publisher event.Publisher,
	paymentTimeout time.Duration,
	logger *slog.Logger,
) *CheckoutService {
	return &CheckoutService{
		checkouts:      checkouts,
		orders:         orders,
		ledger:         ledger,
		coupons:        coupons,
		provider:       provider,
		publisher:      publisher,
		paymentTimeout: paymentTimeout,
		logger:         logger,
	}
}

func validateCheckout(cmd CheckoutCommand) error {
	if cmd.UserID == "" {
		return apperrors.InvalidInput("user id is required")
	}
	if len(cmd.Lines) == 0 {
		return apperrors.InvalidInput("cart is empty")
	}
	seen := make(map[domain.SKUKey]struct{}, len(cmd.Lines))
	for i := range cmd.Lines {
		line := &cmd.Lines[i]
		if line.ProductID == "" || line.Size == "" {
			return apperrors.InvalidInput("each line needs a product id and size")
		}
		if line.Quantity <= 0 {
			return apperrors.InvalidInput("line quantity must be positive")
		}
		if line.PriceSnapshot < 0 {
			return apperrors.InvalidInput("line price cannot be negative")
		}
		key := line.Key()
		if _, ok := seen[key]; ok {
			return apperrors.InvalidInput(fmt.Sprintf("duplicate line for %s", key))
		}
		seen[key] = struct{}{}
	}
	return nil
}

// PlaceOrder runs one checkout end to end and returns the paid order.
func (s *CheckoutService) PlaceOrder(ctx context.Context, cmd CheckoutCommand) (*domain.Order, error) {
	if err := validateCheckout(cmd); err != nil {
		return nil, err
	}
	if cmd.Currency == "" {
		cmd.Currency = "EUR"
	}

	subtotal := domain.Subtotal(cmd.Lines)

	// Reserve the coupon use before touching stock: it is the cheaper
	// reservation to undo and failing fast on an exhausted code skips the
	// ledger work entirely.
	var (
		coupon   *domain.Coupon
		discount int64
	)
	if cmd.CouponCode != "" {
		validated, _, err := s.coupons.Validate(ctx, cmd.CouponCode, subtotal)
		if err != nil {
			return nil, err
		}
		reserved, err := s.coupons.Reserve(ctx, validated.ID)
		if err != nil {
			return nil, err
		}
		coupon = reserved
		discount = reserved.DiscountFor(subtotal)
	}
	total := subtotal - discount

	// Decrement stock line by line. The first shortfall stops the walk and
	// puts back everything decremented so far.
	decremented := make([]decrementedLine, 0, len(cmd.Lines))
	for i := range cmd.Lines {
		line := &cmd.Lines[i]
		prev, next, err := s.ledger.Decrement(ctx, line.Key(), line.Quantity, domain.MovementSale)
		if err != nil {
			if IsInsufficientStock(err) {
				oversellRejectionsTotal.Inc()
			}
			s.revertDecrements(ctx, decremented, "checkout aborted")
			s.releaseCoupon(ctx, coupon)
			return nil, asStockError(err, line)
		}
		decremented = append(decremented, decrementedLine{key: line.Key(), amount: line.Quantity})
		s.ledger.RecordMovement(ctx, &domain.StockMovement{
			ProductID:        line.ProductID,
			Color:            line.Color,
			Material:         line.Material,
			Size:             line.Size,
			Type:             domain.MovementSale,
			QuantityDelta:    -line.Quantity,
			PreviousQuantity: prev,
			NewQuantity:      next,
			Reason:           "checkout",
			ActorUserID:      &cmd.UserID,
			CreatedAt:        time.Now().UTC(),
		})
	}

	now := time.Now().UTC()
	checkout := &domain.Checkout{
		ID:             uuid.New().String(),
		UserID:         cmd.UserID,
		Lines:          cmd.Lines,
		Subtotal:       subtotal,
		DiscountAmount: discount,
		Total:          total,
		Currency:       cmd.Currency,
		Status:         domain.CheckoutPendingPayment,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if coupon != nil {
		checkout.CouponID = &coupon.ID
		checkout.CouponCode = &coupon.Code
	}
	if err := s.checkouts.Create(ctx, checkout); err != nil {
		s.revertDecrements(ctx, decremented, "checkout aborted")
		s.releaseCoupon(ctx, coupon)
		return nil, err
	}

	result, err := s.charge(ctx, checkout, cmd.Metadata)
	if err != nil {
		s.logger.ErrorContext(ctx, "payment charge failed",
			slog.String("checkout_id", checkout.ID),
			slog.String("error", err.Error()),
		)
		s.Compensate(ctx, checkout.ID)
		return nil, apperrors.PaymentFailed("payment could not be completed")
	}
	if err := s.checkouts.SetPaymentRef(ctx, checkout.ID, result.PaymentRef); err != nil {
		s.logger.ErrorContext(ctx, "failed to store payment ref",
			slog.String("checkout_id", checkout.ID),
			slog.String("error", err.Error()),
		)
	}
	if !result.Succeeded() {
		s.Compensate(ctx, checkout.ID)
		msg := "payment was declined"
		if result.Reason != "" {
			msg = "payment was declined: " + result.Reason
		}
		return nil, apperrors.PaymentFailed(msg)
	}
	checkout.PaymentRef = result.PaymentRef

	order, err := s.finalize(ctx, checkout)
	if err != nil {
		if errors.Is(err, errCompletionLost) {
			// The success webhook got here first and created the order.
			return s.finalizedOrder(ctx, checkout.ID)
		}
		// Charged but could not persist the order. Refund best effort, then
		// put the stock back.
		s.logger.ErrorContext(ctx, "finalize after successful charge failed",
			slog.String("checkout_id", checkout.ID),
			slog.String("error", err.Error()),
		)
		if refundErr := s.provider.Refund(ctx, result.PaymentRef, total); refundErr != nil {
			s.logger.ErrorContext(ctx, "refund after failed finalize also failed",
				slog.String("checkout_id", checkout.ID),
				slog.String("payment_ref", result.PaymentRef),
				slog.String("error", refundErr.Error()),
			)
		}
		s.Compensate(ctx, checkout.ID)
		return nil, apperrors.Internal(err)
	}

	return order, nil
}

// charge calls the provider under its own deadline so a hung gateway cannot
// hold the request open indefinitely.
func (s *CheckoutService) charge(ctx context.Context, c *domain.Checkout, metadata map[string]string) (*payment.ChargeResult, error) {
	chargeCtx, cancel := context.WithTimeout(ctx, s.paymentTimeout)
	defer cancel()

	md := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		md[k] = v
	}
	md["checkout_id"] = c.ID

	return s.provider.Charge(chargeCtx, payment.ChargeRequest{
		CheckoutID: c.ID,
		UserID:     c.UserID,
		Amount:     c.Total,
		Currency:   c.Currency,
		Metadata:   md,
	})
}

// errCompletionLost reports that another caller claimed the checkout's
// completion first; the order exists (or is being created) elsewhere.
var errCompletionLost = errors.New("checkout completion claimed by another caller")

// finalize turns a successfully charged checkout into a paid order. The
// pending to completed transition is claimed with a conditional update, the
// same way compensation claims rolled_back; the request path and duplicate
// success webhooks all pass through here, and only the claim winner inserts
// the order. Losers get errCompletionLost.
func (s *CheckoutService) finalize(ctx context.Context, c *domain.Checkout) (*domain.Order, error) {
	won, err := s.checkouts.ClaimCompletion(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("claim checkout completion: %w", err)
	}
	if !won {
		return nil, errCompletionLost
	}

	now := time.Now().UTC()
	lines := make([]domain.OrderLine, len(c.Lines))
	for i, l := range c.Lines {
		lines[i] = domain.OrderLine{
			ProductID: l.ProductID,
			Color:     l.Color,
			Material:  l.Material,
			Size:      l.Size,
			Quantity:  l.Quantity,
			UnitPrice: l.PriceSnapshot,
		}
	}

	order := &domain.Order{
		ID:             uuid.New().String(),
		UserID:         c.UserID,
		Status:         domain.OrderPaid,
		Lines:          lines,
		Subtotal:       c.Subtotal,
		DiscountAmount: c.DiscountAmount,
		CouponCode:     c.CouponCode,
		Total:          c.Total,
		Currency:       c.Currency,
		PaymentID:      c.PaymentRef,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if err := s.checkouts.SetOrderID(ctx, c.ID, order.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to link order to checkout",
			slog.String("checkout_id", c.ID),
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	couponCode := ""
	if c.CouponCode != nil {
		couponCode = *c.CouponCode
	}
	s.publisher.OrderPaid(ctx, event.OrderPaidPayload{
		OrderID:    order.ID,
		UserID:     order.UserID,
		Total:      order.Total,
		Currency:   order.Currency,
		CouponCode: couponCode,
	})
	if c.CouponID != nil {
		s.publisher.CouponRedeemed(ctx, event.CouponRedeemedPayload{
			CouponID: *c.CouponID,
			Code:     couponCode,
			OrderID:  order.ID,
		})
	}

	return order, nil
}

// finalizedOrder looks up the order another caller created for a checkout
// whose completion claim this caller lost.
func (s *CheckoutService) finalizedOrder(ctx context.Context, checkoutID string) (*domain.Order, error) {
	checkout, err := s.checkouts.GetByID(ctx, checkoutID)
	if err != nil {
		return nil, err
	}
	if checkout.OrderID == nil {
		// The winner is between the claim and the order insert. The order
		// will exist momentarily; tell the caller to retry the lookup.
		return nil, apperrors.Conflict("checkout is completing")
	}
	return s.orders.GetByID(ctx, *checkout.OrderID)
}

// Compensate reverses the side effects of a checkout that will not complete:
// decrements are put back and the coupon use is released. The rolled_back
// claim makes it safe to call any number of times, from the request path and
// from the webhook alike; only the first caller does the work.
func (s *CheckoutService) Compensate(ctx context.Context, checkoutID string) {
	won, err := s.checkouts.ClaimRollback(ctx, checkoutID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to claim checkout rollback",
			slog.String("checkout_id", checkoutID),
			slog.String("error", err.Error()),
		)
		return
	}
	if !won {
		return
	}
	compensationsTotal.Inc()

	checkout, err := s.checkouts.GetByID(ctx, checkoutID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load checkout for compensation",
			slog.String("checkout_id", checkoutID),
			slog.String("error", err.Error()),
		)
		return
	}

	lines := make([]decrementedLine, len(checkout.Lines))
	for i, l := range checkout.Lines {
		lines[i] = decrementedLine{key: l.Key(), amount: l.Quantity}
	}
	s.revertDecrements(ctx, lines, "checkout compensation")

	if checkout.CouponID != nil {
		s.releaseCouponID(ctx, *checkout.CouponID)
	}

	if err := s.checkouts.SetStatus(ctx, checkoutID, domain.CheckoutFailed); err != nil {
		s.logger.ErrorContext(ctx, "failed to mark checkout failed",
			slog.String("checkout_id", checkoutID),
			slog.String("error", err.Error()),
		)
	}
}

// revertDecrements puts decremented amounts back, one line at a time. A
// failure on one line is logged and does not stop the others; each put-back
// is independently correct.
func (s *CheckoutService) revertDecrements(ctx context.Context, lines []decrementedLine, reason string) {
	for _, line := range lines {
		prev, next, err := s.ledger.Increment(ctx, line.key, line.amount, domain.MovementAdjustment)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to revert stock decrement",
				slog.String("sku", line.key.String()),
				slog.Int("amount", line.amount),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.ledger.RecordMovement(ctx, &domain.StockMovement{
			ProductID:        line.key.ProductID,
			Color:            line.key.Color,
			Material:         line.key.Material,
			Size:             line.key.Size,
			Type:             domain.MovementAdjustment,
			QuantityDelta:    line.amount,
			PreviousQuantity: prev,
			NewQuantity:      next,
			Reason:           reason,
			CreatedAt:        time.Now().UTC(),
		})
	}
}

func (s *CheckoutService) releaseCoupon(ctx context.Context, coupon *domain.Coupon) {
	if coupon == nil {
		return
	}
	s.releaseCouponID(ctx, coupon.ID)
}

func (s *CheckoutService) releaseCouponID(ctx context.Context, couponID string) {
	if err := s.coupons.Release(ctx, couponID); err != nil {
		s.logger.ErrorContext(ctx, "failed to release coupon use",
			slog.String("coupon_id", couponID),
			slog.String("error", err.Error()),
		)
	}
}

// HandleWebhook reconciles a provider notification against the stored
// checkout. The provider-echoed amount and currency must match the stored
// totals before any state changes.
func (s *CheckoutService) HandleWebhook(ctx context.Context, evt WebhookEvent) error {
	if evt.CheckoutID == "" {
		return apperrors.InvalidInput("checkout id is required")
	}

	checkout, err := s.checkouts.GetByID(ctx, evt.CheckoutID)
	if err != nil {
		return err
	}

	if evt.Amount != checkout.Total || (evt.Currency != "" && evt.Currency != checkout.Currency) {
		s.logger.WarnContext(ctx, "webhook amount mismatch",
			slog.String("checkout_id", checkout.ID),
			slog.Int64("webhook_amount", evt.Amount),
			slog.Int64("checkout_total", checkout.Total),
		)
		return apperrors.InvalidInput("webhook amount does not match checkout")
	}

	switch evt.Status {
	case payment.StatusSucceeded:
		return s.reconcileSuccess(ctx, checkout, evt.PaymentRef)
	case payment.StatusDeclined:
		// Safe whether or not the request path already compensated.
		s.Compensate(ctx, checkout.ID)
		return nil
	default:
		return apperrors.InvalidInput(fmt.Sprintf("unknown payment status %q", evt.Status))
	}
}

// reconcileSuccess handles a success webhook for a checkout the request path
// may or may not have finished.
func (s *CheckoutService) reconcileSuccess(ctx context.Context, checkout *domain.Checkout, paymentRef string) error {
	switch {
	case checkout.Status == domain.CheckoutCompleted:
		// Already finished in the request path.
		return nil
	case checkout.RolledBack:
		// The request path gave up and compensated, but the money moved.
		// Refund so the two sides agree again.
		s.logger.WarnContext(ctx, "success webhook for compensated checkout, refunding",
			slog.String("checkout_id", checkout.ID),
			slog.String("payment_ref", paymentRef),
		)
		if err := s.provider.Refund(ctx, paymentRef, checkout.Total); err != nil {
			return fmt.Errorf("refund compensated checkout %s: %w", checkout.ID, err)
		}
		return nil
	default:
		// The request path died between charge and finalize. Finish the job.
		if paymentRef != "" && checkout.PaymentRef == "" {
			if err := s.checkouts.SetPaymentRef(ctx, checkout.ID, paymentRef); err != nil {
				s.logger.ErrorContext(ctx, "failed to store payment ref from webhook",
					slog.String("checkout_id", checkout.ID),
					slog.String("error", err.Error()),
				)
			}
			checkout.PaymentRef = paymentRef
		}
		_, err := s.finalize(ctx, checkout)
		if errors.Is(err, errCompletionLost) {
			// A concurrent delivery or the request path finished it first.
			return nil
		}
		return err
	}
}

// GetCheckout returns one checkout attempt.
func (s *CheckoutService) GetCheckout(ctx context.Context, id string) (*domain.Checkout, error) {
	return s.checkouts.GetByID(ctx, id)
}

// asStockError converts a ledger shortfall into the user-facing conflict
// error carrying what is still available.
func asStockError(err error, line *domain.CartLine) error {
	var ise *domain.InsufficientStockError
	if errors.As(err, &ise) {
		return &apperrors.AppError{
			Code:    "INSUFFICIENT_STOCK",
			Message: fmt.Sprintf("only %d of %s (%s) left", ise.Available, line.ProductID, ise.Key.Label()),
			Status:  http.StatusConflict,
			Err:     err,
		}
	}
	if errors.Is(err, apperrors.ErrNotFound) {
		return apperrors.NotFound("sku", line.Key().String())
	}
	return err
}
