package http

import (
	"log/slog"
	"net/http"

	"github.com/ecomstack/storefront/internal/domain"
	"github.com/ecomstack/storefront/internal/service"
	apperrors "github.com/ecomstack/storefront/pkg/errors"
	"github.com/ecomstack/storefront/pkg/httputil"
	"github.com/ecomstack/storefront/pkg/logger"
	"github.com/ecomstack/storefront/pkg/validator"
)

// CheckoutHandler serves checkout and the payment webhook.
type CheckoutHandler struct {
	checkout *service.CheckoutService
	logger   *slog.Logger
}

// NewCheckoutHandler creates the checkout handler.
func NewCheckoutHandler(checkout *service.CheckoutService, log *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, logger: log}
}

type checkoutLineRequest struct {
	ProductID     string `json:"product_id" validate:"required"`
	Color         string `json:"color"`
	Material      string `json:"material"`
	Size          string `json:"size" validate:"required"`
	Quantity      int    `json:"quantity" validate:"gt=0"`
	PriceSnapshot int64  `json:"price_snapshot" validate:"gte=0"`
}

type checkoutRequest struct {
	Lines      []checkoutLineRequest `json:"lines" validate:"required,min=1,dive"`
	CouponCode string                `json:"coupon_code"`
	Currency   string                `json:"currency"`
	Metadata   map[string]string     `json:"metadata"`
}

// Create places an order: decrements stock, redeems the coupon, charges the
// payment and returns the paid order, or a structured failure with everything
// compensated.
func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := logger.UserIDFromContext(r.Context())
	if userID == "" {
		httputil.WriteError(w, r, apperrors.Unauthorized("user identity is required"), h.logger)
		return
	}

	var req checkoutRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	lines := make([]domain.CartLine, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = domain.CartLine{
			ProductID:     l.ProductID,
			Color:         l.Color,
			Material:      l.Material,
			Size:          l.Size,
			Quantity:      l.Quantity,
			PriceSnapshot: l.PriceSnapshot,
		}
	}

	order, err := h.checkout.PlaceOrder(r.Context(), service.CheckoutCommand{
		UserID:     userID,
		Lines:      lines,
		CouponCode: req.CouponCode,
		Currency:   req.Currency,
		Metadata:   req.Metadata,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: order})
}

type webhookRequest struct {
	CheckoutID string `json:"checkout_id" validate:"required"`
	PaymentRef string `json:"payment_ref"`
	Status     string `json:"status" validate:"required"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
}

// Webhook reconciles a payment provider notification.
func (h *CheckoutHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	err := h.checkout.HandleWebhook(r.Context(), service.WebhookEvent{
		CheckoutID: req.CheckoutID,
		PaymentRef: req.PaymentRef,
		Status:     req.Status,
		Amount:     req.Amount,
		Currency:   req.Currency,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
