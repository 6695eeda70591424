package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ecomstack/storefront/internal/domain"
	"github.com/ecomstack/storefront/internal/service"
	apperrors "github.com/ecomstack/storefront/pkg/errors"
	"github.com/ecomstack/storefront/pkg/httputil"
	"github.com/ecomstack/storefront/pkg/logger"
	"github.com/ecomstack/storefront/pkg/pagination"
)

// OrderHandler serves order lookup and lifecycle transitions.
type OrderHandler struct {
	orders *service.OrderService
	logger *slog.Logger
}

// NewOrderHandler creates the order handler.
func NewOrderHandler(orders *service.OrderService, log *slog.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: log}
}

// Get returns one order. Customers can only see their own orders.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetByID(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if userID := logger.UserIDFromContext(r.Context()); userID != "" && userID != order.UserID {
		httputil.WriteError(w, r, apperrors.Forbidden("order belongs to another user"), h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// List returns the calling user's orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := logger.UserIDFromContext(r.Context())
	if userID == "" {
		httputil.WriteError(w, r, apperrors.Unauthorized("user identity is required"), h.logger)
		return
	}
	p := pagination.FromRequest(r)

	orders, total, err := h.orders.ListByUser(r.Context(), userID, p)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: pagination.NewResult(orders, total, p)})
}

// Ship marks a paid order as shipped.
func (h *OrderHandler) Ship(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, h.orders.Ship)
}

// Deliver marks a shipped order as delivered.
func (h *OrderHandler) Deliver(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, h.orders.Deliver)
}

// Refund refunds the payment and returns the units to stock.
func (h *OrderHandler) Refund(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, h.orders.Refund)
}

func (h *OrderHandler) applyTransition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id string) (*domain.Order, error)) {
	order, err := fn(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}
