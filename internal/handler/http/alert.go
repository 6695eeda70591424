package http

import (
	"log/slog"
	"net/http"

	"github.com/ecomstack/storefront/internal/service"
	apperrors "github.com/ecomstack/storefront/pkg/errors"
	"github.com/ecomstack/storefront/pkg/httputil"
	"github.com/ecomstack/storefront/pkg/logger"
	"github.com/ecomstack/storefront/pkg/validator"
)

// AlertHandler serves restock alert subscriptions.
type AlertHandler struct {
	alerts *service.AlertService
	logger *slog.Logger
}

// NewAlertHandler creates the alert handler.
func NewAlertHandler(alerts *service.AlertService, log *slog.Logger) *AlertHandler {
	return &AlertHandler{alerts: alerts, logger: log}
}

type subscribeRequest struct {
	ProductID string  `json:"product_id" validate:"required"`
	Size      *string `json:"size"`
}

// Subscribe registers the calling user for a restock alert. Subscribing again
// after being notified re-arms the alert.
func (h *AlertHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID := logger.UserIDFromContext(r.Context())
	if userID == "" {
		httputil.WriteError(w, r, apperrors.Unauthorized("user identity is required"), h.logger)
		return
	}

	var req subscribeRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	sub, err := h.alerts.Subscribe(r.Context(), userID, req.ProductID, req.Size)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: sub})
}
