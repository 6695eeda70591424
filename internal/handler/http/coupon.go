package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ecomstack/storefront/internal/service"
	"github.com/ecomstack/storefront/pkg/httputil"
	"github.com/ecomstack/storefront/pkg/validator"
)

// CouponHandler serves coupon administration and validation.
type CouponHandler struct {
	coupons *service.CouponService
	logger  *slog.Logger
}

// NewCouponHandler creates the coupon handler.
func NewCouponHandler(coupons *service.CouponService, log *slog.Logger) *CouponHandler {
	return &CouponHandler{coupons: coupons, logger: log}
}

type createCouponRequest struct {
	Code              string    `json:"code" validate:"required"`
	DiscountKind      string    `json:"discount_kind" validate:"required,oneof=percentage fixed_amount"`
	Value             int64     `json:"value" validate:"gt=0"`
	MinPurchaseAmount int64     `json:"min_purchase_amount" validate:"gte=0"`
	MaxDiscountAmount *int64    `json:"max_discount_amount"`
	ExpiresAt         time.Time `json:"expires_at" validate:"required"`
	MaxUses           int       `json:"max_uses" validate:"gt=0"`
}

// Create registers a new coupon.
func (h *CouponHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCouponRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	coupon, err := h.coupons.Create(r.Context(), service.CreateCouponCommand{
		Code:              req.Code,
		DiscountKind:      req.DiscountKind,
		Value:             req.Value,
		MinPurchaseAmount: req.MinPurchaseAmount,
		MaxDiscountAmount: req.MaxDiscountAmount,
		ExpiresAt:         req.ExpiresAt,
		MaxUses:           req.MaxUses,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: coupon})
}

type validateCouponRequest struct {
	Code     string `json:"code" validate:"required"`
	Subtotal int64  `json:"subtotal" validate:"gte=0"`
}

type validateCouponResponse struct {
	Code     string `json:"code"`
	Discount int64  `json:"discount"`
	Total    int64  `json:"total"`
}

// Validate previews the discount a code would grant on a subtotal without
// consuming a use.
func (h *CouponHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	coupon, discount, err := h.coupons.Validate(r.Context(), req.Code, req.Subtotal)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: validateCouponResponse{
		Code:     coupon.Code,
		Discount: discount,
		Total:    req.Subtotal - discount,
	}})
}

type setActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// SetActive enables or disables a coupon.
func (h *CouponHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	couponID := chi.URLParam(r, "couponID")

	var req setActiveRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	if err := h.coupons.SetActive(r.Context(), couponID, *req.Active); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
