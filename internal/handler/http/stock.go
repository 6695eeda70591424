package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ecomstack/storefront/internal/domain"
	"github.com/ecomstack/storefront/internal/service"
	"github.com/ecomstack/storefront/pkg/httputil"
	"github.com/ecomstack/storefront/pkg/logger"
	"github.com/ecomstack/storefront/pkg/pagination"
	"github.com/ecomstack/storefront/pkg/validator"
)

// StockHandler serves the public stock view and the admin ledger operations.
type StockHandler struct {
	ledger *service.LedgerService
	logger *slog.Logger
}

// NewStockHandler creates the stock handler.
func NewStockHandler(ledger *service.LedgerService, log *slog.Logger) *StockHandler {
	return &StockHandler{ledger: ledger, logger: log}
}

type stockView struct {
	ProductID string         `json:"product_id"`
	Variants  []stockVariant `json:"variants"`
}

type stockVariant struct {
	Color    string `json:"color,omitempty"`
	Material string `json:"material,omitempty"`
	Size     string `json:"size"`
	Quantity int    `json:"quantity"`
	InStock  bool   `json:"in_stock"`
	Low      bool   `json:"low"`
}

// Get returns per-variant availability of one product.
func (h *StockHandler) Get(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	skus, err := h.ledger.ListByProduct(r.Context(), productID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	view := stockView{ProductID: productID, Variants: make([]stockVariant, len(skus))}
	for i := range skus {
		view.Variants[i] = stockVariant{
			Color:    skus[i].Color,
			Material: skus[i].Material,
			Size:     skus[i].Size,
			Quantity: skus[i].QuantityOnHand,
			InStock:  skus[i].QuantityOnHand > 0,
			Low:      skus[i].IsLow(),
		}
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: view})
}

type upsertSKURequest struct {
	ProductID         string `json:"product_id" validate:"required"`
	Color             string `json:"color"`
	Material          string `json:"material"`
	Size              string `json:"size" validate:"required"`
	QuantityOnHand    int    `json:"quantity_on_hand" validate:"gte=0"`
	LowStockThreshold int    `json:"low_stock_threshold" validate:"gte=0"`
}

// Upsert seeds or replaces one ledger entry.
func (h *StockHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req upsertSKURequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	sku, err := h.ledger.UpsertSKU(r.Context(), &domain.SKU{
		ProductID:         req.ProductID,
		Color:             req.Color,
		Material:          req.Material,
		Size:              req.Size,
		QuantityOnHand:    req.QuantityOnHand,
		LowStockThreshold: req.LowStockThreshold,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: sku})
}

type adjustStockRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Color     string `json:"color"`
	Material  string `json:"material"`
	Size      string `json:"size" validate:"required"`
	Delta     int    `json:"delta" validate:"required"`
	Type      string `json:"type" validate:"required"`
	Reason    string `json:"reason" validate:"required"`
}

// Adjust applies a manual ledger correction with an audit record.
func (h *StockHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustStockRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	sku, err := h.ledger.Adjust(r.Context(), service.AdjustCommand{
		Key: domain.SKUKey{
			ProductID: req.ProductID,
			Color:     req.Color,
			Material:  req.Material,
			Size:      req.Size,
		},
		Delta:       req.Delta,
		Type:        req.Type,
		Reason:      req.Reason,
		ActorUserID: logger.UserIDFromContext(r.Context()),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: sku})
}

// LowStock lists SKUs at or below their threshold.
func (h *StockHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	p := pagination.FromRequest(r)

	skus, total, err := h.ledger.ListLowStock(r.Context(), p)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: pagination.NewResult(skus, total, p)})
}

// RestockSuggestions lists low SKUs with suggested reorder quantities.
func (h *StockHandler) RestockSuggestions(w http.ResponseWriter, r *http.Request) {
	p := pagination.FromRequest(r)

	suggestions, total, err := h.ledger.RestockSuggestions(r.Context(), p)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: pagination.NewResult(suggestions, total, p)})
}

// Movements lists the audit log of one product, newest first.
func (h *StockHandler) Movements(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	p := pagination.FromRequest(r)

	filter := domain.MovementFilter{
		Type: r.URL.Query().Get("type"),
		Size: r.URL.Query().Get("size"),
	}
	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			httputil.WriteValidationError(w, err)
			return
		}
		filter.From = &t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			httputil.WriteValidationError(w, err)
			return
		}
		filter.To = &t
	}

	movements, total, err := h.ledger.ListMovements(r.Context(), productID, filter, p)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: pagination.NewResult(movements, total, p)})
}
