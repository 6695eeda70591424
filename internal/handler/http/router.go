package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ecomstack/storefront/pkg/health"
	"github.com/ecomstack/storefront/pkg/middleware"
)

// RouterDeps bundles everything the router mounts.
type RouterDeps struct {
	Logger   *slog.Logger
	Health   *health.Handler
	Stock    *StockHandler
	Checkout *CheckoutHandler
	Orders   *OrderHandler
	Coupons  *CouponHandler
	Alerts   *AlertHandler
	WS       http.Handler
	CORS     middleware.CORSConfig
}

// NewRouter builds the HTTP surface.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLog(deps.Logger))
	r.Use(middleware.PrometheusMetrics("storefront"))
	r.Use(middleware.CORS(deps.CORS))

	r.Get("/healthz", deps.Health.LivenessHandler())
	r.Get("/readyz", deps.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	r.Handle("/ws", deps.WS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stock/{productID}", deps.Stock.Get)

		r.Post("/checkout", deps.Checkout.Create)
		r.Post("/payments/webhook", deps.Checkout.Webhook)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", deps.Orders.List)
			r.Get("/{orderID}", deps.Orders.Get)
			r.Post("/{orderID}/ship", deps.Orders.Ship)
			r.Post("/{orderID}/deliver", deps.Orders.Deliver)
			r.Post("/{orderID}/refund", deps.Orders.Refund)
		})

		r.Post("/coupons/validate", deps.Coupons.Validate)

		r.Post("/alerts", deps.Alerts.Subscribe)

		r.Route("/admin", func(r chi.Router) {
			r.Route("/stock", func(r chi.Router) {
				r.Post("/", deps.Stock.Upsert)
				r.Post("/adjust", deps.Stock.Adjust)
				r.Get("/low-stock", deps.Stock.LowStock)
				r.Get("/restock-suggestions", deps.Stock.RestockSuggestions)
				r.Get("/{productID}/movements", deps.Stock.Movements)
			})
			r.Route("/coupons", func(r chi.Router) {
				r.Post("/", deps.Coupons.Create)
				r.Patch("/{couponID}/active", deps.Coupons.SetActive)
			})
		})
	})

	return r
}
