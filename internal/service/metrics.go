package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	oversellRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_oversell_rejections_total",
			Help: "Checkout lines rejected because the ledger had too few units",
		},
	)

	couponExhaustionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_coupon_exhaustions_total",
			Help: "Coupon reservations refused because the usage limit was reached",
		},
	)

	compensationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_checkout_compensations_total",
			Help: "Checkout compensations that won the rollback claim and reversed stock",
		},
	)

	restockAlertsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_restock_alerts_sent_total",
			Help: "Restock alert notifications delivered to subscribers",
		},
	)
)
