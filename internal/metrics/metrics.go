// Package metrics holds the prometheus collectors of the cashier service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CartRejections counts cart and context mutations refused by the engine.
	CartRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_cart_rejections_total",
		Help: "Cart mutations rejected by reason",
	}, []string{"reason"})

	// Checkouts counts submissions by transaction type and outcome.
	Checkouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_checkouts_total",
		Help: "Checkout submissions by type and outcome",
	}, []string{"type", "outcome"})

	CheckoutSubmitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pos_checkout_submit_seconds",
		Help:    "Time spent submitting a transaction",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	CatalogRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_catalog_refresh_total",
		Help: "Inventory snapshot refreshes by result",
	}, []string{"result"})
)

// Outcome labels.
const (
	OutcomeCommitted = "committed"
	OutcomeInvalid   = "invalid"
	OutcomeRejected  = "rejected"
	OutcomeTransport = "transport_failure"
)
