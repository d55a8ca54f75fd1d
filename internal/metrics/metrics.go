// Package metrics holds the Prometheus collectors exported by pcbuilder.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Build engine
	BuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pcbuilder_builds_total",
			Help: "Total number of build runs by outcome",
		},
		[]string{"outcome"}, // "success", "unsatisfiable", "error"
	)

	BuildFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pcbuilder_build_failures_total",
			Help: "Builds that failed, by the component type that could not be satisfied",
		},
		[]string{"component"},
	)

	BuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pcbuilder_build_duration_seconds",
			Help:    "Duration of a full build run in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	SelectorCandidates = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pcbuilder_selector_candidates",
			Help:    "Candidates remaining after each selector stage",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"component", "stage"}, // stage: "fetched", "rules", "compatible"
	)

	// Pricing provider
	KeepaRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pcbuilder_keepa_requests_total",
			Help: "Keepa API requests by result",
		},
		[]string{"result"}, // "success", "failure", "rejected"
	)

	KeepaCircuitState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pcbuilder_keepa_circuit_state",
			Help: "Keepa circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	RefreshUpdated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pcbuilder_refresh_updated_total",
			Help: "Products whose price and rating were rewritten by the refresh job",
		},
	)
)
