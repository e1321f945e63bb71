// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Estimates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edforecast_arrival_estimates_total",
		Help: "Intra-day arrival estimates by outcome.",
	}, []string{"outcome"})

	TriageLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edforecast_triage_lookups_total",
		Help: "Hour-of-day triage lookups by outcome.",
	}, []string{"outcome"})

	Classifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edforecast_classifier_requests_total",
		Help: "Department routing classifier calls by outcome.",
	}, []string{"outcome"})

	LiveStatusFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edforecast_live_status_fetches_total",
		Help: "Live ED status fetches by source and outcome.",
	}, []string{"source", "outcome"})

	ForecastDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "edforecast_flu_forecast_duration_seconds",
		Help:    "Duration of flu forecast computations.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0},
	}, []string{"granularity"})

	PublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edforecast_publish_failures_total",
		Help: "Failed estimate publications by backend.",
	}, []string{"backend"})
)

// Handler exposes the default registry.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
