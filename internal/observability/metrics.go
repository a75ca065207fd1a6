// Package observability holds the Prometheus metrics of the service.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	providerCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filechat_provider_calls_total",
			Help: "Total number of outbound model calls by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	providerLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filechat_provider_call_duration_seconds",
			Help:    "Duration of outbound model calls",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"mode"},
	)

	providerInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "filechat_provider_calls_in_flight",
			Help: "Number of outbound model calls currently running",
		},
	)

	providerWaiting = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "filechat_provider_calls_waiting",
			Help: "Number of model calls waiting for a concurrency slot",
		},
	)

	extractions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filechat_extractions_total",
			Help: "Total number of processed uploads by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
)

// ObserveExtraction counts one processed upload.
func ObserveExtraction(kind, outcome string) {
	extractions.WithLabelValues(kind, outcome).Inc()
}

// ObserveProviderCall records the outcome and duration of one model call.
func ObserveProviderCall(mode, outcome string, d time.Duration) {
	providerCalls.WithLabelValues(mode, outcome).Inc()
	providerLatency.WithLabelValues(mode).Observe(d.Seconds())
}

// TrackInFlight marks a model call as running and returns the func ending it.
func TrackInFlight() func() {
	providerInFlight.Inc()
	return providerInFlight.Dec
}

// TrackWaiting marks a model call as queued and returns the func ending the wait.
func TrackWaiting() func() {
	providerWaiting.Inc()
	return providerWaiting.Dec
}
