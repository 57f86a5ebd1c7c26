package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xpresspay_gateway_requests_total",
			Help: "Total number of gateway exchanges",
		},
		[]string{"step", "result"},
	)

	gatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "xpresspay_gateway_request_duration_seconds",
			Help:    "Duration of gateway exchanges in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"step"},
	)

	gatewayRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "xpresspay_gateway_requests_in_flight",
			Help: "Number of gateway exchanges currently in progress",
		},
	)
)

// ExchangeStarted marks a gateway exchange as in flight and returns a
// function that records its result and duration when it completes.
//
// result values: "success", "unsuccessful", "pending" for classified
// outcomes, or the error kind ("network_error", "validation_error", ...).
func ExchangeStarted(step string) func(result string) {
	start := time.Now()
	gatewayRequestsInFlight.Inc()

	return func(result string) {
		gatewayRequestsInFlight.Dec()
		gatewayRequestDuration.WithLabelValues(step).Observe(time.Since(start).Seconds())
		gatewayRequestsTotal.WithLabelValues(step, result).Inc()
	}
}
