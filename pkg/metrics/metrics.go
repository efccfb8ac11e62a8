package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters the fulfillment pipeline reports on. Registered
// once at startup and passed down explicitly; no package-level state.
type Metrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec

	WebhookEvents         *prometheus.CounterVec
	Refunds               *prometheus.CounterVec
	NotifyFailures        prometheus.Counter
	ConsistencyViolations prometheus.Counter
}

func New(service string) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shop",
			Subsystem: service,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"handler", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shop",
			Subsystem: service,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"handler"}),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shop",
			Subsystem: service,
			Name:      "webhook_events_total",
			Help:      "Payment webhook events by type and outcome.",
		}, []string{"type", "outcome"}),
		Refunds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shop",
			Subsystem: service,
			Name:      "refunds_total",
			Help:      "Refund attempts by outcome.",
		}, []string{"outcome"}),
		NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shop",
			Subsystem: service,
			Name:      "notification_failures_total",
			Help:      "Best-effort notifications that could not be delivered.",
		}),
		ConsistencyViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shop",
			Subsystem: service,
			Name:      "consistency_violations_total",
			Help:      "States requiring manual reconciliation.",
		}),
	}

	prometheus.MustRegister(
		m.Requests,
		m.LatencyMS,
		m.WebhookEvents,
		m.Refunds,
		m.NotifyFailures,
		m.ConsistencyViolations,
	)
	return m
}

func Handler() http.Handler {
	return promhttp.Handler()
}
