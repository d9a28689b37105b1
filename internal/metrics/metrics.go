// Package metrics registers the Prometheus collectors exposed on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pengaduan_transitions_total",
			Help: "Report status transitions by target status and outcome",
		},
		[]string{"status", "outcome"},
	)

	evidenceActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pengaduan_evidence_actions_total",
			Help: "Evidence lifecycle actions by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	eventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pengaduan_events_published_total",
			Help: "Outbox events handed to the notification sink",
		},
		[]string{"status"},
	)
)

func RequestStarted() { httpRequestsInFlight.Inc() }

// RequestFinished records one completed HTTP request.
func RequestFinished(method, endpoint string, status int, elapsed time.Duration) {
	httpRequestsInFlight.Dec()
	httpRequestsTotal.WithLabelValues(method, endpoint, statusLabel(status)).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint).Observe(elapsed.Seconds())
}

// RecordTransition counts a transition attempt. outcome is "applied", "replayed"
// or the error class.
func RecordTransition(status, outcome string) {
	transitionsTotal.WithLabelValues(status, outcome).Inc()
}

func RecordEvidenceAction(action, outcome string) {
	evidenceActionsTotal.WithLabelValues(action, outcome).Inc()
}

func RecordPublish(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	eventsPublishedTotal.WithLabelValues(status).Inc()
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
