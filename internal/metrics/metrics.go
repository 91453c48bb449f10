// Package metrics provides Prometheus metrics for the RSVP service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GuestLookupsTotal tracks guest lookups by result
	GuestLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rsvp",
			Subsystem: "guests",
			Name:      "lookups_total",
			Help:      "Total number of guest lookups by result",
		},
		[]string{"result"},
	)

	// SubmissionsTotal tracks RSVP submissions by result
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rsvp",
			Subsystem: "submissions",
			Name:      "total",
			Help:      "Total number of RSVP submissions by result",
		},
		[]string{"result"},
	)

	// UpstreamRequestDuration tracks outbound API calls
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rsvp",
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound API requests in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"service", "operation", "status_code"},
	)

	// TokenRefreshesTotal tracks access token exchanges
	TokenRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rsvp",
			Subsystem: "spotify",
			Name:      "token_refreshes_total",
			Help:      "Total number of Spotify token exchanges by grant and result",
		},
		[]string{"grant", "result"},
	)

	// OutboxProcessedTotal tracks follow-up intents handled by the outbox processor
	OutboxProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rsvp",
			Subsystem: "outbox",
			Name:      "processed_total",
			Help:      "Total number of outbox entries processed by kind and status",
		},
		[]string{"kind", "status"},
	)
)

// Result labels a metric by error presence
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
