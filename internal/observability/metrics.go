package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for AnalysesTotal.
const (
	OutcomeSuccess   = "success"
	OutcomeRemote    = "remote_error"
	OutcomeMalformed = "malformed"
	OutcomeRejected  = "rejected"
)

var (
	// AnalysesTotal counts analysis attempts by outcome.
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syllabus_analyses_total",
			Help: "Total number of syllabus analyses by outcome",
		},
		[]string{"outcome"},
	)

	// RemoteCallDuration is the latency of the single model call.
	RemoteCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "syllabus_remote_call_duration_seconds",
			Help:    "Duration of the remote analysis call in seconds",
			Buckets: []float64{0.5, 1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"model"},
	)

	// ScoresRescaledTotal counts results whose importance scores had to be rebalanced.
	ScoresRescaledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syllabus_scores_rescaled_total",
			Help: "Total number of results whose importance scores were rescaled",
		},
		[]string{"strategy"},
	)

	// SessionsActive is the number of sessions held by the HTTP server.
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "syllabus_sessions_active",
			Help: "Number of in-memory analysis sessions",
		},
	)

	// HTTPRequestsTotal counts HTTP requests by method and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syllabus_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	// RateLimitedTotal counts requests rejected by the rate limiter, by quota.
	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syllabus_http_rate_limited_total",
			Help: "Total number of requests rejected with 429",
		},
		[]string{"quota"},
	)
)
