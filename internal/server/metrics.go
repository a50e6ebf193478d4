package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for findRequests.
const (
	outcomeOK          = "ok"
	outcomeClientError = "client_error"
	outcomeError       = "error"
)

var (
	// findRequests counts find requests by outcome.
	findRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "treefind",
			Subsystem: "http",
			Name:      "find_requests_total",
			Help:      "Total find requests by outcome (ok, client_error, error)",
		},
		[]string{"outcome"},
	)

	// findDuration tracks how long successful find requests take.
	findDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "treefind",
			Subsystem: "http",
			Name:      "find_duration_seconds",
			Help:      "Duration of successful find requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// findMatches tracks how many files successful find requests return.
	findMatches = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "treefind",
			Subsystem: "http",
			Name:      "find_matched_files",
			Help:      "Number of files returned per successful find request",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)
)
