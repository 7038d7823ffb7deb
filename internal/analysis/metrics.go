package analysis

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK       = "ok"
	outcomeDegraded = "degraded"
	outcomeError    = "error"
)

var (
	// analysisRuns counts pipeline runs by focus and outcome (ok|degraded|error).
	analysisRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_requests_total",
			Help: "Total number of code analysis runs.",
		},
		[]string{"focus", "outcome"},
	)

	// analysisLat is dominated by the model round trip.
	analysisLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analysis_duration_seconds",
			Help:    "Duration of code analysis runs in seconds.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"focus"},
	)
)

func init() {
	prometheus.MustRegister(analysisRuns, analysisLat)
}

func observe(focus Focus, outcome string, d time.Duration) {
	analysisRuns.WithLabelValues(string(focus), outcome).Inc()
	analysisLat.WithLabelValues(string(focus)).Observe(d.Seconds())
}
