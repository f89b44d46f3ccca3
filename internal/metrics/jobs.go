package metrics

import "github.com/prometheus/client_golang/prometheus"

// Background job Prometheus metrics.
var (
	jobsStartedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agridex",
			Name:      "jobs_started_total",
			Help:      "Total number of background jobs started",
		},
		[]string{"kind"},
	)

	jobsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agridex",
			Name:      "jobs_finished_total",
			Help:      "Total number of background jobs finished",
		},
		[]string{"kind", "status"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agridex",
			Name:      "job_duration_seconds",
			Help:      "Background job duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"kind"},
	)
)

var jobMetricsRegistered bool

// RegisterJobMetrics registers Prometheus job metrics. Must be called once from main.
func RegisterJobMetrics() {
	if jobMetricsRegistered {
		return
	}
	prometheus.MustRegister(jobsStartedTotal)
	prometheus.MustRegister(jobsFinishedTotal)
	prometheus.MustRegister(jobDuration)
	jobMetricsRegistered = true
}

// JobStarted records a background job start.
func JobStarted(kind string) {
	jobsStartedTotal.WithLabelValues(kind).Inc()
}

// JobFinished records a background job's terminal status and duration.
func JobFinished(kind, status string, seconds float64) {
	jobsFinishedTotal.WithLabelValues(kind, status).Inc()
	jobDuration.WithLabelValues(kind).Observe(seconds)
}
