package pipeline

import "github.com/prometheus/client_golang/prometheus"

var (
	stepRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recently_played_step_runs_total",
			Help: "Pipeline step executions by outcome",
		},
		[]string{"step", "status"},
	)
	stepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recently_played_step_duration_seconds",
			Help:    "Pipeline step execution time",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"step"},
	)
	rowsFetched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recently_played_rows_fetched_total",
			Help: "Play events written to staged files",
		},
	)
	rowsLoaded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recently_played_rows_loaded_total",
			Help: "Rows bulk-loaded into recently_played_songs",
		},
	)
)

// RegisterMetrics registers the pipeline collectors with the default registry.
// Call it once at startup.
func RegisterMetrics() {
	prometheus.MustRegister(stepRuns, stepDuration, rowsFetched, rowsLoaded)
}
