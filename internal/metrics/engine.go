package metrics

import "github.com/prometheus/client_golang/prometheus"

// Engine metrics cover the processing state machine rather than the HTTP
// surface. Registered explicitly (no init()) so batch runs that never build
// the engine keep a clean registry.
var (
	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mongodrift",
			Name:      "transitions_total",
			Help:      "Version transitions executed, by outcome",
		},
		[]string{"status"},
	)

	StepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mongodrift",
			Name:      "step_duration_seconds",
			Help:      "Duration of one transition step",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 60, 300, 600},
		},
		[]string{"step"},
	)

	ValidationErrors = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mongodrift",
			Name:      "validation_errors",
			Help:      "Errors reported by the last pre-run validation pass",
		},
	)
)

// RegisterEngineMetrics registers the processing metrics with the default
// registry.
func RegisterEngineMetrics() {
	prometheus.MustRegister(TransitionsTotal)
	prometheus.MustRegister(StepDuration)
	prometheus.MustRegister(ValidationErrors)
}
