package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the report pipeline.
type Metrics struct {
	// Per-message outcomes
	ReportsProcessed *prometheus.CounterVec

	// Decider output
	DecideProbability prometheus.Histogram

	// End-to-end handling time
	ProcessDuration prometheus.Histogram
}

// Message outcome labels.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeDropped  = "dropped"
)

// NewMetrics creates and registers all pipeline metrics on the given
// registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ReportsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_reports_processed_total",
				Help: "Total reports consumed from report_queue by outcome",
			},
			[]string{"outcome"},
		),

		DecideProbability: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pipeline_decide_probability",
				Help:    "Logistic acceptance probability emitted by the decider",
				Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
			},
		),

		ProcessDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pipeline_process_duration_seconds",
				Help:    "Time spent handling one dequeued report",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}
