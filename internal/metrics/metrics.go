package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Recommendation serving
	RecommendationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_requests_total",
			Help: "Total number of recommendation requests by operation",
		},
		[]string{"operation"},
	)

	RecommendationResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommendation_results",
			Help:    "Number of merged recommendations returned per request",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)

	ProducerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommendation_producer_duration_seconds",
			Help:    "Duration of a single recommendation producer",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"producer"},
	)

	ProducerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_producer_failures_total",
			Help: "Producers that failed and were skipped",
		},
		[]string{"producer", "reason"}, // reason: "error", "panic"
	)

	// Interest model lifecycle
	TrainingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interest_model_training_runs_total",
			Help: "Training attempts by outcome",
		},
		[]string{"outcome"}, // "trained", "skipped", "busy", "insufficient_data", "failed"
	)

	TrainingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "interest_model_training_duration_seconds",
			Help:    "Duration of successful training runs",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)

	ModelSamples = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "interest_model_training_samples",
			Help: "Number of samples the active model was trained on",
		},
	)

	ModelR2 = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "interest_model_r2",
			Help: "Hold-out R squared of the active model",
		},
	)

	SchemaMismatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "interest_model_schema_mismatches_total",
			Help: "Predictions that zero-filled columns missing from the input",
		},
	)

	// Interaction logging
	InteractionsQueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interactions_queued_total",
			Help: "Interaction events accepted or rejected by the queue",
		},
		[]string{"status"}, // "accepted", "rejected"
	)

	InteractionBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interaction_batches_total",
			Help: "Interaction batches persisted by outcome",
		},
		[]string{"outcome"}, // "persisted", "failed"
	)
)

// RecordProducer observes one producer run.
func RecordProducer(producer string, duration time.Duration, reason string) {
	ProducerDuration.WithLabelValues(producer).Observe(duration.Seconds())
	if reason != "" {
		ProducerFailures.WithLabelValues(producer, reason).Inc()
	}
}

// RecordTraining observes a training attempt.
func RecordTraining(outcome string, duration time.Duration) {
	TrainingRuns.WithLabelValues(outcome).Inc()
	if outcome == "trained" {
		TrainingDuration.Observe(duration.Seconds())
	}
}
