package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraud_relay",
			Name:      "messages_received_total",
			Help:      "Kafka messages pulled by the relay",
		},
		[]string{"topic"},
	)

	RecordsScored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraud_relay",
			Name:      "records_scored_total",
			Help:      "Records that left the scoring stage, by outcome (clean, fraud, sentinel)",
		},
		[]string{"outcome"},
	)

	SerializationErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fraud_relay",
			Name:      "serialization_errors_total",
			Help:      "Input records skipped because they could not be decoded",
		},
	)

	ConnectivityErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraud_relay",
			Name:      "connectivity_errors_total",
			Help:      "Transient failures reaching a dependency",
		},
		[]string{"component"},
	)

	AlertsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraud_relay",
			Name:      "alerts_published_total",
			Help:      "Alert records acknowledged by the output topic",
		},
		[]string{"topic"},
	)

	PublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraud_relay",
			Name:      "publish_failures_total",
			Help:      "Batches whose alerts could not be published after retries",
		},
		[]string{"topic"},
	)

	DeadLetters = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraud_relay",
			Name:      "dead_letters_total",
			Help:      "Skipped input records copied to the dead-letter topic, by result (sent, failed)",
		},
		[]string{"result"},
	)

	ScoringLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fraud_relay",
			Name:      "scoring_latency_seconds",
			Help:      "Scoring round-trip latency per batch, retries included",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
	)

	InflightBatches = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fraud_relay",
			Name:      "inflight_batches",
			Help:      "Batches currently being scored (semaphore depth)",
		},
	)

	RelayState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fraud_relay",
			Name:      "state",
			Help:      "Current relay loop state (0 idle, 1 fetching, 2 scoring, 3 publishing, 4 draining, 5 stopped)",
		},
	)
)

// Scoring outcome label values
const (
	OutcomeClean    = "clean"
	OutcomeFraud    = "fraud"
	OutcomeSentinel = "sentinel"
)

// Dead-letter result label values
const (
	DeadLetterSent   = "sent"
	DeadLetterFailed = "failed"
)
