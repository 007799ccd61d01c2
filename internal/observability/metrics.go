package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gaia_diary"

// Metrics holds the Prometheus counters, histograms, and gauges for both stages
// and the Kafka workers that drive them.
type Metrics struct {
	DiariesWritten    prometheus.Counter
	NarrativesWritten prometheus.Counter
	StageErrors       *prometheus.CounterVec   // labels: stage, kind
	StageDuration     *prometheus.HistogramVec // labels: stage={diary,narrative}
	EventsDerived     *prometheus.CounterVec   // labels: type, severity

	// Text generation backend.
	TextGenRequests *prometheus.CounterVec // labels: outcome={success,error,empty}
	TextGenDuration prometheus.Histogram
	PromptTokens    prometheus.Histogram

	// Worker loop.
	MessagesConsumed *prometheus.CounterVec // labels: worker
	MessagesProduced *prometheus.CounterVec // labels: worker
	MessageErrors    *prometheus.CounterVec // labels: worker
	WorkerRunning    *prometheus.GaugeVec   // labels: worker
	BatchSize        prometheus.Histogram
}

func newMetrics() *Metrics {
	return &Metrics{
		DiariesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diaries_written_total",
			Help:      "Total diary records persisted.",
		}),
		NarrativesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "narratives_written_total",
			Help:      "Total narrative records persisted.",
		}),
		StageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_errors_total",
			Help:      "Stage failures by step and error kind.",
		}, []string{"stage", "kind"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of a complete diary or narrative invocation.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		EventsDerived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_derived_total",
			Help:      "Events written into diaries by type and severity.",
		}, []string{"type", "severity"}),
		TextGenRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "textgen_requests_total",
			Help:      "Text generation requests by outcome.",
		}, []string{"outcome"}),
		TextGenDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "textgen_duration_seconds",
			Help:      "Text generation backend latency in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		PromptTokens: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prompt_tokens",
			Help:      "Approximate prompt size in tokens.",
			Buckets:   []float64{32, 64, 128, 256, 512, 1024},
		}),
		MessagesConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      "Total messages read from source topics.",
		}, []string{"worker"}),
		MessagesProduced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_produced_total",
			Help:      "Total notifications written to sink topics.",
		}, []string{"worker"}),
		MessageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "message_errors_total",
			Help:      "Messages skipped because their stage invocation failed.",
		}, []string{"worker"}),
		WorkerRunning: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_running",
			Help:      "1 when the worker loop is active, 0 when shut down.",
		}, []string{"worker"}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of messages per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.DiariesWritten,
		m.NarrativesWritten,
		m.StageErrors,
		m.StageDuration,
		m.EventsDerived,
		m.TextGenRequests,
		m.TextGenDuration,
		m.PromptTokens,
		m.MessagesConsumed,
		m.MessagesProduced,
		m.MessageErrors,
		m.WorkerRunning,
		m.BatchSize,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
