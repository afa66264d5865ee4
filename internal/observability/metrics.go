package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "covid_trends"

// Metrics holds the Prometheus counters, histograms, and gauges for the chart pipeline.
type Metrics struct {
	PipelineRunning prometheus.Gauge
	RunDuration     prometheus.Histogram
	RunsTotal       *prometheus.CounterVec // labels: outcome={success,error}
	LastSuccess     prometheus.Gauge

	// Source fetch metrics.
	FetchRequests *prometheus.CounterVec   // labels: dataset, outcome={success,error}
	FetchDuration *prometheus.HistogramVec // labels: dataset

	// Normalization metrics.
	Observations *prometheus.CounterVec // labels: dataset
	UndatedCells *prometheus.CounterVec // labels: dataset

	// Output metrics.
	ChartsRendered     *prometheus.CounterVec // labels: artifact
	QualityFlags       *prometheus.CounterVec // labels: check
	SummariesPublished prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.PipelineRunning,
		m.RunDuration,
		m.RunsTotal,
		m.LastSuccess,
		m.FetchRequests,
		m.FetchDuration,
		m.Observations,
		m.UndatedCells,
		m.ChartsRendered,
		m.QualityFlags,
		m.SummariesPublished,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is in progress, 0 otherwise.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete fetch-aggregate-render run.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "Source CSV downloads by dataset and outcome.",
		}, []string{"dataset", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Source CSV download duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"dataset"}),
		Observations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_total",
			Help:      "Long-format observations produced by the normalizer.",
		}, []string{"dataset"}),
		UndatedCells: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "undated_observations_total",
			Help:      "Observations whose column label did not parse as a date.",
		}, []string{"dataset"}),
		ChartsRendered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_rendered_total",
			Help:      "Rendered output artifacts by name.",
		}, []string{"artifact"}),
		QualityFlags: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quality_flags_total",
			Help:      "Data-quality flags raised by check.",
		}, []string{"check"}),
		SummariesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_published_total",
			Help:      "Country summaries written to the Kafka sink.",
		}),
	}
}
