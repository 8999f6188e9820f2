package observability

import (
	"github.com/couchcryptid/aviation-weather-etl/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wx_engine"

// Metrics holds the Prometheus counters, histograms, and gauges for the engine.
type Metrics struct {
	// Load cycle metrics.
	LoadsTotal       *prometheus.CounterVec   // labels: source, outcome={success,empty,error}
	LoadDuration     *prometheus.HistogramVec // labels: source
	RecordsParsed    *prometheus.CounterVec   // labels: source
	RecordsSkipped   *prometheus.CounterVec   // labels: source, reason
	ObservationsHeld *prometheus.GaugeVec     // labels: source
	StationsKnown    prometheus.Gauge
	SchedulerRunning prometheus.Gauge

	// Fetch metrics.
	FetchDuration *prometheus.HistogramVec // labels: source
	FetchCache    *prometheus.CounterVec   // labels: result={hit,miss}

	// Classification metrics.
	ColorChanges *prometheus.CounterVec // labels: severity

	// Output metrics.
	MessagesProduced prometheus.Counter
	PublishErrors    prometheus.Counter
}

// NewMetrics creates and registers all engine metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, so
// tests can build as many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// Register adds the metrics to a caller-supplied registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func newMetrics() *Metrics {
	return &Metrics{
		LoadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_total",
			Help:      "Document loads by source and outcome.",
		}, []string{"source", "outcome"}),
		LoadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_duration_seconds",
			Help:      "Duration of a complete fetch-parse-classify load.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		RecordsParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_parsed_total",
			Help:      "Observations parsed from documents.",
		}, []string{"source"}),
		RecordsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_skipped_total",
			Help:      "Reports skipped during parsing, by reason.",
		}, []string{"source", "reason"}),
		ObservationsHeld: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "observations",
			Help:      "Observations in the current collection of each source.",
		}, []string{"source"}),
		StationsKnown: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stations",
			Help:      "Stations in the registry.",
		}),
		SchedulerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_running",
			Help:      "1 when the refresh scheduler is active, 0 when shut down.",
		}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Document fetch duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source"}),
		FetchCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_cache_total",
			Help:      "Document cache lookups by result.",
		}, []string{"result"}),
		ColorChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "color_changes_total",
			Help:      "Property color changes by new severity.",
		}, []string{"severity"}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_produced_total",
			Help:      "Observation snapshots written to the output topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed snapshot publishes.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.LoadsTotal,
		m.LoadDuration,
		m.RecordsParsed,
		m.RecordsSkipped,
		m.ObservationsHeld,
		m.StationsKnown,
		m.SchedulerRunning,
		m.FetchDuration,
		m.FetchCache,
		m.ColorChanges,
		m.MessagesProduced,
		m.PublishErrors,
	}
}

// ObserveColorChange counts a property color change. It satisfies
// domain.ColorObserver.
func (m *Metrics) ObserveColorChange(_ *domain.Property, _, current domain.Severity) {
	label := current.String()
	if label == "" {
		label = "none"
	}
	m.ColorChanges.WithLabelValues(label).Inc()
}
