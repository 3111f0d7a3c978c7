package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stepstats/cache-analyzer/internal/core/domain"
)

// AnalysisMetrics instruments bulk analysis runs: scan progress, miss
// classification distribution, report output, and run outcomes.
type AnalysisMetrics struct {
	registry *prometheus.Registry
	service  string

	runsTotal            *prometheus.CounterVec
	runDuration          *prometheus.HistogramVec
	runsInFlight         prometheus.Gauge
	pagesTotal           prometheus.Counter
	recordsTotal         prometheus.Counter
	classificationsTotal *prometheus.CounterVec
	reportsWrittenTotal  *prometheus.CounterVec
}

func NewAnalysisMetrics(service string) *AnalysisMetrics {
	registry := prometheus.NewRegistry()
	serviceLabels := prometheus.Labels{"service": service}

	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cachestats",
			Subsystem: "analysis",
			Name:      "runs_total",
			Help:      "Total completed analysis runs by status.",
		},
		[]string{"service", "status"},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cachestats",
			Subsystem: "analysis",
			Name:      "run_duration_seconds",
			Help:      "Analysis run duration in seconds by status.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800},
		},
		[]string{"service", "status"},
	)
	runsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "cachestats",
			Subsystem:   "analysis",
			Name:        "runs_in_flight",
			Help:        "Number of in-flight analysis runs.",
			ConstLabels: serviceLabels,
		},
	)
	pagesTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   "cachestats",
			Subsystem:   "scan",
			Name:        "pages_total",
			Help:        "Total record source pages fetched.",
			ConstLabels: serviceLabels,
		},
	)
	recordsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   "cachestats",
			Subsystem:   "scan",
			Name:        "records_total",
			Help:        "Total records pulled from the record source.",
			ConstLabels: serviceLabels,
		},
	)
	classificationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cachestats",
			Subsystem: "analysis",
			Name:      "miss_classifications_total",
			Help:      "Total classified cache misses by category.",
		},
		[]string{"service", "category"},
	)
	reportsWrittenTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cachestats",
			Subsystem: "analysis",
			Name:      "reports_written_total",
			Help:      "Total report documents written by kind.",
		},
		[]string{"service", "kind"},
	)

	registry.MustRegister(
		runsTotal,
		runDuration,
		runsInFlight,
		pagesTotal,
		recordsTotal,
		classificationsTotal,
		reportsWrittenTotal,
	)

	return &AnalysisMetrics{
		registry:             registry,
		service:              service,
		runsTotal:            runsTotal,
		runDuration:          runDuration,
		runsInFlight:         runsInFlight,
		pagesTotal:           pagesTotal,
		recordsTotal:         recordsTotal,
		classificationsTotal: classificationsTotal,
		reportsWrittenTotal:  reportsWrittenTotal,
	}
}

func (m *AnalysisMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *AnalysisMetrics) StartRun() {
	m.runsInFlight.Inc()
}

func (m *AnalysisMetrics) FinishRun(duration time.Duration, err error) {
	m.runsInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	m.runsTotal.WithLabelValues(m.service, status).Inc()
	m.runDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

// PageScanned satisfies the record source's scan observer.
func (m *AnalysisMetrics) PageScanned(records int) {
	m.pagesTotal.Inc()
	m.recordsTotal.Add(float64(records))
}

func (m *AnalysisMetrics) MissClassified(category domain.Category) {
	m.classificationsTotal.WithLabelValues(m.service, string(category)).Inc()
}

func (m *AnalysisMetrics) ReportWritten(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	m.reportsWrittenTotal.WithLabelValues(m.service, kind).Inc()
}
