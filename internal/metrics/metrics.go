// Package metrics exposes pipeline run metrics for Prometheus.
package metrics

import (
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/cademycode/internal/core"
	"github.com/JonMunkholm/cademycode/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "cademycode_pipeline"

// Recorder collects run and diagnostics metrics on its own registry.
// It is a core.Diagnostics sink and a pipeline.Observer.
type Recorder struct {
	registry *prometheus.Registry

	runsTotal     *prometheus.CounterVec
	runDuration   prometheus.Histogram
	lastRunTime   *prometheus.GaugeVec
	rowsExtracted *prometheus.CounterVec
	rowsLoaded    *prometheus.CounterVec
	rowsDropped   *prometheus.CounterVec
	warnings      *prometheus.CounterVec
	dangling      *prometheus.CounterVec
}

// NewRecorder creates a Recorder and registers its collectors.
func NewRecorder(namespace string) *Recorder {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	r := &Recorder{registry: prometheus.NewRegistry()}

	r.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by outcome",
		},
		[]string{"status"},
	)
	r.runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of pipeline runs in seconds",
			Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
	)
	r.lastRunTime = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished, by outcome",
		},
		[]string{"status"},
	)
	r.rowsExtracted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_extracted_total",
			Help:      "Rows read from the source",
		},
		[]string{"table"},
	)
	r.rowsLoaded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_loaded_total",
			Help:      "Rows written to the destination",
		},
		[]string{"table"},
	)
	r.rowsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Rows dropped for a missing primary identifier",
		},
		[]string{"table"},
	)
	r.warnings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warnings_total",
			Help:      "Data-quality warnings by table and kind",
		},
		[]string{"table", "kind"},
	)
	r.dangling = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dangling_references_total",
			Help:      "Student rows referencing a missing job or course",
		},
		[]string{"field"},
	)

	r.registry.MustRegister(
		r.runsTotal,
		r.runDuration,
		r.lastRunTime,
		r.rowsExtracted,
		r.rowsLoaded,
		r.rowsDropped,
		r.warnings,
		r.dangling,
	)

	slog.Debug("metrics recorder initialized", "namespace", namespace)
	return r
}

// Registry returns the registry the collectors are registered on.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Emit counts warning events. Debug and info events are ignored.
func (r *Recorder) Emit(e core.Event) {
	if e.Severity != core.SeverityWarning {
		return
	}

	r.warnings.WithLabelValues(e.Table, string(e.Kind)).Inc()

	switch e.Kind {
	case core.KindRowsDropped:
		r.rowsDropped.WithLabelValues(e.Table).Add(float64(e.Count))
	case core.KindDanglingReference:
		r.dangling.WithLabelValues(e.Field).Add(float64(e.Count))
	}
}

// ObserveRun records the outcome and row counts of a finished run.
func (r *Recorder) ObserveRun(s *pipeline.Summary) {
	status := string(s.Status)
	r.runsTotal.WithLabelValues(status).Inc()
	r.runDuration.Observe(s.Duration().Seconds())
	r.lastRunTime.WithLabelValues(status).Set(float64(s.FinishedAt.Unix()))

	for table, st := range s.Tables {
		r.rowsExtracted.WithLabelValues(table).Add(float64(st.Extracted))
		r.rowsLoaded.WithLabelValues(table).Add(float64(st.Loaded))
	}
}

var (
	_ core.Diagnostics  = (*Recorder)(nil)
	_ pipeline.Observer = (*Recorder)(nil)
)
