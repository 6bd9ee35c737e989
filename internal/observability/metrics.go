// Package observability provides Prometheus metrics for monitoring analysis runs.
package observability

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"solana-telemetry-lab/internal/domain"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusSkipped = "skipped"
)

// Metrics holds all Prometheus metrics for one process. Each instance owns its registry,
// so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	// Fetch metrics
	FetchDuration  *prometheus.HistogramVec
	FetchErrors    *prometheus.CounterVec
	RecordsFetched prometheus.Gauge

	// Dataset metrics
	DatasetRows prometheus.Gauge

	// Model metrics
	ModelRunsTotal *prometheus.CounterVec
	ModelDuration  *prometheus.HistogramVec

	// Probe metrics
	ProbeRunsTotal *prometheus.CounterVec

	// RPC metrics
	RPCCallLatency *prometheus.HistogramVec
	RPCCallErrors  *prometheus.CounterVec

	// Pipeline metrics
	PipelineRunsTotal *prometheus.CounterVec
	PipelineDuration  prometheus.Histogram
	SinkWritesTotal   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered on a fresh registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_telemetry_lab"
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		FetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "duration_seconds",
			Help:      "Telemetry fetch duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		FetchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "errors_total",
			Help:      "Total number of fetch failures by error kind",
		}, []string{"kind"}),
		RecordsFetched: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "records",
			Help:      "Number of telemetry records in the last fetch",
		}),

		DatasetRows: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "features",
			Name:      "dataset_rows",
			Help:      "Number of rows in the last feature dataset",
		}),

		ModelRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "models",
			Name:      "runs_total",
			Help:      "Total number of model fits by kind and status",
		}, []string{"model", "status"}),
		ModelDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "models",
			Name:      "duration_seconds",
			Help:      "Model fit duration in seconds",
			Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 1, 5},
		}, []string{"model"}),

		ProbeRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "probe",
			Name:      "runs_total",
			Help:      "Total number of node health probes by status",
		}, []string{"status"}),

		RPCCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_errors_total",
			Help:      "Total number of failed Solana RPC calls",
		}, []string{"method"}),

		PipelineRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by status",
		}, []string{"status"}),
		PipelineDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Pipeline execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}),
		SinkWritesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "sink_writes_total",
			Help:      "Total number of report sink writes by sink and status",
		}, []string{"sink", "status"}),

		LastSuccessfulRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last run that produced a report",
		}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes all metrics in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// All Record methods are no-ops on a nil receiver.

// RecordFetch records one fetch attempt.
func (m *Metrics) RecordFetch(source string, elapsed time.Duration, records int, err error) {
	if m == nil {
		return
	}
	m.FetchDuration.WithLabelValues(source).Observe(elapsed.Seconds())
	if err != nil {
		m.FetchErrors.WithLabelValues(errorKind(err)).Inc()
		return
	}
	m.RecordsFetched.Set(float64(records))
}

// RecordDataset records the size of the built dataset.
func (m *Metrics) RecordDataset(rows int) {
	if m == nil {
		return
	}
	m.DatasetRows.Set(float64(rows))
}

// RecordModels records every model result of a run.
func (m *Metrics) RecordModels(results domain.ModelResults) {
	if m == nil {
		return
	}
	for kind, res := range results {
		status := StatusSuccess
		if !res.OK() {
			status = StatusFailure
		}
		m.ModelRunsTotal.WithLabelValues(string(kind), status).Inc()
		m.ModelDuration.WithLabelValues(string(kind)).Observe(res.Duration.Seconds())
	}
}

// RecordProbe records a probe outcome.
func (m *Metrics) RecordProbe(status string) {
	if m == nil {
		return
	}
	m.ProbeRunsTotal.WithLabelValues(status).Inc()
}

// RecordRPCLatency records RPC call latency and failures.
func (m *Metrics) RecordRPCLatency(method string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.RPCCallLatency.WithLabelValues(method).Observe(elapsed.Seconds())
	if err != nil {
		m.RPCCallErrors.WithLabelValues(method).Inc()
	}
}

// RecordSink records a report sink write.
func (m *Metrics) RecordSink(sink string, err error) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	}
	m.SinkWritesTotal.WithLabelValues(sink, status).Inc()
}

// RecordPipelineRun records a pipeline run.
func (m *Metrics) RecordPipelineRun(status string, elapsed time.Duration, finished time.Time) {
	if m == nil {
		return
	}
	m.PipelineRunsTotal.WithLabelValues(status).Inc()
	m.PipelineDuration.Observe(elapsed.Seconds())
	if status == StatusSuccess {
		m.LastSuccessfulRun.Set(float64(finished.Unix()))
	}
}

// errorKind maps a stage error onto a low-cardinality label.
func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrTransport):
		return "transport"
	case errors.Is(err, domain.ErrDecode):
		return "decode"
	default:
		return "other"
	}
}
