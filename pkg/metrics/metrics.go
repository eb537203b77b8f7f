// Package metrics holds the prometheus collectors of the service on their own
// registry, so tests can build as many as they like.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rrna16s"

// Outcome labels for pipeline runs.
const (
	OutcomeCompleted      = "completed"
	OutcomeFailed         = "failed"
	OutcomeFault          = "fault"
	OutcomeResultsMissing = "results_missing"
	OutcomeParseError     = "parse_error"
	OutcomeStoreError     = "store_error"
	OutcomePanic          = "panic"
)

type Metrics struct {
	registry *prometheus.Registry

	Submissions     prometheus.Counter
	PipelineRuns    *prometheus.CounterVec
	PipelineSeconds prometheus.Histogram
	ResultRecords   prometheus.Counter
	FieldAnomalies  prometheus.Counter
	QueueDepth      prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Submissions accepted and stored.",
		}),
		PipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by how they ended.",
		}, []string{"outcome"}),
		PipelineSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Wall time of the pipeline subprocess.",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 10),
		}),
		ResultRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_records_total",
			Help:      "BLAST result records stored.",
		}),
		FieldAnomalies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_field_anomalies_total",
			Help:      "Numeric result cells that did not parse and were stored as absent.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Submissions waiting for a worker.",
		}),
	}

	m.registry.MustRegister(
		m.Submissions,
		m.PipelineRuns,
		m.PipelineSeconds,
		m.ResultRecords,
		m.FieldAnomalies,
		m.QueueDepth,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry is exposed for tests that want to gather directly.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Run counts one pipeline run. Nil receivers are allowed so components can be
// built without metrics in tests.
func (m *Metrics) Run(outcome string) {
	if m == nil {
		return
	}
	m.PipelineRuns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.PipelineSeconds.Observe(d.Seconds())
}

func (m *Metrics) Records(records, anomalies int) {
	if m == nil {
		return
	}
	m.ResultRecords.Add(float64(records))
	m.FieldAnomalies.Add(float64(anomalies))
}

func (m *Metrics) Submitted() {
	if m == nil {
		return
	}
	m.Submissions.Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}
