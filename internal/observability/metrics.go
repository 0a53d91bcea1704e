// Package observability provides Prometheus metrics for the ingestion and
// normalization pipeline.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "eventlake"

// Outcome label values.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// Metrics holds every collector the pipeline reports to. A nil *Metrics is
// valid and records nothing, so components can be built without metrics.
type Metrics struct {
	registry *prometheus.Registry

	eventsIngested  *prometheus.CounterVec
	streamPublishes *prometheus.CounterVec
	batchesWritten  *prometheus.CounterVec
	batchItems      prometheus.Counter
	normalizeFiles  prometheus.Counter
	normalizeRows   *prometheus.CounterVec
	normalizeRuns   *prometheus.CounterVec
	normalizeLast   *prometheus.GaugeVec
	changeRecords   *prometheus.CounterVec
	relayChanges    prometheus.Counter
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// NewMetrics creates a Metrics backed by its own registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		eventsIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: "ingest", Name: "events_total", Help: "Interaction events accepted by the ingestor, by outcome."},
			[]string{"outcome"},
		),
		streamPublishes: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: "stream", Name: "publishes_total", Help: "Stream publish attempts, by outcome."},
			[]string{"outcome"},
		),
		batchesWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: "batch", Name: "writes_total", Help: "Batch objects written to the data lake, by outcome."},
			[]string{"outcome"},
		),
		batchItems: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: "batch", Name: "items_total", Help: "Decoded records written inside batch objects."},
		),
		normalizeFiles: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: "normalize", Name: "files_total", Help: "Input files read by normalization jobs."},
		),
		normalizeRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: "normalize", Name: "rows_total", Help: "Rows seen by normalization jobs, by stage."},
			[]string{"stage"},
		),
		normalizeRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: "normalize", Name: "runs_total", Help: "Normalization job runs, by outcome."},
			[]string{"outcome"},
		),
		normalizeLast: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Namespace: namespace, Subsystem: "normalize", Name: "last_run_rows", Help: "Row counts of the most recent normalization run, by stage."},
			[]string{"stage"},
		),
		changeRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: "changefeed", Name: "records_total", Help: "Change records seen by the extractor, by result."},
			[]string{"result"},
		),
		relayChanges: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: "relay", Name: "changes_total", Help: "Local change records forwarded by the relay."},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: "http", Name: "requests_total", Help: "HTTP requests, by route and status code."},
			[]string{"route", "code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds", Help: "HTTP request latency.", Buckets: prometheus.DefBuckets},
			[]string{"route"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.eventsIngested,
		m.streamPublishes,
		m.batchesWritten,
		m.batchItems,
		m.normalizeFiles,
		m.normalizeRows,
		m.normalizeRuns,
		m.normalizeLast,
		m.changeRecords,
		m.relayChanges,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}

// EventIngested records the outcome of one ingest call.
func (m *Metrics) EventIngested(err error) {
	if m == nil {
		return
	}
	m.eventsIngested.WithLabelValues(outcome(err)).Inc()
}

// StreamPublished records a publish attempt. A nil publisher counts as skipped.
func (m *Metrics) StreamPublished(skipped bool, err error) {
	if m == nil {
		return
	}
	if skipped {
		m.streamPublishes.WithLabelValues(OutcomeSkipped).Inc()
		return
	}
	m.streamPublishes.WithLabelValues(outcome(err)).Inc()
}

// BatchWritten records a batch write and, on success, its item count.
func (m *Metrics) BatchWritten(items int, err error) {
	if m == nil {
		return
	}
	m.batchesWritten.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		m.batchItems.Add(float64(items))
	}
}

// NormalizeRun records one normalization job run.
func (m *Metrics) NormalizeRun(files, inputRows, outputRows int, err error) {
	if m == nil {
		return
	}
	m.normalizeRuns.WithLabelValues(outcome(err)).Inc()
	m.normalizeFiles.Add(float64(files))
	m.normalizeRows.WithLabelValues("input").Add(float64(inputRows))
	m.normalizeRows.WithLabelValues("output").Add(float64(outputRows))
	m.normalizeLast.WithLabelValues("input").Set(float64(inputRows))
	m.normalizeLast.WithLabelValues("output").Set(float64(outputRows))
}

// ChangesExtracted records how many change records became items and how
// many were skipped.
func (m *Metrics) ChangesExtracted(extracted, skipped int) {
	if m == nil {
		return
	}
	m.changeRecords.WithLabelValues("extracted").Add(float64(extracted))
	m.changeRecords.WithLabelValues("skipped").Add(float64(skipped))
}

// RelayForwarded records change records pushed through the relay.
func (m *Metrics) RelayForwarded(n int) {
	if m == nil {
		return
	}
	m.relayChanges.Add(float64(n))
}

// ObserveHTTP records one finished HTTP request.
func (m *Metrics) ObserveHTTP(route, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, code).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
