// Package metrics counts pipeline activity and pushes it to a Prometheus
// Pushgateway at the end of a run.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "docgraph"

// Metrics holds the collectors for one process. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	documentsDiscovered prometheus.Counter
	documentsProcessed  *prometheus.CounterVec
	entitiesResolved    *prometheus.CounterVec
	indexWrites         *prometheus.CounterVec
	stageDuration       *prometheus.HistogramVec
	runsAborted         prometheus.Counter
}

// New creates the collectors on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		documentsDiscovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_discovered_total",
			Help:      "Document links found on seed pages.",
		}),
		documentsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_processed_total",
			Help:      "Documents processed, by outcome.",
		}, []string{"outcome"}),
		entitiesResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_resolved_total",
			Help:      "Author and keyword resolutions, by kind and source.",
		}, []string{"kind", "source"}),
		indexWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_writes_total",
			Help:      "Search index upserts, by result.",
		}, []string{"result"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent per pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"stage"}),
		runsAborted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_aborted_total",
			Help:      "Runs stopped after repeated infrastructure failures.",
		}),
	}

	m.registry.MustRegister(
		m.documentsDiscovered,
		m.documentsProcessed,
		m.entitiesResolved,
		m.indexWrites,
		m.stageDuration,
		m.runsAborted,
	)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) DocumentsDiscovered(n int) {
	if m == nil {
		return
	}
	m.documentsDiscovered.Add(float64(n))
}

// DocumentProcessed records one finished document. outcome is "success" or
// a failure kind such as "fetch" or "ingest".
func (m *Metrics) DocumentProcessed(outcome string) {
	if m == nil {
		return
	}
	m.documentsProcessed.WithLabelValues(outcome).Inc()
}

// EntityResolved records one resolution. source is "cache", "lookup" or "created".
func (m *Metrics) EntityResolved(kind, source string) {
	if m == nil {
		return
	}
	m.entitiesResolved.WithLabelValues(kind, source).Inc()
}

func (m *Metrics) IndexWrite(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.indexWrites.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveStage(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(seconds)
}

func (m *Metrics) RunAborted() {
	if m == nil {
		return
	}
	m.runsAborted.Inc()
}

// Push sends every collector to the gateway at url, grouped by run id
func (m *Metrics) Push(ctx context.Context, url, runID string) error {
	if m == nil || url == "" {
		return nil
	}
	err := push.New(url, namespace).
		Gatherer(m.registry).
		Grouping("run_id", runID).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}
