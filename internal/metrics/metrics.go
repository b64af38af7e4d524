// Package metrics exposes prometheus collectors for the import pipeline.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/SAP-F-2025/roster-import-service/internal/importer"
)

const namespace = "roster_import"

type Metrics struct {
	MappingDecisions   *prometheus.CounterVec
	MappingCacheLookup *prometheus.CounterVec
	AIRequests         *prometheus.CounterVec
	AILatency          prometheus.Histogram
	SimulationRows     *prometheus.CounterVec
	SimulationDuration prometheus.Histogram
	CommitRows         *prometheus.CounterVec
	UndoneRows         *prometheus.CounterVec
	CachePurged        *prometheus.CounterVec
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		MappingDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "mapping_decisions_total",
			Help: "Column mapping decisions by strategy.",
		}, []string{"strategy"}),
		MappingCacheLookup: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "mapping_cache_lookups_total",
			Help: "Mapping cache lookups by result (hit, miss, error).",
		}, []string{"result"}),
		AIRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "ai_requests_total",
			Help: "AI mapping assistant calls by outcome (suggested, empty, error).",
		}, []string{"outcome"}),
		AILatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "ai_request_duration_seconds",
			Help:    "AI mapping assistant latency.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		}),
		SimulationRows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "simulation_rows_total",
			Help: "Simulated rows by predicted action.",
		}, []string{"action"}),
		SimulationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "simulation_duration_seconds",
			Help:    "Time to simulate one import.",
			Buckets: prometheus.DefBuckets,
		}),
		CommitRows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "commit_rows_total",
			Help: "Committed rows by outcome (created, updated, skipped, failed).",
		}, []string{"outcome"}),
		UndoneRows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "undone_rows_total",
			Help: "Rows reversed by undo (deleted, restored).",
		}, []string{"operation"}),
		CachePurged: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "mapping_cache_purged_total",
			Help: "Expired mapping cache entries removed by the sweeper.",
		}, []string{"backend"}),
	}
}

// ObserveMappings counts the strategy of every column mapping.
func (m *Metrics) ObserveMappings(mappings []importer.ColumnMapping) {
	if m == nil {
		return
	}
	for _, cm := range mappings {
		m.MappingDecisions.WithLabelValues(string(cm.Strategy)).Inc()
	}
}

func (m *Metrics) ObserveSimulation(result *importer.SimulationResult, took time.Duration) {
	if m == nil || result == nil {
		return
	}
	m.SimulationDuration.Observe(took.Seconds())
	for _, p := range result.Previews {
		m.SimulationRows.WithLabelValues(string(p.Action)).Inc()
	}
}

func (m *Metrics) ObserveCommit(created, updated, skipped, failed int) {
	if m == nil {
		return
	}
	m.CommitRows.WithLabelValues("created").Add(float64(created))
	m.CommitRows.WithLabelValues("updated").Add(float64(updated))
	m.CommitRows.WithLabelValues("skipped").Add(float64(skipped))
	m.CommitRows.WithLabelValues("failed").Add(float64(failed))
}

func (m *Metrics) ObserveUndo(deleted, restored int) {
	if m == nil {
		return
	}
	m.UndoneRows.WithLabelValues("deleted").Add(float64(deleted))
	m.UndoneRows.WithLabelValues("restored").Add(float64(restored))
}

func (m *Metrics) ObservePurge(backend string, n int) {
	if m == nil {
		return
	}
	m.CachePurged.WithLabelValues(backend).Add(float64(n))
}

// InstrumentCache counts hits and misses of a mapping cache.
func (m *Metrics) InstrumentCache(c importer.MappingCache) importer.MappingCache {
	if m == nil || c == nil {
		return c
	}
	return &instrumentedCache{next: c, m: m}
}

type instrumentedCache struct {
	next importer.MappingCache
	m    *Metrics
}

func (c *instrumentedCache) Get(ctx context.Context, key importer.CacheKey) (*importer.CachedMapping, error) {
	entry, err := c.next.Get(ctx, key)
	switch {
	case err != nil:
		c.m.MappingCacheLookup.WithLabelValues("error").Inc()
	case entry == nil:
		c.m.MappingCacheLookup.WithLabelValues("miss").Inc()
	default:
		c.m.MappingCacheLookup.WithLabelValues("hit").Inc()
	}
	return entry, err
}

func (c *instrumentedCache) Put(ctx context.Context, entry importer.CachedMapping) error {
	return c.next.Put(ctx, entry)
}

// InstrumentAssistant records outcome and latency of AI calls.
func (m *Metrics) InstrumentAssistant(a importer.Assistant) importer.Assistant {
	if m == nil || a == nil {
		return a
	}
	return &instrumentedAssistant{next: a, m: m}
}

type instrumentedAssistant struct {
	next importer.Assistant
	m    *Metrics
}

func (a *instrumentedAssistant) Suggest(ctx context.Context, req importer.SuggestionRequest) (*importer.Suggestion, error) {
	start := time.Now()
	s, err := a.next.Suggest(ctx, req)
	a.m.AILatency.Observe(time.Since(start).Seconds())

	outcome := "suggested"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	case s == nil:
		outcome = "empty"
	}
	a.m.AIRequests.WithLabelValues(outcome).Inc()
	return s, err
}
