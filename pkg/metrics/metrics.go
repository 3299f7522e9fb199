package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hragent"

// Metrics holds the collectors for the indexing and chat pipelines. Each
// instance owns its registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	DocumentsIndexed prometheus.Counter
	ChunksIndexed    prometheus.Counter
	IndexUpdates     *prometheus.CounterVec
	ChatRequests     *prometheus.CounterVec
	CacheLookups     *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		DocumentsIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_indexed_total",
			Help:      "Documents loaded into the vector index.",
		}),
		ChunksIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_indexed_total",
			Help:      "Chunks embedded and upserted into the vector index.",
		}),
		IndexUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_updates_total",
			Help:      "Vector index update requests by outcome.",
		}, []string{"outcome"}),
		ChatRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Chat requests by outcome.",
		}, []string{"outcome"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answer_cache_lookups_total",
			Help:      "Answer cache lookups by result.",
		}, []string{"result"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.DocumentsIndexed,
		m.ChunksIndexed,
		m.IndexUpdates,
		m.ChatRequests,
		m.CacheLookups,
		m.StageDuration,
	)
	return m
}

// ObserveStage records the time since start under stage.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
