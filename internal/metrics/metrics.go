// Package metrics provides Prometheus metrics for indexing and question answering
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics of the pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Indexing metrics
	SectionsExtracted   prometheus.Counter
	ChunksCreated       prometheus.Counter
	EmbeddingsGenerated prometheus.Counter
	BuildDuration       prometheus.Histogram
	EmbeddingDuration   prometheus.Histogram

	// Query metrics
	QueryRequests     prometheus.Counter
	QueryDuration     prometheus.Histogram
	RetrievedChunks   prometheus.Histogram
	LexicalFallbacks  prometheus.Counter
	GenerationLatency prometheus.Histogram

	Errors *prometheus.CounterVec
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SectionsExtracted: f.NewCounter(prometheus.CounterOpts{
			Name: "novelrag_sections_extracted_total",
			Help: "Total number of sections produced by segmentation",
		}),
		ChunksCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "novelrag_chunks_created_total",
			Help: "Total number of chunks created",
		}),
		EmbeddingsGenerated: f.NewCounter(prometheus.CounterOpts{
			Name: "novelrag_embeddings_generated_total",
			Help: "Total number of embeddings generated",
		}),
		BuildDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "novelrag_build_duration_seconds",
			Help:    "Duration of index builds in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.4min
		}),
		EmbeddingDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "novelrag_embedding_duration_seconds",
			Help:    "Duration of a single embedding call in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10), // 100us to ~26s
		}),

		QueryRequests: f.NewCounter(prometheus.CounterOpts{
			Name: "novelrag_query_requests_total",
			Help: "Total number of questions asked",
		}),
		QueryDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "novelrag_query_duration_seconds",
			Help:    "Duration of question answering in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		}),
		RetrievedChunks: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "novelrag_retrieved_chunks",
			Help:    "Number of chunks retrieved per question",
			Buckets: prometheus.LinearBuckets(0, 1, 11),
		}),
		LexicalFallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "novelrag_lexical_fallbacks_total",
			Help: "Questions answered from lexical overlap because vector scores were all zero",
		}),
		GenerationLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "novelrag_generation_duration_seconds",
			Help:    "Duration of answer generation in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),

		Errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "novelrag_errors_total",
			Help: "Total number of errors by pipeline stage",
		}, []string{"stage"}),
	}
}

// ObserveBuild records a completed index build.
func (m *Metrics) ObserveBuild(sections, chunks int, seconds float64) {
	if m == nil {
		return
	}
	m.SectionsExtracted.Add(float64(sections))
	m.ChunksCreated.Add(float64(chunks))
	m.BuildDuration.Observe(seconds)
}

func (m *Metrics) ObserveEmbedding(seconds float64) {
	if m == nil {
		return
	}
	m.EmbeddingsGenerated.Inc()
	m.EmbeddingDuration.Observe(seconds)
}

// ObserveQuery records an answered question.
func (m *Metrics) ObserveQuery(retrieved int, seconds float64) {
	if m == nil {
		return
	}
	m.QueryRequests.Inc()
	m.RetrievedChunks.Observe(float64(retrieved))
	m.QueryDuration.Observe(seconds)
}

func (m *Metrics) ObserveGeneration(seconds float64) {
	if m == nil {
		return
	}
	m.GenerationLatency.Observe(seconds)
}

func (m *Metrics) LexicalFallback() {
	if m == nil {
		return
	}
	m.LexicalFallbacks.Inc()
}

// Error counts a failure in stage (segment, chunk, embed, store, retrieve, generate).
func (m *Metrics) Error(stage string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(stage).Inc()
}
