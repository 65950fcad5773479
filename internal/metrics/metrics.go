// Package metrics holds the prometheus collectors for ingestion and answering.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use through a nil pointer; every recorder becomes a no-op.
type Metrics struct {
	registry *prometheus.Registry

	ingestions      *prometheus.CounterVec
	ingestDuration  prometheus.Histogram
	chunksStored    prometheus.Counter
	embedCalls      *prometheus.CounterVec
	embedDuration   prometheus.Histogram
	answers         *prometheus.CounterVec
	answerDuration  prometheus.Histogram
	searchCandidate prometheus.Histogram
}

func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		ingestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestions_total",
			Help:      "Ingestion runs by outcome and failing stage.",
		}, []string{"outcome", "stage"}),
		ingestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingestion_duration_seconds",
			Help:      "Wall time of a full ingestion run.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		chunksStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_stored_total",
			Help:      "Chunks persisted with an embedding.",
		}),
		embedCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_requests_total",
			Help:      "Embedding requests by outcome.",
		}, []string{"outcome"}),
		embedDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_request_duration_seconds",
			Help:      "Latency of embedding requests.",
			Buckets:   prometheus.DefBuckets,
		}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Answered questions by outcome.",
		}, []string{"outcome"}),
		answerDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "answer_duration_seconds",
			Help:      "Wall time of a retrieval-augmented answer.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		searchCandidate: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_candidates",
			Help:      "Chunks scanned per similarity search.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
	}
	reg.MustRegister(
		m.ingestions,
		m.ingestDuration,
		m.chunksStored,
		m.embedCalls,
		m.embedDuration,
		m.answers,
		m.answerDuration,
		m.searchCandidate,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveIngestion records a finished run. stage is empty on success.
func (m *Metrics) ObserveIngestion(stage string, took time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.ingestions.WithLabelValues(outcome, stage).Inc()
	m.ingestDuration.Observe(took.Seconds())
}

func (m *Metrics) ChunkStored() {
	if m == nil {
		return
	}
	m.chunksStored.Inc()
}

func (m *Metrics) ObserveEmbedding(took time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.embedCalls.WithLabelValues(outcome).Inc()
	m.embedDuration.Observe(took.Seconds())
}

// ObserveAnswer records an answer outcome: answered, no_context,
// generation_failed or embedding_failed.
func (m *Metrics) ObserveAnswer(outcome string, scanned int, took time.Duration) {
	if m == nil {
		return
	}
	m.answers.WithLabelValues(outcome).Inc()
	m.answerDuration.Observe(took.Seconds())
	m.searchCandidate.Observe(float64(scanned))
}
