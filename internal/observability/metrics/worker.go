package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics instruments the ingestion worker: one file per ingest run,
// with per-stage timings so slow extractions are distinguishable from slow
// embedding backends.
type WorkerMetrics struct {
	registry *prometheus.Registry

	ingestTotal       *prometheus.CounterVec
	ingestDuration    *prometheus.HistogramVec
	ingestInFlight    prometheus.Gauge
	stageDuration     *prometheus.HistogramVec
	chunksProduced    *prometheus.HistogramVec
	embeddingsWritten *prometheus.CounterVec
	queueLag          *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	ingestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dataroom",
			Subsystem: "worker",
			Name:      "file_ingest_total",
			Help:      "Total ingested files by terminal status.",
		},
		[]string{"service", "status"},
	)
	ingestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dataroom",
			Subsystem: "worker",
			Name:      "file_ingest_duration_seconds",
			Help:      "File ingestion duration in seconds by terminal status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	ingestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dataroom",
			Subsystem: "worker",
			Name:      "file_ingest_in_flight",
			Help:      "Number of files currently being ingested.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dataroom",
			Subsystem: "worker",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual ingestion stages in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "stage"},
	)
	chunksProduced := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dataroom",
			Subsystem: "worker",
			Name:      "chunks_per_file",
			Help:      "Distribution of chunk counts per ingested file.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"service"},
	)
	embeddingsWritten := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dataroom",
			Subsystem: "worker",
			Name:      "embeddings_written_total",
			Help:      "Total embedded chunks written to the vector store.",
		},
		[]string{"service"},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dataroom",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between file upload and ingestion start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(ingestTotal, ingestDuration, ingestInFlight, stageDuration, chunksProduced, embeddingsWritten, queueLag)

	return &WorkerMetrics{
		registry:          registry,
		ingestTotal:       ingestTotal,
		ingestDuration:    ingestDuration,
		ingestInFlight:    ingestInFlight,
		stageDuration:     stageDuration,
		chunksProduced:    chunksProduced,
		embeddingsWritten: embeddingsWritten,
		queueLag:          queueLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartFile() {
	m.ingestInFlight.Inc()
}

func (m *WorkerMetrics) FinishFile(service string, duration time.Duration, err error) {
	m.ingestInFlight.Dec()

	status := "ready"
	if err != nil {
		status = "error"
	}

	m.ingestTotal.WithLabelValues(service, status).Inc()
	m.ingestDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveStage(service, stage string, duration time.Duration) {
	m.stageDuration.WithLabelValues(service, stage).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveChunks(service string, chunkCount, embeddingCount int) {
	m.chunksProduced.WithLabelValues(service).Observe(float64(chunkCount))
	if embeddingCount > 0 {
		m.embeddingsWritten.WithLabelValues(service).Add(float64(embeddingCount))
	}
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}
