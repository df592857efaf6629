package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	queryTotal           *prometheus.CounterVec
	queryModeTotal       *prometheus.CounterVec
	queryHitTotal        *prometheus.CounterVec
	queryNoContextTotal  *prometheus.CounterVec
	queryRetrievedChunks *prometheus.HistogramVec
	queryDuration        *prometheus.HistogramVec
	querySubQueries      *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dataroom",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dataroom",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dataroom",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queryTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dataroom",
			Subsystem: "query",
			Name:      "requests_total",
			Help:      "Total successful retrieval queries.",
		},
		[]string{"service", "endpoint"},
	)
	queryModeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dataroom",
			Subsystem: "query",
			Name:      "mode_requests_total",
			Help:      "Total successful retrieval queries by delivery mode.",
		},
		[]string{"service", "endpoint", "mode"},
	)
	queryHitTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dataroom",
			Subsystem: "query",
			Name:      "retrieval_hit_total",
			Help:      "Total queries with at least one retrieved source.",
		},
		[]string{"service", "endpoint"},
	)
	queryNoContextTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dataroom",
			Subsystem: "query",
			Name:      "no_context_total",
			Help:      "Total queries without retrieved sources.",
		},
		[]string{"service", "endpoint"},
	)
	queryRetrievedChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dataroom",
			Subsystem: "query",
			Name:      "retrieved_chunks",
			Help:      "Distribution of retrieved chunks per successful query.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "endpoint"},
	)
	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dataroom",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Retrieval query duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	querySubQueries := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dataroom",
			Subsystem: "query",
			Name:      "sub_queries",
			Help:      "Distribution of decomposed sub-queries per query.",
			Buckets:   []float64{1, 2, 3, 4, 5},
		},
		[]string{"service", "endpoint"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		queryTotal,
		queryModeTotal,
		queryHitTotal,
		queryNoContextTotal,
		queryRetrievedChunks,
		queryDuration,
		querySubQueries,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		queryTotal:           queryTotal,
		queryModeTotal:       queryModeTotal,
		queryHitTotal:        queryHitTotal,
		queryNoContextTotal:  queryNoContextTotal,
		queryRetrievedChunks: queryRetrievedChunks,
		queryDuration:        queryDuration,
		querySubQueries:      querySubQueries,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath collapses resource ids so the path label stays bounded.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/files/"):
		return "/v1/files/{file_id}"
	case strings.HasPrefix(path, "/v1/datarooms/"):
		rest := strings.TrimPrefix(path, "/v1/datarooms/")
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			return "/v1/datarooms/{dataroom_id}" + rest[i:]
		}
		return "/v1/datarooms/{dataroom_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordQueryObservation(service, endpoint string, sourceCount, subQueries int, duration time.Duration) {
	m.queryTotal.WithLabelValues(service, endpoint).Inc()
	m.queryRetrievedChunks.WithLabelValues(service, endpoint).Observe(float64(sourceCount))
	m.queryDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())
	if subQueries > 0 {
		m.querySubQueries.WithLabelValues(service, endpoint).Observe(float64(subQueries))
	}

	if sourceCount > 0 {
		m.queryHitTotal.WithLabelValues(service, endpoint).Inc()
		return
	}
	m.queryNoContextTotal.WithLabelValues(service, endpoint).Inc()
}

func (m *HTTPServerMetrics) RecordQueryMode(service, endpoint, mode string) {
	if mode == "" {
		mode = "unknown"
	}
	m.queryModeTotal.WithLabelValues(service, endpoint, mode).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
