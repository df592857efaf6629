package httpadapter

import (
	"net/http"
	"strings"
	"time"

	"github.com/vaultgrid/dataroom-rag/internal/core/ports"
	"github.com/vaultgrid/dataroom-rag/internal/observability/metrics"
)

// Config carries the boundary knobs the router needs beyond its ports.
type Config struct {
	Service        string
	AdminToken     string
	DefaultTopK    int
	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
}

type Router struct {
	uploadUC ports.FileUploader
	removeUC ports.FileRemover
	querySvc ports.QueryService
	files    ports.FileReader
	chat     ports.ChatStore
	vectors  ports.VectorStore
	metrics  *metrics.HTTPServerMetrics
	cfg      Config
}

func NewRouter(
	uploadUC ports.FileUploader,
	removeUC ports.FileRemover,
	querySvc ports.QueryService,
	files ports.FileReader,
	chat ports.ChatStore,
	vectors ports.VectorStore,
	httpMetrics *metrics.HTTPServerMetrics,
	cfg Config,
) *Router {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 5
	}
	return &Router{
		uploadUC: uploadUC,
		removeUC: removeUC,
		querySvc: querySvc,
		files:    files,
		chat:     chat,
		vectors:  vectors,
		metrics:  httpMetrics,
		cfg:      cfg,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/datarooms/", rt.dataroomRoutes)
	mux.HandleFunc("/v1/files/", rt.fileRoutes)
	mux.HandleFunc("/v1/admin/vector-store/init", rt.adminInitVectorStore)
	mux.HandleFunc("/v1/admin/vector-store/status", rt.adminVectorStoreStatus)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.MaxInFlight, 5*time.Second)
	handler = rateLimitMiddleware(handler, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.cfg.Service, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// dataroomRoutes dispatches /v1/datarooms/{dataroom_id}/<action>.
func (rt *Router) dataroomRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/datarooms/")
	dataroomID, action, ok := strings.Cut(rest, "/")
	if !ok || dataroomID == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	switch action {
	case "files":
		rt.uploadFile(w, r, dataroomID)
	case "query":
		rt.query(w, r, dataroomID)
	case "query/stream":
		rt.queryStream(w, r, dataroomID)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	}
}

func (rt *Router) fileRoutes(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/files/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		rt.getFile(w, r, id)
	case http.MethodDelete:
		rt.deleteFile(w, r, id)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return false
	}
	return true
}
