package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vaultgrid/dataroom-rag/internal/core/domain"
)

type queryRequest struct {
	Question  string   `json:"question"`
	FileIDs   []string `json:"file_ids,omitempty"`
	TopK      int      `json:"top_k,omitempty"`
	SessionID string   `json:"session_id,omitempty"`
}

func (rt *Router) decodeQuery(w http.ResponseWriter, r *http.Request, dataroomID string) (queryRequest, domain.SearchScope, bool) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return req, domain.SearchScope{}, false
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return req, domain.SearchScope{}, false
	}
	if req.TopK <= 0 {
		req.TopK = rt.cfg.DefaultTopK
	}
	return req, domain.SearchScope{DataroomID: dataroomID, FileIDs: req.FileIDs}, true
}

func (rt *Router) query(w http.ResponseWriter, r *http.Request, dataroomID string) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	req, scope, ok := rt.decodeQuery(w, r, dataroomID)
	if !ok {
		return
	}

	start := time.Now()
	answer, err := rt.querySvc.Answer(r.Context(), req.Question, scope, req.TopK)
	if err != nil {
		writeError(w, err)
		return
	}

	rt.recordQuery("query", "sync", answer, start)
	rt.persistExchange(r, req, answer)
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) queryStream(w http.ResponseWriter, r *http.Request, dataroomID string) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	req, scope, ok := rt.decodeQuery(w, r, dataroomID)
	if !ok {
		return
	}

	start := time.Now()
	events := rt.querySvc.AnswerStream(r.Context(), req.Question, scope, req.TopK)

	answer, err := writeEventStream(w, events)
	if err != nil {
		// Headers are already out; nothing more to send.
		slog.Warn("event_stream_aborted", "error", err)
		return
	}
	if answer != nil {
		rt.recordQuery("query_stream", "stream", answer, start)
		rt.persistExchange(r, req, answer)
	}
}

func (rt *Router) recordQuery(endpoint, mode string, answer *domain.Answer, start time.Time) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordQueryObservation(rt.cfg.Service, endpoint, len(answer.Sources), len(answer.SubQueries), time.Since(start))
	rt.metrics.RecordQueryMode(rt.cfg.Service, endpoint, mode)
}

// persistExchange appends the question/answer pair to the chat store when a
// session is given. Persistence is best-effort: a failed write is logged,
// never returned to the caller.
func (rt *Router) persistExchange(r *http.Request, req queryRequest, answer *domain.Answer) {
	if rt.chat == nil || req.SessionID == "" || answer == nil {
		return
	}
	ctx := r.Context()

	if err := rt.chat.AppendMessage(ctx, req.SessionID, "user", req.Question, nil); err != nil {
		slog.Warn("chat_persist_failed", "session_id", req.SessionID, "role", "user", "error", err)
		return
	}

	metadata := map[string]any{
		"category":   answer.Category,
		"sources":    len(answer.Sources),
		"latency_ms": answer.LatencyMS,
	}
	if len(answer.SubQueries) > 0 {
		metadata["sub_queries"] = answer.SubQueries
	}
	if err := rt.chat.AppendMessage(ctx, req.SessionID, "assistant", answer.Text, metadata); err != nil {
		slog.Warn("chat_persist_failed", "session_id", req.SessionID, "role", "assistant", "error", err)
	}
}
