package httpadapter

import (
	"crypto/subtle"
	"net/http"
)

const adminTokenHeader = "X-Admin-Token"

func (rt *Router) authorizeAdmin(w http.ResponseWriter, r *http.Request) bool {
	if rt.cfg.AdminToken == "" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "admin surface is not configured"})
		return false
	}
	token := r.Header.Get(adminTokenHeader)
	if subtle.ConstantTimeCompare([]byte(token), []byte(rt.cfg.AdminToken)) != 1 {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid admin token"})
		return false
	}
	return true
}

func (rt *Router) adminInitVectorStore(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if !rt.authorizeAdmin(w, r) {
		return
	}

	if err := rt.vectors.Init(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "initialized"})
}

func (rt *Router) adminVectorStoreStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if !rt.authorizeAdmin(w, r) {
		return
	}

	initialized, err := rt.vectors.Initialized(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	var count uint64
	if initialized {
		count, err = rt.vectors.Count(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"initialized": initialized,
		"vectorCount": count,
	})
}
