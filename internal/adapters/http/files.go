package httpadapter

import (
	"net/http"
)

func (rt *Router) uploadFile(w http.ResponseWriter, r *http.Request, dataroomID string) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	created, err := rt.uploadUC.Upload(
		r.Context(),
		dataroomID,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	// 202: ingestion continues in the background; poll GET /v1/files/{id}.
	writeJSON(w, http.StatusAccepted, created)
}

func (rt *Router) getFile(w http.ResponseWriter, r *http.Request, id string) {
	file, err := rt.files.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, file)
}

func (rt *Router) deleteFile(w http.ResponseWriter, r *http.Request, id string) {
	if err := rt.removeUC.Remove(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
