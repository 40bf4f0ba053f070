package handlers

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/newsdesk/apiserver/internal/storage"
)

// UploadHandler serves stored article images.
type UploadHandler struct {
	images *storage.Storage
}

// NewUploadHandler constructs a handler over the image store.
func NewUploadHandler(images *storage.Storage) *UploadHandler {
	return &UploadHandler{images: images}
}

// UploadRouter registers the public image download route.
func UploadRouter(r chi.Router, images *storage.Storage) {
	handler := NewUploadHandler(images)
	r.Get("/{objectKey}", handler.Get)
}

// Get streams an object by key. Any backend failure is reported as
// not found so object keys cannot be probed for backend details.
func (h *UploadHandler) Get(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "objectKey")
	if key == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	object, err := h.images.Get(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	defer object.Close()

	contentType := mime.TypeByExtension(filepath.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := io.Copy(w, object); err != nil {
		return
	}
}
