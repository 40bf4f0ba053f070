package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/newsdesk/apiserver/internal/policy"
	"github.com/newsdesk/apiserver/internal/services"
	"github.com/newsdesk/apiserver/internal/store"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
)

// envelope is the uniform response shape: {success: bool, message?, ...}.
type envelope map[string]any

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeSuccess(w http.ResponseWriter, status int, fields envelope) {
	body := envelope{"success": true}
	for key, value := range fields {
		body[key] = value
	}
	writeJSON(w, status, body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{"success": false, "message": message})
}

func writeValidationErrors(w http.ResponseWriter, problems []string) {
	writeJSON(w, http.StatusBadRequest, envelope{
		"success": false,
		"message": "validation failed",
		"errors":  problems,
	})
}

// writeServiceError maps the error taxonomy onto status codes. The
// 401/403/404 three-way distinction is security relevant: a denial must
// not be reported as a missing resource or vice versa, except where the
// service itself chose NotFound to avoid leaking existence.
func writeServiceError(w http.ResponseWriter, err error) {
	if verr, ok := services.AsValidationError(err); ok {
		writeValidationErrors(w, verr.Errors)
		return
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, policy.ErrAuthorStatusChange):
		writeError(w, http.StatusForbidden, policy.ErrAuthorStatusChange.Error())
	case errors.Is(err, policy.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusBadRequest, "already exists")
	case errors.Is(err, store.ErrReferenced):
		writeError(w, http.StatusBadRequest, "record is still referenced by other data")
	case errors.Is(err, services.ErrDraftDownload):
		writeError(w, http.StatusBadRequest, services.ErrDraftDownload.Error())
	case errors.Is(err, services.ErrSelfDelete):
		writeError(w, http.StatusBadRequest, services.ErrSelfDelete.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func parsePagination(r *http.Request) (page, limit, offset int, err error) {
	page = defaultPage
	limit = defaultLimit

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, 0, errors.New("invalid page")
		}
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, 0, errors.New("invalid limit")
		}
	}

	if limit > maxLimit {
		limit = maxLimit
	}

	offset = (page - 1) * limit
	return page, limit, offset, nil
}

func parseIDParam(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

func totalPages(total, limit int) int {
	if limit < 1 {
		return 0
	}
	return (total + limit - 1) / limit
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{"status": "ok"})
}
