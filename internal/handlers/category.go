package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/newsdesk/apiserver/internal/policy"
	"github.com/newsdesk/apiserver/internal/services"
	"github.com/newsdesk/apiserver/types"
)

// CategoryHandler provides HTTP handlers for categories.
type CategoryHandler struct {
	categories *services.CategoryService
}

// NewCategoryHandler constructs a handler with the provided service.
func NewCategoryHandler(categories *services.CategoryService) *CategoryHandler {
	return &CategoryHandler{categories: categories}
}

// CategoryRouter registers category routes. Reads are public; writes
// require the manage-categories role.
func CategoryRouter(r chi.Router, categories *services.CategoryService, auth *AuthHandler) {
	handler := NewCategoryHandler(categories)

	r.Get("/", handler.List)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.Post("/", handler.Create)
		r.Delete("/{categoryID}", handler.Delete)
	})
}

func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{"categories": categories})
}

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := policy.Allow(user.Role, policy.ActionManageCategories); err != nil {
		writeServiceError(w, err)
		return
	}

	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	created, err := h.categories.Create(r.Context(), types.Category{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, envelope{"category": created})
}

func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := policy.Allow(user.Role, policy.ActionManageCategories); err != nil {
		writeServiceError(w, err)
		return
	}

	id, err := parseIDParam(r, "categoryID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.categories.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{"message": "category deleted"})
}
