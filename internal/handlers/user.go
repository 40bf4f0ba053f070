package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/newsdesk/apiserver/internal/policy"
	"github.com/newsdesk/apiserver/internal/services"
	"github.com/newsdesk/apiserver/internal/store"
	"github.com/newsdesk/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// UserHandler provides HTTP handlers for user management.
type UserHandler struct {
	users *services.UserService
}

// NewUserHandler constructs a handler with the provided service.
func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// UserRouter registers user management routes. Everything is self-or-
// admin gated except the listing, which is admin-only.
func UserRouter(r chi.Router, users *services.UserService, auth *AuthHandler) {
	handler := NewUserHandler(users)

	r.Use(auth.RequireAuth)
	r.Get("/", handler.List)
	r.Route("/{userID}", func(r chi.Router) {
		r.Get("/", handler.Get)
		r.Put("/", handler.Update)
		r.Delete("/", handler.Delete)
		r.Put("/password", handler.ChangePassword)
	})
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := policy.Allow(actor.Role, policy.ActionManageUsers); err != nil {
		writeServiceError(w, err)
		return
	}

	users, err := h.users.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{"users": users})
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := policy.CanManageUser(actor, id); err != nil {
		writeServiceError(w, err)
		return
	}

	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{"user": user})
}

type userUpdateRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := policy.CanManageUser(actor, id); err != nil {
		writeServiceError(w, err)
		return
	}

	var req userUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if username := strings.TrimSpace(req.Username); username != "" {
		user.Username = username
	}
	if email := strings.TrimSpace(req.Email); email != "" {
		user.Email = email
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		user.Name = name
	}

	// Role changes are reserved for admins, even on one's own account.
	if role := strings.TrimSpace(req.Role); role != "" && role != user.Role {
		if actor.Role != types.RoleAdmin {
			writeError(w, http.StatusForbidden, "only admins can change roles")
			return
		}
		if !types.ValidRole(role) {
			writeValidationErrors(w, []string{"invalid role"})
			return
		}
		user.Role = role
	}

	updated, err := h.users.Update(r.Context(), user)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusBadRequest, "username or email already exists")
			return
		}
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{"user": updated})
}

type passwordChangeRequest struct {
	Password string `json:"password"`
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	actor, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := policy.CanManageUser(actor, id); err != nil {
		writeServiceError(w, err)
		return
	}

	var req passwordChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if len(req.Password) < 8 {
		writeValidationErrors(w, []string{"password must be at least 8 characters"})
		return
	}

	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update password")
		return
	}
	user.PasswordHash = string(hashed)

	if _, err := h.users.Update(r.Context(), user); err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{"message": "password updated"})
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := policy.Allow(actor.Role, policy.ActionManageUsers); err != nil {
		writeServiceError(w, err)
		return
	}

	if err := h.users.Delete(r.Context(), actor, id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{"message": "user deleted"})
}
