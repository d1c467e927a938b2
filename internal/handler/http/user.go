package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kumanday/OmniLearn/internal/domain"
	"github.com/kumanday/OmniLearn/internal/service"
	"github.com/kumanday/OmniLearn/pkg/httputil"
	"github.com/kumanday/OmniLearn/pkg/middleware"
)

// UserHandler handles HTTP requests for account and progress endpoints.
type UserHandler struct {
	auth   *service.AuthService
	users  *service.UserService
	logger *slog.Logger
}

// NewUserHandler creates a new user HTTP handler.
func NewUserHandler(authSvc *service.AuthService, users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{auth: authSvc, users: users, logger: logger}
}

// --- Request DTOs ---

// UpdateProgressRequest records the result of one subsection.
type UpdateProgressRequest struct {
	SubsectionID string   `json:"subsection_id" validate:"required,uuid"`
	Completed    bool     `json:"completed"`
	Score        *float64 `json:"score" validate:"omitempty,gte=0"`
}

// --- Handlers ---

// Create handles POST /api/v1/users. It registers a password account like
// /auth/register but returns only the user and sets no session.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	user, err := h.auth.CreateAccount(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, newUserResponse(user))
}

// Get handles GET /api/v1/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	user, err := h.users.GetUser(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, newUserResponse(user))
}

// GetProgress handles GET /api/v1/users/{id}/progress
func (h *UserHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	progress, err := h.users.GetProgress(r.Context(), middleware.UserIDFromContext(r.Context()), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, progress)
}

// UpdateProgress handles POST /api/v1/users/{id}/progress
func (h *UserHandler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req UpdateProgressRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	progress, err := h.users.UpdateProgress(r.Context(), middleware.UserIDFromContext(r.Context()), id.String(), domain.ProgressUpdate{
		SubsectionID: req.SubsectionID,
		Completed:    req.Completed,
		Score:        req.Score,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, progress)
}
