package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kumanday/OmniLearn/internal/service"
	"github.com/kumanday/OmniLearn/pkg/httputil"
)

// LessonHandler handles HTTP requests for lesson endpoints.
type LessonHandler struct {
	service *service.LessonService
	logger  *slog.Logger
}

// NewLessonHandler creates a new lesson HTTP handler.
func NewLessonHandler(svc *service.LessonService, logger *slog.Logger) *LessonHandler {
	return &LessonHandler{service: svc, logger: logger}
}

// CreateLessonRequest asks for the lesson of a subsection. The title is
// accepted for older clients; the stored subsection is authoritative.
type CreateLessonRequest struct {
	SubsectionID    string `json:"subsection_id" validate:"required,uuid"`
	SubsectionTitle string `json:"subsection_title" validate:"omitempty,max=200"`
}

// Create handles POST /api/v1/lessons
func (h *LessonHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateLessonRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	lesson, err := h.service.Generate(r.Context(), req.SubsectionID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, lesson)
}

// Get handles GET /api/v1/lessons/{id}
func (h *LessonHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	lesson, err := h.service.Get(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, lesson)
}

// GetBySubsection handles GET /api/v1/lessons/subsection/{subsectionId}
func (h *LessonHandler) GetBySubsection(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "subsectionId"))
	if !ok {
		return
	}

	lesson, err := h.service.GetBySubsection(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, lesson)
}
