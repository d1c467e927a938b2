package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kumanday/OmniLearn/internal/service"
	"github.com/kumanday/OmniLearn/pkg/httputil"
	"github.com/kumanday/OmniLearn/pkg/middleware"
)

// QuestionHandler handles HTTP requests for practice question endpoints.
type QuestionHandler struct {
	service *service.QuestionService
	logger  *slog.Logger
}

// NewQuestionHandler creates a new question HTTP handler.
func NewQuestionHandler(svc *service.QuestionService, logger *slog.Logger) *QuestionHandler {
	return &QuestionHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// CreateQuestionsRequest asks for practice questions on a section.
type CreateQuestionsRequest struct {
	SectionID    string `json:"section_id" validate:"required,uuid"`
	SectionTitle string `json:"section_title" validate:"omitempty,max=200"`
	Difficulty   string `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
}

// EvaluateAnswerRequest submits an answer for grading.
type EvaluateAnswerRequest struct {
	QuestionID string `json:"question_id" validate:"required,uuid"`
	Answer     string `json:"answer" validate:"required,notblank,max=4000"`
}

// --- Handlers ---

// Create handles POST /api/v1/questions
func (h *QuestionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateQuestionsRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	questions, err := h.service.Generate(r.Context(), req.SectionID, req.Difficulty)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, questions)
}

// ListBySection handles GET /api/v1/questions/section/{sectionId}?difficulty=
func (h *QuestionHandler) ListBySection(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "sectionId"))
	if !ok {
		return
	}

	questions, err := h.service.ListBySection(r.Context(), id.String(), r.URL.Query().Get("difficulty"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, questions)
}

// Evaluate handles POST /api/v1/questions/evaluate
func (h *QuestionHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateAnswerRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	feedback, err := h.service.Evaluate(r.Context(), service.EvaluateInput{
		QuestionID: req.QuestionID,
		Answer:     req.Answer,
		UserID:     middleware.UserIDFromContext(r.Context()),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, feedback)
}
