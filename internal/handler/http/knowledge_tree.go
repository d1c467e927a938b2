package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kumanday/OmniLearn/internal/service"
	"github.com/kumanday/OmniLearn/pkg/httputil"
	"github.com/kumanday/OmniLearn/pkg/middleware"
	"github.com/kumanday/OmniLearn/pkg/pagination"
)

// KnowledgeTreeHandler handles HTTP requests for knowledge tree endpoints.
type KnowledgeTreeHandler struct {
	service *service.KnowledgeTreeService
	logger  *slog.Logger
}

// NewKnowledgeTreeHandler creates a new knowledge tree HTTP handler.
func NewKnowledgeTreeHandler(svc *service.KnowledgeTreeService, logger *slog.Logger) *KnowledgeTreeHandler {
	return &KnowledgeTreeHandler{service: svc, logger: logger}
}

// CreateKnowledgeTreeRequest is the JSON request body for tree generation.
type CreateKnowledgeTreeRequest struct {
	Topic string `json:"topic" validate:"required,notblank,max=200"`
}

// Create handles POST /api/v1/knowledge-tree
func (h *KnowledgeTreeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateKnowledgeTreeRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	tree, err := h.service.Generate(r.Context(), req.Topic, middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, tree)
}

// Get handles GET /api/v1/knowledge-tree/{id}
func (h *KnowledgeTreeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	tree, err := h.service.Get(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, tree)
}

// List handles GET /api/v1/knowledge-tree?page=&per_page=
func (h *KnowledgeTreeHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.List(r.Context(), middleware.UserIDFromContext(r.Context()), pagination.FromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, page)
}
