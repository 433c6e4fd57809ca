package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/healthspec-ai/healthspec/internal/domain"
	"github.com/healthspec-ai/healthspec/internal/observability"
	"github.com/healthspec-ai/healthspec/internal/storage"
)

// RequirementReader lists persisted requirements.
type RequirementReader interface {
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*storage.Requirement, error)
}

// RequirementsHandler serves persisted requirements.
type RequirementsHandler struct {
	logger *observability.Logger
	repo   RequirementReader
}

// NewRequirementsHandler creates a new requirements handler.
func NewRequirementsHandler(logger *observability.Logger, repo RequirementReader) *RequirementsHandler {
	return &RequirementsHandler{logger: logger, repo: repo}
}

// RequirementsResponseDTO lists a project's requirements.
type RequirementsResponseDTO struct {
	ProjectID    string                        `json:"projectId"`
	Requirements []domain.GeneratedRequirement `json:"requirements"`
}

// ListByProject handles GET /projects/{projectId}/requirements.
func (h *RequirementsHandler) ListByProject(w http.ResponseWriter, r *http.Request) {
	projectIDStr := chi.URLParam(r, "projectId")
	projectID, err := uuid.Parse(projectIDStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid projectId", err.Error())
		return
	}

	records, err := h.repo.ListByProject(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list requirements", err.Error())
		return
	}

	requirements := make([]domain.GeneratedRequirement, 0, len(records))
	for _, rec := range records {
		req, err := rec.ToGenerated()
		if err != nil {
			h.logger.Warn().Err(err).Str("req", rec.ReqKey).Msg("Skipping undecodable requirement")
			continue
		}
		requirements = append(requirements, req)
	}

	writeJSON(w, http.StatusOK, RequirementsResponseDTO{
		ProjectID:    projectIDStr,
		Requirements: requirements,
	})
}
