package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/healthspec-ai/healthspec/internal/domain"
	"github.com/healthspec-ai/healthspec/internal/observability"
)

// ProgressReader is the read side of the progress tracker.
type ProgressReader interface {
	GetUpdates(ctx context.Context, jobID string) ([]domain.ProgressEvent, error)
	Latest(ctx context.Context, jobID string) (*domain.ProgressEvent, error)
}

// ProgressHandler serves the per-job progress event log.
type ProgressHandler struct {
	logger  *observability.Logger
	tracker ProgressReader
}

// NewProgressHandler creates a new progress handler.
func NewProgressHandler(logger *observability.Logger, tracker ProgressReader) *ProgressHandler {
	return &ProgressHandler{logger: logger, tracker: tracker}
}

// ProgressResponseDTO is the full event history response.
type ProgressResponseDTO struct {
	JobID  string                 `json:"jobId"`
	Events []domain.ProgressEvent `json:"events"`
}

// GetProgress handles GET /jobs/{jobId}/progress. With ?latest=true only the
// most recent event is returned.
func (h *ProgressHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")

	if r.URL.Query().Get("latest") == "true" {
		latest, err := h.tracker.Latest(r.Context(), jobID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to read progress", err.Error())
			return
		}
		if latest == nil {
			writeError(w, http.StatusNotFound, "unknown job", jobID)
			return
		}
		writeJSON(w, http.StatusOK, latest)
		return
	}

	events, err := h.tracker.GetUpdates(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read progress", err.Error())
		return
	}
	if len(events) == 0 {
		writeError(w, http.StatusNotFound, "unknown job", jobID)
		return
	}

	writeJSON(w, http.StatusOK, ProgressResponseDTO{JobID: jobID, Events: events})
}
