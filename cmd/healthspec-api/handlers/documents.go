// Package handlers provides HTTP handlers for the HealthSpec API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/healthspec-ai/healthspec/internal/domain"
	"github.com/healthspec-ai/healthspec/internal/observability"
	"github.com/healthspec-ai/healthspec/internal/pipeline"
)

// maxUploadBytes bounds multipart uploads.
const maxUploadBytes = 50 << 20 // 50 MB

var allowedUploadExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".txt":  true,
	".md":   true,
}

// Pipeline is the processing surface the document handler drives.
type Pipeline interface {
	Run(ctx context.Context, job domain.ProcessingJob, filePath string) error
	Synthesize(ctx context.Context, jobID string, answers map[string]domain.Answer) (*pipeline.SynthesisResult, error)
}

// DocumentHandler handles document upload and answer submission.
type DocumentHandler struct {
	logger     *observability.Logger
	pipeline   Pipeline
	uploadRoot string
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(logger *observability.Logger, pipeline Pipeline, uploadRoot string) *DocumentHandler {
	if uploadRoot == "" {
		uploadRoot = os.TempDir()
	}
	return &DocumentHandler{
		logger:     logger,
		pipeline:   pipeline,
		uploadRoot: uploadRoot,
	}
}

// UploadResponseDTO is returned on accepted uploads.
type UploadResponseDTO struct {
	JobID     string `json:"jobId"`
	ProjectID string `json:"projectId"`
	FileName  string `json:"fileName"`
	Status    string `json:"status"`
}

// Upload handles POST /projects/{projectId}/documents. The file is saved and
// a processing job is started in the background; the client polls progress by
// the returned job id.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectId")
	if _, err := uuid.Parse(projectID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid projectId", err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file supplied", err.Error())
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedUploadExtensions[ext] {
		writeError(w, http.StatusBadRequest, "unsupported file type", ext)
		return
	}

	jobID := uuid.NewString()

	dir := filepath.Join(h.uploadRoot, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store upload", err.Error())
		return
	}
	dstPath := filepath.Join(dir, filepath.Base(header.Filename))
	dst, err := os.Create(dstPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store upload", err.Error())
		return
	}
	size, err := io.Copy(dst, file)
	dst.Close()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store upload", err.Error())
		return
	}

	job := domain.ProcessingJob{
		JobID:     jobID,
		ProjectID: projectID,
		FileName:  header.Filename,
		FileSize:  size,
		FileType:  header.Header.Get("Content-Type"),
		CreatedAt: time.Now(),
	}

	go func() {
		// Detached from the request context: processing outlives the upload call.
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		defer os.RemoveAll(dir)

		if err := h.pipeline.Run(ctx, job, dstPath); err != nil {
			h.logger.Error().Err(err).Str("job_id", jobID).Msg("Document processing failed")
		}
	}()

	h.logger.Info().
		Str("job_id", jobID).
		Str("project_id", projectID).
		Str("file", header.Filename).
		Int64("bytes", size).
		Msg("Document accepted for processing")

	writeJSON(w, http.StatusAccepted, UploadResponseDTO{
		JobID:     jobID,
		ProjectID: projectID,
		FileName:  header.Filename,
		Status:    "processing",
	})
}

// AnswersRequestDTO is the body of an answer submission.
type AnswersRequestDTO struct {
	Answers map[string]domain.Answer `json:"answers"`
}

// AnswersResponseDTO is returned after synthesis. Degraded signals the
// requirements came from the fallback path rather than parsed model output.
type AnswersResponseDTO struct {
	JobID        string                        `json:"jobId"`
	Requirements []domain.GeneratedRequirement `json:"requirements"`
	SavedCount   int                           `json:"savedCount"`
	TotalCount   int                           `json:"totalCount"`
	Degraded     bool                          `json:"degraded"`
}

// SubmitAnswers handles POST /jobs/{jobId}/answers: runs requirement
// synthesis and persistence with the supplied answers.
func (h *DocumentHandler) SubmitAnswers(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")

	var req AnswersRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	result, err := h.pipeline.Synthesize(r.Context(), jobID, req.Answers)
	if err != nil {
		status := http.StatusInternalServerError
		var derr *domain.DomainError
		if errors.As(err, &derr) && derr.Type == domain.ErrorTypeValidation {
			status = http.StatusNotFound
		}
		writeError(w, status, "synthesis failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, AnswersResponseDTO{
		JobID:        jobID,
		Requirements: result.Requirements,
		SavedCount:   result.SavedCount,
		TotalCount:   result.TotalCount,
		Degraded:     result.Degraded,
	})
}
