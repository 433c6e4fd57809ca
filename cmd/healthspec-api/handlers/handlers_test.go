package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthspec-ai/healthspec/internal/domain"
	"github.com/healthspec-ai/healthspec/internal/observability"
	"github.com/healthspec-ai/healthspec/internal/pipeline"
	"github.com/healthspec-ai/healthspec/internal/storage"
)

type fakePipeline struct {
	mu        sync.Mutex
	ranJobs   []domain.ProcessingJob
	ranPaths  []string
	runDone   chan struct{}
	synthErr  error
	synthesis *pipeline.SynthesisResult
	gotJobID  string
	gotAns    map[string]domain.Answer
}

func newFakePipeline() *fakePipeline {
	return &fakePipeline{runDone: make(chan struct{}, 1)}
}

func (f *fakePipeline) Run(ctx context.Context, job domain.ProcessingJob, filePath string) error {
	f.mu.Lock()
	f.ranJobs = append(f.ranJobs, job)
	f.ranPaths = append(f.ranPaths, filePath)
	f.mu.Unlock()
	f.runDone <- struct{}{}
	return nil
}

func (f *fakePipeline) Synthesize(ctx context.Context, jobID string, answers map[string]domain.Answer) (*pipeline.SynthesisResult, error) {
	f.mu.Lock()
	f.gotJobID = jobID
	f.gotAns = answers
	f.mu.Unlock()
	if f.synthErr != nil {
		return nil, f.synthErr
	}
	return f.synthesis, nil
}

type fakeProgress struct {
	events map[string][]domain.ProgressEvent
}

func (f *fakeProgress) GetUpdates(ctx context.Context, jobID string) ([]domain.ProgressEvent, error) {
	return f.events[jobID], nil
}

func (f *fakeProgress) Latest(ctx context.Context, jobID string) (*domain.ProgressEvent, error) {
	evs := f.events[jobID]
	if len(evs) == 0 {
		return nil, nil
	}
	return &evs[len(evs)-1], nil
}

type fakeRequirements struct {
	records []*storage.Requirement
	err     error
}

func (f *fakeRequirements) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*storage.Requirement, error) {
	return f.records, f.err
}

func testRouter(p Pipeline, prog ProgressReader, reqs RequirementReader, uploadRoot string) http.Handler {
	logger := observability.Nop()
	dh := NewDocumentHandler(logger, p, uploadRoot)
	ph := NewProgressHandler(logger, prog)
	rh := NewRequirementsHandler(logger, reqs)

	r := chi.NewRouter()
	r.Post("/projects/{projectId}/documents", dh.Upload)
	r.Get("/projects/{projectId}/requirements", rh.ListByProject)
	r.Get("/jobs/{jobId}/progress", ph.GetProgress)
	r.Post("/jobs/{jobId}/answers", dh.SubmitAnswers)
	return r
}

func multipartBody(t *testing.T, fieldName, fileName, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(fieldName, fileName)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUpload_AcceptsDocumentAndStartsJob(t *testing.T) {
	p := newFakePipeline()
	router := testRouter(p, &fakeProgress{}, &fakeRequirements{}, t.TempDir())

	projectID := uuid.NewString()
	body, contentType := multipartBody(t, "file", "spec.pdf", "%PDF-1.4 test")

	req := httptest.NewRequest(http.MethodPost, "/projects/"+projectID+"/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp UploadResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.JobID)
	assert.Equal(t, projectID, resp.ProjectID)
	assert.Equal(t, "spec.pdf", resp.FileName)
	assert.Equal(t, "processing", resp.Status)

	select {
	case <-p.runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline run was not started")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	require.Len(t, p.ranJobs, 1)
	assert.Equal(t, resp.JobID, p.ranJobs[0].JobID)
	assert.Equal(t, projectID, p.ranJobs[0].ProjectID)
	assert.Contains(t, p.ranPaths[0], resp.JobID)
}

func TestUpload_InvalidProjectID(t *testing.T) {
	router := testRouter(newFakePipeline(), &fakeProgress{}, &fakeRequirements{}, t.TempDir())

	body, contentType := multipartBody(t, "file", "spec.pdf", "data")
	req := httptest.NewRequest(http.MethodPost, "/projects/not-a-uuid/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpload_RejectsUnsupportedExtension(t *testing.T) {
	p := newFakePipeline()
	router := testRouter(p, &fakeProgress{}, &fakeRequirements{}, t.TempDir())

	body, contentType := multipartBody(t, "file", "malware.exe", "MZ")
	req := httptest.NewRequest(http.MethodPost, "/projects/"+uuid.NewString()+"/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Empty(t, p.ranJobs)
}

func TestUpload_MissingFileField(t *testing.T) {
	router := testRouter(newFakePipeline(), &fakeProgress{}, &fakeRequirements{}, t.TempDir())

	body, contentType := multipartBody(t, "document", "spec.pdf", "data")
	req := httptest.NewRequest(http.MethodPost, "/projects/"+uuid.NewString()+"/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitAnswers_ReturnsSynthesisResult(t *testing.T) {
	p := newFakePipeline()
	p.synthesis = &pipeline.SynthesisResult{
		Requirements: []domain.GeneratedRequirement{
			{ID: "REQ-001", Title: "Audit logging"},
			{ID: "REQ-002", Title: "Access control"},
		},
		SavedCount: 2,
		TotalCount: 2,
		Degraded:   true,
	}
	router := testRouter(p, &fakeProgress{}, &fakeRequirements{}, t.TempDir())

	payload := `{"answers":{"compliance-standards":{"values":["hipaa","fda"]}}}`
	req := httptest.NewRequest(http.MethodPost, "/jobs/job-42/answers", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp AnswersResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "job-42", resp.JobID)
	assert.Len(t, resp.Requirements, 2)
	assert.Equal(t, 2, resp.SavedCount)
	assert.Equal(t, 2, resp.TotalCount)
	assert.True(t, resp.Degraded)

	assert.Equal(t, "job-42", p.gotJobID)
	assert.Equal(t, []string{"hipaa", "fda"}, p.gotAns["compliance-standards"].Values)
}

func TestSubmitAnswers_UnknownJobIs404(t *testing.T) {
	p := newFakePipeline()
	p.synthErr = domain.ValidationError("unknown job", nil)
	router := testRouter(p, &fakeProgress{}, &fakeRequirements{}, t.TempDir())

	req := httptest.NewRequest(http.MethodPost, "/jobs/nope/answers", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitAnswers_BadBody(t *testing.T) {
	router := testRouter(newFakePipeline(), &fakeProgress{}, &fakeRequirements{}, t.TempDir())

	req := httptest.NewRequest(http.MethodPost, "/jobs/job-1/answers", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetProgress_FullHistory(t *testing.T) {
	prog := &fakeProgress{events: map[string][]domain.ProgressEvent{
		"job-1": {
			{JobID: "job-1", Step: domain.StageConvert, Status: domain.StatusCompleted},
			{JobID: "job-1", Step: domain.StageQuestions, Status: domain.StatusCompleted},
		},
	}}
	router := testRouter(newFakePipeline(), prog, &fakeRequirements{}, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/jobs/job-1/progress", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ProgressResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "job-1", resp.JobID)
	require.Len(t, resp.Events, 2)
	assert.Equal(t, domain.StageQuestions, resp.Events[1].Step)
}

func TestGetProgress_LatestOnly(t *testing.T) {
	prog := &fakeProgress{events: map[string][]domain.ProgressEvent{
		"job-1": {
			{JobID: "job-1", Step: domain.StageConvert, Status: domain.StatusCompleted},
			{JobID: "job-1", Step: domain.StageAnalyze, Status: domain.StatusProcessing},
		},
	}}
	router := testRouter(newFakePipeline(), prog, &fakeRequirements{}, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/jobs/job-1/progress?latest=true", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var ev domain.ProgressEvent
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&ev))
	assert.Equal(t, domain.StageAnalyze, ev.Step)
	assert.Equal(t, domain.StatusProcessing, ev.Status)
}

func TestGetProgress_UnknownJob(t *testing.T) {
	router := testRouter(newFakePipeline(), &fakeProgress{}, &fakeRequirements{}, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/jobs/missing/progress", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/jobs/missing/progress?latest=true", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRequirements_ReturnsDecodedRecords(t *testing.T) {
	projectID := uuid.New()
	rec1, err := storage.FromGenerated(projectID, "job-1", domain.GeneratedRequirement{
		ID:                 "REQ-001",
		Title:              "Encrypt PHI at rest",
		Category:           domain.RequirementTechnical,
		Priority:           domain.PriorityCritical,
		AcceptanceCriteria: []string{"AES-256 at rest"},
		Compliance:         []string{"HIPAA"},
		TestScenarios:      []string{"verify encryption"},
	})
	require.NoError(t, err)

	router := testRouter(newFakePipeline(), &fakeProgress{}, &fakeRequirements{records: []*storage.Requirement{rec1}}, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/projects/"+projectID.String()+"/requirements", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp RequirementsResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, projectID.String(), resp.ProjectID)
	require.Len(t, resp.Requirements, 1)
	assert.Equal(t, "REQ-001", resp.Requirements[0].ID)
	assert.Equal(t, []string{"HIPAA"}, resp.Requirements[0].Compliance)
}

func TestListRequirements_InvalidProjectID(t *testing.T) {
	router := testRouter(newFakePipeline(), &fakeProgress{}, &fakeRequirements{}, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/projects/bogus/requirements", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRequirements_RepositoryError(t *testing.T) {
	router := testRouter(newFakePipeline(), &fakeProgress{}, &fakeRequirements{err: fmt.Errorf("db down")}, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/projects/"+uuid.NewString()+"/requirements", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
