// Package main provides the API router setup.
package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/healthspec-ai/healthspec/cmd/healthspec-api/handlers"
	"github.com/healthspec-ai/healthspec/cmd/healthspec-api/middleware"
	"github.com/healthspec-ai/healthspec/internal/observability"
)

// Deps holds the services the router exposes over HTTP.
type Deps struct {
	Pipeline     handlers.Pipeline
	Progress     handlers.ProgressReader
	Requirements handlers.RequirementReader
	UploadRoot   string
	Timeout      time.Duration
}

// NewRouter creates the main API router with all routes configured.
func NewRouter(logger *observability.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))
	if deps.Timeout > 0 {
		r.Use(chimiddleware.Timeout(deps.Timeout))
	}

	// Health checks (unauthenticated)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"healthspec"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ready"}`))
	})

	documentHandler := handlers.NewDocumentHandler(logger, deps.Pipeline, deps.UploadRoot)
	progressHandler := handlers.NewProgressHandler(logger, deps.Progress)
	requirementsHandler := handlers.NewRequirementsHandler(logger, deps.Requirements)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/projects/{projectId}", func(r chi.Router) {
			r.Post("/documents", documentHandler.Upload)
			r.Get("/requirements", requirementsHandler.ListByProject)
		})

		r.Route("/jobs/{jobId}", func(r chi.Router) {
			r.Get("/progress", progressHandler.GetProgress)
			r.Post("/answers", documentHandler.SubmitAnswers)
		})
	})

	return r
}
