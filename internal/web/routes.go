package web

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/et-316/ex-file-eraser/internal/pipeline"
	"github.com/et-316/ex-file-eraser/internal/web/handlers"
	"github.com/et-316/ex-file-eraser/internal/workflow"
)

func (s *Server) setupRoutes(deps Deps) {
	orchestrator := pipeline.NewOrchestrator(deps.Detector, deps.Embedder, s.config.Policy.Detect)
	indexes := handlers.NewIndexSet()

	if deps.Loader != nil {
		restored, err := handlers.RestoreRuns(context.Background(), deps.Loader, deps.Store, indexes, s.config.Policy.Dedup)
		if err != nil {
			log.Printf("failed to restore persisted runs: %v", err)
		} else if restored > 0 {
			log.Printf("restored %d persisted runs", restored)
		}
	}

	// A nil *Client must stay a nil interface so handlers can detect it
	var lister handlers.AssetLister
	var library workflow.Library
	if deps.Library != nil {
		lister = deps.Library
		library = deps.Library
	}

	// Create handlers
	runsHandler := handlers.NewRunsHandler(deps.Store, deps.Persister)
	importHandler := handlers.NewImportHandler(deps.Store, lister, deps.Persister)
	processHandler := handlers.NewProcessHandler(deps.Store, orchestrator, s.config.Policy, s.jobManager, indexes, deps.Persister)
	facesHandler := handlers.NewFacesHandler(deps.Store, indexes)
	photosHandler := handlers.NewPhotosHandler(deps.Store)
	applyHandler := handlers.NewApplyHandler(deps.Store, library, deps.Persister)
	archiveHandler := handlers.NewArchiveHandler(deps.Store)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Runs
		r.Post("/runs", runsHandler.Create)
		r.Get("/runs/{id}", runsHandler.Get)
		r.Delete("/runs/{id}", runsHandler.Delete)

		// Library import
		r.Post("/runs/{id}/import", importHandler.Import)

		// Detection and matching (long-running operations)
		r.Post("/runs/{id}/detect", processHandler.Detect)
		r.Post("/runs/{id}/select", processHandler.Select)
		r.Get("/runs/{id}/jobs/{jobId}", processHandler.JobStatus)
		r.Get("/runs/{id}/jobs/{jobId}/events", processHandler.Events)
		r.Delete("/runs/{id}/jobs/{jobId}", processHandler.Cancel)

		// Candidates
		r.Get("/runs/{id}/faces", facesHandler.List)
		r.Get("/runs/{id}/faces/{faceId}/similar", facesHandler.Similar)

		// Photos and results
		r.Get("/runs/{id}/photos", photosHandler.List)
		r.Get("/runs/{id}/archive", archiveHandler.Download)
		r.Post("/runs/{id}/apply", applyHandler.Apply)
	})

	s.router.Get("/", s.serveIndex)
}

// serveIndex serves a placeholder landing page pointing at the API.
func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>Ex File Eraser</title>
    <style>
        body { font-family: system-ui, sans-serif; display: flex; justify-content: center; align-items: center; height: 100vh; margin: 0; background: #1a1a2e; color: #eee; }
        .container { text-align: center; }
        h1 { color: #00d9ff; }
        p { color: #aaa; }
        a { color: #00d9ff; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Ex File Eraser</h1>
        <p>This server exposes the HTTP API only.</p>
        <p>API is available at <a href="/api/v1/health">/api/v1/health</a></p>
    </div>
</body>
</html>`))
}
