package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	evidenceapi "github.com/logwarden/logwarden/internal/api/evidence"
	"github.com/logwarden/logwarden/internal/api/incidents"
	"github.com/logwarden/logwarden/internal/api/ingest"
	"github.com/logwarden/logwarden/internal/api/middleware"
	"github.com/logwarden/logwarden/internal/evidence"
)

// setupRouter creates and configures the chi router with all routes.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestLogger(s.config.Verbose))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recoverer)
	r.Use(middleware.PrometheusMiddleware)

	// Envelope errors for unmatched routes and methods. The 405 wording
	// is part of the webhook contract.
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		JSONError(w, http.StatusNotFound, ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		JSONError(w, http.StatusMethodNotAllowed, ErrMethodNotAllowed)
	})

	ingestHandler := ingest.NewHandler(ingest.Config{
		Engine:            s.engine,
		Incidents:         s.storage.Incidents(),
		Counter:           s.counter,
		Archiver:          s.archiver,
		Dispatcher:        s.dispatcher,
		Events:            s.events,
		MaxBodyBytes:      s.config.MaxBodyBytes,
		ExcerptMax:        s.config.ExcerptMax,
		StrictPersistence: s.config.StrictPersistence,
	})
	incidentHandler := incidents.NewHandler(s.storage.Incidents())

	var evidenceHandler *evidenceapi.Handler
	if s.archiver != nil {
		evidenceHandler = evidenceapi.NewHandler(s.archiver)
	}

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.APIKeyAuth(s.verifier))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimitBySource(s.limiter))
				r.Post("/ingest", ingestHandler.Ingest)
			})

			r.Get("/incidents", incidentHandler.List)
			r.Get("/incidents/stats", incidentHandler.Stats)
			r.Get("/incidents/{id}", incidentHandler.Get)
		})

		// Signed evidence downloads carry their credential in the
		// token, not the API key header.
		if evidenceHandler != nil && s.archiver.URLMode() == evidence.URLModeSigned {
			r.Get("/evidence/{key}", evidenceHandler.DownloadSigned)
		}
	})

	// Webhook alias without the version prefix.
	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(s.verifier))
		r.Use(middleware.RateLimitBySource(s.limiter))
		r.Post("/ingest", ingestHandler.Ingest)
	})

	if evidenceHandler != nil && s.archiver.URLMode() == evidence.URLModePublic {
		r.Get("/evidence/{key}", evidenceHandler.DownloadPublic)
	}

	// Health checks (public, no auth)
	r.Get("/health", s.healthHandler.Health)
	r.Get("/health/live", s.healthHandler.Live)
	r.Get("/health/ready", s.healthHandler.Ready)

	return r
}
