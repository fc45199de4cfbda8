package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/cameras", func(r chi.Router) {
			r.Get("/", s.handleListCameras)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetCamera)

				// Protected: change camera state
				r.Group(func(r chi.Router) {
					r.Use(s.authMiddleware)
					r.Put("/auth", s.handleSetAuth)
					r.Put("/attributes/{name}", s.handleSetAttribute)
					r.Post("/commands", s.handleCommand)
				})
			})
		})

		// Protected: registry changes and the action trail
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Post("/discovery", s.handleDiscovery)
			r.Post("/rescan", s.handleRescan)
			r.Get("/audit", s.handleListAudit)
		})

		// Live attribute stream
		r.Get("/ws", s.handleWebSocket)
	})

	// Configured WebSocket path outside the versioned prefix, for dashboards
	// that expect a fixed endpoint.
	if path := s.wsCfg.Path; path != "" && path != "/api/v1/ws" {
		r.Get(path, s.handleWebSocket)
	}

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	if s.mqtt != nil && !s.mqtt.IsConnected() {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": s.version,
	})
}
