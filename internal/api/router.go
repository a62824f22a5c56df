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

	// Cloud webhook endpoint. Never behind local auth: deliveries are
	// authenticated by the unguessable hook id in the path, and the
	// ingestor owns malformed-payload handling.
	if s.webhook != nil {
		r.Handle(s.webhookPrefix+"/{hookID}", s.webhook.Handler())
	}

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// Device endpoints
			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Get("/stats", s.handleDeviceStats)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Get("/status", s.handleGetDeviceStatus)
					r.Get("/history", s.handleGetDeviceHistory)
					r.Post("/commands", s.handleSendCommands)
				})
			})

			// Room and scene catalogues (cached by the reconciler)
			r.Get("/rooms", s.handleListRooms)
			r.Route("/scenes", func(r chi.Router) {
				r.Get("/", s.handleListScenes)
				r.Post("/{id}/execute", s.handleExecuteScene)
			})

			// Bridge status, counters and manual refresh
			r.Get("/status", s.handleBridgeStatus)
			r.Get("/stats", s.handleStats)
			r.Post("/refresh", s.handleRefresh)

			// WebSocket (token accepted via query parameter for browsers)
			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
