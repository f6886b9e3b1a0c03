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
		// Health and metrics (no auth required)
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		// WebSocket (auth via ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Route("/outputs", func(r chi.Router) {
				r.Get("/", s.handleListOutputs)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetOutput)
					r.Get("/state", s.handleGetOutput)
					r.Put("/state", s.handleSetOutputState)
					r.Get("/history", s.handleGetOutputHistory)
				})
			})

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Get("/frequency", s.handleGetFrequency)
					r.Put("/frequency", s.handleSetFrequency)
					r.Post("/all-off", s.handleAllOff)
				})
			})
		})
	})

	return r
}
