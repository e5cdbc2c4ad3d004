package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Route("/{address}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Post("/commands", s.handleDeviceCommand)
				})
			})

			r.Route("/groups", func(r chi.Router) {
				r.Get("/", s.handleListGroups)
				r.Post("/{group}/commands", s.handleGroupCommand)
			})

			r.Post("/modem/commands", s.handleModemCommand)
			r.Get("/schedule", s.handleSchedule)
			r.Get("/traffic", s.handleTraffic)
			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}
