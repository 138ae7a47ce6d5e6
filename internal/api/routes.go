package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/mailroom/internal/tracking"
)

// SetupRoutes configures the full route tree. Tracking endpoints sit outside
// /api because they are hit by recipients' mail clients, not API callers.
func SetupRoutes(h *Handlers, trackingHandler *tracking.Handler, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	if len(corsOrigins) == 0 {
		corsOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.HealthCheck)

	r.Mount("/track", trackingHandler.Routes())

	r.Route("/api", func(r chi.Router) {
		r.Route("/campaigns", func(r chi.Router) {
			r.Post("/{id}/send", h.HandleSendCampaign)
			r.Post("/{id}/resend-failed", h.HandleResendFailed)
		})
		r.Route("/notifications", func(r chi.Router) {
			r.Post("/trigger", h.HandleTriggerNotification)
			r.Get("/audit", h.HandleListAudits)
		})
	})

	return r
}
