package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/playbook/outreach/internal/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all API routes. health may be nil.
func SetupRoutes(cfg config.ServerConfig, h *OutreachHandler, health *HealthChecker) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	if health != nil {
		r.Get("/health", health.HandleHealth)
		r.Get("/health/live", health.HandleLiveness)
		r.Get("/health/ready", health.HandleReadiness)
	} else {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"alive"}`))
		})
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/outreach", func(r chi.Router) {
		r.Post("/run", h.HandleRun)
		r.Post("/webhook/inbound", h.HandleInbound)
		r.Get("/responses", h.HandleListResponses)
		r.Get("/stats", h.HandleStats)
		r.Patch("/campaigns/{id}", h.HandleUpdateCampaign)
		r.Post("/campaigns/{id}/preview", h.HandlePreview)
	})

	return r
}
