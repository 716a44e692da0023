package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	corslib "github.com/rs/cors"

	"github.com/lleo5301/sports2-backend-sub005/internal/api/handler"
	"github.com/lleo5301/sports2-backend-sub005/internal/config"
)

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(deps handler.Deps, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()
	h := handler.New(deps)

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TimingMiddleware)
	r.Use(LoggingMiddleware(h.Logger))
	r.Use(middleware.Recoverer)

	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID"},
		ExposedHeaders:   []string{"X-Process-Time", "X-Request-Id", "Retry-After"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// --- Routes ---
	r.Get("/", h.Root)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/db", h.HealthCheckDB)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(APIKeyMiddleware(cfg.SyncAPIKey))

		r.Get("/diagnostics", h.GetDiagnostics)
		r.Get("/sync/logs/{logID}", h.GetSyncLog)

		r.Route("/teams/{teamID}", func(r chi.Router) {
			r.Put("/integration", h.PutIntegration)
			r.Delete("/integration", h.DeleteIntegration)
			r.Get("/sync/logs", h.ListSyncLogs)

			// Only triggers are rate limited.
			r.Group(func(r chi.Router) {
				if cfg.RateLimitEnabled {
					r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
				}
				r.Post("/sync", h.TriggerSyncAll)
				r.Post("/sync/{kind}", h.TriggerSync)
			})
		})
	})

	return r
}
