package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hospitalms/patient-portal/internal/http/handlers"
	httpmiddleware "github.com/hospitalms/patient-portal/internal/http/middleware"
	"github.com/hospitalms/patient-portal/pkg/logging"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Auth               *handlers.AuthHandler
	Appointments       *handlers.AppointmentsHandler
	Stream             *handlers.StreamHandler
	Sessions           httpmiddleware.SessionResolver
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	// Optional dependency checks reported by /health
	HealthChecks map[string]HealthCheck
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.HealthChecks))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	r.Route("/api", func(api chi.Router) {
		if cfg.RateLimitRPS > 0 && cfg.RateLimitBurst > 0 {
			api.Use(httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
		}
		if cfg.Auth != nil {
			api.Post("/login", cfg.Auth.Login)
		}

		// Patient routes (session token required)
		api.Group(func(patient chi.Router) {
			patient.Use(httpmiddleware.SessionAuth(cfg.Sessions))
			if cfg.Auth != nil {
				patient.Post("/logout", cfg.Auth.Logout)
				patient.Get("/me", cfg.Auth.Me)
			}
			patient.Route("/appointments", func(r chi.Router) {
				if cfg.Appointments != nil {
					r.Get("/", cfg.Appointments.List)
					r.Post("/", cfg.Appointments.Book)
					r.Post("/refresh", cfg.Appointments.Refresh)
					r.Get("/history", cfg.Appointments.History)
					r.Delete("/selection", cfg.Appointments.ClearSelection)
					r.Post("/{id}/select", cfg.Appointments.Select)
					r.Put("/{id}", cfg.Appointments.Update)
				}
				if cfg.Stream != nil {
					r.Get("/stream", cfg.Stream.HandleWebSocket)
				}
			})
		})
	})

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			err := check(ctx)
			cancel()
			if err != nil {
				results[name] = err.Error()
				status = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		resp := map[string]any{"status": status}
		if len(results) > 0 {
			resp["checks"] = results
		}
		writeJSON(w, code, resp)
	}
}
