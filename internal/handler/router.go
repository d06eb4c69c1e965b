package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/stylemirror/internal/middleware"
	"github.com/capitalize-ai/stylemirror/pkg/logger"
)

// RouterConfig collects the handlers and limits the API router is built from.
type RouterConfig struct {
	Health    *HealthHandler
	Contacts  *ContactHandler
	Workflows *WorkflowHandler
	Events    *EventHandler
	Logger    *logger.Logger

	AllowedOrigins    []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// NewRouter builds the HTTP API.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.Get("/health", cfg.Health.Health)
	r.Get("/ready", cfg.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// The event stream is long-lived and exempt from request limits.
		r.Get("/events", cfg.Events.Stream)

		r.Group(func(r chi.Router) {
			if cfg.RateLimitRequests > 0 {
				r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
			}
			r.Use(middleware.RequireJSON)

			r.Route("/contacts", func(r chi.Router) {
				r.Get("/", cfg.Contacts.List)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", cfg.Contacts.Get)
					r.Post("/select", cfg.Contacts.Select)
					r.Post("/analyze", cfg.Contacts.Analyze)
					r.Get("/history", cfg.Contacts.History)
				})
			})

			r.Post("/messages", cfg.Workflows.Send)

			r.Post("/incoming", cfg.Workflows.Incoming)
			r.Post("/incoming/confirm", cfg.Workflows.Confirm)
			r.Post("/incoming/dismiss", cfg.Workflows.Dismiss)

			r.Post("/drafts", cfg.Workflows.Draft)
			r.Delete("/drafts", cfg.Workflows.DiscardDraft)

			r.Post("/imports", cfg.Workflows.Import)
		})
	})

	return r
}
