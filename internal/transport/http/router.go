package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"quizgram/internal/handler"
	"quizgram/internal/httputil"
	authmw "quizgram/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	RelationshipHandler *handler.RelationshipHandler
	ViewHandler         *handler.ViewHandler
	JWTSecret           string
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFound(w, "Route not found")
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	// Public reads
	r.Get("/users/{id}/followers/count", cfg.RelationshipHandler.FollowerCount)
	r.Get("/entities/views", cfg.ViewHandler.Counts)

	// Protected routes - require authentication
	r.Group(func(r chi.Router) {
		r.Use(authmw.AuthMiddleware(cfg.JWTSecret))

		r.Put("/users/{id}/following/{targetID}", cfg.RelationshipHandler.SetState)
		r.Get("/users/{id}/following/status", cfg.RelationshipHandler.FollowStatus)

		r.Post("/entities/{id}/views", cfg.ViewHandler.Record)
	})

	return r
}
