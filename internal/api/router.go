// Package api assembles the HTTP surface of an agent.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/boltzchat/agents/internal/api/handlers"
	"github.com/boltzchat/agents/internal/api/middleware"
	"github.com/boltzchat/agents/internal/config"
	"github.com/boltzchat/agents/internal/metrics"
)

// NewRouter creates the HTTP router with all agent routes. m may be nil, in
// which case /metrics is not served.
func NewRouter(cfg *config.Config, h *handlers.Handlers, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-Id", "X-Session-Id", "X-Reply-To"},
		ExposedHeaders: []string{"X-Request-Id", "X-Session-Id"},
		MaxAge:         300,
	}))
	r.Use(middleware.NewAPIKeyAuth(cfg.Auth.APIKeys).Middleware)

	// Health & info
	r.Get("/health", healthHandler(cfg))
	r.Get("/version", versionHandler(cfg))
	r.Get("/.well-known/agent-card.json", h.ServeAgentCard)
	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	// Chat protocol
	r.Post("/chat", h.Chat)
	r.Post("/structured-output", h.StructuredOutput)

	return r
}

func healthHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status":  "healthy",
			"service": cfg.Name,
		})
	}
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"version": cfg.Version,
			"service": cfg.Name,
		})
	}
}
