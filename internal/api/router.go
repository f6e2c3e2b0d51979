package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/rzpsarthak13/transferdesk/internal/registry"
)

// Deps are the services the router serves.
type Deps struct {
	Rides  RideService
	Prices PriceService
	// Ready reports whether the store and cache can be reached.
	Ready func(ctx context.Context) error
}

// NewRouter wires all routes and returns the chi router.
func NewRouter(cfg *registry.InternalConfig, deps Deps) http.Handler {
	logger := log.With().Str("component", "api").Logger()

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(requestLogMiddleware(logger))
	r.Use(middleware.Recoverer)
	if cfg.Server.WriteTimeout > 0 {
		r.Use(middleware.Timeout(cfg.Server.WriteTimeout))
	}
	r.Use(corsMiddleware(cfg.Server.CORSOrigin))
	r.Use(rateLimitMiddleware(cfg.Server.RateLimit, cfg.Server.RateBurst))

	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleNotFound)

	r.Get("/health", handleHealth)
	r.Get("/readyz", handleReadyz(deps.Ready))
	r.Handle("/metrics", promhttp.Handler())

	auth := NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.CookieName)
	rides := &ridesHandler{rides: deps.Rides, logger: logger}
	prices := &pricesHandler{prices: deps.Prices, logger: logger}

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)

		r.Get("/auth/me", handleMe)

		r.Route("/rides", func(r chi.Router) {
			r.Get("/search", rides.Search)
			r.Get("/options", rides.Options)
			r.Get("/report.pdf", rides.Report)
			r.Post("/", rides.Create)
			r.Put("/{id}", rides.Update)
			r.Delete("/{id}", rides.Delete)
		})

		r.Route("/prices", func(r chi.Router) {
			r.Get("/", prices.List)
			r.Get("/lookup", prices.Lookup)
		})
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleReadyz pings the store and the cache to confirm the service is ready.
func handleReadyz(ready func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			if err := ready(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
					"ok":    false,
					"error": err.Error(),
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}
