package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(middleware.Recoverer)

	// Rate limiter for DELETE operations: burst of 100, then 10/second.
	deleteRateLimiter := NewDeleteRateLimiter(100, 100*time.Millisecond)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes (no auth required)
		r.Get("/health", h.Health)

		// Protected routes (auth required)
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.apiKey))

			r.Post("/kpis", h.CreateKPI)
			r.Get("/kpis", h.ListKPIs)
			r.Get("/kpis/{id}/claims", h.ListClaimsForKPI)

			r.Post("/locations", h.CreateLocation)
			r.Get("/locations", h.ListLocations)
			r.With(deleteRateLimiter.Middleware).Delete("/locations/{id}", h.DeleteLocation)

			r.Post("/claims", h.CreateClaim)
			r.Get("/claims/{id}", h.GetClaim)
			r.Patch("/claims/{id}", h.UpdateClaim)
			r.With(deleteRateLimiter.Middleware).Delete("/claims/{id}", h.DeleteClaim)
			r.Post("/claims/match", h.MatchClaims)

			r.Post("/evidence", h.CreateEvidence)
			r.Get("/evidence", h.ListEvidence)
			r.Get("/evidence/{id}", h.GetEvidence)
			r.Patch("/evidence/{id}", h.UpdateEvidence)
			r.With(deleteRateLimiter.Middleware).Delete("/evidence/{id}", h.DeleteEvidence)

			r.Get("/usage/{initiativeID}", h.Usage)
		})
	})

	return r
}
