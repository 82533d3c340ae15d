/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for back-office frontends

ROUTE GROUPS:
  /api/commissions/*    Commission resolution
  /api/reports/*        Aggregated sales and commission reports
  /api/snapshots/*      Snapshot consistency checks
  /api/admin/*          Admin operations (recompute)
  /api/audit            Audit trail queries

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public;
  production deployments must front this with the gateway.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Commission resolution
		r.Route("/commissions", func(r chi.Router) {
			r.Post("/resolve", h.ResolveCommission)
		})

		// Reports
		r.Route("/reports", func(r chi.Router) {
			r.Get("/windows", h.ReportByWindow)
			r.Get("/sellers", h.ReportBySeller)
			r.Get("/lotteries", h.ReportByLottery)
			r.Get("/draws", h.ReportByDraw)
			r.Get("/total", h.ReportTotal)
		})

		// Snapshot reconciliation
		r.Route("/snapshots", func(r chi.Router) {
			r.Post("/validate", h.ValidateSnapshots)
		})

		// Admin operations
		r.Route("/admin", func(r chi.Router) {
			r.Post("/recompute", h.RecomputeCommissions)
		})

		// Audit trail
		r.Get("/audit", h.QueryAudit)
	})

	return r
}
