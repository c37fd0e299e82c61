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
  4. CORS:       Cross-origin requests for the dealership frontend

ROUTE GROUPS:
  /api/financings/*  Financing lifecycle, records, payments
  /api/cycles/*      Manual cycle phase triggers (the scheduler hits the
                     same code paths)
  /api/scenarios/*   Demo scenario loaders (dev only)
  /api/reset         Database reset (dev only)

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Financing routes
		r.Route("/financings", func(r chi.Router) {
			r.Get("/", h.ListFinancings)
			r.Post("/", h.CreateFinancing)
			r.Get("/{id}", h.GetFinancing)
			r.Get("/{id}/records", h.ListRecords)
			r.Post("/{id}/payments", h.RegisterPayment)
			r.Post("/{id}/penalty-preview", h.PenaltyPreview)
		})

		// Cycle triggers (same paths the scheduler uses, exposed for
		// operators and for replaying past dates)
		r.Route("/cycles", func(r chi.Router) {
			r.Post("/tuesday", h.RunTuesday)
			r.Post("/friday", h.RunFriday)
		})

		// Demo scenarios (dev only, they reset the database)
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})

		// Dev only
		r.Post("/reset", h.ResetDatabase)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
