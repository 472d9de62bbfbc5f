/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the mobile/web client

ROUTE GROUPS:
  /api/users/*        Registration
  /api/routines/*     Routine CRUD, personal completion, personal reward
  /api/subroutines/*  Sub-routine marks
  /api/me/*           Streak, weekly summary, balance, ledger, grants
  /api/groups/*       Group consensus
  /api/rewards/*      Weekly bonus
  /api/items/*        Shop
  /api/admin/*        Adjustments
  /api/scenarios/*    Demo scenarios
  /healthz            Liveness + store ping

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
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", UserHeader},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/users", h.CreateUser)

		r.Route("/routines", func(r chi.Router) {
			r.Get("/", h.ListRoutines)
			r.Post("/", h.CreateRoutine)
			r.Get("/{id}", h.GetRoutine)
			r.Delete("/{id}", h.DeleteRoutine)
			r.Post("/{id}/subroutines", h.AddSubRoutines)
			r.Delete("/{id}/subroutines/{subID}", h.DeleteSubRoutine)
			r.Get("/{id}/progress", h.GetProgress)
			r.Post("/{id}/complete", h.CompleteRoutine)
			r.Post("/{id}/reward", h.ClaimPersonalReward)
		})

		r.Route("/subroutines", func(r chi.Router) {
			r.Post("/{id}/complete", h.CompleteSubRoutine)
			r.Post("/{id}/uncomplete", h.UncompleteSubRoutine)
		})

		r.Route("/me", func(r chi.Router) {
			r.Get("/streak", h.GetStreak)
			r.Get("/weekly", h.GetWeeklySummary)
			r.Get("/balance", h.GetBalance)
			r.Get("/transactions", h.GetTransactions)
			r.Get("/grants", h.GetGrants)
		})

		r.Route("/groups", func(r chi.Router) {
			r.Get("/", h.ListGroups)
			r.Get("/{id}", h.GetGroup)
			r.Post("/{id}/join", h.JoinGroup)
			r.Post("/{id}/leave", h.LeaveGroup)
			r.Put("/{id}/subroutines/{subID}", h.MarkGroupSubRoutine)
			r.Post("/{id}/record", h.RecordGroupCompletion)
			r.Get("/{id}/snapshot", h.GetGroupSnapshot)
			r.Post("/{id}/reward", h.ClaimGroupReward)
		})

		r.Post("/rewards/weekly", h.ClaimWeeklyBonus)

		r.Route("/items", func(r chi.Router) {
			r.Get("/", h.ListItems)
			r.Post("/", h.CreateItem)
			r.Get("/{id}", h.GetItem)
			r.Post("/{id}/purchase", h.PurchaseItem)
		})

		r.Post("/admin/adjustments", h.CreateAdjustment)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}

// Health reports whether the store answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.Store.Ping(r.Context()); err != nil {
		h.log.Warn("health check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
