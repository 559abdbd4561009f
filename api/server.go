/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for a frontend

ROUTE GROUPS:
  /api/accounts/*      Accounts and their entries
  /api/entries/*       Single entries
  /api/savings/*       Savings products
  /api/borrow-lend/*   Borrow/lend records
  /api/categories      Expense and income categories
  /api/subjects        Borrow/lend counterparties
  /api/audit           Audit log
  /health              Liveness

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

// NewRouter creates a new router with all routes configured. An empty
// allowedOrigins allows any origin.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.ListAccounts)
			r.Post("/", h.CreateAccount)
			r.Get("/{id}", h.GetAccount)
			r.Put("/{id}/balance", h.SetBalance)
			r.Post("/{id}/reconcile", h.Reconcile)
			r.Get("/{id}/entries", h.ListEntries)
			r.Post("/{id}/entries", h.CreateEntry)
			r.Post("/{id}/entries/batch", h.ImportEntries)
		})

		r.Route("/entries", func(r chi.Router) {
			r.Get("/{id}", h.GetEntry)
			r.Delete("/{id}", h.DeleteEntry)
		})

		r.Route("/savings", func(r chi.Router) {
			r.Get("/", h.ListSavings)
			r.Post("/", h.CreateSavings)
			r.Get("/{id}", h.GetSavings)
			r.Put("/{id}", h.UpdateSavings)
		})

		r.Route("/borrow-lend", func(r chi.Router) {
			r.Get("/{id}", h.GetBorrowLend)
			r.Put("/{id}", h.UpdateBorrowLend)
		})
		r.Get("/action-types", h.ListActionTypes)

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.ListCategories)
			r.Post("/", h.CreateCategory)
		})

		r.Route("/subjects", func(r chi.Router) {
			r.Get("/", h.ListSubjects)
			r.Post("/", h.CreateSubject)
		})

		r.Get("/audit", h.ListAudit)
	})

	return r
}
