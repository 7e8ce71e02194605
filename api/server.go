/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

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
  4. CORS:       Cross-origin requests for frontend
  5. Tenant:     Extracts X-Tenant-ID / X-Actor-ID into a RequestContext

TENANT IDENTITY:
  Every /api route requires the X-Tenant-ID header; requests without it
  are rejected with 400 before reaching a handler. X-Actor-ID is
  optional and defaults to "system". In production these come from the
  auth layer, not raw headers.

ROUTE GROUPS:
  /api/plans/*         Plan management
  /api/assignments     Plan assignments
  /api/employees/*     Per-employee views
  /api/transactions/*  Sales transaction intake
  /api/calculations/*  Calculation runs and settlement
  /api/adjustments/*   Adjustment ledger
  /api/disputes/*      Dispute workflow
  /api/scenarios/*     Demo scenarios

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/dealerpoint/commission-engine/commission"
)

type contextKey string

const requestContextKey contextKey = "commission.request_context"

// requestContext retrieves the tenant identity stored by the middleware.
func requestContext(r *http.Request) commission.RequestContext {
	rc, _ := r.Context().Value(requestContextKey).(commission.RequestContext)
	return rc
}

// tenantMiddleware extracts tenant and actor identity from headers and
// rejects requests without a tenant.
func tenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc := commission.RequestContext{
			TenantID: commission.TenantID(r.Header.Get("X-Tenant-ID")),
			ActorID:  r.Header.Get("X-Actor-ID"),
		}
		if !rc.Valid() {
			writeError(w, http.StatusBadRequest, "Missing X-Tenant-ID header", nil)
			return
		}
		if rc.ActorID == "" {
			rc.ActorID = "system"
		}
		ctx := context.WithValue(r.Context(), requestContextKey, rc)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

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
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Tenant-ID", "X-Actor-ID"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)

	// API routes (tenant-scoped)
	r.Route("/api", func(r chi.Router) {
		r.Use(tenantMiddleware)

		// Plan routes
		r.Route("/plans", func(r chi.Router) {
			r.Get("/", h.ListPlans)
			r.Post("/", h.CreatePlan)
			r.Get("/{id}", h.GetPlan)
		})

		// Assignment routes
		r.Post("/assignments", h.CreateAssignment)

		// Per-employee views
		r.Route("/employees/{id}", func(r chi.Router) {
			r.Get("/assignments", h.ListAssignments)
			r.Get("/transactions", h.ListTransactions)
			r.Get("/calculations", h.ListCalculations)
		})

		// Transaction intake
		r.Post("/transactions", h.CreateTransaction)
		r.Post("/transactions/{id}/chargeback", h.ChargebackTransaction)

		// Calculation runs and settlement
		r.Route("/calculations", func(r chi.Router) {
			r.Post("/", h.Calculate)
			r.Get("/{id}", h.GetCalculation)
			r.Post("/{id}/approve", h.ApproveCalculation)
			r.Post("/{id}/pay", h.PayCalculation)
			r.Post("/{id}/cancel", h.CancelCalculation)
			r.Post("/{id}/apply-adjustments", h.ApplyAdjustments)
		})

		// Adjustment ledger
		r.Route("/adjustments", func(r chi.Router) {
			r.Post("/", h.CreateAdjustment)
			r.Get("/{id}", h.GetAdjustment)
			r.Post("/{id}/approve", h.ApproveAdjustment)
			r.Post("/{id}/reject", h.RejectAdjustment)
		})

		// Dispute workflow
		r.Route("/disputes", func(r chi.Router) {
			r.Post("/", h.SubmitDispute)
			r.Get("/{id}", h.GetDispute)
			r.Get("/{id}/history", h.GetDisputeHistory)
			r.Post("/{id}/assign", h.AssignDispute)
			r.Post("/{id}/escalate", h.EscalateDispute)
			r.Post("/{id}/resolve", h.ResolveDispute)
			r.Post("/{id}/reject", h.RejectDispute)
			r.Post("/{id}/close", h.CloseDispute)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
