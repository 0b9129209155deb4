/**
 * @description
 * This file sets up the HTTP router for the billing-service. It defines the
 * API endpoints, associates them with their corresponding handlers, and
 * applies any necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware for the dashboard frontend.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// BillingRoutes creates and returns a new router for the billing service.
func BillingRoutes(h *BillingHandlers, jwtSecret string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Public endpoints: buyers are Telegram users without platform accounts.
	r.Get("/groups/{groupID}/plans", h.ListPlansHandler)
	r.Post("/checkout", h.CreateCheckoutHandler)
	r.Post("/payments/verify", h.VerifyPaymentHandler)
	r.Get("/subscriptions/{subscriptionID}", h.GetSubscriptionHandler)
	r.Get("/groups/{groupID}/subscriptions/{buyerID}", h.GetSubscriptionStatusHandler)

	// Creator endpoints require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))

		r.Post("/creators", h.RegisterCreatorHandler)
		r.Get("/creators/me", h.GetMeHandler)

		r.Post("/groups", h.CreateGroupHandler)
		r.Get("/groups", h.ListGroupsHandler)

		r.Post("/plans", h.CreatePlanHandler)
		r.Delete("/plans/{planID}", h.DeactivatePlanHandler)

		r.Get("/balance", h.GetBalanceHandler)
		r.Post("/withdrawals", h.RequestWithdrawalHandler)
		r.Get("/withdrawals", h.ListWithdrawalsHandler)

		r.Get("/dashboard", h.GetDashboardHandler)
	})

	// Admin endpoints additionally require the admin role claim.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))
		r.Use(AdminOnly)

		r.Get("/admin/withdrawals", h.ListPendingWithdrawalsHandler)
		r.Post("/admin/withdrawals/{withdrawalID}/decision", h.DecideWithdrawalHandler)
		r.Get("/admin/stats", h.GetPlatformStatsHandler)
	})

	return r
}
