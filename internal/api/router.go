/**
 * @description
 * HTTP router setup for the ledger service using go-chi/chi.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new Chi router and registers the ledger routes.
func NewRouter(webhook http.Handler, h *Handler, internalKey string, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(Instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Internal-API-Key"},
		ExposedHeaders: []string{"Link"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Ledger service is healthy"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Method(http.MethodPost, "/webhooks/shopify", webhook)

	r.Group(func(r chi.Router) {
		r.Use(InternalAuthMiddleware(internalKey))
		r.Get("/affiliates/{affiliateID}/eligibility", h.handleGetEligibility)
		r.Get("/shopify/products", h.handleListProducts)
	})

	return r
}
