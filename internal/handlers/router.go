package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/schoolkit/api/internal/platform/auth"
	"github.com/schoolkit/api/internal/platform/httpx"
	"github.com/schoolkit/api/internal/platform/idempotency"
	"github.com/schoolkit/api/internal/platform/observability"
	"github.com/schoolkit/api/internal/services"
)

// RouterDeps bundles everything the HTTP surface needs.
type RouterDeps struct {
	Logger        *zap.Logger
	Authenticator *auth.Authenticator
	Checkout      services.CheckoutService
	Discounts     services.DiscountService

	IdempotencyStore  idempotency.Store
	IdempotencyHeader string
	IdempotencyTTL    time.Duration

	// Readiness reports whether downstream dependencies are reachable.
	Readiness func() error
}

// NewRouter assembles the chi router with the shared middleware stack.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.TraceMiddleware())
	if deps.Logger != nil {
		r.Use(observability.RequestLogger(deps.Logger))
	}
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(r.Context(), w, httpx.NewError("NOT_FOUND", "resource not found", http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(r.Context(), w, httpx.NewError("METHOD_NOT_ALLOWED", "method not allowed", http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness != nil {
			if err := deps.Readiness(); err != nil {
				httpx.WriteError(r.Context(), w, httpx.NewError("NOT_READY", err.Error(), http.StatusServiceUnavailable))
				return
			}
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/discounts/{code}", NewDiscountHandler(deps.Discounts).Get)

		api.Group(func(secured chi.Router) {
			if deps.Authenticator != nil {
				secured.Use(deps.Authenticator.RequireBuyer())
			}
			if deps.IdempotencyStore != nil {
				secured.Use(idempotency.Middleware(deps.IdempotencyStore, deps.IdempotencyHeader, deps.IdempotencyTTL))
			}
			secured.Post("/checkout", NewCheckoutHandler(deps.Checkout).Create)
		})
	})

	return r
}
