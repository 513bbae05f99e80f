// Package httpx is the HTTP surface of the storefront: payment endpoints the
// browser SDKs talk to, the checkout session API, the order API and the
// gateway webhook receiver.
package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jcmexdev/gameshop/internal/httpx/middlewares"
	"github.com/jcmexdev/gameshop/internal/identity"
)

// NewRouter assembles the full route tree.
//
// Public routes (no bearer token): payment bootstrap endpoints, the webhook
// receiver and health. Everything under /api requires a resolved identity.
func NewRouter(h *Handler, verifier identity.Verifier, frontendURL string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewares.CORS(frontendURL))

	r.Get("/health", h.Health)

	r.Post("/create-payment-intent", h.CreateIntent)
	r.Post("/create-paypal-order", h.CreateWalletOrder)
	r.Post("/capture-paypal-order/{orderID}", h.CaptureWalletOrder)

	// Raw-body route: must never sit behind anything that consumes the body.
	r.Post("/webhook/stripe", h.GatewayWebhook)

	r.Route("/api", func(r chi.Router) {
		r.Use(middlewares.RequireIdentity(verifier))

		r.Post("/orders", h.SaveOrder)
		r.Get("/orders", h.ListOwnOrders)
		r.Get("/orders/all", h.ListAllOrders)

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", h.BeginCheckout)
			r.Get("/{sessionID}", h.GetCheckout)
			r.Post("/{sessionID}/method", h.SelectMethod)
			r.Post("/{sessionID}/confirm", h.ConfirmCheckout)
			r.Post("/{sessionID}/return", h.ResumeCheckout)
			r.Post("/{sessionID}/cancel", h.CancelCheckout)
		})
	})

	return r
}
