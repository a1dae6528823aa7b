// Package handler exposes the storefront over JSON HTTP.
package handler

import (
	"net/http"

	"baklava-be/internal/auth"
	"baklava-be/internal/cart"
	"baklava-be/internal/checkout"
	"baklava-be/internal/logger"
	"baklava-be/internal/metrics"
	"baklava-be/internal/middleware"
	"baklava-be/internal/order"
	"baklava-be/internal/product"
	"baklava-be/internal/user"
	"baklava-be/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Deps struct {
	Users    user.Service
	Products product.Service
	Cart     cart.Service
	Orders   order.Service
	Checkout checkout.Service
	Webhook  http.HandlerFunc
	Counters *metrics.Registry
	Limiter  *middleware.Limiter

	CORSOrigins  []string
	SecureCookie bool
}

type Handler struct {
	users    user.Service
	products product.Service
	cart     cart.Service
	orders   order.Service
	checkout checkout.Service
	counters *metrics.Registry
	secure   bool
}

func NewRouter(d Deps) http.Handler {
	if d.Counters == nil {
		d.Counters = metrics.NewRegistry()
	}
	if d.Limiter == nil {
		d.Limiter = middleware.NewLimiter()
	}

	h := &Handler{
		users:    d.Users,
		products: d.Products,
		cart:     d.Cart,
		orders:   d.Orders,
		checkout: d.Checkout,
		counters: d.Counters,
		secure:   d.SecureCookie,
	}

	r := chi.NewRouter()
	r.Use(logger.RequestIDMiddleware)
	r.Use(logger.LoggingMiddleware)
	r.Use(middleware.Recover)
	r.Use(middleware.CORS(d.CORSOrigins...))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "OK"})
	})

	// Webhooks authenticate by signature, not by session.
	r.With(d.Limiter.Middleware).Post("/webhook/payment", d.Webhook)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(d.Users))
		r.Use(d.Limiter.Middleware)

		r.Post("/auth/register", h.register)
		r.Post("/auth/login", h.login)
		r.Post("/auth/logout", h.logout)

		r.Get("/products", h.listProducts)
		r.Get("/products/{id}", h.getProduct)

		r.Get("/me", h.me)
		r.Post("/cart/quote", h.quote)

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.createOrder)
			r.Get("/", h.listOrders)
			r.Get("/{id}", h.getOrder)
			r.Delete("/{id}", h.cancelOrder)
			r.Post("/{id}/checkout-session", h.createCheckoutSession)
			r.Get("/{id}/confirmation", h.confirmPayment)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAdmin)

			r.Get("/users", h.adminListUsers)
			r.Post("/users/request-docs/resend", h.adminResendDocRequests)
			r.Get("/users/{id}", h.adminGetUser)
			r.Patch("/users/{id}/approval", h.adminSetApproval)
			r.Post("/users/{id}/request-docs", h.adminRequestDocs)

			r.Get("/orders", h.adminListOrders)
			r.Get("/orders/{id}", h.getOrder)
			r.Patch("/orders/{id}/status", h.adminUpdateOrderStatus)
			r.Get("/orders/{id}/events", h.adminOrderEvents)

			r.Get("/products", h.adminListProducts)
			r.Post("/products", h.adminCreateProduct)
			r.Patch("/products/{id}", h.adminUpdateProduct)
			r.Delete("/products/{id}", h.adminDeleteProduct)
			r.Post("/products/{id}/image", h.adminUploadImage)

			r.Get("/metrics", h.adminMetrics)
		})
	})

	return r
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac := auth.FromContext(r.Context())
		if err := auth.RequireUser(ac); err != nil {
			writeError(w, r, err)
			return
		}
		if err := auth.RequireAdmin(ac); err != nil {
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
