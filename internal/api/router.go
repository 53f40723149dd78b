package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Routes builds the router. admin guards everything under /api/admin.
func (h *Handler) Routes(allowedOrigins []string, admin func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.NotFound(h.NotFound)

	// --- Public Routes ---
	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/webhooks/stripe", h.StripeWebhook)
		r.Route("/checkout", func(r chi.Router) {
			r.Post("/quote", h.Quote)
			r.Post("/session", h.CreateSession)
			r.Post("/reconcile", h.PullReconcile)
		})
		r.Get("/orders/{sessionId}", h.GetOrder)
		r.Get("/orders/{sessionId}/events", h.OrderStream)
		r.Get("/inventory", h.Availability)

		// --- Protected Routes ---
		r.Route("/admin", func(r chi.Router) {
			r.Use(admin)

			r.Route("/promos", func(r chi.Router) {
				r.Get("/", h.ListPromos)
				r.Post("/", h.CreatePromo)
				r.Get("/{code}", h.GetPromo)
				r.Put("/{code}", h.UpdatePromo)
				r.Delete("/{code}", h.DeletePromo)
			})

			r.Get("/inventory", h.ListInventory)
			r.Put("/inventory/{tier}", h.UpsertInventory)

			r.Get("/orders", h.ListOrders)
			r.Get("/orders/stream", h.AdminOrderFeed)
			r.Get("/orders/{orderId}", h.AdminGetOrder)
			r.Post("/orders/{orderId}/resend-email", h.ResendEmail)

			r.Get("/diagnostics/payments", h.PaymentDiagnostics)

			r.Get("/config/{key}", h.GetConfig)
			r.Put("/config/{key}", h.PutConfig)

			if h.Analytics != nil {
				h.Analytics.RegisterRoutes(r)
			}
		})
	})

	h.Logger.Info("ROUTER", "Public routes registered under /api/checkout, /api/orders, /api/inventory, /api/webhooks")
	if h.Events != nil {
		h.Logger.Info("ROUTER", "Order event streams registered at /api/orders/{sessionId}/events and /api/admin/orders/stream")
	}
	h.Logger.Info("ROUTER", "Admin routes registered under /api/admin")
	return r
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		h.Logger.LogAPI(r.Method, r.URL.Path, fmt.Sprint(status), time.Since(start).String())
	})
}
