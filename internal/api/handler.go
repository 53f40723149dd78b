// Package api exposes the checkout, reconciliation and admin operations over
// HTTP.
package api

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-checkout/internal/checkout"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
	"ms-checkout/internal/payment"
	"ms-checkout/internal/pricing"
	"ms-checkout/internal/promos"
	"ms-checkout/internal/reconcile"
	"ms-checkout/internal/sse"
)

type CheckoutService interface {
	Quote(ctx context.Context, req checkout.QuoteRequest) (*pricing.Quote, error)
	CreateSession(ctx context.Context, req checkout.CreateSessionRequest) (*checkout.SessionResponse, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, sessionID string, trigger reconcile.Trigger) (*reconcile.Result, error)
	ResendEmail(ctx context.Context, orderID, to string) error
	OrderView(ctx context.Context, orderID string) (*models.OrderView, error)
	EmailEnabled() bool
}

type PromoAdmin interface {
	List(ctx context.Context) ([]models.PromoCode, error)
	Get(ctx context.Context, code string) (*models.PromoCode, error)
	Create(ctx context.Context, in promos.PromoInput) (*models.PromoCode, error)
	Update(ctx context.Context, code string, in promos.PromoInput) (*models.PromoCode, error)
	Delete(ctx context.Context, code string) error
}

// Store is the slice of persistence the handlers read directly.
type Store interface {
	ListInventory(ctx context.Context) ([]models.InventoryRow, error)
	UpsertInventory(ctx context.Context, row *models.InventoryRow) error
	ListOrders(ctx context.Context, limit, offset int) ([]models.Order, error)
	CountOrders(ctx context.Context) (int, error)
	LatestOrder(ctx context.Context) (*models.Order, error)
	GetConfig(ctx context.Context, key string) (*models.SiteConfig, error)
	SetConfig(ctx context.Context, key, value string) (*models.SiteConfig, error)
}

type WebhookVerifier interface {
	Verify(ctx context.Context, payload []byte, signature string) (*payment.WebhookEvent, error)
	Secret(ctx context.Context) (secret, source string, err error)
}

// EventDeduper remembers processed webhook event ids. Optional.
type EventDeduper interface {
	MarkEventProcessed(ctx context.Context, eventID string) (bool, error)
	ForgetEvent(ctx context.Context, eventID string) error
}

type PaymentDiagnostics interface {
	Diagnostics(ctx context.Context) payment.Diagnostics
}

// OrderEvents streams reconciled orders to SSE clients. Optional.
type OrderEvents interface {
	SubscribeToOrder(ctx context.Context, orderID string) <-chan sse.OrderEvent
	SubscribeToFeed(ctx context.Context) <-chan sse.OrderEvent
}

// RouteRegistrar mounts extra admin routes, such as the analytics handler.
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

type Handler struct {
	Checkout  CheckoutService
	Reconcile Reconciler
	Promos    PromoAdmin
	Store     Store
	Webhooks  WebhookVerifier
	Dedupe    EventDeduper
	Payments  PaymentDiagnostics
	Events    OrderEvents
	Analytics RouteRegistrar
	Logger    *logger.Logger

	// StreamTimeout bounds how long an order stream waits for reconciliation.
	StreamTimeout time.Duration
}
