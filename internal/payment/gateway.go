// Package payment wraps the hosted checkout of the payment processor.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
)

var (
	ErrPaymentInitializationFailed = errors.New("payment initialization failed")
	ErrStripeNotConfigured         = errors.New("stripe secret key is not configured")
	ErrSessionLookupFailed         = errors.New("checkout session lookup failed")
)

// KeySource returns the processor secret key, or "" when none is configured.
type KeySource func(ctx context.Context) (string, error)

// StaticKey is a KeySource for a key read once from the environment.
func StaticKey(key string) KeySource {
	return func(context.Context) (string, error) { return key, nil }
}

// sessionBackend is the slice of the Stripe API the gateway uses.
type sessionBackend interface {
	Create(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(ctx context.Context, id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	LineItems(ctx context.Context, id string) ([]*stripe.LineItem, error)
}

type stripeBackend struct {
	sc *client.API
}

func (b *stripeBackend) Create(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	params.Context = ctx
	return b.sc.CheckoutSessions.New(params)
}

func (b *stripeBackend) Get(ctx context.Context, id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	params.Context = ctx
	return b.sc.CheckoutSessions.Get(id, params)
}

func (b *stripeBackend) LineItems(ctx context.Context, id string) ([]*stripe.LineItem, error) {
	params := &stripe.CheckoutSessionListLineItemsParams{Session: stripe.String(id)}
	params.Context = ctx
	params.Limit = stripe.Int64(100)

	var items []*stripe.LineItem
	it := b.sc.CheckoutSessions.ListLineItems(params)
	for it.Next() {
		items = append(items, it.LineItem())
	}
	return items, it.Err()
}

type GatewayConfig struct {
	Currency   string
	SiteOrigin string
	Langs      []string
}

// Gateway creates and fetches hosted checkout sessions. The processor client
// is built on first use and reused afterwards.
type Gateway struct {
	cfg    GatewayConfig
	keys   KeySource
	logger *logger.Logger

	mu         sync.Mutex
	backend    sessionBackend
	key        string
	newBackend func(key string) sessionBackend
}

func NewGateway(cfg GatewayConfig, keys KeySource, log *logger.Logger) *Gateway {
	if cfg.Currency == "" {
		cfg.Currency = "eur"
	}
	return &Gateway{
		cfg:    cfg,
		keys:   keys,
		logger: log,
		newBackend: func(key string) sessionBackend {
			return &stripeBackend{sc: client.New(key, nil)}
		},
	}
}

func (g *Gateway) client(ctx context.Context) (sessionBackend, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.backend != nil {
		return g.backend, nil
	}

	key := ""
	if g.keys != nil {
		k, err := g.keys(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading stripe key: %w", err)
		}
		key = strings.TrimSpace(k)
	}
	if key == "" {
		g.logger.Error("STRIPE", "Stripe secret key is not configured")
		return nil, ErrStripeNotConfigured
	}

	g.backend = g.newBackend(key)
	g.key = key
	g.logger.Info("STRIPE", fmt.Sprintf("Stripe client initialized (%s mode)", keyMode(key)))
	return g.backend, nil
}

type SessionRequest struct {
	LineItems     []models.LineItem
	Metadata      map[string]string
	CustomerEmail string
	Lang          string
}

type SessionResult struct {
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"url"`
}

// CreateSession opens a hosted checkout. Nothing is written locally.
func (g *Gateway) CreateSession(ctx context.Context, req SessionRequest) (*SessionResult, error) {
	backend, err := g.client(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentInitializationFailed, err)
	}

	params := g.sessionParams(req)
	s, err := backend.Create(ctx, params)
	if err != nil {
		g.logger.Error("STRIPE", fmt.Sprintf("Failed to create checkout session: %v", err))
		return nil, fmt.Errorf("%w: %v", ErrPaymentInitializationFailed, err)
	}

	g.logger.LogPayment("SESSION_CREATED", s.ID, fmt.Sprintf("%d line items, lang %s", len(req.LineItems), req.Lang))
	return &SessionResult{SessionID: s.ID, RedirectURL: s.URL}, nil
}

func (g *Gateway) sessionParams(req SessionRequest) *stripe.CheckoutSessionParams {
	lang := req.Lang
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(SuccessURL(g.cfg.SiteOrigin, lang)),
		CancelURL:  stripe.String(CancelURL(g.cfg.SiteOrigin, lang)),
		Locale:     stripe.String(stripeLocale(lang, g.cfg.Langs)),
		Metadata:   req.Metadata,
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	for _, li := range req.LineItems {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(g.cfg.Currency),
				UnitAmount: stripe.Int64(li.UnitAmountMinor),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(li.Description),
				},
			},
			Quantity: stripe.Int64(li.Quantity),
		})
	}
	return params
}

// FetchSession reads a session with its line items. The processor is the
// source of truth for reconciliation.
func (g *Gateway) FetchSession(ctx context.Context, sessionID string) (*models.CheckoutSession, error) {
	backend, err := g.client(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionLookupFailed, err)
	}

	params := &stripe.CheckoutSessionParams{}
	params.AddExpand("line_items")
	s, err := backend.Get(ctx, sessionID, params)
	if err != nil {
		g.logger.Error("STRIPE", fmt.Sprintf("Failed to fetch checkout session %s: %v", sessionID, err))
		return nil, fmt.Errorf("%w: %v", ErrSessionLookupFailed, err)
	}

	var items []*stripe.LineItem
	if s.LineItems != nil {
		items = s.LineItems.Data
	}
	if s.LineItems == nil || s.LineItems.HasMore {
		items, err = backend.LineItems(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("%w: listing line items: %v", ErrSessionLookupFailed, err)
		}
	}

	return toCheckoutSession(s, items), nil
}

type Diagnostics struct {
	KeyConfigured bool   `json:"key_configured"`
	KeyMode       string `json:"key_mode"`
	Initialized   bool   `json:"client_initialized"`
	Currency      string `json:"currency"`
}

func (g *Gateway) Diagnostics(ctx context.Context) Diagnostics {
	d := Diagnostics{Currency: g.cfg.Currency, KeyMode: "none"}

	g.mu.Lock()
	d.Initialized = g.backend != nil
	key := g.key
	g.mu.Unlock()

	if key == "" && g.keys != nil {
		if k, err := g.keys(ctx); err == nil {
			key = strings.TrimSpace(k)
		}
	}
	if key != "" {
		d.KeyConfigured = true
		d.KeyMode = keyMode(key)
	}
	return d
}

func keyMode(key string) string {
	switch {
	case strings.Contains(key, "_test_"):
		return "test"
	case strings.Contains(key, "_live_"):
		return "live"
	default:
		return "unknown"
	}
}
