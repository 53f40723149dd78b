// Package checkout prices a cart and opens the hosted payment session for it.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"ms-checkout/internal/cart"
	"ms-checkout/internal/checkoutmeta"
	"ms-checkout/internal/config"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
	"ms-checkout/internal/payment"
	"ms-checkout/internal/pricing"
)

var ErrInvalidRequest = errors.New("invalid checkout request")

type InventoryReader interface {
	ListInventory(ctx context.Context) ([]models.InventoryRow, error)
}

type SessionCreator interface {
	CreateSession(ctx context.Context, req payment.SessionRequest) (*payment.SessionResult, error)
}

type Customer struct {
	Email string `json:"email" validate:"omitempty,email"`
	Name  string `json:"name" validate:"max=200"`
	Phone string `json:"phone" validate:"max=40"`
}

type CreateSessionRequest struct {
	Cart      models.CartSnapshot `json:"cart"`
	PromoCode string              `json:"promo_code" validate:"max=64"`
	Customer  Customer            `json:"customer"`
	Lang      string              `json:"lang"`
}

type QuoteRequest struct {
	Cart      models.CartSnapshot `json:"cart"`
	PromoCode string              `json:"promo_code" validate:"max=64"`
}

type SessionResponse struct {
	SessionID   string         `json:"session_id"`
	RedirectURL string         `json:"url"`
	Quote       *pricing.Quote `json:"quote"`
}

type Service struct {
	Inventory InventoryReader
	Promos    pricing.PromoSource
	Gateway   SessionCreator
	Engine    *pricing.Engine
	site      config.SiteConfig
	validate  *validator.Validate
	log       *logger.Logger
}

func NewService(inv InventoryReader, promos pricing.PromoSource, gateway SessionCreator, site config.SiteConfig, log *logger.Logger) *Service {
	return &Service{
		Inventory: inv,
		Promos:    promos,
		Gateway:   gateway,
		Engine:    pricing.NewEngine(log),
		site:      site,
		validate:  validator.New(),
		log:       log,
	}
}

// Quote prices the cart without touching the payment processor.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (*pricing.Quote, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	snap := cart.FromSnapshot(req.Cart)
	return s.quote(ctx, snap, req.PromoCode)
}

func (s *Service) quote(ctx context.Context, snap models.CartSnapshot, promoCode string) (*pricing.Quote, error) {
	var inventory []models.InventoryRow
	if len(snap.Seats) > 0 {
		rows, err := s.Inventory.ListInventory(ctx)
		if err != nil {
			return nil, fmt.Errorf("load inventory: %w", err)
		}
		inventory = rows
	}
	return s.Engine.Quote(ctx, pricing.QuoteRequest{Cart: snap, PromoCode: promoCode}, inventory, s.Promos)
}

// CreateSession quotes the cart and opens a hosted session. No order exists
// until the session is reconciled.
func (s *Service) CreateSession(ctx context.Context, req CreateSessionRequest) (*SessionResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	snap := cart.FromSnapshot(req.Cart)
	q, err := s.quote(ctx, snap, req.PromoCode)
	if err != nil {
		return nil, err
	}

	lang := s.site.LangOrDefault(req.Lang)
	meta := checkoutmeta.Metadata{
		Email:         strings.TrimSpace(req.Customer.Email),
		Name:          strings.TrimSpace(req.Customer.Name),
		Phone:         strings.TrimSpace(req.Customer.Phone),
		Locale:        lang,
		PromoCode:     q.AppliedPromo,
		DiscountMinor: q.DiscountMinor,
		Tiers:         q.TierSummary,
		Bottles:       checkoutmeta.BottlesFromCart(snap),
	}
	md, err := meta.Encode()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	res, err := s.Gateway.CreateSession(ctx, payment.SessionRequest{
		LineItems:     q.LineItems,
		Metadata:      md,
		CustomerEmail: meta.Email,
		Lang:          lang,
	})
	if err != nil {
		return nil, err
	}

	s.log.LogCheckout("CREATE", res.SessionID, fmt.Sprintf("total %d, discount %d, seats %d", q.TotalMinor, q.DiscountMinor, len(snap.Seats)))
	return &SessionResponse{SessionID: res.SessionID, RedirectURL: res.RedirectURL, Quote: q}, nil
}
