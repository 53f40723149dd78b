// Package pricing turns a cart into priced line items and applies promo codes.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"ms-checkout/internal/cart"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
)

var (
	ErrInventoryUnavailable = errors.New("inventory unavailable")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrEmptyCart            = errors.New("cart is empty")
)

const (
	WomenEntryDescription = "Entrée Femme"
	MenEntryDescription   = "Entrée Homme"
)

// PromoSource returns nil without error when the code does not exist.
type PromoSource interface {
	FindPromo(ctx context.Context, code string) (*models.PromoCode, error)
}

type QuoteRequest struct {
	Cart      models.CartSnapshot
	PromoCode string
}

type Quote struct {
	LineItems     []models.LineItem `json:"line_items"`
	SubtotalMinor int64             `json:"subtotal_minor"`
	DiscountMinor int64             `json:"discount_minor"`
	TotalMinor    int64             `json:"total_minor"`
	AppliedPromo  string            `json:"applied_promo,omitempty"`
	PromoReason   string            `json:"promo_reason,omitempty"`
	TierSummary   map[string]int    `json:"tier_summary,omitempty"`
}

type Engine struct {
	logger *logger.Logger
	Now    func() time.Time
}

func NewEngine(l *logger.Logger) *Engine {
	return &Engine{logger: l, Now: time.Now}
}

// Quote prices the cart against the inventory snapshot. The stock check is
// advisory: nothing is reserved.
func (e *Engine) Quote(ctx context.Context, req QuoteRequest, inventory []models.InventoryRow, promos PromoSource) (*Quote, error) {
	c := req.Cart
	if len(c.Seats) == 0 && c.Entries.Men <= 0 && c.Entries.Women <= 0 {
		return nil, ErrEmptyCart
	}

	// Step 1: aggregate seats per tier
	tiers := make(map[string]int)
	for _, seat := range c.Seats {
		tiers[strings.ToUpper(strings.TrimSpace(seat.Tier))]++
	}

	rows := make(map[string]models.InventoryRow, len(inventory))
	for _, row := range inventory {
		rows[strings.ToUpper(row.Tier)] = row
	}

	// Step 2: advisory stock gate
	names := make([]string, 0, len(tiers))
	for name := range tiers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		row, ok := rows[name]
		if !ok || row.UnitPriceMinor <= 0 {
			return nil, fmt.Errorf("%w: tier %q", ErrInventoryUnavailable, name)
		}
		if row.SoldCount+tiers[name] > row.Capacity {
			e.logger.Warn("PRICING", fmt.Sprintf("Tier %s short: requested %d, remaining %d", name, tiers[name], row.Remaining()))
			return nil, fmt.Errorf("%w: tier %q has %d left", ErrInsufficientStock, name, row.Remaining())
		}
	}

	// Step 3: line items
	var items []models.LineItem
	for _, seat := range c.Seats {
		tier := strings.ToUpper(strings.TrimSpace(seat.Tier))
		items = append(items, models.LineItem{
			Description:     fmt.Sprintf("Table %s - %s", tier, seat.Label),
			UnitAmountMinor: rows[tier].UnitPriceMinor,
			Quantity:        1,
		})
	}
	if c.Entries.Women > 0 {
		items = append(items, models.LineItem{Description: WomenEntryDescription, UnitAmountMinor: cart.WomenEntryPriceMinor, Quantity: int64(c.Entries.Women)})
	}
	if c.Entries.Men > 0 {
		items = append(items, models.LineItem{Description: MenEntryDescription, UnitAmountMinor: cart.MenEntryPriceMinor, Quantity: int64(c.Entries.Men)})
	}

	quote := &Quote{
		LineItems:     items,
		SubtotalMinor: models.SumLineItems(items),
	}
	if len(tiers) > 0 {
		quote.TierSummary = tiers
	}

	// Step 4: promo
	code := strings.ToUpper(strings.TrimSpace(req.PromoCode))
	if code != "" && promos != nil {
		promo, err := promos.FindPromo(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("looking up promo %s: %w", code, err)
		}
		result := EvaluatePromo(promo, quote.SubtotalMinor, e.now())
		if result.IsValid {
			// Step 5: proportional distribution
			quote.LineItems = DistributeDiscount(items, result.DiscountMinor)
			quote.DiscountMinor = result.DiscountMinor
			quote.AppliedPromo = code
			e.logger.Info("PRICING", fmt.Sprintf("Promo %s applied: -%d on %d", code, result.DiscountMinor, quote.SubtotalMinor))
		} else {
			quote.PromoReason = result.Reason
			e.logger.Info("PRICING", fmt.Sprintf("Promo %s ignored: %s", code, result.Reason))
		}
	}

	quote.TotalMinor = models.SumLineItems(quote.LineItems)
	return quote, nil
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}
