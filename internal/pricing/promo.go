package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"ms-checkout/internal/models"
)

// DiscountResult mirrors what the checkout page needs to explain a promo.
type DiscountResult struct {
	IsValid       bool
	DiscountMinor int64
	Reason        string
}

// PromoApplies reports whether promo is active at now. Both window bounds are
// inclusive.
func PromoApplies(promo *models.PromoCode, now time.Time) bool {
	return promoRejection(promo, now) == ""
}

func promoRejection(promo *models.PromoCode, now time.Time) string {
	if promo == nil {
		return "Promo code not found"
	}
	if promo.Status != models.PromoActive {
		return "Promo code is not active"
	}
	if promo.StartDate != nil && promo.StartDate.After(now) {
		return "Promo code is not yet active"
	}
	if promo.EndDate != nil && promo.EndDate.Before(now) {
		return "Promo code has expired"
	}
	return ""
}

// ComputeDiscount returns the discount in minor units, clamped to [0, subtotal].
func ComputeDiscount(promo *models.PromoCode, subtotalMinor int64) int64 {
	if promo == nil || subtotalMinor <= 0 || promo.Value <= 0 {
		return 0
	}

	value := decimal.NewFromFloat(promo.Value)
	var discount decimal.Decimal
	switch promo.Kind {
	case models.PromoPercentage:
		discount = decimal.NewFromInt(subtotalMinor).Mul(value).Div(decimal.NewFromInt(100)).Floor()
	case models.PromoFixedAmount:
		discount = value.Mul(decimal.NewFromInt(100)).Round(0)
	default:
		return 0
	}

	amount := discount.IntPart()
	if amount > subtotalMinor {
		amount = subtotalMinor
	}
	if amount < 0 {
		amount = 0
	}
	return amount
}

// EvaluatePromo validates promo at now and computes its discount on subtotal.
func EvaluatePromo(promo *models.PromoCode, subtotalMinor int64, now time.Time) DiscountResult {
	if reason := promoRejection(promo, now); reason != "" {
		return DiscountResult{Reason: reason}
	}
	amount := ComputeDiscount(promo, subtotalMinor)
	if amount == 0 {
		return DiscountResult{Reason: "Promo code gives no discount on this cart"}
	}
	return DiscountResult{IsValid: true, DiscountMinor: amount}
}
