package payment

import (
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"

	"ms-checkout/internal/models"
)

// SuccessURL keeps the processor placeholder so the redirect carries the
// session id back to the confirmation page.
func SuccessURL(origin, lang string) string {
	return fmt.Sprintf("%s/%s/confirmation?session_id={CHECKOUT_SESSION_ID}", strings.TrimRight(origin, "/"), lang)
}

func CancelURL(origin, lang string) string {
	return fmt.Sprintf("%s/%s/reservation?canceled=true", strings.TrimRight(origin, "/"), lang)
}

func stripeLocale(lang string, supported []string) string {
	for _, l := range supported {
		if l == lang {
			return lang
		}
	}
	return "auto"
}

func toCheckoutSession(s *stripe.CheckoutSession, items []*stripe.LineItem) *models.CheckoutSession {
	out := &models.CheckoutSession{
		ID:               s.ID,
		Status:           string(s.Status),
		PaymentStatus:    string(s.PaymentStatus),
		CustomerEmail:    s.CustomerEmail,
		AmountTotalMinor: s.AmountTotal,
		Currency:         string(s.Currency),
		Metadata:         s.Metadata,
		URL:              s.URL,
	}
	out.Paid = s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid ||
		(s.Status == stripe.CheckoutSessionStatusComplete && s.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired)

	if d := s.CustomerDetails; d != nil {
		if d.Email != "" {
			out.CustomerEmail = d.Email
		}
		out.CustomerName = d.Name
		out.CustomerPhone = d.Phone
	}

	for _, li := range items {
		if li == nil || li.Quantity <= 0 {
			continue
		}
		unit := li.AmountTotal / li.Quantity
		if li.Price != nil && li.Price.UnitAmount > 0 {
			unit = li.Price.UnitAmount
		}
		out.LineItems = append(out.LineItems, models.LineItem{
			Description:     li.Description,
			UnitAmountMinor: unit,
			Quantity:        li.Quantity,
		})
	}
	return out
}
