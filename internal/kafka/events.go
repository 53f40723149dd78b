package kafka

import "time"

// OrderReconciledEvent is published once per order, after its tickets were
// first materialized.
type OrderReconciledEvent struct {
	OrderID          string         `json:"order_id"`
	Email            string         `json:"email"`
	AmountTotalMinor int64          `json:"amount_total_minor"`
	Currency         string         `json:"currency"`
	Tickets          int            `json:"tickets"`
	Tiers            map[string]int `json:"tiers,omitempty"`
	PromoCode        string         `json:"promo_code,omitempty"`
	Trigger          string         `json:"trigger"`
	OccurredAt       time.Time      `json:"occurred_at"`
}

// EmailFailedEvent lets an operator pick up confirmations that were not
// delivered and resend them.
type EmailFailedEvent struct {
	OrderID    string    `json:"order_id"`
	To         string    `json:"to"`
	Error      string    `json:"error"`
	OccurredAt time.Time `json:"occurred_at"`
}
