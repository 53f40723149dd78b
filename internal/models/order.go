package models

import (
	"time"

	"github.com/uptrace/bun"
)

type OrderStatus string

const (
	OrderStatusPaid     OrderStatus = "paid"
	OrderStatusRefunded OrderStatus = "refunded"
)

// Order is keyed by the payment session id so a replayed reconciliation
// lands on the same row.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID               string      `bun:"id,pk" json:"id"`
	Email            string      `bun:"email" json:"email"`
	Name             string      `bun:"name" json:"name"`
	Phone            string      `bun:"phone" json:"phone"`
	AmountTotalMinor int64       `bun:"amount_total_minor,notnull" json:"amount_total_minor"`
	Currency         string      `bun:"currency,notnull" json:"currency"`
	Status           OrderStatus `bun:"status,notnull" json:"status"`
	Locale           string      `bun:"locale" json:"locale"`
	PromoCode        string      `bun:"promo_code" json:"promo_code,omitempty"`
	CreatedAt        time.Time   `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt        time.Time   `bun:"updated_at,notnull" json:"updated_at"`
}

// OrderView is what the confirmation page and the admin order detail render.
type OrderView struct {
	Order   Order         `json:"order"`
	Tickets []Ticket      `json:"tickets"`
	Bottles []OrderBottle `json:"bottles"`
}
