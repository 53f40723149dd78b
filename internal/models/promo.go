package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PromoKind string

const (
	PromoPercentage  PromoKind = "percentage"
	PromoFixedAmount PromoKind = "fixed_amount"
)

type PromoStatus string

const (
	PromoDraft     PromoStatus = "draft"
	PromoActive    PromoStatus = "active"
	PromoScheduled PromoStatus = "scheduled"
	PromoExpired   PromoStatus = "expired"
)

// PromoCode values are in percent for PromoPercentage and in major currency
// units for PromoFixedAmount.
type PromoCode struct {
	bun.BaseModel `bun:"table:promos"`

	Code        string      `bun:"code,pk" json:"code"`
	Kind        PromoKind   `bun:"kind,notnull" json:"kind"`
	Value       float64     `bun:"value,notnull" json:"value"`
	Status      PromoStatus `bun:"status,notnull" json:"status"`
	StartDate   *time.Time  `bun:"start_date" json:"start_date,omitempty"`
	EndDate     *time.Time  `bun:"end_date" json:"end_date,omitempty"`
	Redemptions int         `bun:"redemptions,notnull" json:"redemptions"`
	CreatedAt   time.Time   `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt   time.Time   `bun:"updated_at,notnull" json:"updated_at"`
}
