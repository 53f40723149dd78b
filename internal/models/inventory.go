package models

import (
	"time"

	"github.com/uptrace/bun"
)

// InventoryRow is one seating tier. SoldCount only moves at reconciliation.
type InventoryRow struct {
	bun.BaseModel `bun:"table:inventory"`

	Tier           string    `bun:"tier,pk" json:"tier"`
	Capacity       int       `bun:"capacity,notnull" json:"capacity"`
	SoldCount      int       `bun:"sold_count,notnull" json:"sold_count"`
	UnitPriceMinor int64     `bun:"unit_price_minor,notnull" json:"unit_price_minor"`
	UpdatedAt      time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

func (r InventoryRow) Remaining() int {
	if r.SoldCount >= r.Capacity {
		return 0
	}
	return r.Capacity - r.SoldCount
}
