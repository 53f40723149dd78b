package models

import (
	"github.com/uptrace/bun"
)

// OrderBottle is a bottle choice (or an on-site deferral) for one seat of an order.
type OrderBottle struct {
	bun.BaseModel `bun:"table:order_bottles"`

	ID        string  `bun:"id,pk" json:"id"`
	OrderID   string  `bun:"order_id,notnull,unique:order_bottles_position" json:"order_id"`
	Position  int     `bun:"position,notnull,unique:order_bottles_position" json:"position"`
	SeatLabel string  `bun:"seat_label,notnull" json:"seat_label"`
	Tier      string  `bun:"tier,notnull" json:"tier"`
	BottleID  *string `bun:"bottle_id" json:"bottle_id"`
	Count     int     `bun:"count,notnull" json:"count"`
	OnSite    bool    `bun:"on_site,notnull" json:"on_site"`
}
