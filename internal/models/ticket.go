package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TicketStatus string

const (
	TicketStatusValid     TicketStatus = "valid"
	TicketStatusUsed      TicketStatus = "used"
	TicketStatusCancelled TicketStatus = "cancelled"
)

// Ticket is one purchased unit. (order_id, ticket_index) is unique.
type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID          string       `bun:"id,pk" json:"id"`
	OrderID     string       `bun:"order_id,notnull,unique:tickets_order_index" json:"order_id"`
	TicketIndex int          `bun:"ticket_index,notnull,unique:tickets_order_index" json:"ticket_index"`
	ProductName string       `bun:"product_name,notnull" json:"product_name"`
	QRDataURL   string       `bun:"qr_data_url" json:"qr_data_url"`
	Status      TicketStatus `bun:"status,notnull" json:"status"`
	CreatedAt   time.Time    `bun:"created_at,notnull" json:"created_at"`
}
