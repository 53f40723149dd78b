package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	ConfigStripeWebhookSecret = "stripe_webhook_secret"
	ConfigSiteContent         = "site_content"
)

type SiteConfig struct {
	bun.BaseModel `bun:"table:site_config"`

	Key       string    `bun:"key,pk" json:"key"`
	Value     string    `bun:"value,notnull" json:"value"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updated_at"`
}
