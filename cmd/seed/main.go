// Command seed applies the schema migrations and loads the tier inventory
// and a sample promo code.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"ms-checkout/internal/config"
	"ms-checkout/internal/database/migrations"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
	"ms-checkout/internal/store"
)

var tiers = []models.InventoryRow{
	{Tier: "STANDARD", Capacity: 20, UnitPriceMinor: 30000},
	{Tier: "PRESTIGE", Capacity: 12, UnitPriceMinor: 50000},
	{Tier: "PREMIUM", Capacity: 10, UnitPriceMinor: 80000},
	{Tier: "VIP", Capacity: 8, UnitPriceMinor: 120000},
	{Tier: "PLATINIUM", Capacity: 4, UnitPriceMinor: 200000},
	{Tier: "ULTRA VIP", Capacity: 2, UnitPriceMinor: 350000},
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger := logger.NewWithWriter(os.Stdout)

	ctx := context.Background()
	if cfg.Database.DSN == "" {
		logger.Fatal("CONFIG", "POSTGRES_DSN not set")
	}

	bunDB, err := store.Open(cfg.Database, logger)
	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to database: %v", err))
	}

	// the migration driver closes bunDB when the runner closes
	runner := migrations.NewRunner(bunDB, logger)
	defer runner.Close()

	logger.Info("SEED", "Applying migrations...")
	if err := runner.Up(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}

	db := store.New(bunDB, logger)

	logger.Info("SEED", "Seeding inventory...")
	for i := range tiers {
		if err := db.UpsertInventory(ctx, &tiers[i]); err != nil {
			logger.Fatal("SEED", fmt.Sprintf("Failed to seed tier %s: %v", tiers[i].Tier, err))
		}
	}

	start := time.Now().UTC()
	end := start.AddDate(0, 3, 0)
	promo := &models.PromoCode{
		Code:      "WELCOME10",
		Kind:      models.PromoPercentage,
		Value:     10,
		Status:    models.PromoActive,
		StartDate: &start,
		EndDate:   &end,
	}
	switch err := db.CreatePromo(ctx, promo); {
	case errors.Is(err, store.ErrConflict):
		logger.Info("SEED", "Promo WELCOME10 already present")
	case err != nil:
		logger.Fatal("SEED", fmt.Sprintf("Failed to seed promo: %v", err))
	}

	logger.Info("SEED", "✅ Done.")
}
