package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"ms-checkout/internal/models"
)

func (s *Store) ListInventory(ctx context.Context) ([]models.InventoryRow, error) {
	rows := []models.InventoryRow{}
	err := s.db.NewSelect().
		Model(&rows).
		Order("tier ASC").
		Scan(ctx)
	return rows, err
}

func (s *Store) GetInventory(ctx context.Context, tier string) (*models.InventoryRow, error) {
	var row models.InventoryRow
	err := s.db.NewSelect().
		Model(&row).
		Where("tier = ?", strings.ToUpper(tier)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &row, nil
}

// UpsertInventory sets capacity and price of a tier. sold_count is only
// written on insert; afterwards it moves through IncrementSold.
func (s *Store) UpsertInventory(ctx context.Context, row *models.InventoryRow) error {
	row.Tier = strings.ToUpper(strings.TrimSpace(row.Tier))
	row.UpdatedAt = time.Now().UTC()

	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (tier) DO UPDATE").
		Set("capacity = EXCLUDED.capacity").
		Set("unit_price_minor = EXCLUDED.unit_price_minor").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return err
	}
	s.log.LogDatabase("UPSERT", "inventory", fmt.Sprintf("%s capacity=%d price=%d", row.Tier, row.Capacity, row.UnitPriceMinor))
	return nil
}

// IncrementSold adds n to a tier's sold count in a single statement. It
// reports false when the tier has no inventory row.
func IncrementSold(ctx context.Context, db bun.IDB, tier string, n int) (bool, error) {
	res, err := db.NewUpdate().
		Model((*models.InventoryRow)(nil)).
		Set("sold_count = sold_count + ?", n).
		Set("updated_at = ?", time.Now().UTC()).
		Where("tier = ?", strings.ToUpper(tier)).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}
