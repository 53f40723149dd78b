package store

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"ms-checkout/internal/models"
)

func (s *Store) GetConfig(ctx context.Context, key string) (*models.SiteConfig, error) {
	var row models.SiteConfig
	err := s.db.NewSelect().
		Model(&row).
		Where("? = ?", bun.Ident("key"), key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &row, nil
}

// GetConfigValue returns "" for a missing key.
func (s *Store) GetConfigValue(ctx context.Context, key string) (string, error) {
	row, err := s.GetConfig(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return row.Value, nil
}

func (s *Store) SetConfig(ctx context.Context, key, value string) (*models.SiteConfig, error) {
	row := &models.SiteConfig{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	s.log.LogDatabase("UPSERT", "site_config", key)
	return row, nil
}
