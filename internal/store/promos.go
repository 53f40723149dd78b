package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"ms-checkout/internal/models"
)

func (s *Store) ListPromos(ctx context.Context) ([]models.PromoCode, error) {
	promos := []models.PromoCode{}
	err := s.db.NewSelect().
		Model(&promos).
		Order("created_at DESC").
		Scan(ctx)
	return promos, err
}

func (s *Store) GetPromo(ctx context.Context, code string) (*models.PromoCode, error) {
	var promo models.PromoCode
	err := s.db.NewSelect().
		Model(&promo).
		Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &promo, nil
}

// FindPromo is GetPromo with a nil result instead of ErrNotFound.
func (s *Store) FindPromo(ctx context.Context, code string) (*models.PromoCode, error) {
	promo, err := s.GetPromo(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return promo, err
}

func (s *Store) CreatePromo(ctx context.Context, promo *models.PromoCode) error {
	now := time.Now().UTC()
	promo.CreatedAt = now
	promo.UpdatedAt = now

	res, err := s.db.NewInsert().
		Model(promo).
		On("CONFLICT (code) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	s.log.Info("PROMO", "Created promo "+promo.Code)
	return nil
}

// UpdatePromo rewrites the editable fields. Redemptions are never touched.
func (s *Store) UpdatePromo(ctx context.Context, promo *models.PromoCode) error {
	promo.UpdatedAt = time.Now().UTC()

	res, err := s.db.NewUpdate().
		Model(promo).
		Column("kind", "value", "status", "start_date", "end_date", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeletePromo(ctx context.Context, code string) error {
	res, err := s.db.NewDelete().
		Model((*models.PromoCode)(nil)).
		Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RedeemPromo counts one redemption in a single statement.
func RedeemPromo(ctx context.Context, db bun.IDB, code string) (bool, error) {
	res, err := db.NewUpdate().
		Model((*models.PromoCode)(nil)).
		Set("redemptions = redemptions + 1").
		Set("updated_at = ?", time.Now().UTC()).
		Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
