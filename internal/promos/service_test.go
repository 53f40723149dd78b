package promos

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
	"ms-checkout/internal/store/storetest"
)

func newService(t *testing.T) *Service {
	return NewService(storetest.New(t), logger.NewWithWriter(io.Discard))
}

func TestCreate_NormalizesCode(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	promo, err := svc.Create(ctx, PromoInput{Code: "  nye2026 ", Kind: "Percentage", Value: 15, Status: "active"})
	require.NoError(t, err)
	assert.Equal(t, "NYE2026", promo.Code)
	assert.Equal(t, models.PromoPercentage, promo.Kind)

	got, err := svc.Get(ctx, "nye2026")
	require.NoError(t, err)
	assert.Equal(t, 15.0, got.Value)
	assert.Equal(t, models.PromoActive, got.Status)
}

func TestCreate_DefaultsToDraft(t *testing.T) {
	svc := newService(t)

	promo, err := svc.Create(context.Background(), PromoInput{Code: "LATE", Kind: "fixed_amount", Value: 20})
	require.NoError(t, err)
	assert.Equal(t, models.PromoDraft, promo.Status)
}

func TestCreate_Validation(t *testing.T) {
	start := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)

	cases := map[string]PromoInput{
		"empty code":          {Code: " ", Kind: "percentage", Value: 10},
		"bad characters":      {Code: "NO SPACES", Kind: "percentage", Value: 10},
		"unknown kind":        {Code: "X", Kind: "bogo", Value: 10},
		"zero value":          {Code: "X", Kind: "percentage", Value: 0},
		"negative value":      {Code: "X", Kind: "fixed_amount", Value: -5},
		"percentage over 100": {Code: "X", Kind: "percentage", Value: 101},
		"unknown status":      {Code: "X", Kind: "percentage", Value: 10, Status: "paused"},
		"end before start":    {Code: "X", Kind: "percentage", Value: 10, StartDate: &start, EndDate: &end},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			svc := newService(t)
			_, err := svc.Create(context.Background(), in)
			assert.ErrorIs(t, err, ErrInvalidPromo)
		})
	}
}

func TestCreate_Duplicate(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, PromoInput{Code: "DUP", Kind: "percentage", Value: 5})
	require.NoError(t, err)
	_, err = svc.Create(ctx, PromoInput{Code: "dup", Kind: "percentage", Value: 5})
	assert.ErrorIs(t, err, ErrDuplicateCode)
}

func TestUpdate_UsesPathCode(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, PromoInput{Code: "SPRING", Kind: "percentage", Value: 5})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, "spring", PromoInput{Code: "IGNORED", Kind: "fixed_amount", Value: 12.5, Status: "active"})
	require.NoError(t, err)
	assert.Equal(t, "SPRING", updated.Code)
	assert.Equal(t, models.PromoFixedAmount, updated.Kind)
	assert.Equal(t, 12.5, updated.Value)

	_, err = svc.Update(ctx, "missing", PromoInput{Kind: "percentage", Value: 5})
	assert.ErrorIs(t, err, ErrPromoNotFound)
}

func TestDelete(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, PromoInput{Code: "GONE", Kind: "percentage", Value: 5})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "gone"))
	assert.ErrorIs(t, svc.Delete(ctx, "gone"), ErrPromoNotFound)
	_, err = svc.Get(ctx, "gone")
	assert.ErrorIs(t, err, ErrPromoNotFound)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}
