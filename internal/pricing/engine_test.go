package pricing

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
)

type MockPromoSource struct {
	mock.Mock
}

func (m *MockPromoSource) FindPromo(ctx context.Context, code string) (*models.PromoCode, error) {
	args := m.Called(ctx, code)
	promo, _ := args.Get(0).(*models.PromoCode)
	return promo, args.Error(1)
}

func newTestEngine() *Engine {
	e := NewEngine(logger.NewWithWriter(io.Discard))
	e.Now = func() time.Time { return time.Date(2026, 12, 31, 20, 0, 0, 0, time.UTC) }
	return e
}

func testInventory() []models.InventoryRow {
	return []models.InventoryRow{
		{Tier: "VIP", Capacity: 10, SoldCount: 8, UnitPriceMinor: 80000},
		{Tier: "PRESTIGE", Capacity: 5, SoldCount: 0, UnitPriceMinor: 150000},
	}
}

func TestQuote_NYE2026Example(t *testing.T) {
	promos := new(MockPromoSource)
	promos.On("FindPromo", mock.Anything, "NYE2026").
		Return(&models.PromoCode{Code: "NYE2026", Kind: models.PromoPercentage, Value: 15, Status: models.PromoActive}, nil)

	req := QuoteRequest{
		Cart: models.CartSnapshot{
			Seats:   []models.SelectedSeat{{ID: "s1", Label: "V1", Tier: "vip", PriceMinor: 1}},
			Entries: models.SimpleEntries{Women: 2},
		},
		PromoCode: " nye2026 ",
	}

	q, err := newTestEngine().Quote(context.Background(), req, testInventory(), promos)

	require.NoError(t, err)
	assert.Equal(t, int64(90000), q.SubtotalMinor)
	assert.Equal(t, int64(13500), q.DiscountMinor)
	assert.Equal(t, int64(76500), q.TotalMinor)
	assert.Equal(t, "NYE2026", q.AppliedPromo)
	assert.Equal(t, map[string]int{"VIP": 1}, q.TierSummary)
	require.Len(t, q.LineItems, 2)
	assert.Equal(t, "Table VIP - V1", q.LineItems[0].Description)
	assert.Equal(t, int64(68000), q.LineItems[0].UnitAmountMinor)
	assert.Equal(t, WomenEntryDescription, q.LineItems[1].Description)
	assert.Equal(t, int64(2), q.LineItems[1].Quantity)
	promos.AssertExpectations(t)
}

func TestQuote_SeatPriceComesFromInventory(t *testing.T) {
	req := QuoteRequest{Cart: models.CartSnapshot{
		Seats: []models.SelectedSeat{{ID: "s1", Label: "P1", Tier: "PRESTIGE", PriceMinor: 100}},
	}}

	q, err := newTestEngine().Quote(context.Background(), req, testInventory(), nil)

	require.NoError(t, err)
	assert.Equal(t, int64(150000), q.TotalMinor)
}

func TestQuote_EntriesOnly(t *testing.T) {
	req := QuoteRequest{Cart: models.CartSnapshot{Entries: models.SimpleEntries{Men: 1, Women: 1}}}

	q, err := newTestEngine().Quote(context.Background(), req, nil, nil)

	require.NoError(t, err)
	require.Len(t, q.LineItems, 2)
	assert.Equal(t, WomenEntryDescription, q.LineItems[0].Description)
	assert.Equal(t, MenEntryDescription, q.LineItems[1].Description)
	assert.Equal(t, int64(13000), q.TotalMinor)
	assert.Nil(t, q.TierSummary)
}

func TestQuote_InsufficientStock(t *testing.T) {
	req := QuoteRequest{Cart: models.CartSnapshot{Seats: []models.SelectedSeat{
		{ID: "s1", Label: "V1", Tier: "VIP"},
		{ID: "s2", Label: "V2", Tier: "VIP"},
		{ID: "s3", Label: "V3", Tier: "VIP"},
	}}}

	_, err := newTestEngine().Quote(context.Background(), req, testInventory(), nil)

	assert.ErrorIs(t, err, ErrInsufficientStock)
}

func TestQuote_UnknownTier(t *testing.T) {
	req := QuoteRequest{Cart: models.CartSnapshot{Seats: []models.SelectedSeat{{ID: "s1", Label: "X", Tier: "ULTRA VIP"}}}}

	_, err := newTestEngine().Quote(context.Background(), req, testInventory(), nil)

	assert.ErrorIs(t, err, ErrInventoryUnavailable)
}

func TestQuote_EmptyCart(t *testing.T) {
	_, err := newTestEngine().Quote(context.Background(), QuoteRequest{}, testInventory(), nil)

	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestQuote_ExpiredPromoIsIgnored(t *testing.T) {
	past := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	promos := new(MockPromoSource)
	promos.On("FindPromo", mock.Anything, "OLD").
		Return(&models.PromoCode{Code: "OLD", Kind: models.PromoPercentage, Value: 50, Status: models.PromoActive, EndDate: &past}, nil)

	req := QuoteRequest{Cart: models.CartSnapshot{Entries: models.SimpleEntries{Men: 1}}, PromoCode: "old"}

	q, err := newTestEngine().Quote(context.Background(), req, nil, promos)

	require.NoError(t, err)
	assert.Empty(t, q.AppliedPromo)
	assert.Equal(t, "Promo code has expired", q.PromoReason)
	assert.Equal(t, int64(8000), q.TotalMinor)
}

func TestQuote_UnknownPromo(t *testing.T) {
	promos := new(MockPromoSource)
	promos.On("FindPromo", mock.Anything, "NOPE").Return(nil, nil)

	req := QuoteRequest{Cart: models.CartSnapshot{Entries: models.SimpleEntries{Men: 1}}, PromoCode: "nope"}

	q, err := newTestEngine().Quote(context.Background(), req, nil, promos)

	require.NoError(t, err)
	assert.Equal(t, "Promo code not found", q.PromoReason)
}

func TestQuote_FixedPromoClampsToZero(t *testing.T) {
	promos := new(MockPromoSource)
	promos.On("FindPromo", mock.Anything, "FREE").
		Return(&models.PromoCode{Code: "FREE", Kind: models.PromoFixedAmount, Value: 5000, Status: models.PromoActive}, nil)

	req := QuoteRequest{Cart: models.CartSnapshot{Entries: models.SimpleEntries{Men: 2, Women: 1}}, PromoCode: "FREE"}

	q, err := newTestEngine().Quote(context.Background(), req, nil, promos)

	require.NoError(t, err)
	assert.Equal(t, int64(21000), q.DiscountMinor)
	assert.Equal(t, int64(0), q.TotalMinor)
}

func TestQuote_PromoLookupFailure(t *testing.T) {
	promos := new(MockPromoSource)
	promos.On("FindPromo", mock.Anything, "X").Return(nil, errors.New("db down"))

	req := QuoteRequest{Cart: models.CartSnapshot{Entries: models.SimpleEntries{Men: 1}}, PromoCode: "x"}

	_, err := newTestEngine().Quote(context.Background(), req, nil, promos)

	assert.ErrorContains(t, err, "db down")
}
