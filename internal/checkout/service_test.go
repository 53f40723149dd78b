package checkout

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-checkout/internal/checkoutmeta"
	"ms-checkout/internal/config"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
	"ms-checkout/internal/payment"
	"ms-checkout/internal/pricing"
)

type MockInventory struct {
	mock.Mock
}

func (m *MockInventory) ListInventory(ctx context.Context) ([]models.InventoryRow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.InventoryRow), args.Error(1)
}

type MockPromos struct {
	mock.Mock
}

func (m *MockPromos) FindPromo(ctx context.Context, code string) (*models.PromoCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PromoCode), args.Error(1)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateSession(ctx context.Context, req payment.SessionRequest) (*payment.SessionResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.SessionResult), args.Error(1)
}

var site = config.SiteConfig{Origin: "https://club.example.com", DefaultLang: "fr", Langs: []string{"fr", "en"}}

func inventory() []models.InventoryRow {
	return []models.InventoryRow{
		{Tier: "VIP", Capacity: 10, SoldCount: 2, UnitPriceMinor: 50000},
		{Tier: "PRESTIGE", Capacity: 4, SoldCount: 0, UnitPriceMinor: 80000},
	}
}

func newService() (*Service, *MockInventory, *MockPromos, *MockGateway) {
	inv, promos, gw := new(MockInventory), new(MockPromos), new(MockGateway)
	return NewService(inv, promos, gw, site, logger.NewWithWriter(io.Discard)), inv, promos, gw
}

func TestCreateSession_BuildsMetadataAndLineItems(t *testing.T) {
	svc, inv, promos, gw := newService()
	ctx := context.Background()

	promo := &models.PromoCode{Code: "NYE", Kind: models.PromoPercentage, Value: 10, Status: models.PromoActive}
	inv.On("ListInventory", ctx).Return(inventory(), nil)
	promos.On("FindPromo", ctx, "NYE").Return(promo, nil)

	var captured payment.SessionRequest
	gw.On("CreateSession", ctx, mock.AnythingOfType("payment.SessionRequest")).
		Run(func(args mock.Arguments) { captured = args.Get(1).(payment.SessionRequest) }).
		Return(&payment.SessionResult{SessionID: "cs_test_1", RedirectURL: "https://pay.example/cs_test_1"}, nil)

	req := CreateSessionRequest{
		Cart: models.CartSnapshot{
			Seats:   []models.SelectedSeat{{ID: "t1", Label: "T1", Tier: "vip", PriceMinor: 1}},
			Entries: models.SimpleEntries{Women: 2},
			Bottles: map[string]map[string]int{"t1": {"moet": 1}},
		},
		PromoCode: " nye ",
		Customer:  Customer{Email: "guest@example.com", Name: "Ada"},
		Lang:      "EN",
	}

	res, err := svc.CreateSession(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, "cs_test_1", res.SessionID)
	assert.Equal(t, "https://pay.example/cs_test_1", res.RedirectURL)
	assert.Equal(t, int64(60000), res.Quote.SubtotalMinor)
	assert.Equal(t, int64(6000), res.Quote.DiscountMinor)
	assert.Equal(t, int64(54000), res.Quote.TotalMinor)

	assert.Equal(t, "en", captured.Lang)
	assert.Equal(t, "guest@example.com", captured.CustomerEmail)
	require.Len(t, captured.LineItems, 2)
	assert.Equal(t, "Table VIP - T1", captured.LineItems[0].Description)
	assert.Equal(t, int64(54000), models.SumLineItems(captured.LineItems))

	md := checkoutmeta.Decode(captured.Metadata)
	assert.Equal(t, "NYE", md.PromoCode)
	assert.Equal(t, int64(6000), md.DiscountMinor)
	assert.Equal(t, map[string]int{"VIP": 1}, md.Tiers)
	assert.Equal(t, "en", md.Locale)
	require.Len(t, md.Bottles, 1)
	assert.Equal(t, "moet", md.Bottles[0].BottleID)

	gw.AssertExpectations(t)
}

func TestCreateSession_EntriesOnlySkipsInventory(t *testing.T) {
	svc, inv, _, gw := newService()
	ctx := context.Background()

	gw.On("CreateSession", ctx, mock.AnythingOfType("payment.SessionRequest")).
		Return(&payment.SessionResult{SessionID: "cs_2", RedirectURL: "u"}, nil)

	res, err := svc.CreateSession(ctx, CreateSessionRequest{Cart: models.CartSnapshot{Entries: models.SimpleEntries{Men: 1}}})
	require.NoError(t, err)

	assert.Equal(t, int64(8000), res.Quote.TotalMinor)
	inv.AssertNotCalled(t, "ListInventory", mock.Anything)
}

func TestCreateSession_InsufficientStockNeverReachesProcessor(t *testing.T) {
	svc, inv, _, gw := newService()
	ctx := context.Background()
	inv.On("ListInventory", ctx).Return(inventory(), nil)

	seats := make([]models.SelectedSeat, 5)
	for i := range seats {
		seats[i] = models.SelectedSeat{ID: string(rune('a' + i)), Label: "P", Tier: "PRESTIGE"}
	}

	_, err := svc.CreateSession(ctx, CreateSessionRequest{Cart: models.CartSnapshot{Seats: seats}})
	assert.ErrorIs(t, err, pricing.ErrInsufficientStock)
	gw.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)
}

func TestCreateSession_ProcessorFailure(t *testing.T) {
	svc, _, _, gw := newService()
	ctx := context.Background()
	gw.On("CreateSession", ctx, mock.Anything).
		Return(nil, payment.ErrPaymentInitializationFailed)

	_, err := svc.CreateSession(ctx, CreateSessionRequest{Cart: models.CartSnapshot{Entries: models.SimpleEntries{Women: 1}}})
	assert.ErrorIs(t, err, payment.ErrPaymentInitializationFailed)
}

func TestCreateSession_RejectsInvalidEmail(t *testing.T) {
	svc, _, _, gw := newService()

	_, err := svc.CreateSession(context.Background(), CreateSessionRequest{
		Cart:     models.CartSnapshot{Entries: models.SimpleEntries{Women: 1}},
		Customer: Customer{Email: "not-an-email"},
	})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	gw.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)
}

func TestQuote_InvalidPromoStillQuotes(t *testing.T) {
	svc, _, promos, _ := newService()
	ctx := context.Background()
	promos.On("FindPromo", ctx, "GHOST").Return(nil, nil)

	q, err := svc.Quote(ctx, QuoteRequest{Cart: models.CartSnapshot{Entries: models.SimpleEntries{Women: 1}}, PromoCode: "ghost"})
	require.NoError(t, err)

	assert.Equal(t, int64(5000), q.TotalMinor)
	assert.Empty(t, q.AppliedPromo)
	assert.Equal(t, "Promo code not found", q.PromoReason)
}

func TestQuote_EmptyCart(t *testing.T) {
	svc, _, _, _ := newService()

	_, err := svc.Quote(context.Background(), QuoteRequest{})
	assert.True(t, errors.Is(err, pricing.ErrEmptyCart))
}
