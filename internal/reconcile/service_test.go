package reconcile

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
	"ms-checkout/internal/kafka"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
	"ms-checkout/internal/notify"
	"ms-checkout/internal/sse"
	"ms-checkout/internal/store"
	"ms-checkout/internal/store/storetest"
)

type MockSessions struct {
	mock.Mock
}

func (m *MockSessions) FetchSession(ctx context.Context, sessionID string) (*models.CheckoutSession, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CheckoutSession), args.Error(1)
}

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendConfirmation(ctx context.Context, email notify.ConfirmationEmail) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic, key string, value interface{}) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

type MockLocker struct {
	mock.Mock
	released int
}

func (m *MockLocker) Acquire(ctx context.Context, sessionID string) (func(), bool, error) {
	args := m.Called(ctx, sessionID)
	return func() { m.released++ }, args.Bool(0), args.Error(1)
}

var (
	site   = config.SiteConfig{Origin: "https://club.example.com", DefaultLang: "fr", Langs: []string{"fr", "en"}}
	topics = config.TopicConfig{OrderReconciled: "checkout.order.reconciled", EmailFailed: "checkout.email.failed"}
)

func paidSession(t *testing.T, id string) *models.CheckoutSession {
	t.Helper()
	md, err := checkoutmeta.Metadata{
		Email:     "guest@example.com",
		Locale:    "en",
		PromoCode: "NYE",
		Tiers:     map[string]int{"VIP": 1},
		Bottles: []checkoutmeta.BottleSelection{
			{SeatLabel: "A", Tier: "VIP", BottleID: "moet", Count: 2},
			{SeatLabel: "A", Tier: "VIP", OnSite: true},
		},
	}.Encode()
	require.NoError(t, err)

	return &models.CheckoutSession{
		ID:               id,
		Status:           "complete",
		PaymentStatus:    "paid",
		Paid:             true,
		CustomerName:     "Ada",
		AmountTotalMinor: 60000,
		Currency:         "eur",
		Metadata:         md,
		LineItems: []models.LineItem{
			{Description: "Table VIP - A", UnitAmountMinor: 50000, Quantity: 1},
			{Description: "Entrée Femme", UnitAmountMinor: 5000, Quantity: 2},
		},
	}
}

func setup(t *testing.T) (*Service, *store.Store, *MockSessions) {
	t.Helper()
	st := storetest.New(t)
	ctx := context.Background()
	require.NoError(t, st.UpsertInventory(ctx, &models.InventoryRow{Tier: "VIP", Capacity: 10, UnitPriceMinor: 50000}))
	require.NoError(t, st.CreatePromo(ctx, &models.PromoCode{Code: "NYE", Kind: models.PromoPercentage, Value: 10, Status: models.PromoActive}))

	sessions := new(MockSessions)
	svc := NewService(sessions, st, site, logger.NewWithWriter(io.Discard))
	svc.Topics = topics
	return svc, st, sessions
}

func TestReconcile_ReplayIsIdempotent(t *testing.T) {
	svc, st, sessions := setup(t)
	ctx := context.Background()
	sessions.On("FetchSession", ctx, "cs_1").Return(paidSession(t, "cs_1"), nil)

	mailer := new(MockMailer)
	mailer.On("SendConfirmation", ctx, mock.AnythingOfType("notify.ConfirmationEmail")).Return(nil).Once()
	svc.Mailer = mailer

	publisher := new(MockPublisher)
	publisher.On("Publish", ctx, topics.OrderReconciled, "cs_1", mock.AnythingOfType("kafka.OrderReconciledEvent")).Return(nil).Once()
	svc.Publisher = publisher

	emitter := sse.NewOrderEventEmitter()
	listenCtx, stopListening := context.WithCancel(ctx)
	defer stopListening()
	events := emitter.SubscribeToOrder(listenCtx, "cs_1")
	svc.Notifier = emitter

	first, err := svc.Reconcile(ctx, "cs_1", TriggerWebhook)
	require.NoError(t, err)
	assert.Equal(t, &Result{OK: true, OrderID: "cs_1", Created: true, TicketsCreated: true}, first)

	second, err := svc.Reconcile(ctx, "cs_1", TriggerPull)
	require.NoError(t, err)
	assert.Equal(t, &Result{OK: true, OrderID: "cs_1", Created: false, TicketsCreated: false}, second)

	event := <-events
	assert.Equal(t, 3, event.Tickets)
	assert.Equal(t, map[string]int{"VIP": 1}, event.Tiers)
	assert.Empty(t, events, "replay must not notify again")

	view, err := svc.OrderView(ctx, "cs_1")
	require.NoError(t, err)
	assert.Equal(t, "guest@example.com", view.Order.Email)
	assert.Equal(t, "Ada", view.Order.Name)
	assert.Equal(t, "en", view.Order.Locale)

	require.Len(t, view.Tickets, 3)
	var names []string
	for i, tk := range view.Tickets {
		assert.Equal(t, i+1, tk.TicketIndex)
		assert.Contains(t, tk.QRDataURL, "data:image/png;base64,")
		names = append(names, tk.ProductName)
	}
	assert.Equal(t, []string{"Table VIP - A", "Entrée Femme", "Entrée Femme"}, names)

	require.Len(t, view.Bottles, 2)
	assert.Equal(t, "moet", *view.Bottles[0].BottleID)
	assert.True(t, view.Bottles[1].OnSite)

	row, err := st.GetInventory(ctx, "VIP")
	require.NoError(t, err)
	assert.Equal(t, 1, row.SoldCount)

	promo, err := st.GetPromo(ctx, "NYE")
	require.NoError(t, err)
	assert.Equal(t, 1, promo.Redemptions)

	mailer.AssertNumberOfCalls(t, "SendConfirmation", 1)
	email := mailer.Calls[0].Arguments.Get(1).(notify.ConfirmationEmail)
	assert.Equal(t, "guest@example.com", email.To)
	assert.Equal(t, "https://club.example.com/en/confirmation?session_id=cs_1", email.Link)
	assert.NotEmpty(t, email.QRPNG)
	publisher.AssertExpectations(t)
}

func TestReconcile_ClassifiesTiersWithoutMetadata(t *testing.T) {
	svc, st, sessions := setup(t)
	ctx := context.Background()

	session := paidSession(t, "cs_2")
	delete(session.Metadata, checkoutmeta.KeyInventory)
	session.LineItems = append(session.LineItems, models.LineItem{Description: "Table VIP - B", UnitAmountMinor: 50000, Quantity: 1})
	sessions.On("FetchSession", ctx, "cs_2").Return(session, nil)

	res, err := svc.Reconcile(ctx, "cs_2", TriggerPull)
	require.NoError(t, err)
	assert.True(t, res.TicketsCreated)

	row, err := st.GetInventory(ctx, "VIP")
	require.NoError(t, err)
	assert.Equal(t, 2, row.SoldCount)
}

func TestReconcile_NotPaidWritesNothing(t *testing.T) {
	svc, st, sessions := setup(t)
	ctx := context.Background()

	session := paidSession(t, "cs_3")
	session.Paid = false
	session.PaymentStatus = "unpaid"
	sessions.On("FetchSession", ctx, "cs_3").Return(session, nil)

	_, err := svc.Reconcile(ctx, "cs_3", TriggerPull)
	assert.ErrorIs(t, err, ErrSessionNotPaid)

	_, err = st.GetOrder(ctx, "cs_3")
	assert.ErrorIs(t, err, store.ErrNotFound)
	count, err := st.CountOrders(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestReconcile_FetchErrorPropagates(t *testing.T) {
	svc, _, sessions := setup(t)
	ctx := context.Background()
	boom := errors.New("processor down")
	sessions.On("FetchSession", ctx, "cs_4").Return(nil, boom)

	_, err := svc.Reconcile(ctx, "cs_4", TriggerWebhook)
	assert.ErrorIs(t, err, boom)
}

func TestReconcile_EmailFailureIsSwallowed(t *testing.T) {
	svc, _, sessions := setup(t)
	ctx := context.Background()
	sessions.On("FetchSession", ctx, "cs_5").Return(paidSession(t, "cs_5"), nil)

	mailer := new(MockMailer)
	mailer.On("SendConfirmation", ctx, mock.Anything).Return(errors.New("smtp refused"))
	svc.Mailer = mailer

	publisher := new(MockPublisher)
	publisher.On("Publish", ctx, topics.OrderReconciled, "cs_5", mock.Anything).Return(nil)
	publisher.On("Publish", ctx, topics.EmailFailed, "cs_5", mock.MatchedBy(func(e kafka.EmailFailedEvent) bool {
		return e.To == "guest@example.com" && e.Error == "smtp refused"
	})).Return(nil).Once()
	svc.Publisher = publisher

	res, err := svc.Reconcile(ctx, "cs_5", TriggerWebhook)
	require.NoError(t, err)
	assert.True(t, res.OK)
	publisher.AssertExpectations(t)
}

func TestReconcile_HoldsAndReleasesLock(t *testing.T) {
	svc, _, sessions := setup(t)
	ctx := context.Background()
	sessions.On("FetchSession", ctx, "cs_6").Return(paidSession(t, "cs_6"), nil)

	locker := new(MockLocker)
	locker.On("Acquire", ctx, "cs_6").Return(true, nil)
	svc.Locker = locker

	_, err := svc.Reconcile(ctx, "cs_6", TriggerWebhook)
	require.NoError(t, err)
	assert.Equal(t, 1, locker.released)
}

func TestReconcile_LockErrorDoesNotBlock(t *testing.T) {
	svc, _, sessions := setup(t)
	ctx := context.Background()
	sessions.On("FetchSession", ctx, "cs_7").Return(paidSession(t, "cs_7"), nil)

	locker := new(MockLocker)
	locker.On("Acquire", ctx, "cs_7").Return(false, errors.New("redis down"))
	svc.Locker = locker

	res, err := svc.Reconcile(ctx, "cs_7", TriggerWebhook)
	require.NoError(t, err)
	assert.True(t, res.TicketsCreated)
	assert.Zero(t, locker.released)
}

func TestReconcile_MissingSessionID(t *testing.T) {
	svc, _, _ := setup(t)

	_, err := svc.Reconcile(context.Background(), "  ", TriggerPull)
	assert.ErrorIs(t, err, ErrMissingSessionID)
}

func TestResendEmail(t *testing.T) {
	svc, _, sessions := setup(t)
	ctx := context.Background()
	sessions.On("FetchSession", ctx, "cs_8").Return(paidSession(t, "cs_8"), nil)
	_, err := svc.Reconcile(ctx, "cs_8", TriggerWebhook)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.ResendEmail(ctx, "cs_8", ""), ErrEmailNotConfigured)

	mailer := new(MockMailer)
	mailer.On("SendConfirmation", ctx, mock.MatchedBy(func(e notify.ConfirmationEmail) bool {
		return e.To == "ops@example.com" && len(e.Tickets) == 3
	})).Return(nil).Once()
	svc.Mailer = mailer

	require.NoError(t, svc.ResendEmail(ctx, "cs_8", "ops@example.com"))
	assert.ErrorIs(t, svc.ResendEmail(ctx, "missing", ""), ErrOrderNotFound)
	mailer.AssertExpectations(t)
}

func TestClassifyTier(t *testing.T) {
	cases := map[string]string{
		"Table ULTRA VIP - 1": "ULTRA VIP",
		"Table VIP - 2":       "VIP",
		"table platinium 3":   "PLATINIUM",
		"Table Prestige - 4":  "PRESTIGE",
		"Entrée Femme":        "",
		"VIP Bracelet":        "",
		"Table Garden":        "",
	}
	for desc, want := range cases {
		assert.Equal(t, want, ClassifyTier(desc), desc)
	}
}
