// Package reconcile turns a paid payment session into an order, its tickets,
// inventory and promo credit, bottle rows and a confirmation email. Every
// trigger (webhook, confirmation page pull, admin) goes through Reconcile.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ms-checkout/internal/checkoutmeta"
	"ms-checkout/internal/config"
	"ms-checkout/internal/kafka"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
	"ms-checkout/internal/notify"
	"ms-checkout/internal/sse"
	"ms-checkout/internal/store"
	"ms-checkout/internal/tickets/qr"
)

var (
	ErrSessionNotPaid     = errors.New("session not paid")
	ErrOrderNotFound      = errors.New("order not found")
	ErrEmailNotConfigured = errors.New("email delivery is not configured")
	ErrNoRecipient        = errors.New("no recipient address for order")
	ErrMissingSessionID   = errors.New("session id is required")
)

type Trigger string

const (
	TriggerWebhook Trigger = "webhook"
	TriggerPull    Trigger = "pull"
	TriggerManual  Trigger = "manual"
)

// tierKeywords is ordered from most to least specific.
var tierKeywords = []string{"ULTRA VIP", "PLATINIUM", "VIP", "PREMIUM", "PRESTIGE", "STANDARD"}

type SessionSource interface {
	FetchSession(ctx context.Context, sessionID string) (*models.CheckoutSession, error)
}

type OrderStore interface {
	SaveOrder(ctx context.Context, order *models.Order) (bool, error)
	Materialize(ctx context.Context, m store.Materialization) (*store.MaterializeResult, error)
	OrderView(ctx context.Context, id string) (*models.OrderView, error)
}

type Publisher interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

// Notifier pushes a freshly reconciled order to live listeners.
type Notifier interface {
	EmitOrder(event sse.OrderEvent)
}

// Locker serialises reconciliations of one session across instances. When
// the lock cannot be taken in time reconciliation proceeds anyway; the unique
// keys in the store keep it correct.
type Locker interface {
	Acquire(ctx context.Context, sessionID string) (release func(), acquired bool, err error)
}

type Result struct {
	OK             bool   `json:"ok"`
	OrderID        string `json:"order_id"`
	Created        bool   `json:"created"`
	TicketsCreated bool   `json:"tickets_created"`
}

type Service struct {
	Sessions  SessionSource
	Store     OrderStore
	QR        *qr.Generator
	Mailer    notify.Mailer
	Publisher Publisher
	Notifier  Notifier
	Locker    Locker
	Topics    config.TopicConfig
	site      config.SiteConfig
	log       *logger.Logger
	now       func() time.Time
}

// NewService wires the required collaborators. Mailer, Publisher, Notifier
// and Locker are optional and may be set on the returned value.
func NewService(sessions SessionSource, orders OrderStore, site config.SiteConfig, log *logger.Logger) *Service {
	return &Service{
		Sessions: sessions,
		Store:    orders,
		QR:       qr.NewGenerator(site.Origin),
		site:     site,
		log:      log,
		now:      time.Now,
	}
}

func (s *Service) EmailEnabled() bool {
	return s.Mailer != nil
}

// Reconcile is safe to call any number of times, from any trigger, for the
// same session.
func (s *Service) Reconcile(ctx context.Context, sessionID string, trigger Trigger) (*Result, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrMissingSessionID
	}

	if s.Locker != nil {
		release, acquired, err := s.Locker.Acquire(ctx, sessionID)
		if err != nil {
			s.log.Warn("RECONCILE", fmt.Sprintf("Lock for %s unavailable, continuing: %v", sessionID, err))
		}
		if acquired {
			defer release()
		}
	}

	// Step 1: the processor is the source of truth
	session, err := s.Sessions.FetchSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Paid {
		s.log.LogCheckout("NOT_PAID", sessionID, fmt.Sprintf("status=%s payment_status=%s", session.Status, session.PaymentStatus))
		return nil, ErrSessionNotPaid
	}

	meta := checkoutmeta.Decode(session.Metadata)
	lang := s.site.LangOrDefault(meta.Locale)

	// Step 2: order row
	order := &models.Order{
		ID:               session.ID,
		Email:            firstNonEmpty(session.CustomerEmail, meta.Email),
		Name:             firstNonEmpty(session.CustomerName, meta.Name),
		Phone:            firstNonEmpty(session.CustomerPhone, meta.Phone),
		AmountTotalMinor: session.AmountTotalMinor,
		Currency:         session.Currency,
		Status:           models.OrderStatusPaid,
		Locale:           lang,
		PromoCode:        meta.PromoCode,
	}
	created, err := s.Store.SaveOrder(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("save order %s: %w", order.ID, err)
	}

	// Steps 3-6: tickets, inventory, bottles and promo in one transaction
	link := s.QR.ConfirmationURL(lang, order.ID)
	qrDataURL, err := s.QR.DataURL(link)
	if err != nil {
		s.log.Warn("RECONCILE", fmt.Sprintf("QR for %s not rendered: %v", order.ID, err))
	}

	tickets, classified := s.expandTickets(order.ID, session.LineItems, qrDataURL)
	tiers := meta.Tiers
	if len(tiers) == 0 {
		tiers = classified
	}

	bottles := checkoutmeta.ToOrderBottles(order.ID, meta.Bottles)
	for i := range bottles {
		bottles[i].ID = uuid.NewString()
	}

	res, err := s.Store.Materialize(ctx, store.Materialization{
		OrderID:    order.ID,
		Tickets:    tickets,
		TierCounts: tiers,
		Bottles:    bottles,
		PromoCode:  meta.PromoCode,
	})
	if err != nil {
		return nil, fmt.Errorf("materialize order %s: %w", order.ID, err)
	}
	for _, tier := range res.OversoldTiers {
		s.log.Warn("RECONCILE", fmt.Sprintf("Tier %s oversold after order %s", tier, order.ID))
	}
	for _, tier := range res.UnknownTiers {
		s.log.Warn("RECONCILE", fmt.Sprintf("Tier %s of order %s has no inventory row", tier, order.ID))
	}

	// Step 7: only the call that created the tickets notifies
	if res.TicketsCreated {
		s.sendConfirmation(ctx, order, tickets, link, order.Email)
		s.publish(ctx, s.Topics.OrderReconciled, order.ID, kafka.OrderReconciledEvent{
			OrderID:          order.ID,
			Email:            order.Email,
			AmountTotalMinor: order.AmountTotalMinor,
			Currency:         order.Currency,
			Tickets:          res.TicketCount,
			Tiers:            tiers,
			PromoCode:        meta.PromoCode,
			Trigger:          string(trigger),
			OccurredAt:       s.now().UTC(),
		})
		if s.Notifier != nil {
			s.Notifier.EmitOrder(sse.OrderEvent{
				OrderID:          order.ID,
				AmountTotalMinor: order.AmountTotalMinor,
				Currency:         order.Currency,
				Tickets:          res.TicketCount,
				Tiers:            tiers,
				PromoCode:        meta.PromoCode,
				OccurredAt:       s.now().UTC(),
			})
		}
	}

	s.log.LogOrder("RECONCILED", order.ID, fmt.Sprintf("trigger=%s created=%t tickets_created=%t", trigger, created, res.TicketsCreated))

	// Step 8
	return &Result{OK: true, OrderID: order.ID, Created: created, TicketsCreated: res.TicketsCreated}, nil
}

// expandTickets yields one ticket per purchased unit with contiguous 1-based
// indices, and counts seating units per tier.
func (s *Service) expandTickets(orderID string, items []models.LineItem, qrDataURL string) ([]models.Ticket, map[string]int) {
	now := s.now().UTC()
	tiers := make(map[string]int)
	var tickets []models.Ticket

	index := 0
	for _, item := range items {
		tier := ClassifyTier(item.Description)
		for u := int64(0); u < item.Quantity; u++ {
			index++
			tickets = append(tickets, models.Ticket{
				ID:          uuid.NewString(),
				OrderID:     orderID,
				TicketIndex: index,
				ProductName: item.Description,
				QRDataURL:   qrDataURL,
				Status:      models.TicketStatusValid,
				CreatedAt:   now,
			})
			if tier != "" {
				tiers[tier]++
			}
		}
	}
	return tickets, tiers
}

// ClassifyTier returns the seating tier of a table line item, or "" for
// anything that is not a table.
func ClassifyTier(description string) string {
	d := strings.ToUpper(description)
	if !strings.Contains(d, "TABLE") {
		return ""
	}
	for _, kw := range tierKeywords {
		if strings.Contains(d, kw) {
			return kw
		}
	}
	return ""
}

// ResendEmail re-sends the confirmation of an existing order without touching
// its tickets. to overrides the stored address when set.
func (s *Service) ResendEmail(ctx context.Context, orderID, to string) error {
	if s.Mailer == nil {
		return ErrEmailNotConfigured
	}
	view, err := s.OrderView(ctx, orderID)
	if err != nil {
		return err
	}
	recipient := firstNonEmpty(strings.TrimSpace(to), view.Order.Email)
	if recipient == "" {
		return ErrNoRecipient
	}

	link := s.QR.ConfirmationURL(s.site.LangOrDefault(view.Order.Locale), view.Order.ID)
	email, err := s.confirmationEmail(&view.Order, view.Tickets, link, recipient)
	if err != nil {
		return err
	}
	if err := s.Mailer.SendConfirmation(ctx, email); err != nil {
		s.log.Error("EMAIL", fmt.Sprintf("Resend for %s to %s failed: %v", orderID, recipient, err))
		return fmt.Errorf("send confirmation: %w", err)
	}
	s.log.LogOrder("EMAIL_RESENT", orderID, recipient)
	return nil
}

// OrderView returns the order with its tickets and bottles.
func (s *Service) OrderView(ctx context.Context, orderID string) (*models.OrderView, error) {
	view, err := s.Store.OrderView(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return view, nil
}

// sendConfirmation never fails the reconciliation; undelivered emails are
// logged and published for a manual resend.
func (s *Service) sendConfirmation(ctx context.Context, order *models.Order, tickets []models.Ticket, link, to string) {
	if s.Mailer == nil || to == "" {
		s.log.Info("EMAIL", fmt.Sprintf("Confirmation for %s skipped (configured=%t, recipient=%t)", order.ID, s.Mailer != nil, to != ""))
		return
	}

	email, err := s.confirmationEmail(order, tickets, link, to)
	if err == nil {
		err = s.Mailer.SendConfirmation(ctx, email)
	}
	if err != nil {
		s.log.Error("EMAIL", fmt.Sprintf("Confirmation for %s to %s failed: %v", order.ID, to, err))
		s.publish(ctx, s.Topics.EmailFailed, order.ID, kafka.EmailFailedEvent{
			OrderID:    order.ID,
			To:         to,
			Error:      err.Error(),
			OccurredAt: s.now().UTC(),
		})
		return
	}
	s.log.LogOrder("EMAIL_SENT", order.ID, to)
}

func (s *Service) confirmationEmail(order *models.Order, tickets []models.Ticket, link, to string) (notify.ConfirmationEmail, error) {
	png, err := s.QR.PNG(link)
	if err != nil {
		return notify.ConfirmationEmail{}, err
	}
	return notify.ConfirmationEmail{
		To:          to,
		Name:        order.Name,
		OrderID:     order.ID,
		Link:        link,
		QRPNG:       png,
		Tickets:     tickets,
		AmountMinor: order.AmountTotalMinor,
		Currency:    order.Currency,
		Lang:        s.site.LangOrDefault(order.Locale),
	}, nil
}

func (s *Service) publish(ctx context.Context, topic, key string, event interface{}) {
	if s.Publisher == nil || topic == "" {
		return
	}
	if err := s.Publisher.Publish(ctx, topic, key, event); err != nil {
		s.log.Warn("KAFKA", fmt.Sprintf("Publishing to %s for %s failed: %v", topic, key, err))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
