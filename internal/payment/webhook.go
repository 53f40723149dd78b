package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
)

var (
	ErrWebhookSecretMissing = errors.New("stripe webhook secret is not configured")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
)

const (
	EventCheckoutCompleted     = "checkout.session.completed"
	EventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
)

// WebhookError represents an error that occurred during webhook processing
type WebhookError struct {
	Category      string // "configuration", "validation", "processing"
	StatusCode    int
	PublicError   string
	InternalError string
	OriginalErr   error
}

func (e *WebhookError) Error() string {
	return e.InternalError
}

func (e *WebhookError) Unwrap() error {
	return e.OriginalErr
}

// ConfigReader reads a persisted site config value, "" when unset.
type ConfigReader interface {
	GetConfigValue(ctx context.Context, key string) (string, error)
}

type WebhookEvent struct {
	ID        string
	Type      string
	SessionID string
}

// Completed reports whether the event means a session was paid.
func (e *WebhookEvent) Completed() bool {
	return e.SessionID != "" && (e.Type == EventCheckoutCompleted || e.Type == EventAsyncPaymentSucceeded)
}

type WebhookVerifier struct {
	envSecret string
	config    ConfigReader
	logger    *logger.Logger
}

func NewWebhookVerifier(envSecret string, config ConfigReader, log *logger.Logger) *WebhookVerifier {
	return &WebhookVerifier{envSecret: strings.TrimSpace(envSecret), config: config, logger: log}
}

// Secret resolves the signing secret from the environment first, then from
// the admin-configured value. source is "env", "config" or "none".
func (v *WebhookVerifier) Secret(ctx context.Context) (secret, source string, err error) {
	if v.envSecret != "" {
		return v.envSecret, "env", nil
	}
	if v.config != nil {
		value, err := v.config.GetConfigValue(ctx, models.ConfigStripeWebhookSecret)
		if err != nil {
			return "", "none", fmt.Errorf("reading webhook secret: %w", err)
		}
		if value = strings.TrimSpace(value); value != "" {
			return value, "config", nil
		}
	}
	return "", "none", ErrWebhookSecretMissing
}

// Verify checks the signature header and decodes the event.
func (v *WebhookVerifier) Verify(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	secret, _, err := v.Secret(ctx)
	if err != nil {
		v.logger.Error("WEBHOOK", fmt.Sprintf("Webhook secret unavailable: %v", err))
		return nil, &WebhookError{
			Category:      "configuration",
			StatusCode:    http.StatusInternalServerError,
			PublicError:   "Webhook processing error",
			InternalError: err.Error(),
			OriginalErr:   err,
		}
	}

	opts := webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true}
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, opts)
	if err != nil {
		v.logger.LogSecurity("WEBHOOK_SIGNATURE", fmt.Sprintf("Webhook signature verification failed: %v", err))
		return nil, &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Webhook signature verification failed",
			InternalError: fmt.Sprintf("Webhook signature verification failed: %v", err),
			OriginalErr:   fmt.Errorf("%w: %v", ErrInvalidSignature, err),
		}
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if event.Type == EventCheckoutCompleted || event.Type == EventAsyncPaymentSucceeded {
		var session stripe.CheckoutSession
		if event.Data == nil {
			return nil, invalidEventData(errors.New("event has no data"))
		}
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			v.logger.Error("WEBHOOK", fmt.Sprintf("Failed to unmarshal checkout session: %v", err))
			return nil, invalidEventData(err)
		}
		out.SessionID = session.ID
	}

	v.logger.Info("WEBHOOK", fmt.Sprintf("Verified Stripe event %s (%s)", out.ID, out.Type))
	return out, nil
}

func invalidEventData(err error) *WebhookError {
	return &WebhookError{
		Category:      "processing",
		StatusCode:    http.StatusBadRequest,
		PublicError:   "Invalid event data",
		InternalError: fmt.Sprintf("Failed to decode checkout session: %v", err),
		OriginalErr:   err,
	}
}
