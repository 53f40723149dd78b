package payment

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"

	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
)

type MockConfigReader struct {
	mock.Mock
}

func (m *MockConfigReader) GetConfigValue(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

const completedEvent = `{
  "id": "evt_test_1",
  "object": "event",
  "type": "checkout.session.completed",
  "data": {"object": {"id": "cs_test_1", "object": "checkout.session"}}
}`

func sign(t *testing.T, payload, secret string) string {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: []byte(payload),
		Secret:  secret,
	})
	return signed.Header
}

func TestVerify_ValidSignature(t *testing.T) {
	v := NewWebhookVerifier("whsec_test", nil, logger.NewWithWriter(io.Discard))

	event, err := v.Verify(context.Background(), []byte(completedEvent), sign(t, completedEvent, "whsec_test"))

	require.NoError(t, err)
	assert.Equal(t, "evt_test_1", event.ID)
	assert.Equal(t, "cs_test_1", event.SessionID)
	assert.True(t, event.Completed())
}

func TestVerify_BadSignature(t *testing.T) {
	v := NewWebhookVerifier("whsec_test", nil, logger.NewWithWriter(io.Discard))

	_, err := v.Verify(context.Background(), []byte(completedEvent), sign(t, completedEvent, "whsec_other"))

	var whErr *WebhookError
	require.ErrorAs(t, err, &whErr)
	assert.Equal(t, http.StatusBadRequest, whErr.StatusCode)
	assert.Equal(t, "validation", whErr.Category)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_FallsBackToConfiguredSecret(t *testing.T) {
	cfg := new(MockConfigReader)
	cfg.On("GetConfigValue", mock.Anything, models.ConfigStripeWebhookSecret).Return("whsec_db", nil)
	v := NewWebhookVerifier("", cfg, logger.NewWithWriter(io.Discard))

	_, source, err := v.Secret(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "config", source)

	_, err = v.Verify(context.Background(), []byte(completedEvent), sign(t, completedEvent, "whsec_db"))
	assert.NoError(t, err)
}

func TestVerify_EnvSecretWins(t *testing.T) {
	cfg := new(MockConfigReader)
	v := NewWebhookVerifier("whsec_env", cfg, logger.NewWithWriter(io.Discard))

	secret, source, err := v.Secret(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "whsec_env", secret)
	assert.Equal(t, "env", source)
	cfg.AssertNotCalled(t, "GetConfigValue", mock.Anything, mock.Anything)
}

func TestVerify_MissingSecret(t *testing.T) {
	cfg := new(MockConfigReader)
	cfg.On("GetConfigValue", mock.Anything, models.ConfigStripeWebhookSecret).Return("", nil)
	v := NewWebhookVerifier("", cfg, logger.NewWithWriter(io.Discard))

	_, err := v.Verify(context.Background(), []byte(completedEvent), "t=1,v1=abc")

	var whErr *WebhookError
	require.True(t, errors.As(err, &whErr))
	assert.Equal(t, http.StatusInternalServerError, whErr.StatusCode)
	assert.ErrorIs(t, err, ErrWebhookSecretMissing)
}

func TestVerify_OtherEventTypes(t *testing.T) {
	payload := `{"id":"evt_2","object":"event","type":"payment_intent.created","data":{"object":{"id":"pi_1","object":"payment_intent"}}}`
	v := NewWebhookVerifier("whsec_test", nil, logger.NewWithWriter(io.Discard))

	event, err := v.Verify(context.Background(), []byte(payload), sign(t, payload, "whsec_test"))

	require.NoError(t, err)
	assert.Empty(t, event.SessionID)
	assert.False(t, event.Completed())
}
