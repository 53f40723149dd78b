package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"ms-checkout/internal/config"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
)

func newTestMailer() (*SMTPMailer, *[]*gomail.Message) {
	var sent []*gomail.Message
	m := NewSMTPMailer(config.EmailConfig{SMTPHost: "smtp.example.com", SMTPPort: 587, From: "tickets@example.com"}, logger.NewWithWriter(io.Discard))
	m.send = func(msg *gomail.Message) error {
		sent = append(sent, msg)
		return nil
	}
	return m, &sent
}

func TestSendConfirmation_InlinesQRAndLink(t *testing.T) {
	m, sent := newTestMailer()

	err := m.SendConfirmation(context.Background(), ConfirmationEmail{
		To:          "guest@example.com",
		Name:        "Guest",
		OrderID:     "cs_test_1",
		Link:        "https://club.example.com/en/confirmation?session_id=cs_test_1",
		QRPNG:       []byte("png-bytes"),
		Tickets:     []models.Ticket{{TicketIndex: 1, ProductName: "Table VIP - V1"}},
		AmountMinor: 76500,
		Currency:    "eur",
		Lang:        "en",
	})
	require.NoError(t, err)
	require.Len(t, *sent, 1)

	var raw bytes.Buffer
	_, err = (*sent)[0].WriteTo(&raw)
	require.NoError(t, err)
	out := raw.String()

	assert.Contains(t, out, "Subject: Your booking confirmation")
	assert.Contains(t, out, "cid:qr.png")
	assert.Contains(t, out, "Content-ID: <qr.png>")
	assert.Contains(t, out, "765.00 EUR")
	assert.Contains(t, out, "cs_test_1")
}

func TestSendConfirmation_DefaultsToFrench(t *testing.T) {
	m, sent := newTestMailer()

	require.NoError(t, m.SendConfirmation(context.Background(), ConfirmationEmail{To: "a@example.com", OrderID: "cs_2", Lang: "de"}))

	var raw bytes.Buffer
	_, err := (*sent)[0].WriteTo(&raw)
	require.NoError(t, err)
	assert.Contains(t, raw.String(), "Confirmation_de_votre")
}

func TestSendConfirmation_PropagatesTransportError(t *testing.T) {
	m, _ := newTestMailer()
	m.send = func(*gomail.Message) error { return errors.New("connection refused") }

	err := m.SendConfirmation(context.Background(), ConfirmationEmail{To: "a@example.com", OrderID: "cs_3"})

	assert.ErrorContains(t, err, "connection refused")
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "765.00 EUR", FormatAmount(76500, "eur"))
	assert.Equal(t, "0.05 EUR", FormatAmount(5, "EUR"))
}
