// Package notify sends order confirmation emails.
package notify

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/gomail.v2"

	"ms-checkout/internal/config"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
)

const qrAttachmentName = "qr.png"

//go:embed templates/confirmation.html
var confirmationHTML string

var confirmationTmpl = template.Must(template.New("confirmation").Parse(confirmationHTML))

type ConfirmationEmail struct {
	To          string
	Name        string
	OrderID     string
	Link        string
	QRPNG       []byte
	Tickets     []models.Ticket
	AmountMinor int64
	Currency    string
	Lang        string
}

type Mailer interface {
	SendConfirmation(ctx context.Context, email ConfirmationEmail) error
}

type emailCopy struct {
	Subject    string
	Heading    string
	Greeting   string
	Intro      string
	OrderLabel string
	TotalLabel string
	LinkLabel  string
}

var copies = map[string]emailCopy{
	"fr": {
		Subject:    "Confirmation de votre réservation",
		Heading:    "Merci pour votre réservation",
		Greeting:   "Bonjour",
		Intro:      "Votre paiement est confirmé. Présentez ce QR code à l'entrée.",
		OrderLabel: "Commande :",
		TotalLabel: "Total :",
		LinkLabel:  "Voir ma réservation",
	},
	"en": {
		Subject:    "Your booking confirmation",
		Heading:    "Thank you for your booking",
		Greeting:   "Hello",
		Intro:      "Your payment is confirmed. Show this QR code at the door.",
		OrderLabel: "Order:",
		TotalLabel: "Total:",
		LinkLabel:  "View my booking",
	},
}

func copyFor(lang string) emailCopy {
	if c, ok := copies[lang]; ok {
		return c
	}
	return copies["fr"]
}

// SMTPMailer delivers through an SMTP relay with the QR code inlined.
type SMTPMailer struct {
	from   string
	dialer *gomail.Dialer
	log    *logger.Logger
	send   func(m *gomail.Message) error
}

func NewSMTPMailer(cfg config.EmailConfig, log *logger.Logger) *SMTPMailer {
	m := &SMTPMailer{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
		log:    log,
	}
	m.send = func(msg *gomail.Message) error { return m.dialer.DialAndSend(msg) }
	return m
}

func (s *SMTPMailer) SendConfirmation(ctx context.Context, email ConfirmationEmail) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := s.buildMessage(email)
	if err != nil {
		return err
	}
	if err := s.send(msg); err != nil {
		s.log.Error("EMAIL", fmt.Sprintf("Failed to send confirmation for %s: %v", email.OrderID, err))
		return fmt.Errorf("send confirmation email: %w", err)
	}

	s.log.Info("EMAIL", fmt.Sprintf("Confirmation for %s sent to %s", email.OrderID, email.To))
	return nil
}

func (s *SMTPMailer) buildMessage(email ConfirmationEmail) (*gomail.Message, error) {
	c := copyFor(email.Lang)

	var body bytes.Buffer
	err := confirmationTmpl.Execute(&body, struct {
		emailCopy
		Lang    string
		Name    string
		OrderID string
		Amount  string
		Tickets []models.Ticket
		QRName  string
		Link    string
	}{
		emailCopy: c,
		Lang:      email.Lang,
		Name:      email.Name,
		OrderID:   email.OrderID,
		Amount:    FormatAmount(email.AmountMinor, email.Currency),
		Tickets:   email.Tickets,
		QRName:    qrAttachmentName,
		Link:      email.Link,
	})
	if err != nil {
		return nil, fmt.Errorf("render confirmation email: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", email.To)
	m.SetHeader("Subject", c.Subject)
	m.SetBody("text/html", body.String())
	if len(email.QRPNG) > 0 {
		png := email.QRPNG
		m.Embed(qrAttachmentName, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(png)
			return err
		}))
	}
	return m, nil
}

// FormatAmount renders minor units as "765.00 EUR".
func FormatAmount(minor int64, currency string) string {
	return decimal.New(minor, -2).StringFixed(2) + " " + strings.ToUpper(currency)
}
