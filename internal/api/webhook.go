package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"ms-checkout/internal/payment"
	"ms-checkout/internal/reconcile"
)

const maxWebhookBytes = int64(65536)

// StripeWebhook verifies the signature before anything else, then hands paid
// sessions to the reconciliation. Redeliveries of a handled event id are
// acknowledged without work.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		h.Logger.Error("WEBHOOK", fmt.Sprintf("Error reading request body: %v", err))
		h.writeError(w, http.StatusBadRequest, "Error reading request body")
		return
	}

	event, err := h.Webhooks.Verify(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		var werr *payment.WebhookError
		if errors.As(err, &werr) {
			h.writeError(w, werr.StatusCode, werr.PublicError)
			return
		}
		h.fail(w, "StripeWebhook", err)
		return
	}

	if !event.Completed() {
		h.Logger.Debug("WEBHOOK", fmt.Sprintf("Ignoring event %s (%s)", event.ID, event.Type))
		h.writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	if h.Dedupe != nil && event.ID != "" {
		first, err := h.Dedupe.MarkEventProcessed(r.Context(), event.ID)
		if err != nil {
			h.Logger.Warn("WEBHOOK", fmt.Sprintf("Event dedupe unavailable for %s: %v", event.ID, err))
		} else if !first {
			h.Logger.Info("WEBHOOK", fmt.Sprintf("Event %s already processed", event.ID))
			h.writeJSON(w, http.StatusOK, map[string]bool{"received": true})
			return
		}
	}

	res, err := h.Reconcile.Reconcile(r.Context(), event.SessionID, reconcile.TriggerWebhook)
	if err != nil {
		h.forget(r, event.ID)
		if errors.Is(err, reconcile.ErrSessionNotPaid) {
			// delayed payment methods complete later with async_payment_succeeded
			h.Logger.Info("WEBHOOK", fmt.Sprintf("Session %s completed but not paid yet", event.SessionID))
			h.writeJSON(w, http.StatusOK, map[string]bool{"received": true})
			return
		}
		h.Logger.Error("WEBHOOK", fmt.Sprintf("Reconciliation of %s failed: %v", event.SessionID, err))
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.Logger.Info("WEBHOOK", fmt.Sprintf("Event %s reconciled order %s (created=%t, tickets=%t)", event.ID, res.OrderID, res.Created, res.TicketsCreated))
	h.writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *Handler) forget(r *http.Request, eventID string) {
	if h.Dedupe == nil || eventID == "" {
		return
	}
	if err := h.Dedupe.ForgetEvent(r.Context(), eventID); err != nil {
		h.Logger.Warn("WEBHOOK", fmt.Sprintf("Failed to clear dedupe marker of %s: %v", eventID, err))
	}
}
