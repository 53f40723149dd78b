package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ms-checkout/internal/checkout"
	"ms-checkout/internal/checkoutmeta"
	"ms-checkout/internal/payment"
	"ms-checkout/internal/pricing"
	"ms-checkout/internal/promos"
	"ms-checkout/internal/reconcile"
	"ms-checkout/internal/store"
)

const maxBodyBytes = 1 << 20

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Failed to encode response: %v", err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

// fail maps a service error onto its status code. Unknown errors are 500
// with the upstream message passed through.
func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	} else {
		h.Logger.Warn("API", fmt.Sprintf("%s: %v", op, err))
	}
	h.writeError(w, status, err.Error())
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, pricing.ErrInsufficientStock),
		errors.Is(err, reconcile.ErrSessionNotPaid),
		errors.Is(err, promos.ErrDuplicateCode):
		return http.StatusConflict
	case errors.Is(err, pricing.ErrInventoryUnavailable),
		errors.Is(err, pricing.ErrEmptyCart),
		errors.Is(err, checkout.ErrInvalidRequest),
		errors.Is(err, checkoutmeta.ErrMetadataTooLarge),
		errors.Is(err, promos.ErrInvalidPromo),
		errors.Is(err, reconcile.ErrMissingSessionID),
		errors.Is(err, reconcile.ErrEmailNotConfigured),
		errors.Is(err, reconcile.ErrNoRecipient):
		return http.StatusBadRequest
	case errors.Is(err, reconcile.ErrOrderNotFound),
		errors.Is(err, promos.ErrPromoNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, payment.ErrPaymentInitializationFailed),
		errors.Is(err, payment.ErrSessionLookupFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("%s %s: invalid body: %v", r.Method, r.URL.Path, err))
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}
