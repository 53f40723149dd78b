package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-checkout/internal/checkout"
	"ms-checkout/internal/reconcile"
)

type availability struct {
	Tier           string `json:"tier"`
	Capacity       int    `json:"capacity"`
	Remaining      int    `json:"remaining"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
}

func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req checkout.QuoteRequest
	if !h.decode(w, r, &req) {
		return
	}
	q, err := h.Checkout.Quote(r.Context(), req)
	if err != nil {
		h.fail(w, "Quote", err)
		return
	}
	h.writeJSON(w, http.StatusOK, q)
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req checkout.CreateSessionRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.Checkout.CreateSession(r.Context(), req)
	if err != nil {
		h.fail(w, "CreateSession", err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// PullReconcile is called by the confirmation page when the order has not
// shown up after the webhook grace period.
func (h *Handler) PullReconcile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.Reconcile.Reconcile(r.Context(), req.SessionID, reconcile.TriggerPull)
	if err != nil {
		h.fail(w, "PullReconcile", err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")
	view, err := h.Reconcile.OrderView(r.Context(), id)
	if err != nil {
		h.fail(w, "GetOrder", err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Store.ListInventory(r.Context())
	if err != nil {
		h.fail(w, "Availability", err)
		return
	}
	out := make([]availability, 0, len(rows))
	for _, row := range rows {
		out = append(out, availability{
			Tier:           row.Tier,
			Capacity:       row.Capacity,
			Remaining:      row.Remaining(),
			UnitPriceMinor: row.UnitPriceMinor,
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, http.StatusNotFound, fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path))
}
