package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-checkout/internal/models"
	"ms-checkout/internal/payment"
	"ms-checkout/internal/promos"
	"ms-checkout/internal/store"
)

// editableConfig lists the site config keys the admin surface may touch.
var editableConfig = map[string]bool{
	models.ConfigStripeWebhookSecret: true,
	models.ConfigSiteContent:         true,
}

var secretConfig = map[string]bool{
	models.ConfigStripeWebhookSecret: true,
}

// ---------------- PROMOS ----------------

func (h *Handler) ListPromos(w http.ResponseWriter, r *http.Request) {
	list, err := h.Promos.List(r.Context())
	if err != nil {
		h.fail(w, "ListPromos", err)
		return
	}
	h.writeJSON(w, http.StatusOK, list)
}

func (h *Handler) GetPromo(w http.ResponseWriter, r *http.Request) {
	promo, err := h.Promos.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.fail(w, "GetPromo", err)
		return
	}
	h.writeJSON(w, http.StatusOK, promo)
}

func (h *Handler) CreatePromo(w http.ResponseWriter, r *http.Request) {
	var in promos.PromoInput
	if !h.decode(w, r, &in) {
		return
	}
	promo, err := h.Promos.Create(r.Context(), in)
	if err != nil {
		h.fail(w, "CreatePromo", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, promo)
}

func (h *Handler) UpdatePromo(w http.ResponseWriter, r *http.Request) {
	var in promos.PromoInput
	if !h.decode(w, r, &in) {
		return
	}
	promo, err := h.Promos.Update(r.Context(), chi.URLParam(r, "code"), in)
	if err != nil {
		h.fail(w, "UpdatePromo", err)
		return
	}
	h.writeJSON(w, http.StatusOK, promo)
}

func (h *Handler) DeletePromo(w http.ResponseWriter, r *http.Request) {
	if err := h.Promos.Delete(r.Context(), chi.URLParam(r, "code")); err != nil {
		h.fail(w, "DeletePromo", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------- INVENTORY ----------------

func (h *Handler) ListInventory(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Store.ListInventory(r.Context())
	if err != nil {
		h.fail(w, "ListInventory", err)
		return
	}
	h.writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) UpsertInventory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Capacity       int   `json:"capacity"`
		UnitPriceMinor int64 `json:"unit_price_minor"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	tier := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "tier")))
	if tier == "" || req.Capacity < 0 || req.UnitPriceMinor <= 0 {
		h.writeError(w, http.StatusBadRequest, "tier, capacity >= 0 and unit_price_minor > 0 are required")
		return
	}

	row := &models.InventoryRow{Tier: tier, Capacity: req.Capacity, UnitPriceMinor: req.UnitPriceMinor}
	if err := h.Store.UpsertInventory(r.Context(), row); err != nil {
		h.fail(w, "UpsertInventory", err)
		return
	}
	h.writeJSON(w, http.StatusOK, row)
}

// ---------------- ORDERS ----------------

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	orders, err := h.Store.ListOrders(r.Context(), limit, offset)
	if err != nil {
		h.fail(w, "ListOrders", err)
		return
	}
	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) AdminGetOrder(w http.ResponseWriter, r *http.Request) {
	view, err := h.Reconcile.OrderView(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		h.fail(w, "AdminGetOrder", err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// ResendEmail accepts an optional {"to": "..."} override. An empty body is
// allowed.
func (h *Handler) ResendEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		To string `json:"to"`
	}
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	orderID := chi.URLParam(r, "orderId")
	if err := h.Reconcile.ResendEmail(r.Context(), orderID, req.To); err != nil {
		h.fail(w, "ResendEmail", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "order_id": orderID})
}

// ---------------- DIAGNOSTICS ----------------

type lastOrder struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

type paymentDiagnostics struct {
	Stripe              payment.Diagnostics `json:"stripe"`
	WebhookSecretSource string              `json:"webhook_secret_source"`
	SMTPConfigured      bool                `json:"smtp_configured"`
	OrderCount          int                 `json:"order_count"`
	LastOrder           *lastOrder          `json:"last_order"`
}

func (h *Handler) PaymentDiagnostics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out := paymentDiagnostics{
		Stripe:         h.Payments.Diagnostics(ctx),
		SMTPConfigured: h.Reconcile.EmailEnabled(),
	}
	_, out.WebhookSecretSource, _ = h.Webhooks.Secret(ctx)

	count, err := h.Store.CountOrders(ctx)
	if err != nil {
		h.fail(w, "PaymentDiagnostics", err)
		return
	}
	out.OrderCount = count

	latest, err := h.Store.LatestOrder(ctx)
	switch {
	case err == nil:
		out.LastOrder = &lastOrder{ID: latest.ID, CreatedAt: latest.CreatedAt}
	case !errors.Is(err, store.ErrNotFound):
		h.fail(w, "PaymentDiagnostics", err)
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

// ---------------- SITE CONFIG ----------------

func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !editableConfig[key] {
		h.writeError(w, http.StatusNotFound, "unknown config key "+key)
		return
	}
	cfg, err := h.Store.GetConfig(r.Context(), key)
	if err != nil {
		h.fail(w, "GetConfig", err)
		return
	}
	h.writeJSON(w, http.StatusOK, present(cfg))
}

func (h *Handler) PutConfig(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !editableConfig[key] {
		h.writeError(w, http.StatusNotFound, "unknown config key "+key)
		return
	}
	var req struct {
		Value string `json:"value"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	cfg, err := h.Store.SetConfig(r.Context(), key, strings.TrimSpace(req.Value))
	if err != nil {
		h.fail(w, "PutConfig", err)
		return
	}
	h.Logger.LogSecurity("CONFIG_CHANGED", key)
	h.writeJSON(w, http.StatusOK, present(cfg))
}

// present masks secret values down to their last four characters.
func present(cfg *models.SiteConfig) *models.SiteConfig {
	if !secretConfig[cfg.Key] {
		return cfg
	}
	out := *cfg
	if n := len(out.Value); n > 4 {
		out.Value = strings.Repeat("*", n-4) + out.Value[n-4:]
	} else if n > 0 {
		out.Value = "****"
	}
	return &out
}
