package analytics_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-checkout/internal/analytics"
	"ms-checkout/internal/auth"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
)

type Reporter interface {
	GetSalesAnalytics(ctx context.Context, f analytics.Filter) (*analytics.SalesAnalytics, error)
}

// Handler handles analytics HTTP endpoints
type Handler struct {
	Service Reporter
	Logger  *logger.Logger
}

// NewHandler creates a new analytics handler
func NewHandler(service Reporter, logger *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: logger}
}

// RegisterRoutes registers the analytics routes on a chi router. The caller
// mounts it behind the admin middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/analytics", func(r chi.Router) {
		r.Get("/sales", h.GetSalesAnalytics)
	})
}

func sendJSONResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func sendError(w http.ResponseWriter, status int, msg string) {
	sendJSONResponse(w, status, map[string]string{"error": msg})
}

// GetSalesAnalytics serves GET /analytics/sales?status=&from=&to= with
// dates as YYYY-MM-DD. to is inclusive of the whole day.
func (h *Handler) GetSalesAnalytics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := analytics.Filter{Status: models.OrderStatus(q.Get("status"))}

	switch filter.Status {
	case "", models.OrderStatusPaid, models.OrderStatusRefunded:
	default:
		sendError(w, http.StatusBadRequest, "status must be paid or refunded")
		return
	}

	if v := q.Get("from"); v != "" {
		from, err := time.Parse("2006-01-02", v)
		if err != nil {
			sendError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
			return
		}
		filter.From = &from
	}
	if v := q.Get("to"); v != "" {
		to, err := time.Parse("2006-01-02", v)
		if err != nil {
			sendError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
			return
		}
		to = to.AddDate(0, 0, 1)
		filter.To = &to
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		sendError(w, http.StatusBadRequest, "from must not be after to")
		return
	}

	h.Logger.Info("ANALYTICS", fmt.Sprintf("Sales report requested by %s (status=%q from=%q to=%q)",
		auth.Subject(r.Context()), filter.Status, q.Get("from"), q.Get("to")))

	report, err := h.Service.GetSalesAnalytics(r.Context(), filter)
	if err != nil {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("Failed to build sales report: %v", err))
		sendError(w, http.StatusInternalServerError, "Failed to retrieve analytics")
		return
	}
	sendJSONResponse(w, http.StatusOK, report)
}
