package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-checkout/internal/reconcile"
	"ms-checkout/internal/sse"
)

const (
	defaultStreamTimeout = 2 * time.Minute
	keepAliveInterval    = 15 * time.Second
)

type sseWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

// startSSE sets the stream headers and lifts the server write deadline for
// the life of the stream.
func startSSE(w http.ResponseWriter, lifetime time.Duration) *sseWriter {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	if lifetime > 0 {
		_ = rc.SetWriteDeadline(time.Now().Add(lifetime + 5*time.Second))
	} else {
		_ = rc.SetWriteDeadline(time.Time{})
	}
	return &sseWriter{w: w, rc: rc}
}

func (s *sseWriter) event(name string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, payload); err != nil {
		return err
	}
	return s.rc.Flush()
}

func (s *sseWriter) ping() error {
	if _, err := fmt.Fprint(s.w, ": ping\n\n"); err != nil {
		return err
	}
	return s.rc.Flush()
}

// OrderStream lets the confirmation page wait for the webhook instead of
// polling. It sends one "order" event and closes, or "timeout" after
// StreamTimeout so the page can fall back to POST /api/checkout/reconcile.
func (h *Handler) OrderStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")
	if h.Events == nil {
		h.writeError(w, http.StatusNotFound, "Order events are not enabled")
		return
	}

	timeout := h.StreamTimeout
	if timeout <= 0 {
		timeout = defaultStreamTimeout
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	// subscribe before the lookup so a reconcile in between is not missed
	events := h.Events.SubscribeToOrder(ctx, id)

	view, err := h.Reconcile.OrderView(r.Context(), id)
	if err != nil && !errors.Is(err, reconcile.ErrOrderNotFound) {
		h.fail(w, "OrderStream", err)
		return
	}

	stream := startSSE(w, timeout)
	if view != nil {
		stream.event("order", view)
		return
	}

	h.Logger.Debug("SSE", fmt.Sprintf("Client waiting for order %s", id))
	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				h.endOrderStream(stream, r, id)
				return
			}
			if view, err := h.Reconcile.OrderView(r.Context(), ev.OrderID); err == nil {
				stream.event("order", view)
			} else {
				stream.event("order", ev)
			}
			return
		case <-keepAlive.C:
			if err := stream.ping(); err != nil {
				return
			}
		case <-ctx.Done():
			h.endOrderStream(stream, r, id)
			return
		}
	}
}

func (h *Handler) endOrderStream(stream *sseWriter, r *http.Request, id string) {
	if r.Context().Err() != nil {
		h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected while waiting for order %s", id))
		return
	}
	stream.event("timeout", map[string]string{"order_id": id})
}

// AdminOrderFeed streams every newly reconciled order until the client leaves.
func (h *Handler) AdminOrderFeed(w http.ResponseWriter, r *http.Request) {
	if h.Events == nil {
		h.writeError(w, http.StatusNotFound, "Order events are not enabled")
		return
	}

	ctx := r.Context()
	events := h.Events.SubscribeToFeed(ctx)
	stream := startSSE(w, 0)
	if err := stream.event("connected", map[string]string{"status": "connected"}); err != nil {
		return
	}
	h.Logger.Info("SSE", "Admin client connected to the order feed")

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := stream.event("order", ev); err != nil {
				return
			}
		case <-keepAlive.C:
			if err := stream.ping(); err != nil {
				return
			}
		case <-ctx.Done():
			h.Logger.Debug("SSE", "Admin client disconnected from the order feed")
			return
		}
	}
}

var _ OrderEvents = (*sse.OrderEventEmitter)(nil)
