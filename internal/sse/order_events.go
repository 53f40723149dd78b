// Package sse fans reconciled orders out to Server-Sent Events clients of
// this instance.
package sse

import (
	"context"
	"sync"
	"time"
)

// OrderEvent is sent once per order, when its tickets are first created.
type OrderEvent struct {
	OrderID          string         `json:"order_id"`
	AmountTotalMinor int64          `json:"amount_total_minor"`
	Currency         string         `json:"currency"`
	Tickets          int            `json:"tickets"`
	Tiers            map[string]int `json:"tiers,omitempty"`
	PromoCode        string         `json:"promo_code,omitempty"`
	OccurredAt       time.Time      `json:"occurred_at"`
}

// OrderEventEmitter manages SSE subscribers. Order clients wait for a single
// order; feed clients receive every order.
type OrderEventEmitter struct {
	orderClients     map[string][]chan OrderEvent
	orderClientMutex sync.RWMutex

	feedClients     []chan OrderEvent
	feedClientMutex sync.RWMutex
}

func NewOrderEventEmitter() *OrderEventEmitter {
	return &OrderEventEmitter{
		orderClients: make(map[string][]chan OrderEvent),
	}
}

// SubscribeToOrder registers a client for one order. The channel is closed
// once ctx is done.
func (e *OrderEventEmitter) SubscribeToOrder(ctx context.Context, orderID string) <-chan OrderEvent {
	clientChan := make(chan OrderEvent, 1)

	e.orderClientMutex.Lock()
	e.orderClients[orderID] = append(e.orderClients[orderID], clientChan)
	e.orderClientMutex.Unlock()

	go func() {
		<-ctx.Done()
		e.removeOrderClient(orderID, clientChan)
	}()

	return clientChan
}

// SubscribeToFeed registers a client for every order.
func (e *OrderEventEmitter) SubscribeToFeed(ctx context.Context) <-chan OrderEvent {
	clientChan := make(chan OrderEvent, 10)

	e.feedClientMutex.Lock()
	e.feedClients = append(e.feedClients, clientChan)
	e.feedClientMutex.Unlock()

	go func() {
		<-ctx.Done()
		e.removeFeedClient(clientChan)
	}()

	return clientChan
}

// EmitOrder broadcasts without blocking; a client whose buffer is full misses
// the event.
func (e *OrderEventEmitter) EmitOrder(event OrderEvent) {
	e.orderClientMutex.RLock()
	for _, clientChan := range e.orderClients[event.OrderID] {
		select {
		case clientChan <- event:
		default:
		}
	}
	e.orderClientMutex.RUnlock()

	e.feedClientMutex.RLock()
	for _, clientChan := range e.feedClients {
		select {
		case clientChan <- event:
		default:
		}
	}
	e.feedClientMutex.RUnlock()
}

func (e *OrderEventEmitter) removeOrderClient(orderID string, clientChan chan OrderEvent) {
	e.orderClientMutex.Lock()
	defer e.orderClientMutex.Unlock()

	clients := e.orderClients[orderID]
	for i, ch := range clients {
		if ch == clientChan {
			e.orderClients[orderID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}
	if len(e.orderClients[orderID]) == 0 {
		delete(e.orderClients, orderID)
	}
}

func (e *OrderEventEmitter) removeFeedClient(clientChan chan OrderEvent) {
	e.feedClientMutex.Lock()
	defer e.feedClientMutex.Unlock()

	for i, ch := range e.feedClients {
		if ch == clientChan {
			e.feedClients = append(e.feedClients[:i], e.feedClients[i+1:]...)
			close(clientChan)
			break
		}
	}
}

// OrderClientCount returns the number of clients waiting for an order
func (e *OrderEventEmitter) OrderClientCount(orderID string) int {
	e.orderClientMutex.RLock()
	defer e.orderClientMutex.RUnlock()
	return len(e.orderClients[orderID])
}

// FeedClientCount returns the number of feed subscribers
func (e *OrderEventEmitter) FeedClientCount() int {
	e.feedClientMutex.RLock()
	defer e.feedClientMutex.RUnlock()
	return len(e.feedClients)
}
