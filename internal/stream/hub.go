// Package stream fans telemetry frames out to connected subscribers.
package stream

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"dronevis/internal/telemetry"
)

// Message types exchanged with subscribers.
const (
	TypeTelemetry  = "telemetry_update"
	TypeRegistered = "registered"
	TypeError      = "error"
	TypePong       = "pong"
)

// Message is the envelope written to subscribers.
type Message struct {
	Type  string `json:"type" msgpack:"type"`
	Data  any    `json:"data,omitempty" msgpack:"data,omitempty"`
	Error string `json:"error,omitempty" msgpack:"error,omitempty"`
}

// Conn delivers messages to one subscriber. Send must be safe to call from
// multiple goroutines.
type Conn interface {
	Send(Message) error
	Close() error
}

// Subscription is a registered subscriber handle.
type Subscription struct {
	ID   string
	conn Conn
}

// Send writes m to this subscriber only.
func (s *Subscription) Send(m Message) error { return s.conn.Send(m) }

// Hub keeps the set of live subscriptions. A subscription whose delivery
// fails is dropped and its connection closed.
type Hub struct {
	mu   sync.Mutex
	subs map[string]*Subscription
	log  *slog.Logger
}

// NewHub returns an empty hub. A nil logger discards output.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Hub{subs: make(map[string]*Subscription), log: log}
}

// Subscribe registers c and returns its handle.
func (h *Hub) Subscribe(c Conn) *Subscription {
	sub := &Subscription{ID: uuid.NewString(), conn: c}
	h.mu.Lock()
	h.subs[sub.ID] = sub
	n := len(h.subs)
	h.mu.Unlock()
	h.log.Debug("subscriber added", "subscription", sub.ID, "subscribers", n)
	return sub
}

// Unsubscribe removes sub. It reports whether sub was still registered.
func (h *Hub) Unsubscribe(sub *Subscription) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub.ID]; !ok {
		return false
	}
	delete(h.subs, sub.ID)
	return true
}

// Len is the number of registered subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Publish sends f to every subscriber and returns the number of successful
// deliveries. Delivery happens outside the hub lock.
func (h *Hub) Publish(f telemetry.Frame) int {
	return h.Broadcast(Message{Type: TypeTelemetry, Data: f})
}

// Broadcast sends m to every subscriber.
func (h *Hub) Broadcast(m Message) int {
	h.mu.Lock()
	subs := make([]*Subscription, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	delivered := 0
	for _, s := range subs {
		if err := s.conn.Send(m); err != nil {
			if h.Unsubscribe(s) {
				h.log.Debug("subscriber dropped", "subscription", s.ID, "err", err)
			}
			_ = s.conn.Close()
			continue
		}
		delivered++
	}
	return delivered
}
