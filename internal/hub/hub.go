// Package hub implements the real-time fanout channel for restock alerts.
// Connected clients subscribe over WebSocket; published alerts are delivered
// best-effort, at-most-once, to either every subscriber (broadcast) or the
// subscribers of a single principal (targeted). Nothing is persisted: a
// client that connects after an event was published must use the recent feed
// to catch up.
package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// EventRestock is the event name carried by every fanout message.
	EventRestock = "restock"

	// sendBuffer is the per-subscriber outbound queue depth. A subscriber
	// whose queue is full has the message dropped rather than blocking the
	// publish path.
	sendBuffer = 32

	// writeWait is the maximum time allowed to write a message to a peer.
	writeWait = 10 * time.Second
	// pongWait is the maximum time to wait for a pong before dropping a peer.
	pongWait = 60 * time.Second
	// pingPeriod is the keepalive interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// Envelope is the wire message shape delivered to subscribers.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Subscription represents one connected subscriber. Its lifecycle is tied to
// the connection: Register on open, Unregister on close.
type Subscription struct {
	ID          string
	PrincipalID string
	send        chan []byte
}

// Messages returns the subscriber's outbound message channel. The channel is
// closed when the subscription is unregistered.
func (s *Subscription) Messages() <-chan []byte {
	return s.send
}

// Hub is a concurrency-safe subscriber registry with broadcast and targeted
// publish. All methods are safe for concurrent use.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscription
	byPrincipal map[string]map[string]*Subscription
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{
		subscribers: make(map[string]*Subscription),
		byPrincipal: make(map[string]map[string]*Subscription),
	}
}

// Register adds a subscriber for the given principal and returns its
// subscription. The same principal may hold several concurrent subscriptions
// (one per connection).
func (h *Hub) Register(principalID string) *Subscription {
	sub := &Subscription{
		ID:          uuid.NewString(),
		PrincipalID: principalID,
		send:        make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	h.subscribers[sub.ID] = sub
	if h.byPrincipal[principalID] == nil {
		h.byPrincipal[principalID] = make(map[string]*Subscription)
	}
	h.byPrincipal[principalID][sub.ID] = sub
	h.mu.Unlock()

	slog.Info("Subscriber registered", "subscription_id", sub.ID, "principal_id", principalID)
	return sub
}

// Unregister removes a subscription and closes its message channel.
// Unregistering twice is a no-op.
func (h *Hub) Unregister(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[sub.ID]; !ok {
		return
	}
	delete(h.subscribers, sub.ID)
	if principal := h.byPrincipal[sub.PrincipalID]; principal != nil {
		delete(principal, sub.ID)
		if len(principal) == 0 {
			delete(h.byPrincipal, sub.PrincipalID)
		}
	}
	close(sub.send)

	slog.Info("Subscriber unregistered", "subscription_id", sub.ID, "principal_id", sub.PrincipalID)
}

// SubscriberCount returns the number of currently connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Broadcast delivers an event to every currently connected subscriber.
func (h *Hub) Broadcast(event string, data any) {
	payload, err := marshalEnvelope(event, data)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subscribers {
		h.deliver(sub, payload)
	}
}

// SendToPrincipal delivers an event only to the subscriptions registered
// under the given principal. Unknown principals are a no-op.
func (h *Hub) SendToPrincipal(principalID, event string, data any) {
	payload, err := marshalEnvelope(event, data)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.byPrincipal[principalID] {
		h.deliver(sub, payload)
	}
}

// deliver enqueues a payload without blocking. A full queue drops the message
// for that subscriber; delivery is best-effort by contract.
func (h *Hub) deliver(sub *Subscription, payload []byte) {
	select {
	case sub.send <- payload:
	default:
		slog.Warn("Dropping message for slow subscriber",
			"subscription_id", sub.ID,
			"principal_id", sub.PrincipalID,
		)
	}
}

func marshalEnvelope(event string, data any) ([]byte, error) {
	payload, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		slog.Error("Failed to marshal fanout envelope", "event", event, "error", err)
		return nil, err
	}
	return payload, nil
}

// ServeConn registers a subscription for the principal and pumps messages to
// the WebSocket connection until the peer disconnects or the write fails.
// It blocks for the lifetime of the connection and always unregisters before
// returning.
func (h *Hub) ServeConn(principalID string, conn *websocket.Conn) {
	sub := h.Register(principalID)
	defer h.Unregister(sub)
	defer conn.Close()

	// Read pump: the channel is write-only for clients, so inbound frames are
	// discarded. Reading is still required to process control frames and to
	// notice the peer going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload, ok := <-sub.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				slog.Warn("Failed to write to subscriber, dropping connection",
					"subscription_id", sub.ID,
					"error", err,
				)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
