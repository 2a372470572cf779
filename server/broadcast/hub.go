// Package broadcast fans mutation diffs out to connected clients.
// Delivery is best-effort: a subscriber that cannot keep up misses
// messages, it never blocks the publisher.
package broadcast

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/lithammer/shortuuid/v4"
)

// Broadcaster publishes a message to every subscriber of a room.
// Fire-and-forget: failures drop that subscriber's message silently.
type Broadcaster interface {
	Broadcast(roomID string, message any)
}

// subscriberBuffer bounds each subscriber's queue. A full queue means
// the subscriber is too slow; the message is dropped for it.
const subscriberBuffer = 16

// Subscription is one client's attachment to a room. Receive from C
// until it is closed; call Close to detach.
type Subscription struct {
	ID string
	C  <-chan []byte

	hub    *Hub
	roomID string
	ch     chan []byte
	once   sync.Once
}

// Close detaches the subscription from its room.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.unsubscribe(s.roomID, s.ID)
		close(s.ch)
	})
}

// Hub is the in-process Broadcaster. Rooms are created on first
// subscribe and removed when their last subscriber leaves.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*Subscription
}

// NewHub creates a new broadcast hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[string]*Subscription)}
}

// Subscribe attaches a new subscriber to the room.
func (h *Hub) Subscribe(roomID string) *Subscription {
	sub := &Subscription{
		ID:     shortuuid.New(),
		hub:    h,
		roomID: roomID,
		ch:     make(chan []byte, subscriberBuffer),
	}
	sub.C = sub.ch

	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[roomID]
	if !ok {
		room = make(map[string]*Subscription)
		h.rooms[roomID] = room
	}
	room[sub.ID] = sub
	return sub
}

func (h *Hub) unsubscribe(roomID, subID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(room, subID)
	if len(room) == 0 {
		delete(h.rooms, roomID)
	}
}

// Broadcast publishes the message to every subscriber of the room.
func (h *Hub) Broadcast(roomID string, message any) {
	data, err := json.Marshal(message)
	if err != nil {
		slog.Warn("failed to marshal broadcast message", "room_id", roomID, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.rooms[roomID] {
		select {
		case sub.ch <- data:
		default:
			// Slow subscriber: drop silently.
		}
	}
}

// SubscriberCount reports how many subscribers a room currently has.
func (h *Hub) SubscriberCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}
