// Package ws is the realtime layer: the wire event catalogue, the
// per-connection client pumps, and the Hub that routes events to rooms.
package ws

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Hub is the room router. It owns the only shared mutable state in the
// realtime layer: the map from user id to that user's live connections
// (one room per user, zero or more connections per room for multi-device).
//
// All access goes through the methods below; the maps never escape.
// Delivery is at-most-once: an event addressed to a room with no
// connections is dropped. Durability, where required, is the caller's
// job before it asks for delivery.
type Hub struct {
	logger *zap.Logger

	mu    sync.RWMutex
	rooms map[uuid.UUID]map[*Client]struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger: logger,
		rooms:  make(map[uuid.UUID]map[*Client]struct{}),
	}
}

// Join binds a connection to its user's room and returns how many
// connections that room now holds. A return of 1 means the user just
// came online.
func (h *Hub) Join(userID uuid.UUID, c *Client) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[userID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[userID] = room
	}
	room[c] = struct{}{}

	h.logger.Debug("connection joined room",
		zap.String("user_id", userID.String()),
		zap.String("conn_id", c.ID.String()),
		zap.Int("room_size", len(room)))
	return len(room)
}

// Leave unbinds a connection, closes its outbound queue, and returns how
// many connections remain in the room. A return of 0 means the user's
// last connection is gone — the caller uses that to flip presence.
func (h *Hub) Leave(userID uuid.UUID, c *Client) int {
	h.mu.Lock()
	room, ok := h.rooms[userID]
	if ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, userID)
		}
	}
	remaining := len(room)
	h.mu.Unlock()

	c.Close()

	h.logger.Debug("connection left room",
		zap.String("user_id", userID.String()),
		zap.String("conn_id", c.ID.String()),
		zap.Int("remaining", remaining))
	return remaining
}

// ConnectionCount reports how many live connections a user has.
func (h *Hub) ConnectionCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userID])
}

// DeliverToUser sends an event to every connection currently bound to
// the user's room and returns how many accepted it. No room, no
// delivery — the event is dropped.
func (h *Hub) DeliverToUser(userID uuid.UUID, evt Event) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[userID]))
	for c := range h.rooms[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	delivered := 0
	var stalled []*Client
	for _, c := range targets {
		if c.TrySend(evt) {
			delivered++
		} else {
			stalled = append(stalled, c)
		}
	}
	h.evict(stalled)
	return delivered
}

// Broadcast sends an event to every connection on this instance,
// across all rooms. Used for platform-wide presence events.
func (h *Hub) Broadcast(evt Event) {
	h.mu.RLock()
	targets := make([]*Client, 0)
	for _, room := range h.rooms {
		for c := range room {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	var stalled []*Client
	for _, c := range targets {
		if !c.TrySend(evt) {
			stalled = append(stalled, c)
		}
	}
	h.evict(stalled)
}

// RelayTyping forwards a typing indicator to the target user's room,
// tagged with the sender. Pure pass-through: nothing is persisted, and a
// target with no connections simply misses it.
func (h *Hub) RelayTyping(from, to uuid.UUID, starting bool) {
	h.DeliverToUser(to, TypingEvent(from, starting))
}

// evict removes connections whose outbound buffer was full. A client
// that can't drain its queue is effectively dead; keeping it bound
// would silently eat every future delivery to its room.
func (h *Hub) evict(stalled []*Client) {
	for _, c := range stalled {
		h.logger.Warn("evicting stalled connection",
			zap.String("user_id", c.UserID.String()),
			zap.String("conn_id", c.ID.String()))
		h.Leave(c.UserID, c)
	}
}
