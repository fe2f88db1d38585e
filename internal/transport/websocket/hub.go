package websocket

import (
	"sync"

	"github.com/iamasit07/guess-master/backend/internal/domain"
	"github.com/rs/zerolog/log"
)

// Hub tracks connected clients and the session rooms they subscribed to.
// It implements the broadcaster the game and chat services publish through.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[*Client]struct{}),
	}
}

// Register adds c to the hub. A client id already in use replaces the old client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	old := h.clients[c.ID]
	if old != nil {
		h.detachLocked(old)
	}
	h.clients[c.ID] = c
	h.mu.Unlock()

	log.Debug().Str("component", "ws").Str("client", c.ID).Str("user", c.UserID.String()).Msg("client registered")
}

// Unregister removes c from every room and closes its send queue. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if h.clients[c.ID] == c {
		delete(h.clients, c.ID)
	}
	h.detachLocked(c)
	h.mu.Unlock()
}

func (h *Hub) detachLocked(c *Client) {
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Join subscribes c to room
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}
	members := h.rooms[room]
	if members == nil {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

// Leave unsubscribes c from room. Leaving a room never joined is a no-op.
func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	h.leaveLocked(c, room)
	h.mu.Unlock()
}

func (h *Hub) leaveLocked(c *Client, room string) {
	delete(c.rooms, room)
	members := h.rooms[room]
	if members == nil {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// BroadcastToRoom queues message for every subscriber of room.
// Subscribers whose queue is full are disconnected rather than waited on.
func (h *Hub) BroadcastToRoom(room string, message domain.ServerMessage) {
	var slow []*Client

	h.mu.RLock()
	for c := range h.rooms[room] {
		if !c.enqueue(message) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Warn().Str("component", "ws").Str("client", c.ID).Str("room", room).Msg("dropping slow client")
		h.Unregister(c)
	}
}

// Send queues message for a single client
func (h *Hub) Send(c *Client, message domain.ServerMessage) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return c.enqueue(message)
}

// RoomSize reports how many clients are subscribed to room
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
