package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"duelgate/internal/observability"
	"duelgate/internal/session"
	"duelgate/internal/types"
	"duelgate/internal/utils"
)

// ErrUnknownClient is returned when sending to a connection the hub does
// not hold.
var ErrUnknownClient = errors.New("unknown client")

// Hub tracks live clients and their rooms. It is the gateway's transport:
// every send is a non-blocking enqueue on the client's buffer.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*types.Client
	rooms   map[session.SessionID]map[string]*types.Client
	log     *zap.Logger
}

// NewHub creates an empty Hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*types.Client),
		rooms:   make(map[session.SessionID]map[string]*types.Client),
		log:     observability.OrNop(logger).Named("hub"),
	}
}

// Add starts tracking c.
func (h *Hub) Add(c *types.Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID()] = c
}

// Remove stops tracking c and drops it from every room.
func (h *Hub) Remove(c *types.Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c.ID())
	for room, members := range h.rooms {
		delete(members, c.ID())
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Len returns the number of tracked clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Send pushes an event to one connection.
func (h *Hub) Send(conn session.Conn, event string, payload any) error {
	h.mu.RLock()
	c, ok := h.clients[conn.ID()]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%s: %w", conn.ID(), ErrUnknownClient)
	}
	return utils.SendMessage(c, "", event, payload)
}

// JoinRoom adds conn to room.
func (h *Hub) JoinRoom(conn session.Conn, room session.SessionID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[conn.ID()]
	if !ok {
		return
	}
	members := h.rooms[room]
	if members == nil {
		members = make(map[string]*types.Client)
		h.rooms[room] = members
	}
	members[c.ID()] = c
}

// LeaveRoom removes conn from room.
func (h *Hub) LeaveRoom(conn session.Conn, room session.SessionID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, conn.ID())
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// BroadcastToRoom pushes an event to every member of room. A member whose
// buffer is full or closed misses the event; the others still get it.
func (h *Hub) BroadcastToRoom(room session.SessionID, event string, payload any) {
	data, err := json.Marshal(utils.OutgoingMessage{Type: event, Data: payload})
	if err != nil {
		h.log.Error("encoding broadcast", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[room] {
		if err := c.Enqueue(data); err != nil {
			h.log.Warn("broadcast dropped",
				zap.String("room", string(room)),
				zap.String("conn", c.ID()),
				zap.String("event", event),
				zap.Error(err))
		}
	}
}

// Close shuts the outbound side of conn. Its write pump then sends a close
// frame and tears the connection down.
func (h *Hub) Close(conn session.Conn) {
	h.mu.RLock()
	c, ok := h.clients[conn.ID()]
	h.mu.RUnlock()
	if ok {
		c.CloseSend()
	}
}
