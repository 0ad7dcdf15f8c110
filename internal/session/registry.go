package session

import "sync"

// Registry maps each live connection to the player that owns it.
// All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	byPlayer map[PlayerID]Conn
	byConn   map[string]PlayerID
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byPlayer: make(map[PlayerID]Conn),
		byConn:   make(map[string]PlayerID),
	}
}

// Register maps id to conn. A previous connection of the same player is
// replaced and returned so the caller can evict it.
func (r *Registry) Register(id PlayerID, conn Conn) (prev Conn, replaced bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, replaced = r.byPlayer[id]
	if replaced {
		delete(r.byConn, prev.ID())
	}
	r.byPlayer[id] = conn
	r.byConn[conn.ID()] = id
	return prev, replaced && prev.ID() != conn.ID()
}

// UnregisterByConnection removes the mapping owned by conn and returns the
// player it belonged to. Unknown connections report false.
func (r *Registry) UnregisterByConnection(conn Conn) (PlayerID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byConn[conn.ID()]
	if !ok {
		return 0, false
	}
	delete(r.byConn, conn.ID())
	delete(r.byPlayer, id)
	return id, true
}

// IdentityOf returns the player registered on conn.
func (r *Registry) IdentityOf(conn Conn) (PlayerID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byConn[conn.ID()]
	return id, ok
}

// ConnOf returns the connection currently registered for id.
func (r *Registry) ConnOf(id PlayerID) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.byPlayer[id]
	return conn, ok
}

// Len returns the number of registered players.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byPlayer)
}
