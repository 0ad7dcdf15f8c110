package session

import (
	"fmt"
	"sync"
	"time"
)

// Table holds the live sessions, indexed by member player and by member
// connection. All methods are safe for concurrent use.
type Table struct {
	mu       sync.RWMutex
	sessions map[SessionID]*Session
	byPlayer map[PlayerID]SessionID
	byConn   map[string]SessionID
	hooks    []Hook
	seq      uint64
	now      func() time.Time
}

// NewTable creates an empty Table notifying hooks of lifecycle changes.
func NewTable(hooks ...Hook) *Table {
	return &Table{
		sessions: make(map[SessionID]*Session),
		byPlayer: make(map[PlayerID]SessionID),
		byConn:   make(map[string]SessionID),
		hooks:    hooks,
		now:      time.Now,
	}
}

// Create inserts the session hosted by hostID with guestID.
//
// Precondition: neither player is in a live session; a violation returns
// ErrPlayerInSession and leaves the table unchanged.
func (t *Table) Create(hostID PlayerID, hostConn Conn, guestID PlayerID, guestConn Conn) (Session, error) {
	t.mu.Lock()
	if hostID == guestID {
		t.mu.Unlock()
		return Session{}, fmt.Errorf("player %d paired with itself: %w", hostID, ErrPlayerInSession)
	}
	for _, id := range []PlayerID{hostID, guestID} {
		if sid, ok := t.byPlayer[id]; ok {
			t.mu.Unlock()
			return Session{}, fmt.Errorf("player %d in session %s: %w", id, sid, ErrPlayerInSession)
		}
	}

	t.seq++
	s := &Session{
		ID:        NewSessionID(hostID, guestID, t.seq),
		HostID:    hostID,
		GuestID:   guestID,
		HostConn:  hostConn,
		GuestConn: guestConn,
		CreatedAt: t.now(),
	}
	t.sessions[s.ID] = s
	t.byPlayer[hostID] = s.ID
	t.byPlayer[guestID] = s.ID
	t.byConn[hostConn.ID()] = s.ID
	t.byConn[guestConn.ID()] = s.ID
	created := *s
	t.mu.Unlock()

	for _, h := range t.hooks {
		h.SessionCreated(created)
	}
	return created, nil
}

// GetByPlayer returns the session id belongs to.
func (t *Table) GetByPlayer(id PlayerID) (Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	sid, ok := t.byPlayer[id]
	if !ok {
		return Session{}, false
	}
	return *t.sessions[sid], true
}

// RemoveByConnection removes the session conn is a member of and returns it.
func (t *Table) RemoveByConnection(conn Conn, reason EndReason) (Session, bool) {
	t.mu.Lock()
	sid, ok := t.byConn[conn.ID()]
	if !ok {
		t.mu.Unlock()
		return Session{}, false
	}
	s := t.removeLocked(sid)
	t.mu.Unlock()

	t.ended(s, reason)
	return s, true
}

// RemoveByPlayer removes the session id is a member of and returns it.
func (t *Table) RemoveByPlayer(id PlayerID, reason EndReason) (Session, bool) {
	t.mu.Lock()
	sid, ok := t.byPlayer[id]
	if !ok {
		t.mu.Unlock()
		return Session{}, false
	}
	s := t.removeLocked(sid)
	t.mu.Unlock()

	t.ended(s, reason)
	return s, true
}

// Len returns the number of live sessions.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

func (t *Table) removeLocked(sid SessionID) Session {
	s := t.sessions[sid]
	delete(t.sessions, sid)
	delete(t.byPlayer, s.HostID)
	delete(t.byPlayer, s.GuestID)
	delete(t.byConn, s.HostConn.ID())
	delete(t.byConn, s.GuestConn.ID())
	return *s
}

func (t *Table) ended(s Session, reason EndReason) {
	for _, h := range t.hooks {
		h.SessionEnded(s, reason)
	}
}
