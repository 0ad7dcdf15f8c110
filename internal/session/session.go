// Package session holds the matchmaking state of the gateway: the connection
// registry, the waiting queue and the table of live two-party sessions.
package session

import (
	"errors"
	"fmt"
	"time"
)

// PlayerID identifies a player across connections. It is issued by the
// identity verifier and never generated here.
type PlayerID int64

// Conn is an opaque handle to a live transport connection.
type Conn interface {
	ID() string
}

// SessionID identifies a session. It names the host and guest and carries
// a sequence number, so a rematch of the same pair gets a fresh ID.
type SessionID string

// NewSessionID returns the ID of the n-th session, hosted by host with guest.
func NewSessionID(host, guest PlayerID, n uint64) SessionID {
	return SessionID(fmt.Sprintf("%d:%d:%d", host, guest, n))
}

// EndReason says why a session left the table.
type EndReason string

const (
	// EndDisconnect means one member's connection dropped.
	EndDisconnect EndReason = "disconnect"
	// EndConcluded means a member reported the match as finished.
	EndConcluded EndReason = "concluded"
	// EndReplaced means a member reconnected and the old connection was evicted.
	EndReplaced EndReason = "replaced"
)

// ErrPlayerInSession is returned when a session would include a player that
// already belongs to a live session.
var ErrPlayerInSession = errors.New("player already in a session")

// Session is a live pairing of two players.
type Session struct {
	ID        SessionID
	HostID    PlayerID
	GuestID   PlayerID
	HostConn  Conn
	GuestConn Conn
	CreatedAt time.Time
}

// Conns returns the host and guest connections.
func (s Session) Conns() []Conn {
	return []Conn{s.HostConn, s.GuestConn}
}

// Peer returns the member connection that is not conn.
func (s Session) Peer(conn Conn) (Conn, PlayerID) {
	if s.HostConn.ID() == conn.ID() {
		return s.GuestConn, s.GuestID
	}
	return s.HostConn, s.HostID
}

// Has reports whether id is a member of the session.
func (s Session) Has(id PlayerID) bool {
	return s.HostID == id || s.GuestID == id
}

// Member returns the player that owns conn in the session.
func (s Session) Member(conn Conn) (PlayerID, bool) {
	switch conn.ID() {
	case s.HostConn.ID():
		return s.HostID, true
	case s.GuestConn.ID():
		return s.GuestID, true
	}
	return 0, false
}

// Hook receives session lifecycle notifications. Implementations must not
// block; they are called while the gateway holds its matchmaking lock.
type Hook interface {
	SessionCreated(s Session)
	SessionEnded(s Session, reason EndReason)
}
