// Package gateway orchestrates the matchmaking core in response to
// connection events: it is the only part that talks to the transport.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"duelgate/internal/auth"
	"duelgate/internal/handle/game"
	"duelgate/internal/observability"
	"duelgate/internal/session"
)

// Events pushed to clients. Accepted frames go out as game.EventNewFrame.
const (
	EventConnected    = "connected"
	EventWaiting      = "waiting"
	EventNewSession   = "newSession"
	EventOpponentLeft = "opponentLeft"
	EventGameOver     = "gameOver"
)

var (
	// ErrNotRegistered is returned for requests on a connection that never
	// completed Connect, or that has since been replaced.
	ErrNotRegistered = errors.New("connection not registered")
	// ErrAlreadyInSession is returned for a match request from a player
	// that is already playing.
	ErrAlreadyInSession = errors.New("player already in session")
	// ErrNotInSession is returned when ending a game the player is not in.
	ErrNotInSession = errors.New("player not in session")
)

// Transport delivers events to connections and groups them into rooms.
// Implementations must not block and must not call back into the Gateway.
type Transport interface {
	game.Broadcaster
	Send(conn session.Conn, event string, payload any) error
	JoinRoom(conn session.Conn, room session.SessionID)
	LeaveRoom(conn session.Conn, room session.SessionID)
	Close(conn session.Conn)
}

// ConnectedEvent is the payload of EventConnected.
type ConnectedEvent struct {
	PlayerID session.PlayerID `json:"playerId"`
}

// NewSessionEvent is the payload of EventNewSession.
type NewSessionEvent struct {
	SessionID session.SessionID `json:"sessionId"`
	HostID    session.PlayerID  `json:"hostId"`
	GuestID   session.PlayerID  `json:"guestId"`
}

// GameOverEvent is the payload of EventGameOver.
type GameOverEvent struct {
	SessionID session.SessionID `json:"sessionId"`
	EndedBy   session.PlayerID  `json:"endedBy"`
}

// Status is where a player currently is.
type Status string

// Player statuses.
const (
	StatusOffline   Status = "offline"
	StatusWaiting   Status = "waiting"
	StatusInSession Status = "in_session"
)

// Stats counts the entries of each structure.
type Stats struct {
	Connected int `json:"connected"`
	Waiting   int `json:"waiting"`
	Sessions  int `json:"sessions"`
	Frames    int `json:"frames"`
}

// Options configures a Gateway.
type Options struct {
	// Eligibility decides pairings; nil pairs any two players.
	Eligibility session.Eligibility
	// Hooks receive session lifecycle notifications.
	Hooks  []session.Hook
	Logger *zap.Logger
}

// Gateway wires the registry, queue, session table and frame synchronizer
// together. Connect, Disconnect, RequestMatch and Conclude are serialized
// by one lock so a match search, its removals and the session creation are
// atomic against each other and against disconnects. SubmitFrame only
// serializes per session.
type Gateway struct {
	mu        sync.Mutex
	verifier  auth.Verifier
	transport Transport
	registry  *session.Registry
	queue     *session.Queue
	sessions  *session.Table
	frames    *game.Synchronizer
	log       *zap.Logger
}

// New creates a Gateway.
func New(verifier auth.Verifier, transport Transport, opts Options) *Gateway {
	log := observability.OrNop(opts.Logger)
	return &Gateway{
		verifier:  verifier,
		transport: transport,
		registry:  session.NewRegistry(),
		queue:     session.NewQueue(opts.Eligibility),
		sessions:  session.NewTable(opts.Hooks...),
		frames:    game.NewSynchronizer(transport, log),
		log:       log.Named("gateway"),
	}
}

// Connect resolves token to a player, registers conn for it and places the
// player in the matchmaking queue. A failed verification closes conn and
// leaves no state behind.
//
// A player that connects again takes over: the previous connection is
// detached, its session (if any) ends with reason "replaced", and it is
// closed. A waiting player keeps its queue position.
func (g *Gateway) Connect(ctx context.Context, conn session.Conn, token string) (session.PlayerID, error) {
	id, err := g.verifier.Verify(ctx, token)
	if err != nil {
		g.log.Info("connection refused", zap.String("conn", conn.ID()), zap.Error(err))
		g.transport.Close(conn)
		return 0, fmt.Errorf("verifying connection %s: %w", conn.ID(), err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	prev, replaced := g.registry.Register(id, conn)
	if replaced {
		g.log.Info("player reconnected, replacing connection",
			zap.Int64("player", int64(id)),
			zap.String("old", prev.ID()),
			zap.String("new", conn.ID()))
		g.endSessionLocked(prev, session.EndReplaced)
	}
	g.queue.Enqueue(id, conn)
	g.send(conn, EventConnected, ConnectedEvent{PlayerID: id})

	if replaced {
		g.transport.Close(prev)
	}
	g.log.Debug("player connected", zap.Int64("player", int64(id)), zap.String("conn", conn.ID()))
	return id, nil
}

// Disconnect releases everything conn owns: its registry mapping and either
// its queue entry or its session. When a session ends this way the
// surviving player is told with EventOpponentLeft and goes back into the
// queue. Unknown and already released connections are ignored.
func (g *Gateway) Disconnect(conn session.Conn) (session.PlayerID, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, registered := g.registry.UnregisterByConnection(conn)

	if e, ok := g.queue.RemoveByConnection(conn); ok {
		g.log.Debug("waiting player left", zap.Int64("player", int64(e.Player)))
		return e.Player, true
	}
	if s, ok := g.endSessionLocked(conn, session.EndDisconnect); ok {
		id, _ = s.Member(conn)
		return id, true
	}
	return id, registered
}

// RequestMatch pairs the player on conn with the first eligible waiting
// player. The waiting player hosts. With no eligible opponent the requester
// stays (or is put back) in the queue and receives EventWaiting; ok is then
// false.
func (g *Gateway) RequestMatch(conn session.Conn) (s session.Session, ok bool, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, registered := g.registry.IdentityOf(conn)
	if !registered {
		return session.Session{}, false, ErrNotRegistered
	}
	if cur, in := g.sessions.GetByPlayer(id); in {
		return session.Session{}, false, fmt.Errorf("player %d in %s: %w", id, cur.ID, ErrAlreadyInSession)
	}

	match, found := g.queue.FindMatchAndRemove(id)
	if !found {
		g.queue.Enqueue(id, conn)
		g.send(conn, EventWaiting, struct{}{})
		return session.Session{}, false, nil
	}

	s, err = g.sessions.Create(match.Player, match.Conn, id, conn)
	if err != nil {
		g.log.Error("session invariant violated, match aborted",
			zap.Int64("host", int64(match.Player)),
			zap.Int64("guest", int64(id)),
			zap.Error(err))
		g.queue.PushFront(match)
		g.queue.Enqueue(id, conn)
		return session.Session{}, false, fmt.Errorf("creating session: %w", err)
	}

	g.frames.Open(s.ID)
	for _, c := range s.Conns() {
		g.transport.JoinRoom(c, s.ID)
	}
	g.transport.BroadcastToRoom(s.ID, EventNewSession, NewSessionEvent{
		SessionID: s.ID,
		HostID:    s.HostID,
		GuestID:   s.GuestID,
	})
	g.log.Info("session created",
		zap.String("session", string(s.ID)),
		zap.Int64("host", int64(s.HostID)),
		zap.Int64("guest", int64(s.GuestID)))
	return s, true, nil
}

// SubmitFrame offers a frame from the player on conn to its session. It
// reports whether the frame was accepted; frames from connections that are
// unknown or not in a session are dropped.
func (g *Gateway) SubmitFrame(conn session.Conn, seq uint64, payload game.Payload) (game.Frame, bool) {
	id, ok := g.registry.IdentityOf(conn)
	if !ok {
		return game.Frame{}, false
	}
	s, ok := g.sessions.GetByPlayer(id)
	if !ok {
		return game.Frame{}, false
	}
	if _, member := s.Member(conn); !member {
		return game.Frame{}, false
	}
	return g.frames.Submit(s.ID, id, seq, payload)
}

// Conclude ends the session of the player on conn. Both players receive
// EventGameOver and go back into the queue, host first.
func (g *Gateway) Conclude(conn session.Conn) (session.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, ok := g.registry.IdentityOf(conn)
	if !ok {
		return session.Session{}, ErrNotRegistered
	}
	s, ok := g.sessions.RemoveByPlayer(id, session.EndConcluded)
	if !ok {
		return session.Session{}, fmt.Errorf("player %d: %w", id, ErrNotInSession)
	}

	g.frames.Close(s.ID)
	g.transport.BroadcastToRoom(s.ID, EventGameOver, GameOverEvent{SessionID: s.ID, EndedBy: id})
	for _, c := range s.Conns() {
		g.transport.LeaveRoom(c, s.ID)
	}
	g.queue.Enqueue(s.HostID, s.HostConn)
	g.queue.Enqueue(s.GuestID, s.GuestConn)

	g.log.Info("session concluded", zap.String("session", string(s.ID)), zap.Int64("by", int64(id)))
	return s, nil
}

// Status reports where id currently is.
func (g *Gateway) Status(id session.PlayerID) Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.sessions.GetByPlayer(id); ok {
		return StatusInSession
	}
	if g.queue.Contains(id) {
		return StatusWaiting
	}
	return StatusOffline
}

// CurrentFrame returns the current frame of the session id is playing in.
func (g *Gateway) CurrentFrame(id session.PlayerID) (game.Frame, bool) {
	s, ok := g.sessions.GetByPlayer(id)
	if !ok {
		return game.Frame{}, false
	}
	return g.frames.Current(s.ID)
}

// Stats returns a consistent count of every structure.
func (g *Gateway) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Stats{
		Connected: g.registry.Len(),
		Waiting:   g.queue.Len(),
		Sessions:  g.sessions.Len(),
		Frames:    g.frames.Len(),
	}
}

// endSessionLocked ends the session conn belongs to, if any. The survivor is
// told and re-queued. Callers hold g.mu.
func (g *Gateway) endSessionLocked(conn session.Conn, reason session.EndReason) (session.Session, bool) {
	s, ok := g.sessions.RemoveByConnection(conn, reason)
	if !ok {
		return session.Session{}, false
	}
	g.frames.Close(s.ID)
	for _, c := range s.Conns() {
		g.transport.LeaveRoom(c, s.ID)
	}

	peer, peerID := s.Peer(conn)
	g.send(peer, EventOpponentLeft, struct{}{})
	g.queue.Enqueue(peerID, peer)

	g.log.Info("session ended",
		zap.String("session", string(s.ID)),
		zap.String("reason", string(reason)),
		zap.Int64("survivor", int64(peerID)))
	return s, true
}

func (g *Gateway) send(conn session.Conn, event string, payload any) {
	if err := g.transport.Send(conn, event, payload); err != nil {
		g.log.Warn("send failed",
			zap.String("conn", conn.ID()),
			zap.String("event", event),
			zap.Error(err))
	}
}
