// Package game keeps the per-session state frame and advances it in lock-step.
package game

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"duelgate/internal/observability"
	"duelgate/internal/session"
)

// EventNewFrame is the event name under which accepted frames are broadcast.
const EventNewFrame = "newFrame"

// Payload is an opaque game-state object. Field values are kept verbatim.
type Payload map[string]json.RawMessage

// merge returns a new payload holding base with patch's fields laid over it.
func (p Payload) merge(patch Payload) Payload {
	out := make(Payload, len(p)+len(patch))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// Frame is the sequence-numbered snapshot of a session's state.
type Frame struct {
	Seq     uint64  `json:"sequenceNumber"`
	Payload Payload `json:"payload"`
}

// Broadcaster delivers an event to every member of a session's room.
type Broadcaster interface {
	BroadcastToRoom(room session.SessionID, event string, payload any)
}

type slot struct {
	mu     sync.Mutex
	frame  Frame
	closed bool
}

// Synchronizer holds the current frame of each live session. Submissions
// for one session are serialized; different sessions proceed independently.
type Synchronizer struct {
	mu    sync.RWMutex
	slots map[session.SessionID]*slot
	out   Broadcaster
	log   *zap.Logger
}

// NewSynchronizer creates a Synchronizer publishing accepted frames to out.
func NewSynchronizer(out Broadcaster, logger *zap.Logger) *Synchronizer {
	return &Synchronizer{
		slots: make(map[session.SessionID]*slot),
		out:   out,
		log:   observability.OrNop(logger).Named("frames"),
	}
}

// Open seeds the session with frame 0 and an empty payload.
func (s *Synchronizer) Open(id session.SessionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.slots[id]; ok {
		old.mu.Lock()
		old.closed = true
		old.mu.Unlock()
	}
	s.slots[id] = &slot{frame: Frame{Payload: Payload{}}}
}

// Submit offers a frame from sender. It is accepted only when seq is ahead
// of the current frame; the stored frame then advances by exactly one and
// is broadcast. Stale, duplicate and unknown-session submissions are dropped.
func (s *Synchronizer) Submit(id session.SessionID, sender session.PlayerID, seq uint64, payload Payload) (Frame, bool) {
	s.mu.RLock()
	sl, ok := s.slots[id]
	s.mu.RUnlock()
	if !ok {
		s.log.Debug("frame for unknown session dropped",
			zap.String("session", string(id)), zap.Int64("sender", int64(sender)))
		return Frame{}, false
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()

	if sl.closed {
		return Frame{}, false
	}
	if seq <= sl.frame.Seq {
		s.log.Debug("stale frame dropped",
			zap.String("session", string(id)),
			zap.Int64("sender", int64(sender)),
			zap.Uint64("seq", seq),
			zap.Uint64("current", sl.frame.Seq))
		return Frame{}, false
	}

	next := Frame{
		Seq:     sl.frame.Seq + 1,
		Payload: sl.frame.Payload.merge(payload),
	}
	sl.frame = next

	// Broadcasting under the slot lock keeps room delivery in sequence order.
	if s.out != nil {
		s.out.BroadcastToRoom(id, EventNewFrame, next)
	}
	return next, true
}

// Current returns the session's current frame.
func (s *Synchronizer) Current(id session.SessionID) (Frame, bool) {
	s.mu.RLock()
	sl, ok := s.slots[id]
	s.mu.RUnlock()
	if !ok {
		return Frame{}, false
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.closed {
		return Frame{}, false
	}
	return sl.frame, true
}

// Close discards the session's frame. Later submissions are dropped.
func (s *Synchronizer) Close(id session.SessionID) {
	s.mu.Lock()
	sl, ok := s.slots[id]
	delete(s.slots, id)
	s.mu.Unlock()
	if !ok {
		return
	}
	sl.mu.Lock()
	sl.closed = true
	sl.mu.Unlock()
}

// Len returns the number of open sessions.
func (s *Synchronizer) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slots)
}
