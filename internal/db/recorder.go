package db

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"duelgate/internal/observability"
	"duelgate/internal/session"
)

// GameWriter is the part of GameStore the recorder needs.
type GameWriter interface {
	Create(ctx context.Context, rec GameRecord) (int64, error)
	EndBySession(ctx context.Context, sessionID, reason string, endedAt time.Time) error
}

type recordEvent struct {
	s       session.Session
	ended   bool
	reason  session.EndReason
	endedAt time.Time
}

// Recorder writes a game record for every session lifecycle event. Events
// are queued and written in order by one background worker, so the
// matchmaking path never waits on MySQL and an end is never written before
// its start.
type Recorder struct {
	games   GameWriter
	timeout time.Duration
	log     *zap.Logger

	mu     sync.Mutex
	events chan recordEvent
	closed bool
	done   chan struct{}
}

// NewRecorder creates a Recorder writing through games and starts its
// worker. Call Close to flush pending writes.
func NewRecorder(games GameWriter, logger *zap.Logger) *Recorder {
	r := &Recorder{
		games:   games,
		timeout: 5 * time.Second,
		log:     observability.OrNop(logger).Named("recorder"),
		events:  make(chan recordEvent, 256),
		done:    make(chan struct{}),
	}
	go r.loop()
	return r
}

// SessionCreated implements session.Hook.
func (r *Recorder) SessionCreated(s session.Session) {
	r.push(recordEvent{s: s})
}

// SessionEnded implements session.Hook.
func (r *Recorder) SessionEnded(s session.Session, reason session.EndReason) {
	r.push(recordEvent{s: s, ended: true, reason: reason, endedAt: time.Now().UTC()})
}

// Close stops accepting events and waits until the queued ones are written.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.events)
	}
	r.mu.Unlock()
	<-r.done
}

// push queues ev without blocking. A full queue drops the event.
func (r *Recorder) push(ev recordEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.events <- ev:
	default:
		r.log.Warn("record queue full, event dropped",
			zap.String("session", string(ev.s.ID)), zap.Bool("ended", ev.ended))
	}
}

func (r *Recorder) loop() {
	defer close(r.done)
	for ev := range r.events {
		r.write(ev)
	}
}

func (r *Recorder) write(ev recordEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if ev.ended {
		if err := r.games.EndBySession(ctx, string(ev.s.ID), string(ev.reason), ev.endedAt); err != nil {
			r.log.Warn("recording session end", zap.String("session", string(ev.s.ID)), zap.Error(err))
		}
		return
	}
	_, err := r.games.Create(ctx, GameRecord{
		SessionID: string(ev.s.ID),
		HostID:    int64(ev.s.HostID),
		GuestID:   int64(ev.s.GuestID),
		Status:    StatusLive,
		StartedAt: ev.s.CreatedAt.UTC(),
	})
	if err != nil {
		r.log.Warn("recording session start", zap.String("session", string(ev.s.ID)), zap.Error(err))
	}
}
