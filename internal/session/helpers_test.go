package session

import "sync"

type testConn string

func (c testConn) ID() string { return string(c) }

type recordingHook struct {
	mu      sync.Mutex
	created []Session
	ended   []Session
	reasons []EndReason
}

func (h *recordingHook) SessionCreated(s Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.created = append(h.created, s)
}

func (h *recordingHook) SessionEnded(s Session, reason EndReason) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ended = append(h.ended, s)
	h.reasons = append(h.reasons, reason)
}
