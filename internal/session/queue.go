package session

import (
	"sync"
	"time"
)

// WaitingEntry is a player waiting for an opponent.
type WaitingEntry struct {
	Player PlayerID
	Conn   Conn
	Since  time.Time
}

// Queue holds waiting players in arrival order and pairs them first-fit.
// All methods are safe for concurrent use.
type Queue struct {
	mu       sync.Mutex
	entries  []WaitingEntry
	eligible Eligibility
	now      func() time.Time
}

// NewQueue creates an empty Queue using eligible to decide pairings.
// A nil predicate pairs any two distinct players.
func NewQueue(eligible Eligibility) *Queue {
	if eligible == nil {
		eligible = AnyOpponent
	}
	return &Queue{eligible: eligible, now: time.Now}
}

// Enqueue appends a waiting entry for id. If id is already waiting its entry
// keeps its position and takes the new connection; replaced reports that case.
func (q *Queue) Enqueue(id PlayerID, conn Conn) (replaced bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i := q.indexOf(id); i >= 0 {
		q.entries[i].Conn = conn
		return true
	}
	q.entries = append(q.entries, WaitingEntry{Player: id, Conn: conn, Since: q.now()})
	return false
}

// PushFront puts e back at the head of the queue. It is used to restore an
// entry consumed by a match that could not be completed.
func (q *Queue) PushFront(e WaitingEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i := q.indexOf(e.Player); i >= 0 {
		q.removeAt(i)
	}
	q.entries = append([]WaitingEntry{e}, q.entries...)
}

// FindMatchAndRemove scans the queue in arrival order and returns the first
// waiting entry the predicate accepts for candidate. The match is removed,
// and so is the candidate's own entry if it was waiting. With no match the
// queue is left unchanged.
func (q *Queue) FindMatchAndRemove(candidate PlayerID) (WaitingEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.entries {
		if e.Player == candidate {
			continue
		}
		if !q.eligible(e.Player, candidate) {
			continue
		}
		q.removeAt(i)
		if j := q.indexOf(candidate); j >= 0 {
			q.removeAt(j)
		}
		return e, true
	}
	return WaitingEntry{}, false
}

// RemoveByConnection drops the entry owned by conn. It is a no-op for
// connections that are not waiting.
func (q *Queue) RemoveByConnection(conn Conn) (WaitingEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.entries {
		if e.Conn.ID() == conn.ID() {
			q.removeAt(i)
			return e, true
		}
	}
	return WaitingEntry{}, false
}

// Remove drops the entry of id.
func (q *Queue) Remove(id PlayerID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i := q.indexOf(id); i >= 0 {
		q.removeAt(i)
		return true
	}
	return false
}

// Contains reports whether id is waiting.
func (q *Queue) Contains(id PlayerID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.indexOf(id) >= 0
}

// Len returns the number of waiting players.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Snapshot returns a copy of the waiting entries in queue order.
func (q *Queue) Snapshot() []WaitingEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]WaitingEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

func (q *Queue) indexOf(id PlayerID) int {
	for i, e := range q.entries {
		if e.Player == id {
			return i
		}
	}
	return -1
}

func (q *Queue) removeAt(i int) {
	q.entries = append(q.entries[:i], q.entries[i+1:]...)
}
