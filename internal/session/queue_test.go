package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestQueue_FindMatch_FIFO(t *testing.T) {
	q := NewQueue(nil)
	q.Enqueue(1, testConn("a"))
	q.Enqueue(2, testConn("b"))
	q.Enqueue(3, testConn("c"))

	e, ok := q.FindMatchAndRemove(4)
	require.True(t, ok)
	assert.Equal(t, PlayerID(1), e.Player)
	assert.Equal(t, "a", e.Conn.ID())

	snap := q.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, PlayerID(2), snap[0].Player)
	assert.Equal(t, PlayerID(3), snap[1].Player)
}

func TestQueue_FindMatch_FirstEligible(t *testing.T) {
	q := NewQueue(func(waiting, candidate PlayerID) bool { return waiting%2 == 0 })
	q.Enqueue(1, testConn("a"))
	q.Enqueue(2, testConn("b"))
	q.Enqueue(4, testConn("d"))

	e, ok := q.FindMatchAndRemove(9)
	require.True(t, ok)
	assert.Equal(t, PlayerID(2), e.Player)
	assert.True(t, q.Contains(1))
	assert.True(t, q.Contains(4))
}

func TestQueue_FindMatch_NoMatchLeavesQueueUnchanged(t *testing.T) {
	q := NewQueue(func(PlayerID, PlayerID) bool { return false })
	q.Enqueue(1, testConn("a"))
	q.Enqueue(2, testConn("b"))
	before := q.Snapshot()

	_, ok := q.FindMatchAndRemove(3)
	assert.False(t, ok)
	assert.Equal(t, before, q.Snapshot())
}

func TestQueue_FindMatch_SkipsAndConsumesCandidate(t *testing.T) {
	q := NewQueue(nil)
	q.Enqueue(2, testConn("b"))
	q.Enqueue(1, testConn("a"))

	e, ok := q.FindMatchAndRemove(2)
	require.True(t, ok)
	assert.Equal(t, PlayerID(1), e.Player)
	assert.Equal(t, 0, q.Len(), "candidate entry must be consumed with the match")
}

func TestQueue_FindMatch_AloneNeverMatchesSelf(t *testing.T) {
	q := NewQueue(func(PlayerID, PlayerID) bool { return true })
	q.Enqueue(1, testConn("a"))

	_, ok := q.FindMatchAndRemove(1)
	assert.False(t, ok)
	assert.True(t, q.Contains(1))
}

func TestQueue_EnqueueDuplicateReplacesInPlace(t *testing.T) {
	q := NewQueue(nil)
	q.Enqueue(1, testConn("a"))
	q.Enqueue(2, testConn("b"))

	replaced := q.Enqueue(1, testConn("a2"))
	assert.True(t, replaced)

	snap := q.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, PlayerID(1), snap[0].Player, "position is kept")
	assert.Equal(t, "a2", snap[0].Conn.ID())

	e, ok := q.FindMatchAndRemove(3)
	require.True(t, ok)
	assert.Equal(t, PlayerID(1), e.Player, "FIFO order still favours the first arrival")
}

func TestQueue_RemoveByConnection_Idempotent(t *testing.T) {
	q := NewQueue(nil)
	q.Enqueue(1, testConn("a"))

	e, ok := q.RemoveByConnection(testConn("a"))
	require.True(t, ok)
	assert.Equal(t, PlayerID(1), e.Player)

	_, ok = q.RemoveByConnection(testConn("a"))
	assert.False(t, ok)
	_, ok = q.RemoveByConnection(testConn("never-seen"))
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_PushFront(t *testing.T) {
	q := NewQueue(nil)
	q.Enqueue(2, testConn("b"))
	q.PushFront(WaitingEntry{Player: 1, Conn: testConn("a")})

	snap := q.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, PlayerID(1), snap[0].Player)
}

func TestQueue_Remove(t *testing.T) {
	q := NewQueue(nil)
	q.Enqueue(1, testConn("a"))
	assert.True(t, q.Remove(1))
	assert.False(t, q.Remove(1))
}

func TestQueue_ConcurrentMatchesNeverShareAnEntry(t *testing.T) {
	q := NewQueue(nil)
	const waiting = 50
	for i := 0; i < waiting; i++ {
		q.Enqueue(PlayerID(i), testConn(fmt.Sprintf("w%d", i)))
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		matched = make(map[PlayerID]int)
	)
	wg.Add(waiting)
	for i := 0; i < waiting; i++ {
		go func(i int) {
			defer wg.Done()
			if e, ok := q.FindMatchAndRemove(PlayerID(1000 + i)); ok {
				mu.Lock()
				matched[e.Player]++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, matched, waiting)
	for id, n := range matched {
		assert.Equal(t, 1, n, "player %d matched more than once", id)
	}
	assert.Equal(t, 0, q.Len())
}

func TestPropertyQueueFirstFit(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 15).Draw(t, "waiting")
		blocked := rapid.SliceOfN(rapid.Bool(), n, n).Draw(t, "blocked")

		q := NewQueue(func(waiting, candidate PlayerID) bool { return !blocked[waiting] })
		for i := 0; i < n; i++ {
			q.Enqueue(PlayerID(i), testConn(fmt.Sprintf("c%d", i)))
		}

		want := -1
		for i, b := range blocked {
			if !b {
				want = i
				break
			}
		}

		e, ok := q.FindMatchAndRemove(PlayerID(n + 1))
		if want < 0 {
			if ok {
				t.Fatalf("unexpected match %d", e.Player)
			}
			if q.Len() != n {
				t.Fatalf("queue changed on no-match: %d != %d", q.Len(), n)
			}
			return
		}
		if !ok || e.Player != PlayerID(want) {
			t.Fatalf("expected earliest eligible %d, got %d (ok=%v)", want, e.Player, ok)
		}
		if q.Len() != n-1 {
			t.Fatalf("expected %d waiting, got %d", n-1, q.Len())
		}
	})
}
