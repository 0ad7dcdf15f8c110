package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestTable_RematchGetsFreshID(t *testing.T) {
	tb := NewTable()
	first, err := tb.Create(1, testConn("a"), 2, testConn("b"))
	require.NoError(t, err)
	_, ok := tb.RemoveByPlayer(1, EndConcluded)
	require.True(t, ok)

	second, err := tb.Create(1, testConn("a"), 2, testConn("b"))
	require.NoError(t, err)
	assert.Equal(t, SessionID("1:2:2"), second.ID)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestTable_Create(t *testing.T) {
	hook := &recordingHook{}
	tb := NewTable(hook)

	s, err := tb.Create(1, testConn("a"), 2, testConn("b"))
	require.NoError(t, err)
	assert.Equal(t, SessionID("1:2:1"), s.ID)
	assert.Equal(t, PlayerID(1), s.HostID)
	assert.Equal(t, PlayerID(2), s.GuestID)
	assert.Equal(t, 1, tb.Len())

	for _, id := range []PlayerID{1, 2} {
		got, ok := tb.GetByPlayer(id)
		require.True(t, ok)
		assert.Equal(t, s.ID, got.ID)
	}
	require.Len(t, hook.created, 1)
	assert.Equal(t, s.ID, hook.created[0].ID)
}

func TestTable_CreateConflict(t *testing.T) {
	tb := NewTable()
	_, err := tb.Create(1, testConn("a"), 2, testConn("b"))
	require.NoError(t, err)

	_, err = tb.Create(3, testConn("c"), 2, testConn("b2"))
	assert.True(t, errors.Is(err, ErrPlayerInSession))
	assert.Equal(t, 1, tb.Len())

	_, ok := tb.GetByPlayer(3)
	assert.False(t, ok, "failed create must not index the host")
}

func TestTable_CreateSelfPairing(t *testing.T) {
	tb := NewTable()
	_, err := tb.Create(1, testConn("a"), 1, testConn("b"))
	assert.ErrorIs(t, err, ErrPlayerInSession)
	assert.Equal(t, 0, tb.Len())
}

func TestTable_RemoveByConnection(t *testing.T) {
	hook := &recordingHook{}
	tb := NewTable(hook)
	s, err := tb.Create(1, testConn("a"), 2, testConn("b"))
	require.NoError(t, err)

	removed, ok := tb.RemoveByConnection(testConn("b"), EndDisconnect)
	require.True(t, ok)
	assert.Equal(t, s.ID, removed.ID)

	_, ok = tb.GetByPlayer(1)
	assert.False(t, ok)
	_, ok = tb.GetByPlayer(2)
	assert.False(t, ok)

	_, ok = tb.RemoveByConnection(testConn("a"), EndDisconnect)
	assert.False(t, ok, "second removal finds nothing")

	require.Len(t, hook.ended, 1)
	assert.Equal(t, EndDisconnect, hook.reasons[0])
}

func TestTable_RemoveByPlayer(t *testing.T) {
	hook := &recordingHook{}
	tb := NewTable(hook)
	_, err := tb.Create(1, testConn("a"), 2, testConn("b"))
	require.NoError(t, err)

	_, ok := tb.RemoveByPlayer(2, EndConcluded)
	require.True(t, ok)
	assert.Equal(t, 0, tb.Len())
	assert.Equal(t, []EndReason{EndConcluded}, hook.reasons)
}

func TestSession_Peer(t *testing.T) {
	s := Session{HostID: 1, GuestID: 2, HostConn: testConn("a"), GuestConn: testConn("b")}
	peer, id := s.Peer(testConn("a"))
	assert.Equal(t, "b", peer.ID())
	assert.Equal(t, PlayerID(2), id)

	peer, id = s.Peer(testConn("b"))
	assert.Equal(t, "a", peer.ID())
	assert.Equal(t, PlayerID(1), id)
	assert.True(t, s.Has(1))
	assert.False(t, s.Has(3))

	id, ok := s.Member(testConn("b"))
	assert.True(t, ok)
	assert.Equal(t, PlayerID(2), id)
	_, ok = s.Member(testConn("z"))
	assert.False(t, ok)
}

func TestTable_ConcurrentCreateRemove(t *testing.T) {
	tb := NewTable()
	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			host, guest := PlayerID(2*i), PlayerID(2*i+1)
			_, _ = tb.Create(host, testConn(fmt.Sprintf("h%d", i)), guest, testConn(fmt.Sprintf("g%d", i)))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, n, tb.Len())

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			tb.RemoveByConnection(testConn(fmt.Sprintf("g%d", i)), EndDisconnect)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, tb.Len())
}

func TestPropertyTableNoSharedPlayers(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tb := NewTable()
		ops := rapid.IntRange(1, 40).Draw(t, "ops")
		for i := 0; i < ops; i++ {
			host := PlayerID(rapid.IntRange(0, 9).Draw(t, "host"))
			guest := PlayerID(rapid.IntRange(0, 9).Draw(t, "guest"))
			if rapid.Bool().Draw(t, "remove") {
				tb.RemoveByPlayer(host, EndDisconnect)
				continue
			}
			_, _ = tb.Create(host, testConn(fmt.Sprintf("c%d", host)), guest, testConn(fmt.Sprintf("c%d", guest)))
		}

		seen := make(map[PlayerID]SessionID)
		for id := PlayerID(0); id < 10; id++ {
			s, ok := tb.GetByPlayer(id)
			if !ok {
				continue
			}
			if !s.Has(id) {
				t.Fatalf("player %d indexed to foreign session %s", id, s.ID)
			}
			if prev, dup := seen[id]; dup && prev != s.ID {
				t.Fatalf("player %d in two sessions", id)
			}
			seen[id] = s.ID
		}
		if len(seen) != 2*tb.Len() {
			t.Fatalf("indexed players %d != 2 * sessions %d", len(seen), tb.Len())
		}
	})
}
