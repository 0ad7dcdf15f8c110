package session

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Eligibility decides whether the waiting player may be paired with the
// candidate. It must be pure: it runs under the queue lock.
type Eligibility func(waiting, candidate PlayerID) bool

// AnyOpponent pairs any two distinct players.
func AnyOpponent(waiting, candidate PlayerID) bool {
	return waiting != candidate
}

// All combines predicates; every one must accept the pair.
func All(preds ...Eligibility) Eligibility {
	return func(waiting, candidate PlayerID) bool {
		for _, p := range preds {
			if !p(waiting, candidate) {
				return false
			}
		}
		return true
	}
}

type pair struct{ a, b PlayerID }

func newPair(a, b PlayerID) pair {
	if a > b {
		a, b = b, a
	}
	return pair{a, b}
}

// BlockList keeps symmetric pairs of players that must not be matched.
type BlockList struct {
	mu      sync.RWMutex
	blocked map[pair]struct{}
}

// NewBlockList creates an empty BlockList.
func NewBlockList() *BlockList {
	return &BlockList{blocked: make(map[pair]struct{})}
}

// Block forbids pairing a with b.
func (b *BlockList) Block(x, y PlayerID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blocked[newPair(x, y)] = struct{}{}
}

// Unblock lifts a previous Block.
func (b *BlockList) Unblock(x, y PlayerID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blocked, newPair(x, y))
}

// Eligible is an Eligibility that rejects blocked pairs.
func (b *BlockList) Eligible(waiting, candidate PlayerID) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, blocked := b.blocked[newPair(waiting, candidate)]
	return !blocked
}

// ParseBlockList builds a BlockList from a comma separated list of
// "a-b" player pairs, e.g. "1-2,7-9". Blank entries are skipped.
func ParseBlockList(pairs string) (*BlockList, error) {
	b := NewBlockList()
	for _, item := range strings.Split(pairs, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		left, right, ok := strings.Cut(item, "-")
		if !ok {
			return nil, fmt.Errorf("block pair %q: want a-b", item)
		}
		x, err := strconv.ParseInt(strings.TrimSpace(left), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("block pair %q: %w", item, err)
		}
		y, err := strconv.ParseInt(strings.TrimSpace(right), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("block pair %q: %w", item, err)
		}
		if x == y {
			return nil, fmt.Errorf("block pair %q: players must differ", item)
		}
		b.Block(PlayerID(x), PlayerID(y))
	}
	return b, nil
}

// Len returns the number of blocked pairs.
func (b *BlockList) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.blocked)
}
