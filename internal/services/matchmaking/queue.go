package matchmaking

import (
	"sync"

	"github.com/mcoot/paddleduel/internal/dependencies/clock"
	"github.com/mcoot/paddleduel/internal/model"
)

// Queue is a FIFO of players waiting for an opponent of the same variant
type Queue struct {
	clock clock.Clock

	mu      sync.Mutex
	entries []model.MatchmakingEntry
}

// New creates an empty Queue
func New(clk clock.Clock) *Queue {
	return &Queue{clock: clk}
}

// Result is the outcome of a FindOrEnqueue call
type Result struct {
	// Opponent is the waiting entry that was paired, or nil if the player was queued
	Opponent *model.MatchmakingEntry
	// Position is the 1-indexed queue position when unmatched
	Position int
}

// FindOrEnqueue pairs the player with the oldest waiting entry of the same
// variant, removing it from the queue. With no match the player is appended,
// or left in place if already queued.
func (q *Queue) FindOrEnqueue(player model.Player, variant model.Variant) Result {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i := q.indexOf(player.ConnectionID); i >= 0 {
		if q.entries[i].Variant == variant {
			return Result{Position: i + 1}
		}
		q.removeAt(i)
	}

	for i, e := range q.entries {
		if e.Variant == variant {
			q.removeAt(i)
			return Result{Opponent: &e}
		}
	}

	q.entries = append(q.entries, model.MatchmakingEntry{
		Player:     player,
		Variant:    variant,
		EnqueuedAt: q.clock.Now(),
	})
	return Result{Position: len(q.entries)}
}

// Requeue puts an entry back at the head of the queue, used when a pairing
// could not be turned into a room
func (q *Queue) Requeue(entry model.MatchmakingEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.indexOf(entry.Player.ConnectionID) >= 0 {
		return
	}
	q.entries = append([]model.MatchmakingEntry{entry}, q.entries...)
}

// Remove drops a connection's entry. It reports whether an entry existed.
func (q *Queue) Remove(connID model.ConnectionID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	i := q.indexOf(connID)
	if i < 0 {
		return false
	}
	q.removeAt(i)
	return true
}

// Position returns the 1-indexed position of a connection, or 0 if not queued
func (q *Queue) Position(connID model.ConnectionID) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.indexOf(connID) + 1
}

// Len returns the number of waiting players
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// LenByVariant returns the number of waiting players per variant
func (q *Queue) LenByVariant() map[model.Variant]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	counts := make(map[model.Variant]int)
	for _, e := range q.entries {
		counts[e.Variant]++
	}
	return counts
}

func (q *Queue) indexOf(connID model.ConnectionID) int {
	for i, e := range q.entries {
		if e.Player.ConnectionID == connID {
			return i
		}
	}
	return -1
}

func (q *Queue) removeAt(i int) {
	q.entries = append(q.entries[:i], q.entries[i+1:]...)
}
