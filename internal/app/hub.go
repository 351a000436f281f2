package app

import (
	"sync"

	"mentalmaze-quiz-service/internal/domain"
)

// Hub fans leaderboard updates out to per-quiz subscribers (the messaging
// layer attaches one subscription per connected client).
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan domain.Leaderboard]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan domain.Leaderboard]struct{})}
}

// Subscribe returns a channel receiving leaderboard updates for quizID.
// The caller must invoke the returned cancel function to avoid leaks.
func (h *Hub) Subscribe(quizID string) (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)

	h.mu.Lock()
	if h.subs[quizID] == nil {
		h.subs[quizID] = make(map[chan domain.Leaderboard]struct{})
	}
	h.subs[quizID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[quizID]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(h.subs, quizID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Broadcast delivers the update without blocking; slow subscribers have their
// stale pending update replaced by the newest one. The exclusive lock
// serializes broadcasters so the drain-then-send below cannot find the buffer
// refilled by a concurrent Broadcast.
func (h *Hub) Broadcast(quizID string, board domain.Leaderboard) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[quizID] {
		select {
		case ch <- board:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- board
		}
	}
}
