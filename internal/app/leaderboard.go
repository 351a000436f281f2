package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"mentalmaze-quiz-service/internal/domain"
	"mentalmaze-quiz-service/internal/perf"
)

// LeaderboardEngine derives rankings from committed answers, cache-first with
// a short TTL. It never writes answers; recomputation is a pure function of
// the persisted answer set, so repeated reads agree on both cache paths.
type LeaderboardEngine struct {
	answers AnswerStore
	cache   Cache
	obs     *perf.Observer
	ttl     time.Duration
	sf      singleflight.Group
	now     func() time.Time

	// gens fences recomputations against invalidation: a flight that read its
	// answer snapshot before an Invalidate must not write that board back.
	mu   sync.Mutex
	gens map[string]uint64
}

func NewLeaderboardEngine(answers AnswerStore, cache Cache, obs *perf.Observer, ttl time.Duration) *LeaderboardEngine {
	return &LeaderboardEngine{
		answers: answers,
		cache:   cache,
		obs:     obs,
		ttl:     ttl,
		now:     time.Now,
		gens:    make(map[string]uint64),
	}
}

func (e *LeaderboardEngine) generation(quizID string) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gens[quizID]
}

// Invalidate drops the cached board for quizID and fences in-flight
// recomputations: the generation bump keeps any flight holding a
// pre-invalidation snapshot from caching it, and Forget makes the next Rank
// start a fresh flight instead of joining one that read before the write
// committed.
func (e *LeaderboardEngine) Invalidate(ctx context.Context, quizID string) {
	e.mu.Lock()
	e.gens[quizID]++
	e.mu.Unlock()
	e.sf.Forget(quizID)
	e.cache.Invalidate(ctx, leaderboardKey(quizID))
}

// Rank returns the ordered standings for quizID. Ordering: correct answers
// descending, then earlier tie-break timestamp (when the player finished
// their latest answer), then player ID. The tie-break must be reproducible
// because reward distribution is irreversible.
func (e *LeaderboardEngine) Rank(ctx context.Context, quizID string) (domain.Leaderboard, error) {
	stop := e.obs.Start("leaderboard_rank")

	var cached domain.Leaderboard
	if e.cache.Get(ctx, leaderboardKey(quizID), &cached) {
		stop(perf.OutcomeCacheHit)
		return cached, nil
	}

	// Collapse concurrent recomputations for the same quiz.
	result, err, _ := e.sf.Do(quizID, func() (interface{}, error) {
		gen := e.generation(quizID)
		var board domain.Leaderboard
		if e.cache.Get(ctx, leaderboardKey(quizID), &board) {
			return board, nil
		}
		answers, err := e.answers.QuizAnswers(ctx, quizID)
		if err != nil {
			return domain.Leaderboard{}, fmt.Errorf("load answers: %w", err)
		}
		board = e.compute(quizID, answers)
		// A submission may have invalidated while this flight was reading;
		// caching the pre-invalidation snapshot would resurrect it for a
		// full TTL.
		if e.generation(quizID) == gen {
			e.cache.Put(ctx, leaderboardKey(quizID), board, e.ttl)
		}
		return board, nil
	})
	if err != nil {
		stop(perf.OutcomeError)
		return domain.Leaderboard{}, err
	}
	stop(perf.OutcomeCacheMiss)
	return result.(domain.Leaderboard), nil
}

func (e *LeaderboardEngine) compute(quizID string, answers []domain.Answer) domain.Leaderboard {
	type tally struct {
		correct int
		lastAt  time.Time
	}
	byPlayer := make(map[string]*tally)
	for _, a := range answers {
		t, ok := byPlayer[a.PlayerID]
		if !ok {
			t = &tally{}
			byPlayer[a.PlayerID] = t
		}
		if a.Correct {
			t.correct++
		}
		if a.SubmittedAt.After(t.lastAt) {
			t.lastAt = a.SubmittedAt
		}
	}

	entries := make([]domain.LeaderboardEntry, 0, len(byPlayer))
	for playerID, t := range byPlayer {
		entries = append(entries, domain.LeaderboardEntry{
			PlayerID:     playerID,
			CorrectCount: t.correct,
			TieBreakAt:   t.lastAt,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CorrectCount != entries[j].CorrectCount {
			return entries[i].CorrectCount > entries[j].CorrectCount
		}
		if !entries[i].TieBreakAt.Equal(entries[j].TieBreakAt) {
			return entries[i].TieBreakAt.Before(entries[j].TieBreakAt)
		}
		return entries[i].PlayerID < entries[j].PlayerID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}

	return domain.Leaderboard{
		QuizID:    quizID,
		Entries:   entries,
		UpdatedAt: e.now(),
	}
}
