package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mentalmaze-quiz-service/internal/domain"
	"mentalmaze-quiz-service/internal/perf"
)

// Lifecycle drives quizzes through DRAFT -> FUNDING -> ACTIVE -> CLOSED and
// serves the read-heavy active-quiz listing cache-first.
type Lifecycle struct {
	quizzes QuizStore
	cache   Cache
	gen     Generator
	board   *LeaderboardEngine
	hub     *Hub
	obs     *perf.Observer
	ttls    CacheTTLs
	now     func() time.Time
}

func NewLifecycle(quizzes QuizStore, cache Cache, gen Generator, board *LeaderboardEngine, hub *Hub, obs *perf.Observer, ttls CacheTTLs) *Lifecycle {
	return &Lifecycle{
		quizzes: quizzes,
		cache:   cache,
		gen:     gen,
		board:   board,
		hub:     hub,
		obs:     obs,
		ttls:    ttls,
		now:     time.Now,
	}
}

// WithClock is test-only for deterministic timestamps.
func (l *Lifecycle) WithClock(now func() time.Time) *Lifecycle {
	l.now = now
	return l
}

// CreateQuiz generates a question set for the topic and persists the quiz in
// DRAFT. Generation never fails outright; a degraded backend yields
// placeholder questions so creation is never blocked on it.
func (l *Lifecycle) CreateQuiz(ctx context.Context, topic string, questionCount int, contextText, groupID string) (domain.Quiz, error) {
	stop := l.obs.Start("create_quiz")

	questions := l.gen.Generate(ctx, topic, questionCount, contextText)
	quiz := domain.Quiz{
		ID:        uuid.NewString(),
		Topic:     topic,
		Questions: questions,
		Status:    domain.StatusDraft,
		GroupID:   groupID,
		CreatedAt: l.now(),
	}
	if err := l.quizzes.SaveQuiz(ctx, quiz); err != nil {
		stop(perf.OutcomeError)
		return domain.Quiz{}, fmt.Errorf("save quiz: %w", err)
	}
	stop(perf.OutcomeOK)
	return quiz, nil
}

// SetReward fixes the reward schedule and moves the quiz to FUNDING.
func (l *Lifecycle) SetReward(ctx context.Context, quizID string, rewards []int64) error {
	quiz, err := l.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return err
	}
	if quiz.Status != domain.StatusDraft {
		return domain.ErrInvalidTransition
	}
	quiz.Rewards = rewards
	quiz.Status = domain.StatusFunding
	if err := l.quizzes.SaveQuiz(ctx, quiz); err != nil {
		return fmt.Errorf("save quiz: %w", err)
	}
	l.cache.Invalidate(ctx, quizKey(quizID))
	return nil
}

// Activate opens the quiz for submissions once funding is confirmed by the
// blockchain collaborator. The end time is persisted before the transition
// so the quiz can never be ACTIVE with its deadline unrecorded.
func (l *Lifecycle) Activate(ctx context.Context, quizID string, endsAt *time.Time) error {
	if endsAt != nil {
		quiz, err := l.quizzes.GetQuiz(ctx, quizID)
		if err != nil {
			return err
		}
		if quiz.Status != domain.StatusFunding {
			return domain.ErrInvalidTransition
		}
		quiz.EndsAt = endsAt
		if err := l.quizzes.SaveQuiz(ctx, quiz); err != nil {
			return fmt.Errorf("save end time: %w", err)
		}
	}
	if err := l.quizzes.UpdateStatus(ctx, quizID, domain.StatusFunding, domain.StatusActive); err != nil {
		return err
	}
	l.cache.Invalidate(ctx, quizKey(quizID), activeQuizzesKey)
	return nil
}

// Close ends the quiz and returns the final standings, pushed to subscribers
// for the messaging layer to render winners.
func (l *Lifecycle) Close(ctx context.Context, quizID string) (domain.Leaderboard, error) {
	if err := l.quizzes.UpdateStatus(ctx, quizID, domain.StatusActive, domain.StatusClosed); err != nil {
		return domain.Leaderboard{}, err
	}
	l.cache.Invalidate(ctx, quizKey(quizID), activeQuizzesKey)
	l.board.Invalidate(ctx, quizID)

	board, err := l.board.Rank(ctx, quizID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	l.hub.Broadcast(quizID, board)
	return board, nil
}

// GetQuiz is the cache-first quiz detail read used by the transport layer.
func (l *Lifecycle) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return cachedQuiz(ctx, l.cache, l.quizzes, quizID, l.ttls.Quiz)
}

// ActiveQuizzes serves the "which quizzes are active" listing. The cache
// bounds staleness to one TTL window; activations and closures invalidate it
// eagerly.
func (l *Lifecycle) ActiveQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	stop := l.obs.Start("active_quizzes")

	var cached []domain.Quiz
	if l.cache.Get(ctx, activeQuizzesKey, &cached) {
		stop(perf.OutcomeCacheHit)
		return cached, nil
	}
	quizzes, err := l.quizzes.ActiveQuizzes(ctx)
	if err != nil {
		stop(perf.OutcomeError)
		return nil, fmt.Errorf("load active quizzes: %w", err)
	}
	l.cache.Put(ctx, activeQuizzesKey, quizzes, l.ttls.ActiveList)
	stop(perf.OutcomeCacheMiss)
	return quizzes, nil
}
