package app

import (
	"context"
	"time"

	"mentalmaze-quiz-service/internal/domain"
)

// AnswerStore is the durable record of answers. InsertIfAbsent is the sole
// arbiter of triple uniqueness: the storage constraint decides which of two
// racing submissions wins, not any in-process check.
type AnswerStore interface {
	// InsertIfAbsent atomically records the answer and its participant
	// bookkeeping in one commit. It returns false when the
	// (player, quiz, question) triple already exists.
	InsertIfAbsent(ctx context.Context, answer domain.Answer) (bool, error)
	QuizAnswers(ctx context.Context, quizID string) ([]domain.Answer, error)
	PlayerAnswered(ctx context.Context, quizID, playerID string) ([]int, error)
	Participants(ctx context.Context, quizID string) ([]domain.Participant, error)
}

// QuizStore owns quiz content and lifecycle state.
type QuizStore interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	SaveQuiz(ctx context.Context, quiz domain.Quiz) error
	// UpdateStatus applies the transition only when the current status still
	// matches from; otherwise it reports domain.ErrInvalidTransition.
	UpdateStatus(ctx context.Context, quizID string, from, to domain.QuizStatus) error
	ActiveQuizzes(ctx context.Context) ([]domain.Quiz, error)
}

// Cache is a best-effort, TTL-bounded mirror of derived views. Implementations
// swallow backend failures: Get degrades to a miss, Put and Invalidate are
// fire-and-forget. The answer store stays the source of truth.
type Cache interface {
	Get(ctx context.Context, key string, dest any) bool
	Put(ctx context.Context, key string, value any, ttl time.Duration)
	Invalidate(ctx context.Context, keys ...string)
}

// Generator produces question sets for a topic; it never fails, falling back
// to placeholder content when the backend is degraded.
type Generator interface {
	Generate(ctx context.Context, topic string, count int, contextText string) []domain.Question
}

// CacheTTLs groups the per-key-class lifetimes.
type CacheTTLs struct {
	Leaderboard  time.Duration
	Quiz         time.Duration
	Participants time.Duration
	ActiveList   time.Duration
}

// DefaultTTLs keeps volatile views short-lived and static metadata longer.
func DefaultTTLs() CacheTTLs {
	return CacheTTLs{
		Leaderboard:  30 * time.Second,
		Quiz:         10 * time.Minute,
		Participants: time.Minute,
		ActiveList:   time.Minute,
	}
}

const activeQuizzesKey = "quizzes:active"

func quizKey(quizID string) string {
	return "quiz:" + quizID
}

func leaderboardKey(quizID string) string {
	return "quiz:" + quizID + ":leaderboard"
}

func participantsKey(quizID string) string {
	return "quiz:" + quizID + ":participants"
}

func answeredKey(quizID, playerID string) string {
	return "quiz:" + quizID + ":answered:" + playerID
}

// cachedQuiz is the shared read-through path for quiz content.
func cachedQuiz(ctx context.Context, cache Cache, quizzes QuizStore, quizID string, ttl time.Duration) (domain.Quiz, error) {
	var quiz domain.Quiz
	if cache.Get(ctx, quizKey(quizID), &quiz) {
		return quiz, nil
	}
	quiz, err := quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	cache.Put(ctx, quizKey(quizID), quiz, ttl)
	return quiz, nil
}
