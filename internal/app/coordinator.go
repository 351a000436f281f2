package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"mentalmaze-quiz-service/internal/domain"
	"mentalmaze-quiz-service/internal/perf"
)

// Coordinator accepts answer submissions, enforces the one-answer-per-triple
// invariant through the store's atomic insert, and keeps the cached derived
// views consistent by invalidating them after each commit.
type Coordinator struct {
	answers AnswerStore
	quizzes QuizStore
	cache   Cache
	board   *LeaderboardEngine
	hub     *Hub
	obs     *perf.Observer
	ttls    CacheTTLs
	now     func() time.Time
}

func NewCoordinator(answers AnswerStore, quizzes QuizStore, cache Cache, board *LeaderboardEngine, hub *Hub, obs *perf.Observer, ttls CacheTTLs) *Coordinator {
	return &Coordinator{
		answers: answers,
		quizzes: quizzes,
		cache:   cache,
		board:   board,
		hub:     hub,
		obs:     obs,
		ttls:    ttls,
		now:     time.Now,
	}
}

// WithClock is test-only for deterministic submission timestamps.
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now
	return c
}

// Submit records one answer for (playerID, quizID, questionIndex). Rejections
// come back as outcomes, not errors; a non-nil error means a transient store
// failure the caller may retry (the duplicate path absorbs a retry whose
// first attempt actually committed).
func (c *Coordinator) Submit(ctx context.Context, playerID, quizID string, questionIndex int, label string) (domain.SubmissionResult, error) {
	stop := c.obs.Start("submit")
	result, err := c.submit(ctx, playerID, quizID, questionIndex, label)
	if err != nil {
		stop(perf.OutcomeError)
	} else {
		stop(string(result.Outcome))
	}
	return result, err
}

func (c *Coordinator) submit(ctx context.Context, playerID, quizID string, questionIndex int, label string) (domain.SubmissionResult, error) {
	reject := func(outcome domain.Outcome) (domain.SubmissionResult, error) {
		return domain.SubmissionResult{Outcome: outcome, QuestionIndex: questionIndex}, nil
	}

	quiz, err := cachedQuiz(ctx, c.cache, c.quizzes, quizID, c.ttls.Quiz)
	if err != nil {
		if errors.Is(err, domain.ErrQuizNotFound) {
			return reject(domain.OutcomeQuizNotActive)
		}
		return domain.SubmissionResult{}, fmt.Errorf("load quiz: %w", err)
	}
	if quiz.Status != domain.StatusActive {
		return reject(domain.OutcomeQuizNotActive)
	}
	if questionIndex < 0 || questionIndex >= len(quiz.Questions) {
		return reject(domain.OutcomeInvalidQuestion)
	}
	question := quiz.Questions[questionIndex]
	if !hasOption(question, label) {
		return reject(domain.OutcomeInvalidQuestion)
	}

	// Optimistic pre-check: a cheap fast-path rejection only. The atomic
	// insert below remains the authoritative duplicate guard; two concurrent
	// submissions for the same triple can both pass this check.
	if c.alreadyAnswered(ctx, quizID, playerID, questionIndex) {
		return reject(domain.OutcomeDuplicate)
	}

	answer := domain.Answer{
		PlayerID:      playerID,
		QuizID:        quizID,
		QuestionIndex: questionIndex,
		Label:         label,
		Correct:       label == question.Correct,
		SubmittedAt:   c.now(),
	}
	inserted, err := c.answers.InsertIfAbsent(ctx, answer)
	if err != nil {
		return domain.SubmissionResult{}, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if !inserted {
		return reject(domain.OutcomeDuplicate)
	}

	// Invalidate only after the commit so readers never see a value derived
	// from a transaction that could still abort. The leaderboard goes through
	// the engine so a recompute racing this write cannot cache its stale
	// snapshot.
	c.board.Invalidate(ctx, quizID)
	c.cache.Invalidate(ctx,
		participantsKey(quizID),
		answeredKey(quizID, playerID),
	)

	if board, err := c.board.Rank(ctx, quizID); err == nil {
		c.hub.Broadcast(quizID, board)
	} else {
		log.Printf("leaderboard refresh after submit failed for quiz %s: %v", quizID, err)
	}

	return domain.SubmissionResult{
		Outcome:       domain.OutcomeAccepted,
		QuestionIndex: questionIndex,
		Correct:       answer.Correct,
	}, nil
}

// alreadyAnswered consults the cached answered-set, repopulating it from the
// store on a miss. Errors degrade to "not answered"; the insert decides.
func (c *Coordinator) alreadyAnswered(ctx context.Context, quizID, playerID string, questionIndex int) bool {
	var answered []int
	if !c.cache.Get(ctx, answeredKey(quizID, playerID), &answered) {
		var err error
		answered, err = c.answers.PlayerAnswered(ctx, quizID, playerID)
		if err != nil {
			return false
		}
		c.cache.Put(ctx, answeredKey(quizID, playerID), answered, c.ttls.Participants)
	}
	for _, idx := range answered {
		if idx == questionIndex {
			return true
		}
	}
	return false
}

// Participants returns the per-player progress for a quiz, cache-first.
func (c *Coordinator) Participants(ctx context.Context, quizID string) ([]domain.Participant, error) {
	var cached []domain.Participant
	if c.cache.Get(ctx, participantsKey(quizID), &cached) {
		return cached, nil
	}
	participants, err := c.answers.Participants(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}
	c.cache.Put(ctx, participantsKey(quizID), participants, c.ttls.Participants)
	return participants, nil
}

func hasOption(q domain.Question, label string) bool {
	for _, opt := range q.Options {
		if opt.Label == label {
			return true
		}
	}
	return false
}
