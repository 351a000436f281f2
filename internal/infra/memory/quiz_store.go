package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"mentalmaze-quiz-service/internal/domain"
)

// QuizStore is an in-memory quiz catalog (useful for tests/demos).
type QuizStore struct {
	mu      sync.RWMutex
	quizzes map[string]domain.Quiz
	clock   func() time.Time
}

func NewQuizStore() *QuizStore {
	return &QuizStore{
		quizzes: make(map[string]domain.Quiz),
		clock:   time.Now,
	}
}

// NewQuizStoreWith seeds the store, marking the quizzes as given.
func NewQuizStoreWith(quizzes map[string]domain.Quiz) *QuizStore {
	s := NewQuizStore()
	for id, quiz := range quizzes {
		quiz.ID = id
		s.quizzes[id] = quiz
	}
	return s
}

func (s *QuizStore) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz, nil
}

func (s *QuizStore) SaveQuiz(ctx context.Context, quiz domain.Quiz) error {
	s.mu.Lock()
	s.quizzes[quiz.ID] = quiz
	s.mu.Unlock()
	return nil
}

func (s *QuizStore) UpdateStatus(ctx context.Context, quizID string, from, to domain.QuizStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	if quiz.Status != from {
		return domain.ErrInvalidTransition
	}
	quiz.Status = to
	s.quizzes[quizID] = quiz
	return nil
}

func (s *QuizStore) ActiveQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	now := s.clock()
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Quiz
	for _, quiz := range s.quizzes {
		if quiz.Status != domain.StatusActive {
			continue
		}
		if quiz.EndsAt != nil && !quiz.EndsAt.After(now) {
			continue
		}
		out = append(out, quiz)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
