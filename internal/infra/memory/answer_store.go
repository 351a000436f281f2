package memory

import (
	"context"
	"sort"
	"sync"

	"mentalmaze-quiz-service/internal/domain"
)

type tripleKey struct {
	quizID        string
	playerID      string
	questionIndex int
}

// AnswerStore keeps answers in memory with the same insert-if-absent contract
// as the Postgres store: the map write under the lock is the atomic
// uniqueness check, and participant bookkeeping happens in the same critical
// section so no partially-applied submission is ever observable.
type AnswerStore struct {
	mu           sync.RWMutex
	answers      map[tripleKey]domain.Answer
	participants map[string]map[string]*domain.Participant // quizID -> playerID
}

func NewAnswerStore() *AnswerStore {
	return &AnswerStore{
		answers:      make(map[tripleKey]domain.Answer),
		participants: make(map[string]map[string]*domain.Participant),
	}
}

func (s *AnswerStore) InsertIfAbsent(ctx context.Context, answer domain.Answer) (bool, error) {
	key := tripleKey{quizID: answer.QuizID, playerID: answer.PlayerID, questionIndex: answer.QuestionIndex}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.answers[key]; exists {
		return false, nil
	}
	s.answers[key] = answer

	byPlayer, ok := s.participants[answer.QuizID]
	if !ok {
		byPlayer = make(map[string]*domain.Participant)
		s.participants[answer.QuizID] = byPlayer
	}
	p, ok := byPlayer[answer.PlayerID]
	if !ok {
		p = &domain.Participant{PlayerID: answer.PlayerID, QuizID: answer.QuizID}
		byPlayer[answer.PlayerID] = p
	}
	p.Answered++
	if answer.Correct {
		p.CorrectCount++
	}
	if answer.SubmittedAt.After(p.LastAnswerAt) {
		p.LastAnswerAt = answer.SubmittedAt
	}
	return true, nil
}

func (s *AnswerStore) QuizAnswers(ctx context.Context, quizID string) ([]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Answer
	for key, answer := range s.answers {
		if key.quizID == quizID {
			out = append(out, answer)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out, nil
}

func (s *AnswerStore) PlayerAnswered(ctx context.Context, quizID, playerID string) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var indexes []int
	for key := range s.answers {
		if key.quizID == quizID && key.playerID == playerID {
			indexes = append(indexes, key.questionIndex)
		}
	}
	sort.Ints(indexes)
	return indexes, nil
}

func (s *AnswerStore) Participants(ctx context.Context, quizID string) ([]domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Participant
	for _, p := range s.participants[quizID] {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out, nil
}
