package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"mentalmaze-quiz-service/internal/domain"
)

func TestQuizStoreUpdateStatusGuard(t *testing.T) {
	ctx := context.Background()
	store := NewQuizStoreWith(map[string]domain.Quiz{
		"q1": {Topic: "Math", Status: domain.StatusFunding},
	})

	if err := store.UpdateStatus(ctx, "q1", domain.StatusDraft, domain.StatusFunding); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if err := store.UpdateStatus(ctx, "q1", domain.StatusFunding, domain.StatusActive); err != nil {
		t.Fatalf("valid transition: %v", err)
	}
	if err := store.UpdateStatus(ctx, "missing", domain.StatusDraft, domain.StatusFunding); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	quiz, err := store.GetQuiz(ctx, "q1")
	if err != nil || quiz.Status != domain.StatusActive {
		t.Fatalf("expected active, got %+v err=%v", quiz, err)
	}
}

func TestActiveQuizzesSkipsExpiredAndInactive(t *testing.T) {
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	store := NewQuizStoreWith(map[string]domain.Quiz{
		"open":     {Status: domain.StatusActive},
		"timed":    {Status: domain.StatusActive, EndsAt: &future},
		"expired":  {Status: domain.StatusActive, EndsAt: &past},
		"draft":    {Status: domain.StatusDraft},
		"finished": {Status: domain.StatusClosed},
	})

	active, err := store.ActiveQuizzes(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 2 || active[0].ID != "open" || active[1].ID != "timed" {
		t.Fatalf("unexpected active set %+v", active)
	}
}
