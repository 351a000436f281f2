package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"mentalmaze-quiz-service/internal/domain"
)

// QuizStore persists quizzes with their question sets as JSONB and lifecycle
// metadata as columns, so the active listing stays a plain indexed query.
type QuizStore struct {
	pool *pgxpool.Pool
}

func NewQuizStore(pool *pgxpool.Pool) *QuizStore {
	return &QuizStore{pool: pool}
}

func (s *QuizStore) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, topic, status, group_id, questions, rewards, ends_at, created_at
		FROM quizzes WHERE id = $1`, quizID)
	quiz, err := scanQuiz(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	return quiz, nil
}

func (s *QuizStore) SaveQuiz(ctx context.Context, quiz domain.Quiz) error {
	questions, err := json.Marshal(quiz.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	rewards, err := json.Marshal(quiz.Rewards)
	if err != nil {
		return fmt.Errorf("marshal rewards: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO quizzes (id, topic, status, group_id, questions, rewards, ends_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			topic = EXCLUDED.topic,
			status = EXCLUDED.status,
			group_id = EXCLUDED.group_id,
			questions = EXCLUDED.questions,
			rewards = EXCLUDED.rewards,
			ends_at = EXCLUDED.ends_at`,
		quiz.ID, quiz.Topic, string(quiz.Status), quiz.GroupID, questions, rewards, quiz.EndsAt, quiz.CreatedAt)
	if err != nil {
		return fmt.Errorf("save quiz: %w", err)
	}
	return nil
}

// UpdateStatus is a guarded transition; it fails when the quiz moved on
// concurrently or does not exist.
func (s *QuizStore) UpdateStatus(ctx context.Context, quizID string, from, to domain.QuizStatus) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE quizzes SET status = $3 WHERE id = $1 AND status = $2`,
		quizID, string(from), string(to))
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM quizzes WHERE id = $1)`, quizID).Scan(&exists); err == nil && !exists {
			return domain.ErrQuizNotFound
		}
		return domain.ErrInvalidTransition
	}
	return nil
}

func (s *QuizStore) ActiveQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, topic, status, group_id, questions, rewards, ends_at, created_at
		FROM quizzes
		WHERE status = 'ACTIVE' AND (ends_at IS NULL OR ends_at > now())
		ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query active quizzes: %w", err)
	}
	defer rows.Close()

	var out []domain.Quiz
	for rows.Next() {
		quiz, err := scanQuiz(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		out = append(out, quiz)
	}
	return out, rows.Err()
}

func scanQuiz(row pgx.Row) (domain.Quiz, error) {
	var (
		quiz          domain.Quiz
		status        string
		questionsJSON []byte
		rewardsJSON   []byte
	)
	if err := row.Scan(&quiz.ID, &quiz.Topic, &status, &quiz.GroupID, &questionsJSON, &rewardsJSON, &quiz.EndsAt, &quiz.CreatedAt); err != nil {
		return domain.Quiz{}, err
	}
	quiz.Status = domain.QuizStatus(status)
	if err := json.Unmarshal(questionsJSON, &quiz.Questions); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal questions: %w", err)
	}
	if len(rewardsJSON) > 0 {
		if err := json.Unmarshal(rewardsJSON, &quiz.Rewards); err != nil {
			return domain.Quiz{}, fmt.Errorf("unmarshal rewards: %w", err)
		}
	}
	return quiz, nil
}
