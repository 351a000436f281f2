package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"mentalmaze-quiz-service/internal/domain"
)

// AnswerStore persists answers in Postgres. The primary key on
// (quiz_id, player_id, question_index) is the authoritative duplicate guard:
// ON CONFLICT DO NOTHING resolves racing submissions atomically, so the store
// never needs an in-process lock around the insert.
type AnswerStore struct {
	pool *pgxpool.Pool
}

func NewAnswerStore(pool *pgxpool.Pool) *AnswerStore {
	return &AnswerStore{pool: pool}
}

// InsertIfAbsent stages the answer row and its participant bookkeeping in one
// transaction and commits once, keeping lock hold time bounded and ruling out
// a state where the answer is durable but the bookkeeping is not.
func (s *AnswerStore) InsertIfAbsent(ctx context.Context, answer domain.Answer) (bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO answers (quiz_id, player_id, question_index, label, correct, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (quiz_id, player_id, question_index) DO NOTHING`,
		answer.QuizID, answer.PlayerID, answer.QuestionIndex, answer.Label, answer.Correct, answer.SubmittedAt)
	if err != nil {
		return false, fmt.Errorf("insert answer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Lost the race or a straight resubmit; nothing staged, nothing to commit.
		return false, nil
	}

	correctInc := 0
	if answer.Correct {
		correctInc = 1
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO quiz_participants (quiz_id, player_id, answered, correct_count, last_answer_at)
		VALUES ($1, $2, 1, $3, $4)
		ON CONFLICT (quiz_id, player_id) DO UPDATE SET
			answered = quiz_participants.answered + 1,
			correct_count = quiz_participants.correct_count + EXCLUDED.correct_count,
			last_answer_at = GREATEST(quiz_participants.last_answer_at, EXCLUDED.last_answer_at)`,
		answer.QuizID, answer.PlayerID, correctInc, answer.SubmittedAt); err != nil {
		return false, fmt.Errorf("update participant: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

func (s *AnswerStore) QuizAnswers(ctx context.Context, quizID string) ([]domain.Answer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT quiz_id, player_id, question_index, label, correct, submitted_at
		FROM answers WHERE quiz_id = $1
		ORDER BY submitted_at, player_id, question_index`, quizID)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer rows.Close()

	var out []domain.Answer
	for rows.Next() {
		var a domain.Answer
		if err := rows.Scan(&a.QuizID, &a.PlayerID, &a.QuestionIndex, &a.Label, &a.Correct, &a.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *AnswerStore) PlayerAnswered(ctx context.Context, quizID, playerID string) ([]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT question_index FROM answers
		WHERE quiz_id = $1 AND player_id = $2
		ORDER BY question_index`, quizID, playerID)
	if err != nil {
		return nil, fmt.Errorf("query answered: %w", err)
	}
	defer rows.Close()

	var indexes []int
	for rows.Next() {
		var idx int
		if err := rows.Scan(&idx); err != nil {
			return nil, fmt.Errorf("scan index: %w", err)
		}
		indexes = append(indexes, idx)
	}
	return indexes, rows.Err()
}

func (s *AnswerStore) Participants(ctx context.Context, quizID string) ([]domain.Participant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT quiz_id, player_id, answered, correct_count, last_answer_at
		FROM quiz_participants WHERE quiz_id = $1
		ORDER BY player_id`, quizID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	var out []domain.Participant
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.QuizID, &p.PlayerID, &p.Answered, &p.CorrectCount, &p.LastAnswerAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
