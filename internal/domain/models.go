package domain

import "time"

// QuizStatus tracks the quiz lifecycle. Transitions are strictly
// DRAFT -> FUNDING -> ACTIVE -> CLOSED.
type QuizStatus string

const (
	StatusDraft   QuizStatus = "DRAFT"
	StatusFunding QuizStatus = "FUNDING"
	StatusActive  QuizStatus = "ACTIVE"
	StatusClosed  QuizStatus = "CLOSED"
)

// Option is one labeled choice for a question (labels A-D).
type Option struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// Question is an MCQ with exactly one correct label. Index is the 0-based,
// stable position within its quiz; questions are immutable once the quiz
// leaves DRAFT.
type Question struct {
	Index   int      `json:"index"`
	Prompt  string   `json:"prompt"`
	Options []Option `json:"options"`
	Correct string   `json:"correct"`
}

// Quiz is an ordered set of questions plus its lifecycle metadata.
type Quiz struct {
	ID        string     `json:"id"`
	Topic     string     `json:"topic"`
	Questions []Question `json:"questions"`
	Rewards   []int64    `json:"rewards,omitempty"` // token amounts per rank
	Status    QuizStatus `json:"status"`
	GroupID   string     `json:"groupId,omitempty"`
	EndsAt    *time.Time `json:"endsAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Answer records one submission for a (player, quiz, question) triple.
// At most one Answer may ever exist per triple; rows are never mutated.
type Answer struct {
	PlayerID      string    `json:"playerId"`
	QuizID        string    `json:"quizId"`
	QuestionIndex int       `json:"questionIndex"`
	Label         string    `json:"label"`
	Correct       bool      `json:"correct"`
	SubmittedAt   time.Time `json:"submittedAt"`
}

// Participant is per-player bookkeeping within one quiz, maintained in the
// same transaction as the answer insert.
type Participant struct {
	PlayerID     string    `json:"playerId"`
	QuizID       string    `json:"quizId"`
	Answered     int       `json:"answered"`
	CorrectCount int       `json:"correctCount"`
	LastAnswerAt time.Time `json:"lastAnswerAt"`
}

// LeaderboardEntry is a derived ranking row; never persisted as authoritative.
type LeaderboardEntry struct {
	PlayerID     string    `json:"playerId"`
	CorrectCount int       `json:"correctCount"`
	TieBreakAt   time.Time `json:"tieBreakAt"`
	Rank         int       `json:"rank"`
}

// Leaderboard captures the ordered standings for a quiz.
type Leaderboard struct {
	QuizID    string             `json:"quizId"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// Outcome classifies a submission attempt. All four are expected,
// user-facing results rather than errors.
type Outcome string

const (
	OutcomeAccepted        Outcome = "accepted"
	OutcomeDuplicate       Outcome = "duplicate"
	OutcomeQuizNotActive   Outcome = "quiz_not_active"
	OutcomeInvalidQuestion Outcome = "invalid_question"
)

// SubmissionResult is what the messaging layer renders per submission.
type SubmissionResult struct {
	Outcome       Outcome `json:"outcome"`
	QuestionIndex int     `json:"questionIndex"`
	Correct       bool    `json:"correct"`
}
