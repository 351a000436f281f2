package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz does not exist in the catalog.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a question index is out of range.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrInvalidTransition is returned when a lifecycle change skips a state
	// or targets a quiz that already moved on.
	ErrInvalidTransition = errors.New("invalid quiz status transition")
	// ErrStoreUnavailable wraps transient answer-store failures that the
	// caller may retry; the retry is safe because the duplicate path absorbs
	// an attempt that actually committed.
	ErrStoreUnavailable = errors.New("answer store unavailable")
)
