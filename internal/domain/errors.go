package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a session id is unknown or already closed.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrSessionNotActive is returned when answering before a quiz was created.
	ErrSessionNotActive = errors.New("quiz session is not active")
	// ErrSessionAlreadyActive is returned when a second quiz is submitted to a session.
	ErrSessionAlreadyActive = errors.New("quiz session already active")
	// ErrSessionClosed is returned for operations on a torn-down session.
	ErrSessionClosed = errors.New("quiz session closed")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a question index outside the quiz.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates an option key the question does not offer.
	ErrOptionNotFound = errors.New("option not found")
	// ErrInvalidDuration is returned for non-numeric or non-positive durations.
	ErrInvalidDuration = errors.New("duration must be a positive number of minutes")
	// ErrPersistQuiz wraps failures of the quiz store.
	ErrPersistQuiz = errors.New("could not save quiz")
)
