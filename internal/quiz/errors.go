package quiz

import "errors"

var (
	// ErrSessionNotFound is returned when a session id is not in the registry,
	// either because it never existed or was garbage-collected after idling.
	ErrSessionNotFound = errors.New("quiz session not found")

	// ErrSessionCompleted is returned for operations on an archived session.
	ErrSessionCompleted = errors.New("quiz session already completed")

	// ErrAlreadyAnswered is returned when a question receives a second answer.
	ErrAlreadyAnswered = errors.New("question already answered")

	// ErrQuestionOutOfRange is returned for an invalid question index.
	ErrQuestionOutOfRange = errors.New("question index out of range")

	// ErrOptionOutOfRange is returned for an invalid multiple-choice option index.
	ErrOptionOutOfRange = errors.New("option index out of range")

	// ErrNoVocabulary is returned when the knowledge base has no words at all.
	ErrNoVocabulary = errors.New("no vocabulary available to build a quiz")

	// ErrInvalidQuestionCount is returned for non-positive question counts.
	ErrInvalidQuestionCount = errors.New("question count must be at least 1")
)
