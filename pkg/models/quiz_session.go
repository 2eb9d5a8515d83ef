package models

import (
	"time"

	"github.com/google/uuid"
)

// QuizType identifies the kind of questions a session is built from.
type QuizType string

const (
	QuizVocabKoEn QuizType = "vocab_ko_en" // shown Korean, answer in English
	QuizVocabEnKo QuizType = "vocab_en_ko" // shown English, answer in Korean
	QuizGrammar   QuizType = "grammar"
	QuizSentence  QuizType = "sentence"
	QuizFillBlank QuizType = "fill_blank"
	QuizMixed     QuizType = "mixed"
)

// QuizQuestion is a single question inside a session. It is created at
// session-build time and mutated exactly once, when answered or skipped.
type QuizQuestion struct {
	ID           uuid.UUID `json:"id" db:"id"`
	WordID       int64     `json:"word_id" db:"word_id"`
	Type         QuizType  `json:"type" db:"question_type"`
	Prompt       string    `json:"prompt" db:"prompt"`
	Options      []string  `json:"options,omitempty" db:"-"` // multiple-choice options, empty for free input
	Answer       string    `json:"answer" db:"answer"`
	Alternate    string    `json:"alternate" db:"alternate"` // the other side of the card, also accepted
	UserAnswer   *string   `json:"user_answer" db:"user_answer"`
	Correct      bool      `json:"correct" db:"correct"`
	Skipped      bool      `json:"skipped" db:"skipped"`
	TimeSpentSec int       `json:"time_spent_sec" db:"time_spent_sec"`
	Hints        int       `json:"hints" db:"hints"`
}

// Answered reports whether the question has received its one allowed mutation.
func (q *QuizQuestion) Answered() bool {
	return q.UserAnswer != nil || q.Skipped
}

// QuizSession is a bounded sequence of questions for one user. It is owned
// by the session manager while in progress and becomes an immutable summary
// once completed.
type QuizSession struct {
	ID         uuid.UUID      `json:"id" db:"id"`
	UserID     int64          `json:"user_id" db:"user_id"`
	Type       QuizType       `json:"type" db:"quiz_type"`
	Difficulty string         `json:"difficulty" db:"difficulty"`
	Questions  []QuizQuestion `json:"questions" db:"-"`
	Score      int            `json:"score" db:"score"`
	Completed  bool           `json:"completed" db:"completed"`
	StartedAt  time.Time      `json:"started_at" db:"started_at"`
	EndedAt    *time.Time     `json:"ended_at" db:"ended_at"`
}

// TotalQuestions returns the number of questions in the session.
func (s *QuizSession) TotalQuestions() int {
	return len(s.Questions)
}

// AnsweredCount returns how many questions have been answered or skipped.
func (s *QuizSession) AnsweredCount() int {
	n := 0
	for i := range s.Questions {
		if s.Questions[i].Answered() {
			n++
		}
	}
	return n
}
