package models

import "time"

// ReviewRecord tracks a user's spaced repetition state for a single word
// using the SM-2 algorithm. One record exists per user/word pair, created
// lazily on the first review and mutated only by the review scheduler.
type ReviewRecord struct {
	ID             int64     `json:"id" db:"id"`
	UserID         int64     `json:"user_id" db:"user_id"`
	WordID         int64     `json:"word_id" db:"word_id"`
	IntervalDays   int       `json:"interval_days" db:"interval_days"` // current interval in days, always >= 1
	Repetitions    int       `json:"repetitions" db:"repetitions"`     // successful repetition streak, reset by a poor rating
	EaseFactor     float64   `json:"ease_factor" db:"ease_factor"`     // SM-2 EF parameter, never below 1.3
	LastQuality    int       `json:"last_quality" db:"last_quality"`   // 0-5 rating of last recall
	TimesCorrect   int       `json:"times_correct" db:"times_correct"`
	TimesIncorrect int       `json:"times_incorrect" db:"times_incorrect"`
	LastReviewDate time.Time `json:"last_review_date" db:"last_review_date"`
	NextReviewDate time.Time `json:"next_review_date" db:"next_review_date"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// ReviewCount is the total number of reviews recorded for the word,
// regardless of outcome.
func (r *ReviewRecord) ReviewCount() int {
	return r.TimesCorrect + r.TimesIncorrect
}
