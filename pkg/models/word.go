package models

import "time"

// Difficulty tiers for vocabulary items
const (
	DifficultyBeginner     = "beginner"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"
)

// Word represents a Korean vocabulary item to be learned.
// Words are append-only knowledge: created on ingestion, mutated only to
// bump frequency or difficulty, never deleted.
type Word struct {
	ID         int64     `json:"id" db:"id"`
	Korean     string    `json:"korean" db:"korean"`
	English    string    `json:"english" db:"english"`
	Difficulty string    `json:"difficulty" db:"difficulty"` // beginner / intermediate / advanced
	Essential  bool      `json:"essential" db:"essential"`   // high-priority word, used to backfill quizzes
	Frequency  int       `json:"frequency" db:"frequency"`   // times the word was seen across source texts
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
