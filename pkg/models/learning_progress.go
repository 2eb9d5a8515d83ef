package models

import "time"

// LearningProgress aggregates a user's overall study state. One row per
// user, created on signup, updated after every completed session, never
// deleted. Weak/strong word lists are derived views computed from review
// counters and are deliberately not stored here.
type LearningProgress struct {
	UserID             int64      `json:"user_id" db:"user_id"`
	VocabularyMastered int        `json:"vocabulary_mastered" db:"vocabulary_mastered"`
	GrammarPatterns    int        `json:"grammar_patterns" db:"grammar_patterns"`
	SessionsCompleted  int        `json:"sessions_completed" db:"sessions_completed"`
	AverageAccuracy    float64    `json:"average_accuracy" db:"average_accuracy"` // running mean over all completed sessions
	StreakDays         int        `json:"streak_days" db:"streak_days"`
	LastStudyDate      *time.Time `json:"last_study_date" db:"last_study_date"`
	NextReviewDate     *time.Time `json:"next_review_date" db:"next_review_date"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
}
