package progress

import (
	"context"
	"errors"
	"time"

	"github.com/aalexander1088-svg/korean-learning-bot-sub000/pkg/models"
)

// ErrEmptySession is returned when a session with zero questions is recorded.
var ErrEmptySession = errors.New("session has no questions")

// WordStats provides the per-word counters the weak/strong classification
// is derived from. Implemented by the review repository.
type WordStats interface {
	WeakWords(ctx context.Context, userID int64) ([]models.Word, error)
	StrongWords(ctx context.Context, userID int64) ([]models.Word, error)
}

// Tracker aggregates completed quiz sessions into per-user learning progress.
type Tracker struct {
	stats WordStats
}

// NewTracker creates a tracker backed by the given word statistics source
func NewTracker(stats WordStats) *Tracker {
	return &Tracker{stats: stats}
}

// RecordSession folds one completed session into the user's progress and
// returns the updated progress as a new value; nothing is persisted here.
// The average accuracy is a running mean over all completed sessions, not a
// windowed one.
func (t *Tracker) RecordSession(progress *models.LearningProgress, session *models.QuizSession, now time.Time) (*models.LearningProgress, error) {
	total := session.TotalQuestions()
	if total < 1 {
		return nil, ErrEmptySession
	}

	accuracy := float64(session.Score) / float64(total)

	next := *progress
	next.AverageAccuracy = (progress.AverageAccuracy*float64(progress.SessionsCompleted) + accuracy) /
		float64(progress.SessionsCompleted+1)
	next.SessionsCompleted = progress.SessionsCompleted + 1
	next.StreakDays = calculateStreak(progress.LastStudyDate, now)
	studied := now
	next.LastStudyDate = &studied

	for i := range session.Questions {
		q := &session.Questions[i]
		if q.Type == models.QuizGrammar && q.Correct {
			next.GrammarPatterns++
		}
	}

	return &next, nil
}

// calculateStreak returns 1 when the previous study happened within the last
// 24 hours (inclusive) of now, else 0.
//
// NOTE: despite the name this is not a consecutive-day counter; the value
// never exceeds 1. That matches the historical behavior and is pinned by
// tests; changing it to a real streak is a product decision, not a bug fix.
func calculateStreak(lastStudy *time.Time, now time.Time) int {
	if lastStudy == nil {
		return 0
	}
	if d := now.Sub(*lastStudy); d >= 0 && d <= 24*time.Hour {
		return 1
	}
	return 0
}

// WeakAreas returns the words the user answers wrong more often than right.
// Derived on demand from review counters, never stored.
func (t *Tracker) WeakAreas(ctx context.Context, userID int64) ([]models.Word, error) {
	return t.stats.WeakWords(ctx, userID)
}

// StrongAreas returns the words reviewed often enough to count as strong
// candidates. Derived on demand from review counters, never stored.
func (t *Tracker) StrongAreas(ctx context.Context, userID int64) ([]models.Word, error) {
	return t.stats.StrongWords(ctx, userID)
}
