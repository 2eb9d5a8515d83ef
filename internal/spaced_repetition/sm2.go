package spaced_repetition

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/aalexander1088-svg/korean-learning-bot-sub000/pkg/models"
)

// MinEaseFactor is the floor below which the ease factor never drops,
// clamped on every update.
const MinEaseFactor = 1.3

// ErrInvalidQuality is returned for quality ratings outside [0, 5].
var ErrInvalidQuality = errors.New("quality rating must be between 0 and 5")

// Quality ratings in SM-2
const (
	// Complete blackout, unable to recall
	QualityBlackout = 0
	// Incorrect response but remembered upon seeing the correct answer
	QualityIncorrect = 1
	// Incorrect response but the correct answer felt familiar
	QualityIncorrectFamiliar = 2
	// Correct response but required significant effort
	QualityCorrectDifficult = 3
	// Correct response after some hesitation
	QualityCorrectHesitation = 4
	// Perfect response with no hesitation
	QualityPerfect = 5
)

// SM2 implements the SuperMemo-2 algorithm for spaced repetition
type SM2 struct {
	// Quality ratings at or above this threshold count as a successful recall
	PassThreshold int
	// Maximum review interval in days
	MaxInterval int
}

// NewSM2 creates a new SM2 instance with default settings
func NewSM2() *SM2 {
	return &SM2{
		PassThreshold: 3,
		MaxInterval:   365, // one year cap
	}
}

// Update applies one review with the given quality rating and returns the
// updated review record. A nil record means first exposure. The returned
// record is a new value; persisting it is the caller's responsibility.
func (sm *SM2) Update(record *models.ReviewRecord, quality int, now time.Time) (*models.ReviewRecord, error) {
	if quality < 0 || quality > 5 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidQuality, quality)
	}

	if record == nil {
		next := &models.ReviewRecord{
			IntervalDays:   1,
			EaseFactor:     2.5,
			LastQuality:    quality,
			LastReviewDate: now,
			NextReviewDate: now.AddDate(0, 0, 1),
		}
		if quality >= sm.PassThreshold {
			next.Repetitions = 1
			next.TimesCorrect = 1
		} else {
			next.TimesIncorrect = 1
		}
		return next, nil
	}

	next := *record

	// Ease factor update, clamped to the floor on every call so repeated
	// low-quality ratings can never push it below 1.3.
	q := float64(quality)
	ease := record.EaseFactor + (0.1 - (5.0-q)*(0.08+(5.0-q)*0.02))
	if ease < MinEaseFactor {
		ease = MinEaseFactor
	}
	next.EaseFactor = ease

	if quality >= sm.PassThreshold {
		// A successful recall extends the repetition streak
		next.Repetitions = record.Repetitions + 1
		next.TimesCorrect = record.TimesCorrect + 1
	} else {
		// A poor rating resets the repetition streak; the ease factor
		// keeps its history.
		next.Repetitions = 0
		next.TimesIncorrect = record.TimesIncorrect + 1
	}

	// Interval growth uses the pre-update ease factor: the new rating
	// affects ease for subsequent reviews, not the one being applied.
	grown := int(math.Round(float64(record.IntervalDays) * record.EaseFactor))
	switch {
	case quality < sm.PassThreshold:
		// A failed recall always schedules a next-day retry
		next.IntervalDays = 1
	case record.Repetitions == 0:
		next.IntervalDays = 1
	case record.Repetitions == 1:
		// Second consecutive success: the canonical 6-day step, unless
		// the interval has already grown past it.
		next.IntervalDays = 6
		if grown > 6 {
			next.IntervalDays = grown
		}
	default:
		next.IntervalDays = grown
	}
	if next.IntervalDays > sm.MaxInterval {
		next.IntervalDays = sm.MaxInterval
	}
	if next.IntervalDays < 1 {
		next.IntervalDays = 1
	}

	next.LastQuality = quality
	next.LastReviewDate = now
	next.NextReviewDate = now.AddDate(0, 0, next.IntervalDays)
	return &next, nil
}

// IsMastered reports whether a word is considered mastered: at least 5
// consecutive successful repetitions with the latest recall rated 4 or 5.
func (sm *SM2) IsMastered(record *models.ReviewRecord) bool {
	return record != nil &&
		record.Repetitions >= 5 &&
		record.LastQuality >= QualityCorrectHesitation
}
