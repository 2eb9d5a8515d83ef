package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/aalexander1088-svg/korean-learning-bot-sub000/pkg/models"
)

// ReviewRepository handles database operations for spaced repetition records
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository creates a new repository instance
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// GetByUserAndWord returns the review record for a user/word pair.
// Returns ErrNotFound if the word has never been reviewed by the user.
func (r *ReviewRepository) GetByUserAndWord(ctx context.Context, userID, wordID int64) (*models.ReviewRecord, error) {
	var rec models.ReviewRecord
	query := r.db.Rebind("SELECT * FROM review_records WHERE user_id = ? AND word_id = ?")
	err := r.db.GetContext(ctx, &rec, query, userID, wordID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("review record user=%d word=%d: %w", userID, wordID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review record: %w", err)
	}
	return &rec, nil
}

// Upsert creates or replaces the review record for its user/word pair.
// The row update is atomic; one record exists per pair.
func (r *ReviewRepository) Upsert(ctx context.Context, rec *models.ReviewRecord) error {
	var existingID int64
	err := r.db.QueryRowxContext(ctx,
		r.db.Rebind("SELECT id FROM review_records WHERE user_id = ? AND word_id = ?"),
		rec.UserID, rec.WordID).Scan(&existingID)

	if err == nil {
		rec.ID = existingID
		query := r.db.Rebind(`
			UPDATE review_records SET
				interval_days = ?,
				repetitions = ?,
				ease_factor = ?,
				last_quality = ?,
				times_correct = ?,
				times_incorrect = ?,
				last_review_date = ?,
				next_review_date = ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`)
		_, err = r.db.ExecContext(ctx, query,
			rec.IntervalDays, rec.Repetitions, rec.EaseFactor, rec.LastQuality,
			rec.TimesCorrect, rec.TimesIncorrect,
			rec.LastReviewDate, rec.NextReviewDate, rec.ID)
		if err != nil {
			return fmt.Errorf("failed to update review record: %w", err)
		}
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to look up review record: %w", err)
	}

	query := r.db.Rebind(`
		INSERT INTO review_records (
			user_id, word_id, interval_days, repetitions, ease_factor,
			last_quality, times_correct, times_incorrect,
			last_review_date, next_review_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	result, err := r.db.ExecContext(ctx, query,
		rec.UserID, rec.WordID, rec.IntervalDays, rec.Repetitions, rec.EaseFactor,
		rec.LastQuality, rec.TimesCorrect, rec.TimesIncorrect,
		rec.LastReviewDate, rec.NextReviewDate)
	if err != nil {
		return fmt.Errorf("failed to create review record: %w", err)
	}

	if r.db.DriverName() != "postgres" {
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert ID: %w", err)
		}
		rec.ID = id
		return nil
	}
	return r.db.QueryRowxContext(ctx,
		"SELECT id FROM review_records WHERE user_id = $1 AND word_id = $2",
		rec.UserID, rec.WordID).Scan(&rec.ID)
}

// DueForReview returns up to limit words due for review by the user: words
// whose next review date has passed, plus words with no review record yet.
// Never-reviewed words come first, then by ascending next review date, ties
// broken by descending global frequency and ascending word id, so the result
// is deterministic for a fixed clock and fixed data.
func (r *ReviewRepository) DueForReview(ctx context.Context, userID int64, now time.Time, limit int) ([]models.Word, error) {
	var words []models.Word
	query := r.db.Rebind(`
		SELECT w.* FROM words w
		LEFT JOIN review_records rr ON rr.word_id = w.id AND rr.user_id = ?
		WHERE rr.id IS NULL OR rr.next_review_date <= ?
		ORDER BY
			CASE WHEN rr.next_review_date IS NULL THEN 0 ELSE 1 END,
			rr.next_review_date ASC,
			w.frequency DESC,
			w.id ASC
		LIMIT ?
	`)
	err := r.db.SelectContext(ctx, &words, query, userID, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get due words: %w", err)
	}
	return words, nil
}

// CountDue returns how many words are currently due for the user
func (r *ReviewRepository) CountDue(ctx context.Context, userID int64, now time.Time) (int, error) {
	var count int
	query := r.db.Rebind(`
		SELECT COUNT(*) FROM words w
		LEFT JOIN review_records rr ON rr.word_id = w.id AND rr.user_id = ?
		WHERE rr.id IS NULL OR rr.next_review_date <= ?
	`)
	err := r.db.GetContext(ctx, &count, query, userID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to count due words: %w", err)
	}
	return count, nil
}

// CountMastered returns how many words the user has mastered: reviewed at
// least 5 times in a row with the latest recall rated 4 or better.
func (r *ReviewRepository) CountMastered(ctx context.Context, userID int64) (int, error) {
	var count int
	query := r.db.Rebind(
		"SELECT COUNT(*) FROM review_records WHERE user_id = ? AND repetitions >= 5 AND last_quality >= 4")
	err := r.db.GetContext(ctx, &count, query, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count mastered words: %w", err)
	}
	return count, nil
}

// EarliestDue returns the user's next scheduled review date, or nil if the
// user has no review records. Selects the column directly rather than
// MIN(...): go-sqlite3 only converts TIMESTAMP values for plain column
// selects, aggregates come back as TEXT.
func (r *ReviewRepository) EarliestDue(ctx context.Context, userID int64) (*time.Time, error) {
	var next time.Time
	query := r.db.Rebind(`
		SELECT next_review_date FROM review_records
		WHERE user_id = ?
		ORDER BY next_review_date ASC
		LIMIT 1
	`)
	err := r.db.GetContext(ctx, &next, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get earliest due date: %w", err)
	}
	return &next, nil
}

// WeakWords returns words the user gets wrong more often than right
func (r *ReviewRepository) WeakWords(ctx context.Context, userID int64) ([]models.Word, error) {
	var words []models.Word
	query := r.db.Rebind(`
		SELECT w.* FROM words w
		JOIN review_records rr ON rr.word_id = w.id
		WHERE rr.user_id = ? AND rr.times_incorrect > rr.times_correct
		ORDER BY rr.times_incorrect - rr.times_correct DESC, w.id ASC
	`)
	err := r.db.SelectContext(ctx, &words, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get weak words: %w", err)
	}
	return words, nil
}

// StrongWords returns words reviewed at least 3 times, the candidates for
// the user's strong areas.
func (r *ReviewRepository) StrongWords(ctx context.Context, userID int64) ([]models.Word, error) {
	var words []models.Word
	query := r.db.Rebind(`
		SELECT w.* FROM words w
		JOIN review_records rr ON rr.word_id = w.id
		WHERE rr.user_id = ? AND rr.times_correct + rr.times_incorrect >= 3
		ORDER BY rr.times_correct DESC, w.id ASC
	`)
	err := r.db.SelectContext(ctx, &words, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get strong words: %w", err)
	}
	return words, nil
}
