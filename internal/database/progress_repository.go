package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/aalexander1088-svg/korean-learning-bot-sub000/pkg/models"
)

// ProgressRepository handles database operations for per-user learning progress
type ProgressRepository struct {
	db *sqlx.DB
}

// NewProgressRepository creates a new repository instance
func NewProgressRepository(db *sqlx.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// GetByUserID returns the progress row for a user.
// Returns ErrNotFound if the user has never signed up.
func (r *ProgressRepository) GetByUserID(ctx context.Context, userID int64) (*models.LearningProgress, error) {
	var progress models.LearningProgress
	query := r.db.Rebind("SELECT * FROM learning_progress WHERE user_id = ?")
	err := r.db.GetContext(ctx, &progress, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("progress for user %d: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	return &progress, nil
}

// Create inserts the progress row for a new user with zeroed counters
func (r *ProgressRepository) Create(ctx context.Context, progress *models.LearningProgress) error {
	query := r.db.Rebind(`
		INSERT INTO learning_progress (
			user_id, vocabulary_mastered, grammar_patterns, sessions_completed,
			average_accuracy, streak_days, last_study_date, next_review_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := r.db.ExecContext(ctx, query,
		progress.UserID, progress.VocabularyMastered, progress.GrammarPatterns,
		progress.SessionsCompleted, progress.AverageAccuracy, progress.StreakDays,
		progress.LastStudyDate, progress.NextReviewDate)
	if err != nil {
		return fmt.Errorf("failed to create progress: %w", err)
	}
	return nil
}

// EnsureExists creates the zeroed progress row for a user on signup. Calling
// it again for an existing user is a no-op.
func (r *ProgressRepository) EnsureExists(ctx context.Context, userID int64) error {
	_, err := r.GetByUserID(ctx, userID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	return r.Create(ctx, &models.LearningProgress{UserID: userID})
}

// Update replaces the progress row after a completed session
func (r *ProgressRepository) Update(ctx context.Context, progress *models.LearningProgress) error {
	query := r.db.Rebind(`
		UPDATE learning_progress SET
			vocabulary_mastered = ?,
			grammar_patterns = ?,
			sessions_completed = ?,
			average_accuracy = ?,
			streak_days = ?,
			last_study_date = ?,
			next_review_date = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ?
	`)
	result, err := r.db.ExecContext(ctx, query,
		progress.VocabularyMastered, progress.GrammarPatterns,
		progress.SessionsCompleted, progress.AverageAccuracy, progress.StreakDays,
		progress.LastStudyDate, progress.NextReviewDate, progress.UserID)
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("progress for user %d: %w", progress.UserID, ErrNotFound)
	}
	return nil
}
