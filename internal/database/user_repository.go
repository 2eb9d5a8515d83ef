package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/aalexander1088-svg/korean-learning-bot-sub000/pkg/models"
)

// UserRepository handles database operations for users
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new repository instance
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByTelegramID returns a user by their Telegram ID
func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	var user models.User
	query := r.db.Rebind("SELECT * FROM users WHERE telegram_id = ?")
	err := r.db.GetContext(ctx, &user, query, telegramID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", telegramID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetOrCreate returns the user for a Telegram ID, registering them on first
// contact with default preferences.
func (r *UserRepository) GetOrCreate(ctx context.Context, telegramID int64, username, firstName string) (*models.User, error) {
	user, err := r.GetByTelegramID(ctx, telegramID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	query := r.db.Rebind(`
		INSERT INTO users (telegram_id, username, first_name)
		VALUES (?, ?, ?)
	`)
	if _, err := r.db.ExecContext(ctx, query, telegramID, username, firstName); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return r.GetByTelegramID(ctx, telegramID)
}

// Update saves user preferences
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	query := r.db.Rebind(`
		UPDATE users SET
			username = ?,
			first_name = ?,
			reminder_enabled = ?,
			reminder_hour = ?,
			words_per_quiz = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE telegram_id = ?
	`)
	_, err := r.db.ExecContext(ctx, query,
		user.Username, user.FirstName, user.ReminderEnabled,
		user.ReminderHour, user.WordsPerQuiz, user.TelegramID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// UsersForReminder returns users who want a due-review reminder at the given hour
func (r *UserRepository) UsersForReminder(ctx context.Context, hour int) ([]models.User, error) {
	var users []models.User
	query := r.db.Rebind(
		"SELECT * FROM users WHERE reminder_enabled = ? AND reminder_hour = ?")
	err := r.db.SelectContext(ctx, &users, query, true, hour)
	if err != nil {
		return nil, fmt.Errorf("failed to get users for reminder: %w", err)
	}
	return users, nil
}
