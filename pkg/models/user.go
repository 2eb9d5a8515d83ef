package models

import "time"

// User represents a Telegram user studying with the bot
type User struct {
	ID              int64     `json:"id" db:"id"`
	TelegramID      int64     `json:"telegram_id" db:"telegram_id"`
	Username        string    `json:"username" db:"username"`
	FirstName       string    `json:"first_name" db:"first_name"`
	ReminderEnabled bool      `json:"reminder_enabled" db:"reminder_enabled"`
	ReminderHour    int       `json:"reminder_hour" db:"reminder_hour"` // hour of day for due-review reminders (0-23)
	WordsPerQuiz    int       `json:"words_per_quiz" db:"words_per_quiz"`
	IsAdmin         bool      `json:"is_admin" db:"is_admin"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}
