package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/aalexander1088-svg/korean-learning-bot-sub000/pkg/models"
)

// optionsSeparator joins multiple-choice options into a single TEXT column.
const optionsSeparator = "\n"

// SessionRepository persists quiz sessions and their questions
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new repository instance
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a session together with all of its questions
func (r *SessionRepository) Create(ctx context.Context, session *models.QuizSession) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO quiz_sessions (id, user_id, quiz_type, difficulty, score, completed, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), session.ID, session.UserID, session.Type, session.Difficulty,
		session.Score, session.Completed, session.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	insertQuestion := tx.Rebind(`
		INSERT INTO quiz_questions (
			id, session_id, position, word_id, question_type, prompt,
			options, answer, alternate
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	for i := range session.Questions {
		q := &session.Questions[i]
		_, err = tx.ExecContext(ctx, insertQuestion,
			q.ID, session.ID, i, q.WordID, q.Type, q.Prompt,
			strings.Join(q.Options, optionsSeparator), q.Answer, q.Alternate)
		if err != nil {
			return fmt.Errorf("failed to create question %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// SaveAnswer flushes a single answered question plus the running score to
// durable storage. Called on every answer so a crash mid-quiz loses at most
// the in-flight answer.
func (r *SessionRepository) SaveAnswer(ctx context.Context, session *models.QuizSession, idx int) error {
	if idx < 0 || idx >= len(session.Questions) {
		return fmt.Errorf("question index %d out of range", idx)
	}
	q := &session.Questions[idx]

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, tx.Rebind(`
		UPDATE quiz_questions SET
			user_answer = ?,
			correct = ?,
			skipped = ?,
			time_spent_sec = ?,
			hints = ?
		WHERE id = ?
	`), q.UserAnswer, q.Correct, q.Skipped, q.TimeSpentSec, q.Hints, q.ID)
	if err != nil {
		return fmt.Errorf("failed to save answer: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		tx.Rebind("UPDATE quiz_sessions SET score = ? WHERE id = ?"),
		session.Score, session.ID)
	if err != nil {
		return fmt.Errorf("failed to save score: %w", err)
	}

	return tx.Commit()
}

// Finalize marks the session completed and archives its final score
func (r *SessionRepository) Finalize(ctx context.Context, session *models.QuizSession) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE quiz_sessions SET score = ?, completed = ?, ended_at = ? WHERE id = ?
	`), session.Score, session.Completed, session.EndedAt, session.ID)
	if err != nil {
		return fmt.Errorf("failed to finalize session: %w", err)
	}
	return nil
}

// GetByID loads a session with its questions in order
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.QuizSession, error) {
	var session models.QuizSession
	err := r.db.GetContext(ctx, &session,
		r.db.Rebind("SELECT * FROM quiz_sessions WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	rows, err := r.db.QueryxContext(ctx, r.db.Rebind(`
		SELECT id, word_id, question_type, prompt, options, answer, alternate,
		       user_answer, correct, skipped, time_spent_sec, hints
		FROM quiz_questions WHERE session_id = ? ORDER BY position
	`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var q models.QuizQuestion
		var options string
		err := rows.Scan(&q.ID, &q.WordID, &q.Type, &q.Prompt, &options,
			&q.Answer, &q.Alternate, &q.UserAnswer, &q.Correct, &q.Skipped,
			&q.TimeSpentSec, &q.Hints)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		if options != "" {
			q.Options = strings.Split(options, optionsSeparator)
		}
		session.Questions = append(session.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read questions: %w", err)
	}

	return &session, nil
}
