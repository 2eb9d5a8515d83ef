package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/aalexander1088-svg/korean-learning-bot-sub000/pkg/models"
)

// WordRepository handles database operations for vocabulary words
type WordRepository struct {
	db *sqlx.DB
}

// NewWordRepository creates a new repository instance
func NewWordRepository(db *sqlx.DB) *WordRepository {
	return &WordRepository{db: db}
}

// Create inserts a new word
func (r *WordRepository) Create(ctx context.Context, word *models.Word) error {
	query := r.db.Rebind(`
		INSERT INTO words (korean, english, difficulty, essential, frequency)
		VALUES (?, ?, ?, ?, ?)
	`)
	result, err := r.db.ExecContext(ctx, query,
		word.Korean, word.English, word.Difficulty, word.Essential, word.Frequency)
	if err != nil {
		return fmt.Errorf("failed to create word: %w", err)
	}

	if r.db.DriverName() != "postgres" {
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert ID: %w", err)
		}
		word.ID = id
		return nil
	}

	// lib/pq has no LastInsertId support
	return r.db.QueryRowxContext(ctx,
		"SELECT id FROM words WHERE korean = $1", word.Korean).Scan(&word.ID)
}

// GetByID returns a word by ID
func (r *WordRepository) GetByID(ctx context.Context, id int64) (*models.Word, error) {
	var word models.Word
	err := r.db.GetContext(ctx, &word, r.db.Rebind("SELECT * FROM words WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("word %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get word by ID: %w", err)
	}
	return &word, nil
}

// GetByKorean returns a word by its Korean text
func (r *WordRepository) GetByKorean(ctx context.Context, korean string) (*models.Word, error) {
	var word models.Word
	err := r.db.GetContext(ctx, &word, r.db.Rebind("SELECT * FROM words WHERE korean = ?"), korean)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("word %q: %w", korean, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get word: %w", err)
	}
	return &word, nil
}

// GetAll returns all words
func (r *WordRepository) GetAll(ctx context.Context) ([]models.Word, error) {
	var words []models.Word
	err := r.db.SelectContext(ctx, &words, "SELECT * FROM words ORDER BY korean")
	if err != nil {
		return nil, fmt.Errorf("failed to get words: %w", err)
	}
	return words, nil
}

// GetEssential returns up to limit words for quiz backfill, essential words
// first, then by descending frequency so common words surface earlier.
func (r *WordRepository) GetEssential(ctx context.Context, limit int) ([]models.Word, error) {
	var words []models.Word
	query := r.db.Rebind(`
		SELECT * FROM words
		ORDER BY essential DESC, frequency DESC, id ASC
		LIMIT ?
	`)
	err := r.db.SelectContext(ctx, &words, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get essential words: %w", err)
	}
	return words, nil
}

// Update modifies an existing word. Only frequency and difficulty are
// expected to change; the knowledge base is append-only otherwise.
func (r *WordRepository) Update(ctx context.Context, word *models.Word) error {
	query := r.db.Rebind(`
		UPDATE words SET
			english = ?,
			difficulty = ?,
			essential = ?,
			frequency = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`)
	_, err := r.db.ExecContext(ctx, query,
		word.English, word.Difficulty, word.Essential, word.Frequency, word.ID)
	if err != nil {
		return fmt.Errorf("failed to update word: %w", err)
	}
	return nil
}

// IncrementFrequency bumps the global frequency counter for a word
func (r *WordRepository) IncrementFrequency(ctx context.Context, id int64) error {
	query := r.db.Rebind(
		"UPDATE words SET frequency = frequency + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?")
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment frequency: %w", err)
	}
	return nil
}

// Search finds words by pattern matching on either language
func (r *WordRepository) Search(ctx context.Context, pattern string) ([]models.Word, error) {
	var words []models.Word
	like := "%" + pattern + "%"
	query := r.db.Rebind(`
		SELECT * FROM words
		WHERE korean LIKE ? OR LOWER(english) LIKE LOWER(?)
		ORDER BY frequency DESC, korean
	`)
	err := r.db.SelectContext(ctx, &words, query, like, like)
	if err != nil {
		return nil, fmt.Errorf("failed to search words: %w", err)
	}
	return words, nil
}

// Count returns the total number of words in the knowledge base
func (r *WordRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM words")
	if err != nil {
		return 0, fmt.Errorf("failed to count words: %w", err)
	}
	return count, nil
}
