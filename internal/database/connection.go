package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Connect opens a connection to the configured database and initializes the
// schema. DB_TYPE=postgres together with DATABASE_URL selects PostgreSQL;
// anything else uses a local SQLite file under dataDir.
func Connect(dbType, databaseURL, dataDir string) (*sqlx.DB, error) {
	if dbType == "postgres" {
		db, err := sqlx.Connect("postgres", databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := initializeSchema(db); err != nil {
			return nil, err
		}
		return db, nil
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "korean.db")
	db, err := sqlx.Connect("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// SQLite doesn't support multiple writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := initializeSchema(db); err != nil {
		return nil, err
	}
	return db, nil
}

// ConnectMemory opens an in-memory SQLite database, used by tests.
func ConnectMemory() (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	// Every connection to :memory: is a separate database; keep exactly one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := initializeSchema(db); err != nil {
		return nil, err
	}
	return db, nil
}

// initializeSchema creates necessary tables if they don't exist
func initializeSchema(db *sqlx.DB) error {
	pk := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if db.DriverName() == "postgres" {
		pk = "BIGSERIAL PRIMARY KEY"
	}

	statements := []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS users (
			id %s,
			telegram_id BIGINT UNIQUE NOT NULL,
			username TEXT DEFAULT '',
			first_name TEXT DEFAULT '',
			reminder_enabled BOOLEAN DEFAULT true,
			reminder_hour INTEGER DEFAULT 9,
			words_per_quiz INTEGER DEFAULT 10,
			is_admin BOOLEAN DEFAULT false,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`, pk),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS words (
			id %s,
			korean TEXT NOT NULL UNIQUE,
			english TEXT NOT NULL,
			difficulty TEXT DEFAULT 'beginner',
			essential BOOLEAN DEFAULT false,
			frequency INTEGER DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`, pk),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS review_records (
			id %s,
			user_id BIGINT NOT NULL,
			word_id BIGINT NOT NULL,
			interval_days INTEGER DEFAULT 1,
			repetitions INTEGER DEFAULT 0,
			ease_factor REAL DEFAULT 2.5,
			last_quality INTEGER DEFAULT 0,
			times_correct INTEGER DEFAULT 0,
			times_incorrect INTEGER DEFAULT 0,
			last_review_date TIMESTAMP NOT NULL,
			next_review_date TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(user_id, word_id)
		)`, pk),
		`
		CREATE TABLE IF NOT EXISTS quiz_sessions (
			id TEXT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			quiz_type TEXT NOT NULL,
			difficulty TEXT DEFAULT 'beginner',
			score INTEGER DEFAULT 0,
			completed BOOLEAN DEFAULT false,
			started_at TIMESTAMP NOT NULL,
			ended_at TIMESTAMP
		)`,
		`
		CREATE TABLE IF NOT EXISTS quiz_questions (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			word_id BIGINT NOT NULL,
			question_type TEXT NOT NULL,
			prompt TEXT NOT NULL,
			options TEXT DEFAULT '',
			answer TEXT NOT NULL,
			alternate TEXT DEFAULT '',
			user_answer TEXT,
			correct BOOLEAN DEFAULT false,
			skipped BOOLEAN DEFAULT false,
			time_spent_sec INTEGER DEFAULT 0,
			hints INTEGER DEFAULT 0,
			UNIQUE(session_id, position)
		)`,
		`
		CREATE TABLE IF NOT EXISTS learning_progress (
			user_id BIGINT PRIMARY KEY,
			vocabulary_mastered INTEGER DEFAULT 0,
			grammar_patterns INTEGER DEFAULT 0,
			sessions_completed INTEGER DEFAULT 0,
			average_accuracy REAL DEFAULT 0,
			streak_days INTEGER DEFAULT 0,
			last_study_date TIMESTAMP,
			next_review_date TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}
