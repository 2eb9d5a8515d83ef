package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aalexander1088-svg/korean-learning-bot-sub000/internal/ai"
	"github.com/aalexander1088-svg/korean-learning-bot-sub000/internal/database"
	"github.com/aalexander1088-svg/korean-learning-bot-sub000/internal/progress"
	"github.com/aalexander1088-svg/korean-learning-bot-sub000/internal/spaced_repetition"
	"github.com/aalexander1088-svg/korean-learning-bot-sub000/pkg/models"
)

// WordSource supplies quiz candidate words
type WordSource interface {
	DueForReview(ctx context.Context, userID int64, now time.Time, limit int) ([]models.Word, error)
	GetEssential(ctx context.Context, limit int) ([]models.Word, error)
}

// ReviewStore persists per-word spaced repetition state
type ReviewStore interface {
	GetByUserAndWord(ctx context.Context, userID, wordID int64) (*models.ReviewRecord, error)
	Upsert(ctx context.Context, record *models.ReviewRecord) error
	CountMastered(ctx context.Context, userID int64) (int, error)
	EarliestDue(ctx context.Context, userID int64) (*time.Time, error)
}

// ProgressStore persists aggregated learning progress
type ProgressStore interface {
	GetByUserID(ctx context.Context, userID int64) (*models.LearningProgress, error)
	Create(ctx context.Context, p *models.LearningProgress) error
	Update(ctx context.Context, p *models.LearningProgress) error
}

// SessionStore archives sessions and durably flushes individual answers
type SessionStore interface {
	Create(ctx context.Context, session *models.QuizSession) error
	SaveAnswer(ctx context.Context, session *models.QuizSession, questionIndex int) error
	Finalize(ctx context.Context, session *models.QuizSession) error
}

// AnswerResult is the outcome of answering or skipping one question.
type AnswerResult struct {
	Correct bool
	Skipped bool
	// Answer is the expected answer, for display after grading
	Answer string
	// Completed is true when this was the last open question and the
	// session has been finalized.
	Completed bool
	Session   *models.QuizSession
}

// Manager drives quiz sessions from building through grading to completion.
// All mutation of a user's learning state goes through the per-user lock, so
// a user's answers apply strictly one at a time; different users proceed in
// parallel.
type Manager struct {
	words      WordSource
	reviews    ReviewStore
	progresses ProgressStore
	sessions   SessionStore
	generator  ai.Generator
	registry   *Registry
	sm2        *spaced_repetition.SM2
	tracker    *progress.Tracker

	now func() time.Time
}

// NewManager wires a quiz manager. The generator may be nil, in which case
// every question uses the templated fallback. The registry is shared with
// whatever runs the idle sweep.
func NewManager(words WordSource, reviews ReviewStore, progresses ProgressStore, sessions SessionStore, generator ai.Generator, tracker *progress.Tracker, registry *Registry) *Manager {
	return &Manager{
		words:      words,
		reviews:    reviews,
		progresses: progresses,
		sessions:   sessions,
		generator:  generator,
		registry:   registry,
		sm2:        spaced_repetition.NewSM2(),
		tracker:    tracker,
		now:        time.Now,
	}
}

// StartSession builds a new quiz for the user: due words first, backfilled
// with essential vocabulary, repeating cyclically when the knowledge base is
// smaller than the requested count. Any previous active session for the user
// is abandoned without store side effects.
//
// Word selection and question generation run before the user lock is taken,
// so slow external calls never hold up the user's other writes.
func (m *Manager) StartSession(ctx context.Context, userID int64, quizType models.QuizType, difficulty string, questionCount int) (*models.QuizSession, error) {
	if questionCount < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidQuestionCount, questionCount)
	}
	now := m.now()

	pool, err := m.selectWords(ctx, userID, now, questionCount)
	if err != nil {
		return nil, err
	}

	rnd := rand.New(rand.NewSource(now.UnixNano()))
	session := &models.QuizSession{
		ID:         uuid.New(),
		UserID:     userID,
		Type:       quizType,
		Difficulty: difficulty,
		Questions:  m.buildQuestions(ctx, pool, quizType, difficulty, questionCount, rnd),
		StartedAt:  now,
	}

	lock := m.registry.LockUser(userID)
	lock.Lock()
	defer lock.Unlock()

	if err := m.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("archiving new session: %w", err)
	}
	m.registry.Register(session, now)

	slog.Info("quiz session started",
		"user_id", userID, "session_id", session.ID,
		"type", string(quizType), "questions", len(session.Questions))
	return session, nil
}

// selectWords picks up to count distinct words: everything due for review, in
// due order, then essential vocabulary the due list did not already cover.
func (m *Manager) selectWords(ctx context.Context, userID int64, now time.Time, count int) ([]models.Word, error) {
	pool, err := m.words.DueForReview(ctx, userID, now, count)
	if err != nil {
		return nil, fmt.Errorf("loading due words: %w", err)
	}

	if len(pool) < count {
		backfill, err := m.words.GetEssential(ctx, count)
		if err != nil {
			return nil, fmt.Errorf("loading essential words: %w", err)
		}
		seen := make(map[int64]bool, len(pool))
		for _, w := range pool {
			seen[w.ID] = true
		}
		for _, w := range backfill {
			if len(pool) >= count {
				break
			}
			if seen[w.ID] {
				continue
			}
			seen[w.ID] = true
			pool = append(pool, w)
		}
	}

	if len(pool) == 0 {
		return nil, ErrNoVocabulary
	}
	return pool, nil
}

// gradedAnswer is what a pick callback resolves inside the user lock: which
// question to grade and with what.
type gradedAnswer struct {
	index  int
	answer string
	skip   bool
}

// SubmitAnswer grades one answer, flushes it durably, and finalizes the
// session when it was the last open question. Matching is case-insensitive,
// whitespace-trimmed, and accepts either language side of the card.
func (m *Manager) SubmitAnswer(ctx context.Context, sessionID uuid.UUID, questionIndex int, userAnswer string) (*AnswerResult, error) {
	return m.applyAnswer(ctx, sessionID, func(*models.QuizSession) (gradedAnswer, error) {
		return gradedAnswer{index: questionIndex, answer: userAnswer}, nil
	})
}

// SubmitCurrentAnswer grades a typed answer against the session's first open
// question. The open question is located under the user lock so concurrent
// updates from the same user cannot race on question state.
func (m *Manager) SubmitCurrentAnswer(ctx context.Context, sessionID uuid.UUID, userAnswer string) (*AnswerResult, error) {
	return m.applyAnswer(ctx, sessionID, func(session *models.QuizSession) (gradedAnswer, error) {
		idx := openQuestionIndex(session)
		if idx < 0 {
			return gradedAnswer{}, fmt.Errorf("%w: no open question", ErrQuestionOutOfRange)
		}
		return gradedAnswer{index: idx, answer: userAnswer}, nil
	})
}

// SubmitOption grades the chosen multiple-choice option of a question. The
// option text is resolved inside the user lock.
func (m *Manager) SubmitOption(ctx context.Context, sessionID uuid.UUID, questionIndex, optionIndex int) (*AnswerResult, error) {
	return m.applyAnswer(ctx, sessionID, func(session *models.QuizSession) (gradedAnswer, error) {
		if questionIndex < 0 || questionIndex >= len(session.Questions) {
			return gradedAnswer{}, fmt.Errorf("%w: index %d of %d", ErrQuestionOutOfRange, questionIndex, len(session.Questions))
		}
		options := session.Questions[questionIndex].Options
		if optionIndex < 0 || optionIndex >= len(options) {
			return gradedAnswer{}, fmt.Errorf("%w: option %d of %d", ErrOptionOutOfRange, optionIndex, len(options))
		}
		return gradedAnswer{index: questionIndex, answer: options[optionIndex]}, nil
	})
}

// SkipQuestion marks a question as skipped. Skips count as incorrect for the
// score and rate the word a complete blackout at completion.
func (m *Manager) SkipQuestion(ctx context.Context, sessionID uuid.UUID, questionIndex int) (*AnswerResult, error) {
	return m.applyAnswer(ctx, sessionID, func(*models.QuizSession) (gradedAnswer, error) {
		return gradedAnswer{index: questionIndex, skip: true}, nil
	})
}

// SkipCurrent skips the session's first open question
func (m *Manager) SkipCurrent(ctx context.Context, sessionID uuid.UUID) (*AnswerResult, error) {
	return m.applyAnswer(ctx, sessionID, func(session *models.QuizSession) (gradedAnswer, error) {
		idx := openQuestionIndex(session)
		if idx < 0 {
			return gradedAnswer{}, fmt.Errorf("%w: no open question", ErrQuestionOutOfRange)
		}
		return gradedAnswer{index: idx, skip: true}, nil
	})
}

func (m *Manager) applyAnswer(ctx context.Context, sessionID uuid.UUID, pick func(*models.QuizSession) (gradedAnswer, error)) (*AnswerResult, error) {
	session, err := m.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}

	lock := m.registry.LockUser(session.UserID)
	lock.Lock()
	defer lock.Unlock()

	if session.Completed {
		return nil, ErrSessionCompleted
	}
	graded, err := pick(session)
	if err != nil {
		return nil, err
	}
	if graded.index < 0 || graded.index >= len(session.Questions) {
		return nil, fmt.Errorf("%w: index %d of %d", ErrQuestionOutOfRange, graded.index, len(session.Questions))
	}
	q := &session.Questions[graded.index]
	if q.Answered() {
		return nil, ErrAlreadyAnswered
	}

	elapsed := m.registry.Touch(sessionID, m.now())
	q.TimeSpentSec = int(elapsed.Seconds())
	if graded.skip {
		q.Skipped = true
	} else {
		answer := strings.TrimSpace(graded.answer)
		q.UserAnswer = &answer
		q.Correct = matchesAnswer(q, answer)
		if q.Correct {
			session.Score++
		}
	}

	// The answer is flushed before the session proceeds: a crash or idle
	// sweep afterwards loses the in-memory session but not this answer.
	if err := m.sessions.SaveAnswer(ctx, session, graded.index); err != nil {
		return nil, fmt.Errorf("flushing answer: %w", err)
	}

	result := &AnswerResult{
		Correct: q.Correct,
		Skipped: q.Skipped,
		Answer:  q.Answer,
		Session: session,
	}
	if session.AnsweredCount() == session.TotalQuestions() {
		if err := m.complete(ctx, session); err != nil {
			return nil, err
		}
		result.Completed = true
	}
	return result, nil
}

// EndEarly finalizes a session before all questions are answered. Only the
// questions already answered feed the scheduler and progress; with nothing
// answered the session is dropped outright, same as abandonment.
func (m *Manager) EndEarly(ctx context.Context, sessionID uuid.UUID) (*models.QuizSession, error) {
	session, err := m.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}

	lock := m.registry.LockUser(session.UserID)
	lock.Lock()
	defer lock.Unlock()

	if session.Completed {
		return nil, ErrSessionCompleted
	}
	if session.AnsweredCount() == 0 {
		m.registry.Remove(sessionID)
		slog.Info("quiz session discarded, nothing answered",
			"user_id", session.UserID, "session_id", session.ID)
		return session, nil
	}
	if err := m.complete(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// CurrentQuestion returns the index and a copy of the session's first open
// question plus the total question count, read under the user lock so
// renderers never observe a question mid-grade.
func (m *Manager) CurrentQuestion(sessionID uuid.UUID) (int, models.QuizQuestion, int, error) {
	session, err := m.registry.Get(sessionID)
	if err != nil {
		return 0, models.QuizQuestion{}, 0, err
	}

	lock := m.registry.LockUser(session.UserID)
	lock.Lock()
	defer lock.Unlock()

	if session.Completed {
		return 0, models.QuizQuestion{}, 0, ErrSessionCompleted
	}
	idx := openQuestionIndex(session)
	if idx < 0 {
		return 0, models.QuizQuestion{}, 0, fmt.Errorf("%w: no open question", ErrQuestionOutOfRange)
	}
	return idx, session.Questions[idx], len(session.Questions), nil
}

// openQuestionIndex returns the index of the first unanswered question, or
// -1 when everything is answered. Caller holds the user lock.
func openQuestionIndex(session *models.QuizSession) int {
	for i := range session.Questions {
		if !session.Questions[i].Answered() {
			return i
		}
	}
	return -1
}

// ActiveForUser returns the user's in-flight session, if any
func (m *Manager) ActiveForUser(userID int64) (*models.QuizSession, bool) {
	return m.registry.ActiveForUser(userID)
}

// complete finalizes a session: archives it, applies one scheduler update per
// answered question, folds the session into the user's progress, and drops
// the session from the registry. Caller holds the user lock.
func (m *Manager) complete(ctx context.Context, session *models.QuizSession) error {
	now := m.now()
	session.Completed = true
	session.EndedAt = &now

	if err := m.sessions.Finalize(ctx, session); err != nil {
		return fmt.Errorf("finalizing session: %w", err)
	}

	for i := range session.Questions {
		if !session.Questions[i].Answered() {
			continue
		}
		if err := m.applyReview(ctx, session.UserID, &session.Questions[i], now); err != nil {
			return err
		}
	}

	if err := m.updateProgress(ctx, session, now); err != nil {
		return err
	}

	m.registry.Remove(session.ID)
	slog.Info("quiz session completed",
		"user_id", session.UserID, "session_id", session.ID,
		"score", session.Score, "answered", session.AnsweredCount())
	return nil
}

// applyReview runs one SM-2 update for a graded question's word
func (m *Manager) applyReview(ctx context.Context, userID int64, q *models.QuizQuestion, now time.Time) error {
	record, err := m.reviews.GetByUserAndWord(ctx, userID, q.WordID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("loading review record for word %d: %w", q.WordID, err)
	}

	next, err := m.sm2.Update(record, questionQuality(q), now)
	if err != nil {
		return err
	}
	next.UserID = userID
	next.WordID = q.WordID
	if record != nil {
		next.ID = record.ID
	}
	if err := m.reviews.Upsert(ctx, next); err != nil {
		return fmt.Errorf("saving review record for word %d: %w", q.WordID, err)
	}
	return nil
}

// updateProgress folds the session into the user's stored progress and
// refreshes the derived mastered count and next review date.
func (m *Manager) updateProgress(ctx context.Context, session *models.QuizSession, now time.Time) error {
	current, err := m.progresses.GetByUserID(ctx, session.UserID)
	if errors.Is(err, database.ErrNotFound) {
		current = &models.LearningProgress{UserID: session.UserID}
		if err := m.progresses.Create(ctx, current); err != nil {
			return fmt.Errorf("creating progress: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("loading progress: %w", err)
	}

	// A session ended early is scored over the answered questions only, so
	// the unanswered tail cannot drag the accuracy down.
	summary := session
	if session.AnsweredCount() < session.TotalQuestions() {
		trimmed := *session
		trimmed.Questions = make([]models.QuizQuestion, 0, session.AnsweredCount())
		for _, q := range session.Questions {
			if q.Answered() {
				trimmed.Questions = append(trimmed.Questions, q)
			}
		}
		summary = &trimmed
	}

	next, err := m.tracker.RecordSession(current, summary, now)
	if err != nil {
		return fmt.Errorf("recording session: %w", err)
	}

	mastered, err := m.reviews.CountMastered(ctx, session.UserID)
	if err != nil {
		return fmt.Errorf("counting mastered words: %w", err)
	}
	next.VocabularyMastered = mastered

	nextDue, err := m.reviews.EarliestDue(ctx, session.UserID)
	if err != nil {
		return fmt.Errorf("finding next review date: %w", err)
	}
	next.NextReviewDate = nextDue

	if err := m.progresses.Update(ctx, next); err != nil {
		return fmt.Errorf("saving progress: %w", err)
	}
	return nil
}

// matchesAnswer grades one answer: case-insensitive, whitespace-trimmed, and
// either the generated answer or the other language side of the card counts.
func matchesAnswer(q *models.QuizQuestion, userAnswer string) bool {
	given := strings.TrimSpace(userAnswer)
	if given == "" {
		return false
	}
	for _, accepted := range []string{q.Answer, q.Alternate} {
		if accepted != "" && strings.EqualFold(strings.TrimSpace(accepted), given) {
			return true
		}
	}
	return false
}

// questionQuality maps a graded question onto an SM-2 rating. The quiz never
// collects a self-assessed 0-5 signal, so right, wrong, and skipped are all
// the information there is: 4, 1, and 0 respectively.
func questionQuality(q *models.QuizQuestion) int {
	switch {
	case q.Skipped:
		return spaced_repetition.QualityBlackout
	case q.Correct:
		return spaced_repetition.QualityCorrectHesitation
	default:
		return spaced_repetition.QualityIncorrect
	}
}
