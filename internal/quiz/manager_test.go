package quiz

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aalexander1088-svg/korean-learning-bot-sub000/internal/ai"
	"github.com/aalexander1088-svg/korean-learning-bot-sub000/internal/database"
	"github.com/aalexander1088-svg/korean-learning-bot-sub000/internal/progress"
	"github.com/aalexander1088-svg/korean-learning-bot-sub000/pkg/models"
)

// The real repositories must keep satisfying the manager's store interfaces.
var (
	_ WordSource    = (*database.WordSource)(nil)
	_ ReviewStore   = (*database.ReviewRepository)(nil)
	_ ProgressStore = (*database.ProgressRepository)(nil)
	_ SessionStore  = (*database.SessionRepository)(nil)
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

var (
	wordApple = models.Word{ID: 1, Korean: "사과", English: "apple", Essential: true, Frequency: 10}
	wordWater = models.Word{ID: 2, Korean: "물", English: "water", Essential: true, Frequency: 20}
	wordBook  = models.Word{ID: 3, Korean: "책", English: "book", Essential: true, Frequency: 5}
)

type fakeWords struct {
	due       []models.Word
	essential []models.Word
}

func (f *fakeWords) DueForReview(_ context.Context, _ int64, _ time.Time, limit int) ([]models.Word, error) {
	if limit > len(f.due) {
		limit = len(f.due)
	}
	return f.due[:limit], nil
}

func (f *fakeWords) GetEssential(_ context.Context, limit int) ([]models.Word, error) {
	if limit > len(f.essential) {
		limit = len(f.essential)
	}
	return f.essential[:limit], nil
}

type fakeReviews struct {
	records map[int64]*models.ReviewRecord // keyed by word id, single test user
	upserts int
}

func (f *fakeReviews) GetByUserAndWord(_ context.Context, _, wordID int64) (*models.ReviewRecord, error) {
	if r, ok := f.records[wordID]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, database.ErrNotFound
}

func (f *fakeReviews) Upsert(_ context.Context, record *models.ReviewRecord) error {
	cp := *record
	f.records[record.WordID] = &cp
	f.upserts++
	return nil
}

func (f *fakeReviews) CountMastered(_ context.Context, _ int64) (int, error) {
	count := 0
	for _, r := range f.records {
		if r.Repetitions >= 5 && r.LastQuality >= 4 {
			count++
		}
	}
	return count, nil
}

func (f *fakeReviews) EarliestDue(_ context.Context, _ int64) (*time.Time, error) {
	var earliest *time.Time
	for _, r := range f.records {
		due := r.NextReviewDate
		if earliest == nil || due.Before(*earliest) {
			earliest = &due
		}
	}
	return earliest, nil
}

type fakeProgress struct {
	byUser  map[int64]*models.LearningProgress
	updates int
}

func (f *fakeProgress) GetByUserID(_ context.Context, userID int64) (*models.LearningProgress, error) {
	if p, ok := f.byUser[userID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, database.ErrNotFound
}

func (f *fakeProgress) Create(_ context.Context, p *models.LearningProgress) error {
	cp := *p
	f.byUser[p.UserID] = &cp
	return nil
}

func (f *fakeProgress) Update(_ context.Context, p *models.LearningProgress) error {
	cp := *p
	f.byUser[p.UserID] = &cp
	f.updates++
	return nil
}

type fakeSessions struct {
	created       int
	finalized     int
	answerFlushes int
}

func (f *fakeSessions) Create(_ context.Context, _ *models.QuizSession) error {
	f.created++
	return nil
}

func (f *fakeSessions) SaveAnswer(_ context.Context, _ *models.QuizSession, _ int) error {
	f.answerFlushes++
	return nil
}

func (f *fakeSessions) Finalize(_ context.Context, _ *models.QuizSession) error {
	f.finalized++
	return nil
}

type emptyStats struct{}

func (emptyStats) WeakWords(context.Context, int64) ([]models.Word, error)   { return nil, nil }
func (emptyStats) StrongWords(context.Context, int64) ([]models.Word, error) { return nil, nil }

type failingGenerator struct{ calls int }

func (g *failingGenerator) GenerateQuestion(context.Context, models.QuizType, string, models.Word) (*ai.GeneratedQuestion, error) {
	g.calls++
	return nil, fmt.Errorf("%w: upstream down", ai.ErrGenerationFailed)
}

func newTestManager(due, essential []models.Word, gen ai.Generator) (*Manager, *fakeReviews, *fakeProgress, *fakeSessions) {
	reviews := &fakeReviews{records: map[int64]*models.ReviewRecord{}}
	progresses := &fakeProgress{byUser: map[int64]*models.LearningProgress{}}
	sessions := &fakeSessions{}
	m := NewManager(
		&fakeWords{due: due, essential: essential},
		reviews, progresses, sessions, gen,
		progress.NewTracker(emptyStats{}),
		NewRegistry(),
	)
	m.now = func() time.Time { return fixedNow }
	return m, reviews, progresses, sessions
}

func TestStartSessionDueWordsFirstThenEssentialBackfill(t *testing.T) {
	m, _, _, sessions := newTestManager(
		[]models.Word{wordWater},
		[]models.Word{wordWater, wordApple, wordBook}, // water overlaps the due list
		nil,
	)

	session, err := m.StartSession(context.Background(), 7, models.QuizVocabKoEn, models.DifficultyBeginner, 3)
	require.NoError(t, err)
	require.Len(t, session.Questions, 3)

	assert.Equal(t, wordWater.ID, session.Questions[0].WordID, "due words come first")
	assert.Equal(t, wordApple.ID, session.Questions[1].WordID)
	assert.Equal(t, wordBook.ID, session.Questions[2].WordID, "overlapping essential word is not repeated")

	assert.Equal(t, 1, sessions.created)
	active, ok := m.ActiveForUser(7)
	require.True(t, ok)
	assert.Equal(t, session.ID, active.ID)
}

func TestStartSessionRepeatsWordsCyclically(t *testing.T) {
	m, _, _, _ := newTestManager([]models.Word{wordApple}, nil, nil)

	session, err := m.StartSession(context.Background(), 7, models.QuizVocabKoEn, models.DifficultyBeginner, 3)
	require.NoError(t, err)
	require.Len(t, session.Questions, 3)
	for _, q := range session.Questions {
		assert.Equal(t, wordApple.ID, q.WordID)
	}
}

func TestStartSessionNoVocabulary(t *testing.T) {
	m, _, _, sessions := newTestManager(nil, nil, nil)

	_, err := m.StartSession(context.Background(), 7, models.QuizVocabKoEn, models.DifficultyBeginner, 5)
	assert.ErrorIs(t, err, ErrNoVocabulary)
	assert.Zero(t, sessions.created)
}

func TestStartSessionInvalidCount(t *testing.T) {
	m, _, _, _ := newTestManager([]models.Word{wordApple}, nil, nil)

	for _, count := range []int{0, -1} {
		_, err := m.StartSession(context.Background(), 7, models.QuizVocabKoEn, models.DifficultyBeginner, count)
		assert.ErrorIs(t, err, ErrInvalidQuestionCount)
	}
}

func TestStartSessionFallsBackWhenGenerationFails(t *testing.T) {
	gen := &failingGenerator{}
	m, _, _, _ := newTestManager([]models.Word{wordApple, wordWater}, nil, gen)

	session, err := m.StartSession(context.Background(), 7, models.QuizVocabKoEn, models.DifficultyBeginner, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, gen.calls)

	want := ai.FallbackQuestion(models.QuizVocabKoEn, wordApple)
	assert.Equal(t, want.Prompt, session.Questions[0].Prompt)
	assert.Equal(t, want.Answer, session.Questions[0].Answer)
}

func TestStartSessionVocabQuestionsCarryOptions(t *testing.T) {
	m, _, _, _ := newTestManager([]models.Word{wordApple, wordWater, wordBook}, nil, nil)

	session, err := m.StartSession(context.Background(), 7, models.QuizVocabKoEn, models.DifficultyBeginner, 3)
	require.NoError(t, err)
	for _, q := range session.Questions {
		assert.Contains(t, q.Options, q.Answer)
		assert.LessOrEqual(t, len(q.Options), optionCount)
		assert.GreaterOrEqual(t, len(q.Options), 2)
	}
}

func TestSubmitAnswerFullSessionFlow(t *testing.T) {
	m, reviews, progresses, sessions := newTestManager([]models.Word{wordApple, wordWater}, nil, nil)

	session, err := m.StartSession(context.Background(), 7, models.QuizVocabKoEn, models.DifficultyBeginner, 2)
	require.NoError(t, err)

	// Correct answer, trimmed and case-insensitive
	res, err := m.SubmitAnswer(context.Background(), session.ID, 0, "  Apple ")
	require.NoError(t, err)
	assert.True(t, res.Correct)
	assert.False(t, res.Completed)
	assert.Equal(t, 1, session.Score)
	assert.Equal(t, 1, sessions.answerFlushes, "answer flushed immediately")

	// Wrong answer on the last question completes the session
	res, err = m.SubmitAnswer(context.Background(), session.ID, 1, "fire")
	require.NoError(t, err)
	assert.False(t, res.Correct)
	assert.True(t, res.Completed)
	assert.Equal(t, "water", res.Answer)

	assert.Equal(t, 1, sessions.finalized)
	assert.True(t, session.Completed)
	require.NotNil(t, session.EndedAt)

	// One scheduler update per question
	apple := reviews.records[wordApple.ID]
	require.NotNil(t, apple)
	assert.Equal(t, 4, apple.LastQuality)
	assert.Equal(t, 1, apple.TimesCorrect)
	assert.Equal(t, 1, apple.Repetitions)

	water := reviews.records[wordWater.ID]
	require.NotNil(t, water)
	assert.Equal(t, 1, water.LastQuality)
	assert.Equal(t, 1, water.TimesIncorrect)
	assert.Equal(t, 0, water.Repetitions)

	// Progress folded in and derived fields refreshed
	prog := progresses.byUser[7]
	require.NotNil(t, prog)
	assert.Equal(t, 1, prog.SessionsCompleted)
	assert.InDelta(t, 0.5, prog.AverageAccuracy, 1e-9)
	require.NotNil(t, prog.NextReviewDate)
	assert.Equal(t, fixedNow.AddDate(0, 0, 1), *prog.NextReviewDate)

	// Completed sessions leave the registry
	_, ok := m.ActiveForUser(7)
	assert.False(t, ok)
	_, err = m.SubmitAnswer(context.Background(), session.ID, 0, "apple")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSubmitAnswerAcceptsEitherLanguage(t *testing.T) {
	m, _, _, _ := newTestManager([]models.Word{wordApple, wordWater}, nil, nil)

	session, err := m.StartSession(context.Background(), 7, models.QuizVocabKoEn, models.DifficultyBeginner, 2)
	require.NoError(t, err)

	// The generated answer is the English side; the Korean side also counts.
	res, err := m.SubmitAnswer(context.Background(), session.ID, 0, "사과")
	require.NoError(t, err)
	assert.True(t, res.Correct)
}

func TestSubmitAnswerRejectsSecondAnswer(t *testing.T) {
	m, _, _, sessions := newTestManager([]models.Word{wordApple, wordWater}, nil, nil)

	session, err := m.StartSession(context.Background(), 7, models.QuizVocabKoEn, models.DifficultyBeginner, 2)
	require.NoError(t, err)

	_, err = m.SubmitAnswer(context.Background(), session.ID, 0, "apple")
	require.NoError(t, err)
	flushes := sessions.answerFlushes

	_, err = m.SubmitAnswer(context.Background(), session.ID, 0, "apple")
	assert.ErrorIs(t, err, ErrAlreadyAnswered)
	assert.Equal(t, 1, session.Score, "score unchanged by the rejected answer")
	assert.Equal(t, flushes, sessions.answerFlushes, "nothing flushed for the rejected answer")
}

func TestSubmitAnswerIndexOutOfRange(t *testing.T) {
	m, _, _, _ := newTestManager([]models.Word{wordApple}, nil, nil)

	session, err := m.StartSession(context.Background(), 7, models.QuizVocabKoEn, models.DifficultyBeginner, 1)
	require.NoError(t, err)

	for _, idx := range []int{-1, 1, 42} {
		_, err := m.SubmitAnswer(context.Background(), session.ID, idx, "apple")
		assert.ErrorIs(t, err, ErrQuestionOutOfRange)
	}
}

func TestSubmitAnswerUnknownSession(t *testing.T) {
	m, _, _, _ := newTestManager([]models.Word{wordApple}, nil, nil)

	_, err := m.SubmitAnswer(context.Background(), uuid.New(), 0, "apple")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSkipQuestionRatesBlackout(t *testing.T) {
	m, reviews, _, _ := newTestManager([]models.Word{wordApple}, nil, nil)

	session, err := m.StartSession(context.Background(), 7, models.QuizVocabKoEn, models.DifficultyBeginner, 1)
	require.NoError(t, err)

	res, err := m.SkipQuestion(context.Background(), session.ID, 0)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.False(t, res.Correct)
	assert.True(t, res.Completed, "skipping the only question completes the session")
	assert.Equal(t, 0, session.Score)

	rec := reviews.records[wordApple.ID]
	require.NotNil(t, rec)
	assert.Equal(t, 0, rec.LastQuality)
	assert.Equal(t, 1, rec.TimesIncorrect)
}

func TestEndEarlyCommitsAnsweredQuestionsOnly(t *testing.T) {
	m, reviews, progresses, sessions := newTestManager([]models.Word{wordApple, wordWater, wordBook}, nil, nil)

	session, err := m.StartSession(context.Background(), 7, models.QuizVocabKoEn, models.DifficultyBeginner, 3)
	require.NoError(t, err)

	_, err = m.SubmitAnswer(context.Background(), session.ID, 0, "apple")
	require.NoError(t, err)

	ended, err := m.EndEarly(context.Background(), session.ID)
	require.NoError(t, err)
	assert.True(t, ended.Completed)
	assert.Equal(t, 1, sessions.finalized)

	// Only the answered word got a scheduler update
	assert.Equal(t, 1, reviews.upserts)
	assert.NotNil(t, reviews.records[wordApple.ID])

	// Accuracy covers the answered question, not the abandoned tail
	prog := progresses.byUser[7]
	require.NotNil(t, prog)
	assert.InDelta(t, 1.0, prog.AverageAccuracy, 1e-9)

	_, ok := m.ActiveForUser(7)
	assert.False(t, ok)
}

func TestEndEarlyWithNothingAnsweredDiscards(t *testing.T) {
	m, reviews, progresses, sessions := newTestManager([]models.Word{wordApple}, nil, nil)

	session, err := m.StartSession(context.Background(), 7, models.QuizVocabKoEn, models.DifficultyBeginner, 1)
	require.NoError(t, err)

	_, err = m.EndEarly(context.Background(), session.ID)
	require.NoError(t, err)

	assert.Zero(t, sessions.finalized)
	assert.Zero(t, reviews.upserts)
	assert.Empty(t, progresses.byUser)
	_, ok := m.ActiveForUser(7)
	assert.False(t, ok)
}

func TestStartSessionReplacesActiveSession(t *testing.T) {
	m, _, _, _ := newTestManager([]models.Word{wordApple}, nil, nil)

	first, err := m.StartSession(context.Background(), 7, models.QuizVocabKoEn, models.DifficultyBeginner, 1)
	require.NoError(t, err)
	second, err := m.StartSession(context.Background(), 7, models.QuizVocabEnKo, models.DifficultyBeginner, 1)
	require.NoError(t, err)

	_, err = m.SubmitAnswer(context.Background(), first.ID, 0, "apple")
	assert.ErrorIs(t, err, ErrSessionNotFound, "abandoned session is gone")

	active, ok := m.ActiveForUser(7)
	require.True(t, ok)
	assert.Equal(t, second.ID, active.ID)
}

func TestSubmitCurrentAnswerAdvancesThroughQuestions(t *testing.T) {
	m, _, _, _ := newTestManager([]models.Word{wordApple, wordWater}, nil, nil)

	session, err := m.StartSession(context.Background(), 7, models.QuizVocabKoEn, models.DifficultyBeginner, 2)
	require.NoError(t, err)

	res, err := m.SubmitCurrentAnswer(context.Background(), session.ID, "apple")
	require.NoError(t, err)
	assert.True(t, res.Correct)
	assert.False(t, res.Completed)

	res, err = m.SubmitCurrentAnswer(context.Background(), session.ID, "water")
	require.NoError(t, err)
	assert.True(t, res.Correct)
	assert.True(t, res.Completed)
	assert.Equal(t, 2, session.Score)
}

func TestCurrentQuestionTracksOpenQuestion(t *testing.T) {
	m, _, _, _ := newTestManager([]models.Word{wordApple, wordWater}, nil, nil)

	session, err := m.StartSession(context.Background(), 7, models.QuizVocabKoEn, models.DifficultyBeginner, 2)
	require.NoError(t, err)

	idx, q, total, err := m.CurrentQuestion(session.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, 2, total)
	assert.Equal(t, session.Questions[0].Prompt, q.Prompt)

	_, err = m.SubmitCurrentAnswer(context.Background(), session.ID, "apple")
	require.NoError(t, err)

	idx, _, _, err = m.CurrentQuestion(session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	_, err = m.SubmitCurrentAnswer(context.Background(), session.ID, "water")
	require.NoError(t, err)
	_, _, _, err = m.CurrentQuestion(session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSubmitOptionGradesChosenOption(t *testing.T) {
	m, _, _, _ := newTestManager([]models.Word{wordApple, wordWater, wordBook}, nil, nil)

	session, err := m.StartSession(context.Background(), 7, models.QuizVocabKoEn, models.DifficultyBeginner, 3)
	require.NoError(t, err)

	first := session.Questions[0]
	answerIdx, wrongIdx := -1, -1
	for i, opt := range first.Options {
		if opt == first.Answer {
			answerIdx = i
		} else {
			wrongIdx = i
		}
	}
	require.NotEqual(t, -1, answerIdx)
	require.NotEqual(t, -1, wrongIdx)

	_, err = m.SubmitOption(context.Background(), session.ID, 0, len(first.Options))
	assert.ErrorIs(t, err, ErrOptionOutOfRange)
	_, err = m.SubmitOption(context.Background(), session.ID, 0, -1)
	assert.ErrorIs(t, err, ErrOptionOutOfRange)

	res, err := m.SubmitOption(context.Background(), session.ID, 0, answerIdx)
	require.NoError(t, err)
	assert.True(t, res.Correct)

	second := session.Questions[1]
	for i, opt := range second.Options {
		if opt != second.Answer {
			res, err = m.SubmitOption(context.Background(), session.ID, 1, i)
			require.NoError(t, err)
			assert.False(t, res.Correct, "option %q is not the answer", opt)
			break
		}
	}
}

func TestSkipCurrentSkipsOpenQuestion(t *testing.T) {
	m, _, _, _ := newTestManager([]models.Word{wordApple, wordWater}, nil, nil)

	session, err := m.StartSession(context.Background(), 7, models.QuizVocabKoEn, models.DifficultyBeginner, 2)
	require.NoError(t, err)

	res, err := m.SkipCurrent(context.Background(), session.ID)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.False(t, res.Completed)

	idx, _, _, err := m.CurrentQuestion(session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, idx, "the skipped question no longer counts as open")
}

func TestSubmitCurrentAnswerConcurrentGradesOnce(t *testing.T) {
	m, reviews, _, sessions := newTestManager([]models.Word{wordApple}, nil, nil)

	session, err := m.StartSession(context.Background(), 7, models.QuizVocabKoEn, models.DifficultyBeginner, 1)
	require.NoError(t, err)

	// Telegram updates are handled on separate goroutines, so duplicate
	// submissions for the same question can arrive at the same time. Exactly
	// one of them may be graded.
	const attempts = 16
	var wg sync.WaitGroup
	var graded int32
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.SubmitCurrentAnswer(context.Background(), session.ID, "apple"); err == nil {
				atomic.AddInt32(&graded, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), graded)
	assert.Equal(t, 1, sessions.answerFlushes)
	assert.Equal(t, 1, reviews.upserts)
	assert.Equal(t, 1, session.Score)
}

func TestMixedQuizRotatesTypes(t *testing.T) {
	m, _, _, _ := newTestManager([]models.Word{wordApple, wordWater}, nil, nil)

	session, err := m.StartSession(context.Background(), 7, models.QuizMixed, models.DifficultyIntermediate, 5)
	require.NoError(t, err)
	require.Len(t, session.Questions, 5)

	for i, q := range session.Questions {
		assert.Equal(t, mixedRotation[i%len(mixedRotation)], q.Type)
		assert.NotEqual(t, models.QuizMixed, q.Type, "mixed resolves to a concrete type per question")
	}
}
