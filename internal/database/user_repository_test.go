package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aalexander1088-svg/korean-learning-bot-sub000/pkg/models"
)

func TestGetOrCreateRegistersOnce(t *testing.T) {
	db := testDB(t)
	users := NewUserRepository(db)
	ctx := context.Background()

	created, err := users.GetOrCreate(ctx, 12345, "hana", "Hana")
	require.NoError(t, err)
	assert.Equal(t, int64(12345), created.TelegramID)
	assert.True(t, created.ReminderEnabled, "reminders on by default")
	assert.Equal(t, 9, created.ReminderHour)
	assert.Equal(t, 10, created.WordsPerQuiz)

	again, err := users.GetOrCreate(ctx, 12345, "hana", "Hana")
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
}

func TestUsersForReminder(t *testing.T) {
	db := testDB(t)
	users := NewUserRepository(db)
	ctx := context.Background()

	morning, err := users.GetOrCreate(ctx, 1, "a", "A")
	require.NoError(t, err)
	evening, err := users.GetOrCreate(ctx, 2, "b", "B")
	require.NoError(t, err)
	muted, err := users.GetOrCreate(ctx, 3, "c", "C")
	require.NoError(t, err)

	evening.ReminderHour = 20
	require.NoError(t, users.Update(ctx, evening))
	muted.ReminderEnabled = false
	require.NoError(t, users.Update(ctx, muted))

	at9, err := users.UsersForReminder(ctx, 9)
	require.NoError(t, err)
	require.Len(t, at9, 1)
	assert.Equal(t, morning.ID, at9[0].ID)

	at20, err := users.UsersForReminder(ctx, 20)
	require.NoError(t, err)
	require.Len(t, at20, 1)
	assert.Equal(t, evening.ID, at20[0].ID)
}

func TestProgressRoundTrip(t *testing.T) {
	db := testDB(t)
	progresses := NewProgressRepository(db)
	ctx := context.Background()

	_, err := progresses.GetByUserID(ctx, 7)
	assert.ErrorIs(t, err, ErrNotFound)

	p := &models.LearningProgress{UserID: 7, SessionsCompleted: 1, AverageAccuracy: 0.8, StreakDays: 1}
	require.NoError(t, progresses.Create(ctx, p))

	p.SessionsCompleted = 2
	p.AverageAccuracy = 0.75
	p.VocabularyMastered = 3
	require.NoError(t, progresses.Update(ctx, p))

	got, err := progresses.GetByUserID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, got.SessionsCompleted)
	assert.InDelta(t, 0.75, got.AverageAccuracy, 1e-9)
	assert.Equal(t, 3, got.VocabularyMastered)

	// Updating a missing row reports not found
	ghost := &models.LearningProgress{UserID: 99}
	assert.ErrorIs(t, progresses.Update(ctx, ghost), ErrNotFound)
}

func TestEnsureExistsCreatesZeroedRowOnce(t *testing.T) {
	db := testDB(t)
	progresses := NewProgressRepository(db)
	ctx := context.Background()

	// Signup creates the row so /stats has something to show before the
	// first quiz.
	require.NoError(t, progresses.EnsureExists(ctx, 7))

	got, err := progresses.GetByUserID(ctx, 7)
	require.NoError(t, err)
	assert.Zero(t, got.SessionsCompleted)
	assert.Zero(t, got.AverageAccuracy)
	assert.Zero(t, got.VocabularyMastered)
	assert.Nil(t, got.NextReviewDate)

	// A repeat signup must not reset accumulated progress
	got.SessionsCompleted = 4
	require.NoError(t, progresses.Update(ctx, got))
	require.NoError(t, progresses.EnsureExists(ctx, 7))

	again, err := progresses.GetByUserID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 4, again.SessionsCompleted)
}
