package excel

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aalexander1088-svg/korean-learning-bot-sub000/internal/database"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "words.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestImporter(t *testing.T) (*Importer, *database.WordRepository) {
	t.Helper()
	db, err := database.ConnectMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	words := database.NewWordRepository(db)
	return NewImporter(words), words
}

func TestImportWordsFromCSV(t *testing.T) {
	importer, words := newTestImporter(t)

	path := writeCSV(t, "korean,english,difficulty,essential,frequency\n"+
		"사과,apple,beginner,yes,120\n"+
		"도서관,library,intermediate,no,45\n"+
		",missing korean,beginner,no,1\n")

	config := DefaultImportConfig()
	config.FilePath = path

	result, err := importer.ImportWords(context.Background(), config)
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalProcessed)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, result.Errors)

	apple, err := words.GetByKorean(context.Background(), "사과")
	require.NoError(t, err)
	assert.Equal(t, "apple", apple.English)
	assert.True(t, apple.Essential)
	assert.Equal(t, 120, apple.Frequency)
}

func TestImportWordsUpdatesExisting(t *testing.T) {
	importer, words := newTestImporter(t)

	path := writeCSV(t, "korean,english,difficulty,essential,frequency\n"+
		"사과,apple,beginner,no,10\n")
	config := DefaultImportConfig()
	config.FilePath = path

	_, err := importer.ImportWords(context.Background(), config)
	require.NoError(t, err)

	// Re-import the same word with new fields
	path = writeCSV(t, "korean,english,difficulty,essential,frequency\n"+
		"사과,apple (fruit),medium,yes,99\n")
	config.FilePath = path

	result, err := importer.ImportWords(context.Background(), config)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 0, result.Created)

	apple, err := words.GetByKorean(context.Background(), "사과")
	require.NoError(t, err)
	assert.Equal(t, "apple (fruit)", apple.English)
	assert.Equal(t, "intermediate", apple.Difficulty)
	assert.True(t, apple.Essential)
	assert.Equal(t, 99, apple.Frequency)
}

func TestNormalizeDifficulty(t *testing.T) {
	assert.Equal(t, "advanced", normalizeDifficulty("HARD"))
	assert.Equal(t, "intermediate", normalizeDifficulty("medium"))
	assert.Equal(t, "beginner", normalizeDifficulty(""))
	assert.Equal(t, "beginner", normalizeDifficulty("nonsense"))
}
