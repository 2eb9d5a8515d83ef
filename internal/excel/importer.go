// Package excel imports vocabulary from Excel or CSV files into the store.
package excel

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/aalexander1088-svg/korean-learning-bot-sub000/internal/database"
	"github.com/aalexander1088-svg/korean-learning-bot-sub000/pkg/models"
)

// ImportConfig defines where vocabulary fields live in the source file
type ImportConfig struct {
	FilePath         string // Path to the Excel or CSV file
	KoreanColumn     string // Column with the Korean word
	EnglishColumn    string // Column with the English meaning
	DifficultyColumn string // Column with the difficulty level
	EssentialColumn  string // Column with the essential flag
	FrequencyColumn  string // Column with the corpus frequency
	SheetName        string // Name of the sheet to import
	StartRow         int    // The row to start importing from (1-based)
}

// DefaultImportConfig returns the default column layout
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		KoreanColumn:     "A",
		EnglishColumn:    "B",
		DifficultyColumn: "C",
		EssentialColumn:  "D",
		FrequencyColumn:  "E",
		SheetName:        "Sheet1",
		StartRow:         2, // skip the header row
	}
}

// ImportResult holds the outcome of an import run
type ImportResult struct {
	TotalProcessed int
	Created        int
	Updated        int
	Skipped        int
	Errors         []string
}

// Importer loads vocabulary rows into the word repository, updating words
// that already exist (matched by Korean text) and creating the rest.
type Importer struct {
	words *database.WordRepository
}

// NewImporter creates an importer over the given word repository
func NewImporter(words *database.WordRepository) *Importer {
	return &Importer{words: words}
}

// ImportWords imports from an Excel or CSV file, chosen by extension
func (im *Importer) ImportWords(ctx context.Context, config ImportConfig) (*ImportResult, error) {
	if strings.ToLower(filepath.Ext(config.FilePath)) == ".csv" {
		return im.importFromCSV(ctx, config)
	}
	return im.importFromExcel(ctx, config)
}

func (im *Importer) importFromExcel(ctx context.Context, config ImportConfig) (*ImportResult, error) {
	f, err := excelize.OpenFile(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("opening excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(config.SheetName)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", config.SheetName, err)
	}

	result := &ImportResult{}
	for i, row := range rows {
		if i < config.StartRow-1 {
			continue
		}
		result.TotalProcessed++
		if err := im.processRow(ctx, row, config, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", i+1, err))
		}
	}
	return result, nil
}

func (im *Importer) importFromCSV(ctx context.Context, config ImportConfig) (*ImportResult, error) {
	f, err := os.Open(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("opening csv file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	result := &ImportResult{}
	for line := 1; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		if line < config.StartRow {
			continue
		}
		result.TotalProcessed++
		if err := im.processRow(ctx, row, config, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", line, err))
		}
	}
	return result, nil
}

// processRow upserts one vocabulary row
func (im *Importer) processRow(ctx context.Context, row []string, config ImportConfig, result *ImportResult) error {
	korean := strings.TrimSpace(cellValue(row, config.KoreanColumn))
	english := strings.TrimSpace(cellValue(row, config.EnglishColumn))
	if korean == "" || english == "" {
		result.Skipped++
		return nil
	}

	difficulty := normalizeDifficulty(cellValue(row, config.DifficultyColumn))
	essential := parseBool(cellValue(row, config.EssentialColumn))
	frequency := parseInt(cellValue(row, config.FrequencyColumn))

	existing, err := im.words.GetByKorean(ctx, korean)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return err
	}

	if existing != nil {
		existing.English = english
		existing.Difficulty = difficulty
		existing.Essential = essential
		if frequency > 0 {
			existing.Frequency = frequency
		}
		if err := im.words.Update(ctx, existing); err != nil {
			return err
		}
		result.Updated++
		return nil
	}

	word := &models.Word{
		Korean:     korean,
		English:    english,
		Difficulty: difficulty,
		Essential:  essential,
		Frequency:  frequency,
	}
	if err := im.words.Create(ctx, word); err != nil {
		return err
	}
	result.Created++
	return nil
}

// cellValue resolves an A/B/C column letter against a row slice
func cellValue(row []string, column string) string {
	if column == "" {
		return ""
	}
	idx, err := excelize.ColumnNameToNumber(column)
	if err != nil || idx < 1 || idx > len(row) {
		return ""
	}
	return row[idx-1]
}

func normalizeDifficulty(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case models.DifficultyAdvanced, "hard":
		return models.DifficultyAdvanced
	case models.DifficultyIntermediate, "medium":
		return models.DifficultyIntermediate
	default:
		return models.DifficultyBeginner
	}
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "essential":
		return true
	}
	return false
}

func parseInt(v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
