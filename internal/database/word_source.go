package database

import (
	"context"
	"time"

	"github.com/aalexander1088-svg/korean-learning-bot-sub000/pkg/models"
)

// WordSource combines the vocabulary and review repositories into the word
// selection surface the quiz manager consumes: due words come from the
// review join, backfill from the essential ordering.
type WordSource struct {
	words   *WordRepository
	reviews *ReviewRepository
}

// NewWordSource creates a word source over the two repositories
func NewWordSource(words *WordRepository, reviews *ReviewRepository) *WordSource {
	return &WordSource{words: words, reviews: reviews}
}

// DueForReview returns up to limit words due for the user
func (s *WordSource) DueForReview(ctx context.Context, userID int64, now time.Time, limit int) ([]models.Word, error) {
	return s.reviews.DueForReview(ctx, userID, now, limit)
}

// GetEssential returns up to limit backfill words
func (s *WordSource) GetEssential(ctx context.Context, limit int) ([]models.Word, error) {
	return s.words.GetEssential(ctx, limit)
}
