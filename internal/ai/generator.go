package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/aalexander1088-svg/korean-learning-bot-sub000/pkg/models"
)

// ErrGenerationFailed is returned when external content generation fails for
// any reason. Callers recover with FallbackQuestion; the error never reaches
// an end user.
var ErrGenerationFailed = errors.New("content generation failed")

// GeneratedQuestion is the content produced for a single quiz question.
type GeneratedQuestion struct {
	Prompt string `json:"prompt"`
	Answer string `json:"answer"`
}

// Generator is the boundary to the external content-generation service.
// Implementations may fail; the quiz builder always holds a templated
// fallback so generation failures never block session creation.
type Generator interface {
	GenerateQuestion(ctx context.Context, quizType models.QuizType, difficulty string, word models.Word) (*GeneratedQuestion, error)
}

// FallbackQuestion builds a deterministic templated question from the word's
// own text and meaning alone. It is used whenever external generation fails
// and cannot fail itself.
func FallbackQuestion(quizType models.QuizType, word models.Word) *GeneratedQuestion {
	switch quizType {
	case models.QuizVocabEnKo:
		return &GeneratedQuestion{
			Prompt: fmt.Sprintf("What is the Korean word for '%s'?", word.English),
			Answer: word.Korean,
		}
	case models.QuizFillBlank, models.QuizSentence:
		return &GeneratedQuestion{
			Prompt: fmt.Sprintf("Fill in the blank: _______ means '%s'.", word.English),
			Answer: word.Korean,
		}
	case models.QuizGrammar:
		return &GeneratedQuestion{
			Prompt: fmt.Sprintf("Use '%s' (%s) in its dictionary form.", word.Korean, word.English),
			Answer: word.Korean,
		}
	default: // vocab_ko_en and mixed
		return &GeneratedQuestion{
			Prompt: fmt.Sprintf("What does '%s' mean in English?", word.Korean),
			Answer: word.English,
		}
	}
}
