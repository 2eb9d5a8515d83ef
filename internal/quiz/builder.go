package quiz

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"

	"github.com/google/uuid"

	"github.com/aalexander1088-svg/korean-learning-bot-sub000/internal/ai"
	"github.com/aalexander1088-svg/korean-learning-bot-sub000/pkg/models"
)

// mixedRotation is the type cycle used when the user asks for a mixed quiz.
var mixedRotation = []models.QuizType{
	models.QuizVocabKoEn,
	models.QuizVocabEnKo,
	models.QuizFillBlank,
	models.QuizGrammar,
	models.QuizSentence,
}

const optionCount = 4

// buildQuestions creates count questions over the word pool. When the pool is
// shorter than count, words repeat cyclically so the session always has the
// requested length. Generation happens here, before any user lock is taken.
func (m *Manager) buildQuestions(ctx context.Context, pool []models.Word, quizType models.QuizType, difficulty string, count int, rnd *rand.Rand) []models.QuizQuestion {
	questions := make([]models.QuizQuestion, 0, count)
	for i := 0; i < count; i++ {
		word := pool[i%len(pool)]
		effective := quizType
		if quizType == models.QuizMixed {
			effective = mixedRotation[i%len(mixedRotation)]
		}

		content := m.generate(ctx, effective, difficulty, word)
		q := models.QuizQuestion{
			ID:        uuid.New(),
			WordID:    word.ID,
			Type:      effective,
			Prompt:    content.Prompt,
			Answer:    content.Answer,
			Alternate: alternateAnswer(word, content.Answer),
		}
		if effective == models.QuizVocabKoEn || effective == models.QuizVocabEnKo {
			q.Options = buildOptions(word, pool, effective, rnd)
		}
		questions = append(questions, q)
	}
	return questions
}

// generate asks the external generator for question content and falls back to
// the deterministic template on any failure. Session building never fails on
// the generator's account.
func (m *Manager) generate(ctx context.Context, quizType models.QuizType, difficulty string, word models.Word) *ai.GeneratedQuestion {
	if m.generator == nil {
		return ai.FallbackQuestion(quizType, word)
	}
	content, err := m.generator.GenerateQuestion(ctx, quizType, difficulty, word)
	if err != nil {
		slog.Warn("question generation failed, using fallback",
			"word", word.Korean, "type", string(quizType), "error", err)
		return ai.FallbackQuestion(quizType, word)
	}
	return content
}

// alternateAnswer picks the other side of the flashcard so grading can accept
// either language. If the generated answer is the Korean text the alternate
// is the English meaning, and vice versa.
func alternateAnswer(word models.Word, answer string) string {
	if strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(word.Korean)) {
		return word.English
	}
	return word.Korean
}

// buildOptions assembles shuffled multiple-choice options for a vocabulary
// question: the correct answer plus distractors drawn from the rest of the
// pool. Fewer than optionCount options is fine with a small pool.
func buildOptions(word models.Word, pool []models.Word, quizType models.QuizType, rnd *rand.Rand) []string {
	answer := word.English
	pick := func(w models.Word) string { return w.English }
	if quizType == models.QuizVocabEnKo {
		answer = word.Korean
		pick = func(w models.Word) string { return w.Korean }
	}

	seen := map[string]bool{answer: true}
	distractors := make([]string, 0, len(pool))
	for _, other := range pool {
		if other.ID == word.ID {
			continue
		}
		candidate := pick(other)
		if candidate == "" || seen[candidate] {
			continue
		}
		seen[candidate] = true
		distractors = append(distractors, candidate)
	}

	rnd.Shuffle(len(distractors), func(i, j int) {
		distractors[i], distractors[j] = distractors[j], distractors[i]
	})
	if len(distractors) > optionCount-1 {
		distractors = distractors[:optionCount-1]
	}

	options := append([]string{answer}, distractors...)
	rnd.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})
	return options
}
