package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/aalexander1088-svg/korean-learning-bot-sub000/pkg/models"
)

const questionSystemPrompt = "You are a Korean language tutor creating quiz questions. " +
	"Respond with a single JSON object of the form " +
	`{"prompt": "...", "answer": "..."} and nothing else. ` +
	"The prompt must be answerable with the answer string alone."

// OpenAIGenerator produces quiz content through the OpenAI chat API.
type OpenAIGenerator struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIGenerator creates a generator. An empty model selects
// gpt-3.5-turbo; baseURL may point at any OpenAI-compatible endpoint.
func NewOpenAIGenerator(apiKey, baseURL, model string, timeout time.Duration) *OpenAIGenerator {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT3Dot5Turbo
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OpenAIGenerator{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
	}
}

// GenerateQuestion asks the model for one question about the given word.
// The call runs under a bounded timeout so a slow upstream can never stall
// session building.
func (g *OpenAIGenerator) GenerateQuestion(ctx context.Context, quizType models.QuizType, difficulty string, word models.Word) (*GeneratedQuestion, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       g.model,
		MaxTokens:   150,
		Temperature: 0.7,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: questionSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(quizType, difficulty, word)},
		},
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no response choices returned", ErrGenerationFailed)
	}

	return parseGenerated(resp.Choices[0].Message.Content)
}

func buildPrompt(quizType models.QuizType, difficulty string, word models.Word) string {
	base := fmt.Sprintf("The word is '%s', which means '%s' in English. Difficulty: %s.",
		word.Korean, word.English, difficulty)

	switch quizType {
	case models.QuizVocabEnKo:
		return base + " Write a question asking for the Korean word given its English meaning. The answer must be the Korean word."
	case models.QuizGrammar:
		return base + " Write a short grammar question built around this word. The answer must be a single short phrase."
	case models.QuizSentence:
		return base + " Write a sentence-completion question: a short Korean sentence missing this word. The answer must be the Korean word."
	case models.QuizFillBlank:
		return base + " Write a fill-in-the-blank question with the word blanked out. The answer must be the Korean word."
	default:
		return base + " Write a question asking for the English meaning of the Korean word. The answer must be the English meaning."
	}
}

// parseGenerated decodes the model output, tolerating fenced code blocks.
func parseGenerated(content string) (*GeneratedQuestion, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
		content = strings.TrimSpace(content)
	}

	var q GeneratedQuestion
	if err := json.Unmarshal([]byte(content), &q); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrGenerationFailed, err)
	}
	if q.Prompt == "" || q.Answer == "" {
		return nil, fmt.Errorf("%w: incomplete question", ErrGenerationFailed)
	}
	return &q, nil
}
