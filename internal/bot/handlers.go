package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/aalexander1088-svg/korean-learning-bot-sub000/internal/database"
	"github.com/aalexander1088-svg/korean-learning-bot-sub000/internal/excel"
	"github.com/aalexander1088-svg/korean-learning-bot-sub000/internal/quiz"
	"github.com/aalexander1088-svg/korean-learning-bot-sub000/pkg/models"
)

const helpText = `*Korean Learning Bot*

/quiz - start a quiz
/skip - skip the current question
/end - end the quiz early
/stats - your learning progress
/words <text> - search the vocabulary
/help - this message`

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) error {
	switch message.Command() {
	case "start":
		return b.handleStart(ctx, message)
	case "help":
		return b.send(message.Chat.ID, helpText)
	case "quiz":
		return b.handleQuiz(ctx, message)
	case "skip":
		return b.handleSkip(ctx, message)
	case "end":
		return b.handleEnd(ctx, message)
	case "stats":
		return b.handleStats(ctx, message)
	case "words":
		return b.handleSearch(ctx, message)
	case "import":
		return b.handleImport(message)
	default:
		return b.send(message.Chat.ID, "Unknown command. Try /help.")
	}
}

// handleStart registers the user on first contact
func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) error {
	user, err := b.users.GetOrCreate(ctx, message.From.ID, message.From.UserName, message.From.FirstName)
	if err != nil {
		return fmt.Errorf("registering user: %w", err)
	}
	// Signup creates the zeroed progress row so /stats works before the
	// first quiz.
	if err := b.progresses.EnsureExists(ctx, user.ID); err != nil {
		return fmt.Errorf("creating progress: %w", err)
	}

	name := user.FirstName
	if name == "" {
		name = "there"
	}
	text := fmt.Sprintf("안녕하세요, %s! 👋\n\nI'll help you learn Korean vocabulary with "+
		"spaced repetition quizzes.\n\nStart with /quiz, check /stats for your progress.", name)
	return b.send(message.Chat.ID, text)
}

// handleQuiz shows the quiz type menu
func (b *Bot) handleQuiz(_ context.Context, message *tgbotapi.Message) error {
	buttons := [][]MenuButton{
		{
			{Text: "🇰🇷 → 🇬🇧 Korean to English", CallbackData: "quiz:" + string(models.QuizVocabKoEn)},
			{Text: "🇬🇧 → 🇰🇷 English to Korean", CallbackData: "quiz:" + string(models.QuizVocabEnKo)},
		},
		{
			{Text: "✍️ Fill in the blank", CallbackData: "quiz:" + string(models.QuizFillBlank)},
			{Text: "🔀 Mixed", CallbackData: "quiz:" + string(models.QuizMixed)},
		},
	}
	return b.sendWithKeyboard(message.Chat.ID, "Choose a quiz type:", buttons)
}

// startQuiz builds a session and asks the first question
func (b *Bot) startQuiz(ctx context.Context, chatID, userID int64, quizType models.QuizType) error {
	user, err := b.users.GetByTelegramID(ctx, userID)
	if err != nil {
		return b.send(chatID, "Please run /start first.")
	}

	difficulty := b.difficultyFor(ctx, user.ID)
	session, err := b.quizzes.StartSession(ctx, user.ID, quizType, difficulty, user.WordsPerQuiz)
	if errors.Is(err, quiz.ErrNoVocabulary) {
		return b.send(chatID, "The vocabulary is empty. An admin needs to /import words first.")
	}
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	return b.askQuestion(chatID, session.ID)
}

// difficultyFor picks a quiz difficulty from the user's running accuracy
func (b *Bot) difficultyFor(ctx context.Context, userID int64) string {
	prog, err := b.progresses.GetByUserID(ctx, userID)
	if err != nil {
		return models.DifficultyBeginner
	}
	switch {
	case prog.SessionsCompleted >= 10 && prog.AverageAccuracy > 0.8:
		return models.DifficultyAdvanced
	case prog.SessionsCompleted >= 3 && prog.AverageAccuracy > 0.5:
		return models.DifficultyIntermediate
	default:
		return models.DifficultyBeginner
	}
}

// askQuestion renders the session's current open question. The question is
// read through the manager so this never races with a concurrent answer from
// the same user.
func (b *Bot) askQuestion(chatID int64, sessionID uuid.UUID) error {
	idx, q, total, err := b.quizzes.CurrentQuestion(sessionID)
	if err != nil {
		return b.replyAnswerError(chatID, err)
	}
	text := fmt.Sprintf("*Question %d of %d*\n\n%s", idx+1, total, q.Prompt)

	if len(q.Options) == 0 {
		return b.send(chatID, text+"\n\n_Type your answer, /skip to skip, /end to finish._")
	}

	var rows [][]MenuButton
	for i, option := range q.Options {
		rows = append(rows, []MenuButton{{
			Text:         option,
			CallbackData: fmt.Sprintf("ans:%s:%d:%d", sessionID, idx, i),
		}})
	}
	rows = append(rows, []MenuButton{
		{Text: "⏭ Skip", CallbackData: fmt.Sprintf("skip:%s:%d", sessionID, idx)},
		{Text: "🏁 End quiz", CallbackData: fmt.Sprintf("end:%s", sessionID)},
	})
	return b.sendWithKeyboard(chatID, text, rows)
}

// handleMessage routes free text: import uploads from admins, otherwise a
// typed answer to the user's current question.
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) error {
	if message.Document != nil && b.isAwaitingImport(message.From.ID) {
		return b.handleImportUpload(ctx, message)
	}

	user, err := b.users.GetByTelegramID(ctx, message.From.ID)
	if err != nil {
		return b.send(message.Chat.ID, "Please run /start first.")
	}

	session, ok := b.quizzes.ActiveForUser(user.ID)
	if !ok {
		return b.send(message.Chat.ID, "No quiz running. Start one with /quiz!")
	}

	result, err := b.quizzes.SubmitCurrentAnswer(ctx, session.ID, message.Text)
	if err != nil {
		return b.replyAnswerError(message.Chat.ID, err)
	}
	return b.reportAnswer(ctx, message.Chat.ID, user.ID, result)
}

func (b *Bot) handleSkip(ctx context.Context, message *tgbotapi.Message) error {
	user, err := b.users.GetByTelegramID(ctx, message.From.ID)
	if err != nil {
		return b.send(message.Chat.ID, "Please run /start first.")
	}
	session, ok := b.quizzes.ActiveForUser(user.ID)
	if !ok {
		return b.send(message.Chat.ID, "No quiz running. Start one with /quiz!")
	}
	result, err := b.quizzes.SkipCurrent(ctx, session.ID)
	if err != nil {
		return b.replyAnswerError(message.Chat.ID, err)
	}
	return b.reportAnswer(ctx, message.Chat.ID, user.ID, result)
}

func (b *Bot) handleEnd(ctx context.Context, message *tgbotapi.Message) error {
	user, err := b.users.GetByTelegramID(ctx, message.From.ID)
	if err != nil {
		return b.send(message.Chat.ID, "Please run /start first.")
	}
	session, ok := b.quizzes.ActiveForUser(user.ID)
	if !ok {
		return b.send(message.Chat.ID, "No quiz running.")
	}
	ended, err := b.quizzes.EndEarly(ctx, session.ID)
	if err != nil {
		return fmt.Errorf("ending session: %w", err)
	}
	if ended.AnsweredCount() == 0 {
		return b.send(message.Chat.ID, "Quiz discarded. Nothing was answered.")
	}
	return b.sendSummary(ctx, message.Chat.ID, user.ID, ended)
}

func (b *Bot) handleStats(ctx context.Context, message *tgbotapi.Message) error {
	user, err := b.users.GetByTelegramID(ctx, message.From.ID)
	if err != nil {
		return b.send(message.Chat.ID, "Please run /start first.")
	}

	prog, err := b.progresses.GetByUserID(ctx, user.ID)
	if errors.Is(err, database.ErrNotFound) {
		return b.send(message.Chat.ID, "No progress yet. Take your first /quiz!")
	}
	if err != nil {
		return fmt.Errorf("loading progress: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("*Your progress* 📊\n\n")
	fmt.Fprintf(&sb, "Sessions completed: %d\n", prog.SessionsCompleted)
	fmt.Fprintf(&sb, "Average accuracy: %.0f%%\n", prog.AverageAccuracy*100)
	fmt.Fprintf(&sb, "Words mastered: %d\n", prog.VocabularyMastered)
	fmt.Fprintf(&sb, "Grammar patterns: %d\n", prog.GrammarPatterns)
	if prog.StreakDays > 0 {
		sb.WriteString("Streak: active 🔥\n")
	}
	if prog.NextReviewDate != nil {
		fmt.Fprintf(&sb, "Next review: %s\n", prog.NextReviewDate.Format("Jan 2 15:04"))
	}

	if weak, err := b.tracker.WeakAreas(ctx, user.ID); err == nil && len(weak) > 0 {
		sb.WriteString("\n*Needs work:*\n")
		for i, w := range weak {
			if i == 5 {
				break
			}
			fmt.Fprintf(&sb, "• %s — %s\n", w.Korean, w.English)
		}
	}
	return b.send(message.Chat.ID, sb.String())
}

func (b *Bot) handleSearch(ctx context.Context, message *tgbotapi.Message) error {
	term := strings.TrimSpace(message.CommandArguments())
	if term == "" {
		return b.send(message.Chat.ID, "Usage: /words <korean or english text>")
	}
	found, err := b.words.Search(ctx, term)
	if err != nil {
		return fmt.Errorf("searching words: %w", err)
	}
	if len(found) == 0 {
		return b.send(message.Chat.ID, "Nothing found.")
	}

	var sb strings.Builder
	for i, w := range found {
		if i == 10 {
			break
		}
		fmt.Fprintf(&sb, "• *%s* — %s (%s)\n", w.Korean, w.English, w.Difficulty)
	}
	return b.send(message.Chat.ID, sb.String())
}

func (b *Bot) handleImport(message *tgbotapi.Message) error {
	if !b.isAdmin(message.From.ID) {
		return b.send(message.Chat.ID, "This command is for admins only.")
	}
	b.setAwaitingImport(message.From.ID, true)
	return b.send(message.Chat.ID,
		"Send me an Excel or CSV file with columns: korean, english, difficulty, essential, frequency.")
}

// handleImportUpload downloads an admin's vocabulary file and imports it
func (b *Bot) handleImportUpload(ctx context.Context, message *tgbotapi.Message) error {
	b.setAwaitingImport(message.From.ID, false)

	url, err := b.api.GetFileDirectURL(message.Document.FileID)
	if err != nil {
		return fmt.Errorf("resolving file url: %w", err)
	}
	path, err := downloadToTemp(url, message.Document.FileName)
	if err != nil {
		return fmt.Errorf("downloading file: %w", err)
	}
	defer os.Remove(path)

	config := excel.DefaultImportConfig()
	config.FilePath = path
	result, err := b.importer.ImportWords(ctx, config)
	if err != nil {
		return fmt.Errorf("importing words: %w", err)
	}

	slog.Info("vocabulary imported",
		"admin_id", message.From.ID, "created", result.Created,
		"updated", result.Updated, "skipped", result.Skipped, "errors", len(result.Errors))

	text := fmt.Sprintf("Import finished: %d created, %d updated, %d skipped.",
		result.Created, result.Updated, result.Skipped)
	if len(result.Errors) > 0 {
		text += fmt.Sprintf("\n%d row(s) failed.", len(result.Errors))
	}
	return b.send(message.Chat.ID, text)
}

func downloadToTemp(url, name string) (string, error) {
	resp, err := http.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	f, err := os.CreateTemp("", "import-*"+filepath.Ext(name))
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// handleCallback routes inline keyboard presses
func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	// Acknowledge immediately so the client stops its spinner
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		slog.Warn("callback ack failed", "error", err)
	}

	parts := strings.Split(callback.Data, ":")
	chatID := callback.Message.Chat.ID

	switch parts[0] {
	case "quiz":
		if len(parts) != 2 {
			return nil
		}
		return b.startQuiz(ctx, chatID, callback.From.ID, models.QuizType(parts[1]))

	case "ans":
		if len(parts) != 4 {
			return nil
		}
		return b.handleAnswerCallback(ctx, chatID, callback.From.ID, parts[1], parts[2], parts[3])

	case "skip":
		if len(parts) != 3 {
			return nil
		}
		sessionID, err := uuid.Parse(parts[1])
		if err != nil {
			return nil
		}
		idx, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil
		}
		user, err := b.users.GetByTelegramID(ctx, callback.From.ID)
		if err != nil {
			return nil
		}
		result, err := b.quizzes.SkipQuestion(ctx, sessionID, idx)
		if err != nil {
			return b.replyAnswerError(chatID, err)
		}
		return b.reportAnswer(ctx, chatID, user.ID, result)

	case "end":
		if len(parts) != 2 {
			return nil
		}
		sessionID, err := uuid.Parse(parts[1])
		if err != nil {
			return nil
		}
		user, err := b.users.GetByTelegramID(ctx, callback.From.ID)
		if err != nil {
			return nil
		}
		ended, err := b.quizzes.EndEarly(ctx, sessionID)
		if err != nil {
			return b.replyAnswerError(chatID, err)
		}
		if ended.AnsweredCount() == 0 {
			return b.send(chatID, "Quiz discarded. Nothing was answered.")
		}
		return b.sendSummary(ctx, chatID, user.ID, ended)
	}
	return nil
}

func (b *Bot) handleAnswerCallback(ctx context.Context, chatID, telegramID int64, rawSession, rawIdx, rawOption string) error {
	sessionID, err := uuid.Parse(rawSession)
	if err != nil {
		return nil
	}
	idx, err := strconv.Atoi(rawIdx)
	if err != nil {
		return nil
	}
	optionIdx, err := strconv.Atoi(rawOption)
	if err != nil {
		return nil
	}

	user, err := b.users.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil
	}

	result, err := b.quizzes.SubmitOption(ctx, sessionID, idx, optionIdx)
	if err != nil {
		return b.replyAnswerError(chatID, err)
	}
	return b.reportAnswer(ctx, chatID, user.ID, result)
}

// reportAnswer gives feedback and either asks the next question or sends the
// session summary.
func (b *Bot) reportAnswer(ctx context.Context, chatID, userID int64, result *quiz.AnswerResult) error {
	var feedback string
	switch {
	case result.Skipped:
		feedback = fmt.Sprintf("⏭ Skipped. The answer was: *%s*", result.Answer)
	case result.Correct:
		feedback = "✅ Correct!"
	default:
		feedback = fmt.Sprintf("❌ Not quite. The answer was: *%s*", result.Answer)
	}
	if err := b.send(chatID, feedback); err != nil {
		return err
	}

	if result.Completed {
		return b.sendSummary(ctx, chatID, userID, result.Session)
	}
	return b.askQuestion(chatID, result.Session.ID)
}

// sendSummary reports the finished session and the refreshed progress
func (b *Bot) sendSummary(ctx context.Context, chatID, userID int64, session *models.QuizSession) error {
	answered := session.AnsweredCount()
	var sb strings.Builder
	sb.WriteString("*Quiz complete!* 🎉\n\n")
	fmt.Fprintf(&sb, "Score: %d/%d\n", session.Score, answered)

	if prog, err := b.progresses.GetByUserID(ctx, userID); err == nil {
		fmt.Fprintf(&sb, "Overall accuracy: %.0f%%\n", prog.AverageAccuracy*100)
		if prog.NextReviewDate != nil {
			fmt.Fprintf(&sb, "Next review: %s\n", prog.NextReviewDate.Format("Jan 2 15:04"))
		}
	}
	sb.WriteString("\nKeep it up with another /quiz!")
	return b.send(chatID, sb.String())
}

// replyAnswerError turns quiz errors into user-readable replies
func (b *Bot) replyAnswerError(chatID int64, err error) error {
	switch {
	case errors.Is(err, quiz.ErrSessionNotFound):
		return b.send(chatID, "That quiz has expired. Start a new one with /quiz!")
	case errors.Is(err, quiz.ErrSessionCompleted):
		return b.send(chatID, "That quiz is already finished.")
	case errors.Is(err, quiz.ErrAlreadyAnswered):
		return b.send(chatID, "You already answered that question.")
	case errors.Is(err, quiz.ErrQuestionOutOfRange), errors.Is(err, quiz.ErrOptionOutOfRange):
		return nil
	default:
		return err
	}
}
