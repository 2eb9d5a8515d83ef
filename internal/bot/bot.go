package bot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/aalexander1088-svg/korean-learning-bot-sub000/internal/database"
	"github.com/aalexander1088-svg/korean-learning-bot-sub000/internal/excel"
	"github.com/aalexander1088-svg/korean-learning-bot-sub000/internal/progress"
	"github.com/aalexander1088-svg/korean-learning-bot-sub000/internal/quiz"
	"github.com/aalexander1088-svg/korean-learning-bot-sub000/pkg/models"
)

// MenuButton is one button in an inline keyboard
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard builds an inline keyboard from button rows
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow,
				tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// Bot is the Telegram front end. It owns no learning state of its own; every
// quiz and progress mutation goes through the quiz manager and repositories.
type Bot struct {
	api        *tgbotapi.BotAPI
	users      *database.UserRepository
	words      *database.WordRepository
	progresses *database.ProgressRepository
	quizzes    *quiz.Manager
	tracker    *progress.Tracker
	importer   *excel.Importer

	admins map[int64]bool

	mu             sync.Mutex
	awaitingImport map[int64]bool
}

// New creates a bot instance. ADMIN_USER_IDS is a comma-separated list of
// Telegram user ids allowed to run import commands.
func New(token string, users *database.UserRepository, words *database.WordRepository, progresses *database.ProgressRepository, quizzes *quiz.Manager, tracker *progress.Tracker, importer *excel.Importer) (*Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable is not set")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("unable to create bot: %w", err)
	}

	b := &Bot{
		api:            api,
		users:          users,
		words:          words,
		progresses:     progresses,
		quizzes:        quizzes,
		tracker:        tracker,
		importer:       importer,
		admins:         make(map[int64]bool),
		awaitingImport: make(map[int64]bool),
	}

	if ids := os.Getenv("ADMIN_USER_IDS"); ids != "" {
		for _, idStr := range strings.Split(ids, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
			if err != nil {
				slog.Warn("invalid admin user id", "value", idStr)
				continue
			}
			b.admins[id] = true
		}
	}

	slog.Info("authorized on telegram", "account", api.Self.UserName)
	return b, nil
}

// Run processes updates until the context is cancelled
func (b *Bot) Run(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while handling update", "panic", r)
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			slog.Error("callback failed", "user_id", update.CallbackQuery.From.ID, "error", err)
		}
	case update.Message != nil && update.Message.IsCommand():
		if err := b.handleCommand(ctx, update.Message); err != nil {
			slog.Error("command failed",
				"command", update.Message.Command(),
				"user_id", update.Message.From.ID, "error", err)
		}
	case update.Message != nil:
		if err := b.handleMessage(ctx, update.Message); err != nil {
			slog.Error("message failed", "user_id", update.Message.From.ID, "error", err)
		}
	}
}

// SendDueReminder notifies a user that words are waiting for review. It
// implements the scheduler's Notifier interface.
func (b *Bot) SendDueReminder(user models.User, dueCount int) error {
	text := fmt.Sprintf("📚 You have %d word(s) ready for review! Use /quiz to practice.", dueCount)
	msg := tgbotapi.NewMessage(user.TelegramID, text)
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) isAdmin(userID int64) bool {
	return b.admins[userID]
}

func (b *Bot) send(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithKeyboard(chatID int64, text string, buttons [][]MenuButton) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = createKeyboard(buttons)
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) setAwaitingImport(userID int64, waiting bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if waiting {
		b.awaitingImport[userID] = true
	} else {
		delete(b.awaitingImport, userID)
	}
}

func (b *Bot) isAwaitingImport(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.awaitingImport[userID]
}
