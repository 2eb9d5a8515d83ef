package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/aalexander1088-svg/korean-learning-bot-sub000/internal/ai"
	"github.com/aalexander1088-svg/korean-learning-bot-sub000/internal/bot"
	"github.com/aalexander1088-svg/korean-learning-bot-sub000/internal/database"
	"github.com/aalexander1088-svg/korean-learning-bot-sub000/internal/excel"
	"github.com/aalexander1088-svg/korean-learning-bot-sub000/internal/logging"
	"github.com/aalexander1088-svg/korean-learning-bot-sub000/internal/progress"
	"github.com/aalexander1088-svg/korean-learning-bot-sub000/internal/quiz"
	"github.com/aalexander1088-svg/korean-learning-bot-sub000/internal/scheduler"
)

func main() {
	// .env is optional; real deployments set the environment directly
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not load .env file", "error", err)
	}
	logging.Setup(os.Getenv("LOG_LEVEL"))

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}
	db, err := database.Connect(os.Getenv("DB_TYPE"), os.Getenv("DATABASE_URL"), dataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	users := database.NewUserRepository(db)
	words := database.NewWordRepository(db)
	reviews := database.NewReviewRepository(db)
	progresses := database.NewProgressRepository(db)
	sessions := database.NewSessionRepository(db)

	var generator ai.Generator
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		generator = ai.NewOpenAIGenerator(apiKey, os.Getenv("OPENAI_BASE_URL"), os.Getenv("OPENAI_MODEL"), 10*time.Second)
	} else {
		slog.Info("OPENAI_API_KEY not set, using templated questions only")
	}

	tracker := progress.NewTracker(reviews)
	registry := quiz.NewRegistry()
	quizzes := quiz.NewManager(database.NewWordSource(words, reviews), reviews, progresses, sessions, generator, tracker, registry)

	importer := excel.NewImporter(words)
	b, err := bot.New(os.Getenv("TELEGRAM_BOT_TOKEN"), users, words, progresses, quizzes, tracker, importer)
	if err != nil {
		return err
	}

	sched := scheduler.New(b, users, reviews, registry)
	if os.Getenv("ENABLE_SCHEDULER") != "false" {
		sched.Start()
		defer sched.Stop()
	}

	// Shut down on SIGINT/SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	done := make(chan error, 1)
	go func() {
		done <- b.Run(ctx)
	}()

	slog.Info("bot started")
	select {
	case sig := <-sigChan:
		slog.Info("shutting down", "signal", sig.String())
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			slog.Warn("shutdown timed out")
		}
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}

	slog.Info("bot stopped")
	return nil
}
