package scheduler

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/aalexander1088-svg/korean-learning-bot-sub000/internal/database"
	"github.com/aalexander1088-svg/korean-learning-bot-sub000/internal/quiz"
	"github.com/aalexander1088-svg/korean-learning-bot-sub000/pkg/models"
)

// Default window outside which reminders are never sent
const (
	DefaultNotificationStartHour = 8
	DefaultNotificationEndHour   = 22
)

// sessionIdleTimeout is how long a quiz session may sit untouched before the
// sweep drops it.
const sessionIdleTimeout = 30 * time.Minute

// Notifier delivers review reminders to users
type Notifier interface {
	SendDueReminder(user models.User, dueCount int) error
}

// Scheduler runs the periodic background tasks: hourly review reminders and
// the idle-session sweep.
type Scheduler struct {
	scheduler *gocron.Scheduler
	notifier  Notifier
	users     *database.UserRepository
	reviews   *database.ReviewRepository
	registry  *quiz.Registry
}

// New creates a scheduler instance
func New(notifier Notifier, users *database.UserRepository, reviews *database.ReviewRepository, registry *quiz.Registry) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		notifier:  notifier,
		users:     users,
		reviews:   reviews,
		registry:  registry,
	}
}

// Start begins running all scheduled tasks in the background
func (s *Scheduler) Start() {
	s.scheduler.Every(1).Hour().Do(s.checkAndSendReminders)
	s.scheduler.Every(5).Minutes().Do(s.sweepSessions)
	s.scheduler.StartAsync()
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// sweepSessions drops quiz sessions idle past the timeout. Already-flushed
// answers stay in the store; only the in-memory session goes.
func (s *Scheduler) sweepSessions() {
	if removed := s.registry.Sweep(time.Now(), sessionIdleTimeout); removed > 0 {
		slog.Info("swept idle quiz sessions", "removed", removed)
	}
}

// checkAndSendReminders notifies users whose reminder hour matches the
// current hour and who have words waiting for review.
func (s *Scheduler) checkAndSendReminders() {
	now := time.Now().UTC()
	hour := now.Hour()

	if hour < notificationHour("NOTIFICATION_START_HOUR", DefaultNotificationStartHour) ||
		hour > notificationHour("NOTIFICATION_END_HOUR", DefaultNotificationEndHour) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	users, err := s.users.UsersForReminder(ctx, hour)
	if err != nil {
		slog.Error("loading users for reminders", "error", err)
		return
	}

	for _, user := range users {
		if err := s.RemindUser(ctx, user, now); err != nil {
			slog.Error("sending reminder", "user_id", user.ID, "error", err)
		}
	}
}

// RemindUser sends one reminder to a user if anything is due
func (s *Scheduler) RemindUser(ctx context.Context, user models.User, now time.Time) error {
	due, err := s.reviews.CountDue(ctx, user.ID, now)
	if err != nil {
		return err
	}
	if due == 0 {
		return nil
	}
	return s.notifier.SendDueReminder(user, due)
}

func notificationHour(envVar string, fallback int) int {
	v := os.Getenv(envVar)
	if v == "" {
		return fallback
	}
	h, err := strconv.Atoi(v)
	if err != nil || h < 0 || h > 23 {
		return fallback
	}
	return h
}
