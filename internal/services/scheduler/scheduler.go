// Package scheduler запускает фоновые задачи по расписанию cron: перевод
// просроченных подписок в истекшие и напоминания об окончании подписки.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Uz11ps/markethelper/internal/config"
	"github.com/Uz11ps/markethelper/internal/lib/sl"
	"github.com/Uz11ps/markethelper/internal/models"
)

// Repository определяет методы хранилища для фоновых задач.
type Repository interface {
	ExpireSubscriptions(ctx context.Context, now time.Time) (int, error)
	FindExpiringSubscriptions(ctx context.Context, from, to time.Time) ([]models.ExpiringSubscription, error)
}

// Notifier отправляет уведомление пользователю без ожидания доставки.
type Notifier interface {
	Notify(ctx context.Context, tgID int64, message string)
}

// Service фоновые задачи подписок.
type Service struct {
	repo     Repository
	notifier Notifier
	cfg      config.Scheduler
	loc      *time.Location
	cron     *cron.Cron
	log      *slog.Logger
	now      func() time.Time
}

// NewService создает планировщик. Неизвестный часовой пояс заменяется на UTC+3.
func NewService(repo Repository, notifier Notifier, cfg config.Scheduler, log *slog.Logger) *Service {
	loc, err := time.LoadLocation(cfg.Location)
	if err != nil {
		log.Warn("failed to load location, UTC+3 used", slog.String("location", cfg.Location), sl.Err(err))
		loc = time.FixedZone("MSK", 3*60*60)
	}

	return &Service{
		repo:     repo,
		notifier: notifier,
		cfg:      cfg,
		loc:      loc,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log})),
		),
		log: log,
		now: time.Now,
	}
}

// Start регистрирует задачи и запускает планировщик. Задачи получают ctx.
func (s *Service) Start(ctx context.Context) error {
	const op = "services.scheduler.Start"

	if _, err := s.cron.AddFunc(s.cfg.ExpireSpec, func() { s.ExpireSubscriptions(ctx) }); err != nil {
		return fmt.Errorf("%s: expire spec %q: %w", op, s.cfg.ExpireSpec, err)
	}
	if _, err := s.cron.AddFunc(s.cfg.ReminderSpec, func() { s.SendReminders(ctx) }); err != nil {
		return fmt.Errorf("%s: reminder spec %q: %w", op, s.cfg.ReminderSpec, err)
	}

	s.cron.Start()
	s.log.Info("scheduler started", slog.String("location", s.loc.String()),
		slog.String("expire_spec", s.cfg.ExpireSpec), slog.String("reminder_spec", s.cfg.ReminderSpec))
	return nil
}

// Stop останавливает планировщик и ждет завершения запущенных задач.
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// ExpireSubscriptions переводит активные подписки с прошедшей датой окончания в истекшие.
func (s *Service) ExpireSubscriptions(ctx context.Context) {
	const op = "services.scheduler.ExpireSubscriptions"
	log := s.log.With(slog.String("op", op))

	n, err := s.repo.ExpireSubscriptions(ctx, s.now())
	if err != nil {
		log.Error("failed to expire subscriptions", sl.Err(err))
		return
	}
	if n > 0 {
		log.Info("subscriptions expired", slog.Int("count", n))
	}
}

// SendReminders уведомляет пользователей, чьи подписки заканчиваются в ближайшие ReminderLeadTime.
func (s *Service) SendReminders(ctx context.Context) {
	const op = "services.scheduler.SendReminders"
	log := s.log.With(slog.String("op", op))

	now := s.now()
	expiring, err := s.repo.FindExpiringSubscriptions(ctx, now, now.Add(s.cfg.ReminderLeadTime))
	if err != nil {
		log.Error("failed to find expiring subscriptions", sl.Err(err))
		return
	}
	if len(expiring) == 0 {
		log.Debug("no expiring subscriptions found")
		return
	}

	log.Info("found expiring subscriptions", slog.Int("count", len(expiring)))
	for _, e := range expiring {
		s.notifier.Notify(ctx, e.UserTgID, fmt.Sprintf(
			"⏰ Ваша подписка на тариф %s заканчивается %s. Продлите ее, чтобы не потерять доступ.",
			e.TariffName, e.EndDate.In(s.loc).Format("02.01.2006 15:04")))
	}
}

// cronLogger передает сообщения cron в slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, sl.Err(err))...)
}
