// Package subscription содержит бизнес-логику заявок на подписку и выданных подписок.
package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Uz11ps/markethelper/internal/lib/apperr"
	"github.com/Uz11ps/markethelper/internal/lib/metrics"
	"github.com/Uz11ps/markethelper/internal/models"
)

// Repository определяет методы хранилища для заявок и подписок.
type Repository interface {
	// CreateRequest создает заявку в статусе pending.
	CreateRequest(ctx context.Context, in models.NewRequest) (*models.Request, error)
	// ListRequests возвращает заявки с фильтром по статусу.
	ListRequests(ctx context.Context, status string) ([]models.Request, error)
	// ApproveSubscriptionRequest одобряет заявку и выдает подписку в одной транзакции.
	ApproveSubscriptionRequest(ctx context.Context, requestID, adminID int, groupID *int,
		referralBonus int, now time.Time) (*models.ApprovedSubscription, error)
	// RejectSubscriptionRequest отклоняет заявку.
	RejectSubscriptionRequest(ctx context.Context, requestID, adminID int) (*models.RejectedRequest, error)
	ListSubscriptions(ctx context.Context) ([]models.Subscription, error)
	ExtendSubscription(ctx context.Context, id, days int, now time.Time) (*models.Subscription, error)
	RevokeSubscription(ctx context.Context, id int, now time.Time) (*models.Subscription, error)
	ActiveSubscription(ctx context.Context, tgID int64, now time.Time) (*models.Subscription, error)
}

// SettingsProvider текущие настройки.
type SettingsProvider interface {
	Current() models.Settings
}

// Notifier отправляет уведомление пользователю без ожидания доставки.
type Notifier interface {
	Notify(ctx context.Context, tgID int64, message string)
}

// Service реализует бизнес-логику подписок.
type Service struct {
	repo     Repository
	settings SettingsProvider
	notifier Notifier
	log      *slog.Logger
	now      func() time.Time
}

// NewService создает новый экземпляр Service.
func NewService(repo Repository, settings SettingsProvider, notifier Notifier, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		settings: settings,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// CreateRequest создает заявку на подписку от имени пользователя бота.
func (s *Service) CreateRequest(ctx context.Context, in models.NewRequest) (*models.Request, error) {
	const op = "services.subscription.CreateRequest"
	req, err := s.repo.CreateRequest(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("subscription request created", slog.String("op", op), slog.Int("request_id", req.ID),
		slog.Int64("tg_id", in.TgID), slog.String("tariff", in.TariffCode))
	return req, nil
}

// ListRequests возвращает заявки. Пустой status означает все статусы.
func (s *Service) ListRequests(ctx context.Context, status string) ([]models.Request, error) {
	const op = "services.subscription.ListRequests"
	switch status {
	case "", models.StatusPending, models.StatusApproved, models.StatusRejected:
	default:
		return nil, fmt.Errorf("%s: %w", op, apperr.New(apperr.ErrInvalidArgument, "Неизвестный статус заявки"))
	}
	res, err := s.repo.ListRequests(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if res == nil {
		res = []models.Request{}
	}
	return res, nil
}

// ApproveRequest одобряет заявку и выдает подписку на 30 дней за каждый месяц тарифа.
// Групповой подписке нужна группа: переданная администратором или указанная в заявке.
func (s *Service) ApproveRequest(ctx context.Context, requestID, adminID int,
	groupID *int) (*models.ApprovedSubscription, error) {
	const op = "services.subscription.ApproveRequest"

	res, err := s.repo.ApproveSubscriptionRequest(ctx, requestID, adminID, groupID,
		s.settings.Current().ReferralBonus, s.now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	metrics.Approvals.WithLabelValues("subscription", metrics.DecisionApproved).Inc()
	log := s.log.With(slog.String("op", op), slog.Int("request_id", requestID))
	log.Info("subscription request approved", slog.Int("subscription_id", res.SubscriptionID),
		slog.Time("end_date", res.EndDate))
	if res.PendingBonusID != nil {
		log.Info("referral activated, bonus awaits approval", slog.Int("bonus_id", *res.PendingBonusID))
	}

	s.notifier.Notify(ctx, res.UserTgID, fmt.Sprintf(
		"✅ Ваша заявка #%d на тариф %s одобрена!\nИспользуйте /start еще раз для перехода в профиль и использования бота!",
		requestID, res.TariffName))
	return res, nil
}

// RejectRequest отклоняет заявку и уведомляет пользователя.
func (s *Service) RejectRequest(ctx context.Context, requestID, adminID int) (*models.RejectedRequest, error) {
	const op = "services.subscription.RejectRequest"
	res, err := s.repo.RejectSubscriptionRequest(ctx, requestID, adminID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	metrics.Approvals.WithLabelValues("subscription", metrics.DecisionRejected).Inc()
	s.log.Info("subscription request rejected", slog.String("op", op), slog.Int("request_id", requestID))
	s.notifier.Notify(ctx, res.UserTgID,
		fmt.Sprintf("❌ Ваша заявка #%d на тариф %s отклонена.", requestID, res.TariffName))
	return res, nil
}

// ListSubscriptions возвращает все подписки.
func (s *Service) ListSubscriptions(ctx context.Context) ([]models.Subscription, error) {
	const op = "services.subscription.ListSubscriptions"
	res, err := s.repo.ListSubscriptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if res == nil {
		res = []models.Subscription{}
	}
	return res, nil
}

// Extend продлевает подписку на days дней и делает ее активной.
func (s *Service) Extend(ctx context.Context, id, days int) (*models.Subscription, error) {
	const op = "services.subscription.Extend"
	if days <= 0 {
		return nil, fmt.Errorf("%s: %w", op,
			apperr.New(apperr.ErrInvalidArgument, "Количество дней должно быть больше нуля"))
	}
	sub, err := s.repo.ExtendSubscription(ctx, id, days, s.now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, describeSubscription(err))
	}
	s.log.Info("subscription extended", slog.String("op", op), slog.Int("id", id), slog.Int("days", days),
		slog.Time("end_date", sub.EndDate))
	return sub, nil
}

// Revoke досрочно завершает подписку.
func (s *Service) Revoke(ctx context.Context, id int) (*models.Subscription, error) {
	const op = "services.subscription.Revoke"
	sub, err := s.repo.RevokeSubscription(ctx, id, s.now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, describeSubscription(err))
	}
	s.log.Info("subscription revoked", slog.String("op", op), slog.Int("id", id))
	return sub, nil
}

// Active возвращает действующую подписку пользователя.
func (s *Service) Active(ctx context.Context, tgID int64) (*models.Subscription, error) {
	const op = "services.subscription.Active"
	sub, err := s.repo.ActiveSubscription(ctx, tgID, s.now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op,
			apperr.Describe(err, apperr.ErrNotFound, "Активная подписка не найдена"))
	}
	return sub, nil
}

func describeSubscription(err error) error {
	return apperr.Describe(err, apperr.ErrNotFound, "Подписка не найдена")
}
