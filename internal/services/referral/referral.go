// Package referral содержит логику реферальной программы: привязку приглашенных,
// сводку по рефералам и заявки на выплату рублей за рефералов.
package referral

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/Uz11ps/markethelper/internal/lib/apperr"
	"github.com/Uz11ps/markethelper/internal/models"
)

// Repository определяет методы хранилища для реферальной программы.
type Repository interface {
	GetUserByTgID(ctx context.Context, tgID int64) (*models.User, error)
	BindReferral(ctx context.Context, referredTg, referrerTg int64) (bool, error)
	ReferralCounts(ctx context.Context, userID int) (models.ReferralCounts, error)
	PayoutTotals(ctx context.Context, userID int) (models.PayoutTotals, error)
	ListReferrals(ctx context.Context, userID int) ([]models.ReferralEntry, error)
	CreatePayout(ctx context.Context, tgID int64, count int, rubPerReferral decimal.Decimal) (*models.Payout, error)
}

// SettingsProvider текущие настройки.
type SettingsProvider interface {
	Current() models.Settings
}

// Service реализует реферальную программу.
type Service struct {
	repo        Repository
	settings    SettingsProvider
	botUsername string
	log         *slog.Logger
}

// NewService создает новый экземпляр Service. botUsername используется в реферальной ссылке.
func NewService(repo Repository, settings SettingsProvider, botUsername string, log *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		settings:    settings,
		botUsername: botUsername,
		log:         log,
	}
}

// Bind привязывает приглашенного к пригласившему. Повторная привязка ничего не меняет
// и возвращает false.
func (s *Service) Bind(ctx context.Context, referredTg, referrerTg int64) (bool, error) {
	const op = "services.referral.Bind"
	if referredTg == referrerTg {
		return false, fmt.Errorf("%s: %w", op, apperr.New(apperr.ErrInvalidArgument, "Нельзя пригласить самого себя"))
	}

	bound, err := s.repo.BindReferral(ctx, referredTg, referrerTg)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, describeUser(err))
	}
	if bound {
		s.log.Info("referral bound", slog.String("op", op),
			slog.Int64("referred_tg", referredTg), slog.Int64("referrer_tg", referrerTg))
	}
	return bound, nil
}

// Info возвращает реферальную ссылку и суммы к выплате в рублях.
func (s *Service) Info(ctx context.Context, tgID int64) (*models.ReferralInfo, error) {
	const op = "services.referral.Info"

	user, err := s.repo.GetUserByTgID(ctx, tgID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, describeUser(err))
	}
	counts, err := s.repo.ReferralCounts(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	totals, err := s.repo.PayoutTotals(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rate := s.settings.Current().RubPerReferral
	total := rate.Mul(decimal.NewFromInt(int64(counts.Total)))
	return &models.ReferralInfo{
		RefLink:        s.RefLink(user.TgID),
		RefCount:       counts.Total,
		RubPerReferral: rate,
		TotalRub:       total,
		PendingRub:     totals.PendingRub,
		PendingCount:   totals.PendingCount,
		ApprovedRub:    totals.ApprovedRub,
		AvailableRub:   total.Sub(totals.ApprovedRub).Sub(totals.PendingRub),
	}, nil
}

// RefLink ссылка на бота с реферальным параметром пользователя.
func (s *Service) RefLink(tgID int64) string {
	return fmt.Sprintf("https://t.me/%s?start=ref_%d", s.botUsername, tgID)
}

// List возвращает приглашенных пользователем.
func (s *Service) List(ctx context.Context, tgID int64) ([]models.ReferralEntry, error) {
	const op = "services.referral.List"

	user, err := s.repo.GetUserByTgID(ctx, tgID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, describeUser(err))
	}
	res, err := s.repo.ListReferrals(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if res == nil {
		res = []models.ReferralEntry{}
	}
	return res, nil
}

// CreatePayout создает заявку на выплату за count рефералов по текущей ставке.
func (s *Service) CreatePayout(ctx context.Context, tgID int64, count int) (*models.Payout, error) {
	const op = "services.referral.CreatePayout"
	if count <= 0 {
		return nil, fmt.Errorf("%s: %w", op,
			apperr.New(apperr.ErrInvalidArgument, "Количество рефералов должно быть больше нуля"))
	}

	payout, err := s.repo.CreatePayout(ctx, tgID, count, s.settings.Current().RubPerReferral)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, describeUser(err))
	}
	s.log.Info("referral payout requested", slog.String("op", op), slog.Int64("tg_id", tgID),
		slog.Int("payout_id", payout.ID), slog.String("amount_rub", payout.AmountRub.StringFixed(2)))
	return payout, nil
}

func describeUser(err error) error {
	return apperr.Describe(err, apperr.ErrNotFound, "Пользователь не найден")
}
