// Package channel обрабатывает бонус за подписку на канал.
//
// Членство в канале проверяет бот через Telegram API. Сервис лишь создает заявку
// на бонус, которую затем одобряет администратор.
package channel

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Uz11ps/markethelper/internal/lib/apperr"
	"github.com/Uz11ps/markethelper/internal/models"
)

// Repository определяет методы хранилища для бонуса за канал.
type Repository interface {
	// CreateChannelBonusRequest возвращает один из исходов models.Channel*.
	CreateChannelBonusRequest(ctx context.Context, tgID int64, amount int) (string, error)
	HasPendingChannelBonus(ctx context.Context, tgID int64) (bool, error)
	MarkChannelMessageShown(ctx context.Context, tgID int64) error
}

// SettingsProvider публичные настройки канала.
type SettingsProvider interface {
	Channel() models.ChannelSettings
}

// Service реализует логику бонуса за канал.
type Service struct {
	repo     Repository
	settings SettingsProvider
	log      *slog.Logger
}

// NewService создает новый экземпляр Service.
func NewService(repo Repository, settings SettingsProvider, log *slog.Logger) *Service {
	return &Service{repo: repo, settings: settings, log: log}
}

// Settings возвращает канал и размер бонуса.
func (s *Service) Settings() models.ChannelSettings {
	return s.settings.Channel()
}

// Check создает заявку на бонус, если бонус еще не выдан и заявки в ожидании нет.
func (s *Service) Check(ctx context.Context, tgID int64) (*models.ChannelCheckResult, error) {
	const op = "services.channel.Check"
	log := s.log.With(slog.String("op", op), slog.Int64("tg_id", tgID))

	amount := s.settings.Channel().ChannelBonus
	outcome, err := s.repo.CreateChannelBonusRequest(ctx, tgID, amount)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, apperr.Describe(err, apperr.ErrNotFound, "Пользователь не найден"))
	}

	res := &models.ChannelCheckResult{Subscribed: true}
	switch outcome {
	case models.ChannelBonusAlreadyGiven:
		res.BonusAlreadyGiven = true
		res.Message = "Бонус за подписку уже был начислен ранее"
	case models.ChannelRequestAlreadyExist:
		res.RequestAlreadyExists = true
		res.Message = "Запрос на бонус за подписку уже отправлен и ожидает одобрения"
	case models.ChannelRequestCreated:
		res.RequestCreated = true
		res.BonusAmount = amount
		res.Message = fmt.Sprintf(
			"✅ Запрос на %d токенов за подписку на канал отправлен администратору. Бонус будет начислен после одобрения.",
			amount)
		log.Info("channel bonus requested", slog.Int("amount", amount))
	default:
		return nil, fmt.Errorf("%s: unexpected outcome %q", op, outcome)
	}
	return res, nil
}

// HasPending сообщает, ожидает ли заявка пользователя одобрения.
// Для неизвестного пользователя возвращает false.
func (s *Service) HasPending(ctx context.Context, tgID int64) (bool, error) {
	const op = "services.channel.HasPending"
	pending, err := s.repo.HasPendingChannelBonus(ctx, tgID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return pending, nil
}

// MarkShown отмечает, что сообщение о канале показано пользователю.
func (s *Service) MarkShown(ctx context.Context, tgID int64) error {
	const op = "services.channel.MarkShown"
	if err := s.repo.MarkChannelMessageShown(ctx, tgID); err != nil {
		return fmt.Errorf("%s: %w", op, apperr.Describe(err, apperr.ErrNotFound, "Пользователь не найден"))
	}
	return nil
}
