// Package tokens списывает и начисляет токены пользователей бота.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/Uz11ps/markethelper/internal/lib/apperr"
	"github.com/Uz11ps/markethelper/internal/lib/metrics"
	"github.com/Uz11ps/markethelper/internal/models"
)

const defaultHistoryLimit = 50

// Repository операции журнала баланса.
type Repository interface {
	Charge(ctx context.Context, tgID int64, cost int, reason string) (int, error)
	Balance(ctx context.Context, tgID int64) (int, error)
	SetBalance(ctx context.Context, userID, balance int) (int, error)
	History(ctx context.Context, tgID int64, limit int) ([]models.LedgerEntry, error)
	CreateTokenPurchase(ctx context.Context, tgID int64, amount int, cost decimal.Decimal) (*models.TokenPurchase, error)
}

// Pricer рассчитывает стоимость действий по текущим настройкам.
type Pricer interface {
	CostFor(action, model string) (int, error)
	Current() models.Settings
}

// Service операции с токенами.
type Service struct {
	repo   Repository
	pricer Pricer
	log    *slog.Logger
}

// NewService создает новый экземпляр Service.
func NewService(repo Repository, pricer Pricer, log *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		pricer: pricer,
		log:    log,
	}
}

// Charge списывает токены за действие. Явная стоимость req.Cost имеет приоритет над настройками.
// Нулевая стоимость возвращает текущий баланс без записи в журнал.
// Заблокированному пользователю списание запрещено при любой стоимости.
func (s *Service) Charge(ctx context.Context, req models.ChargeRequest) (*models.ChargeResult, error) {
	const op = "services.tokens.Charge"
	log := s.log.With(slog.String("op", op), slog.Int64("tg_id", req.TgID), slog.String("action", req.Action))

	label, ok := models.ActionLabels[req.Action]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op,
			apperr.New(apperr.ErrInvalidArgument, "Неизвестный тип действия для списания токенов"))
	}

	var cost int
	if req.Cost != nil {
		cost = *req.Cost
	} else {
		var err error
		cost, err = s.pricer.CostFor(req.Action, req.Model)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	if cost < 0 {
		return nil, fmt.Errorf("%s: %w", op,
			apperr.New(apperr.ErrInvalidArgument, "Стоимость действия не может быть отрицательной"))
	}

	res := &models.ChargeResult{Action: req.Action, Cost: cost, Label: label}
	balance, err := s.repo.Charge(ctx, req.TgID, cost, models.ReasonCharge+":"+req.Action)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrInsufficientFunds):
			metrics.LedgerRejections.WithLabelValues("insufficient_funds").Inc()
			log.Warn("insufficient tokens", slog.Int("cost", cost))
			err = apperr.Describe(err, apperr.ErrInsufficientFunds, "Недостаточно токенов")
		case errors.Is(err, apperr.ErrNotFound):
			metrics.LedgerRejections.WithLabelValues("user_not_found").Inc()
			err = describeUser(err)
		case errors.Is(err, apperr.ErrForbidden):
			metrics.LedgerRejections.WithLabelValues("user_banned").Inc()
			log.Warn("banned user tried to spend tokens")
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	res.Balance = balance
	if cost == 0 {
		log.Debug("zero cost, nothing charged")
		return res, nil
	}

	metrics.TokensCharged.WithLabelValues(req.Action).Add(float64(cost))
	log.Info("tokens charged", slog.Int("cost", cost), slog.Int("balance", balance))
	return res, nil
}

// Balance возвращает баланс пользователя.
func (s *Service) Balance(ctx context.Context, tgID int64) (int, error) {
	const op = "services.tokens.Balance"
	balance, err := s.repo.Balance(ctx, tgID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, describeUser(err))
	}
	return balance, nil
}

// History возвращает последние изменения баланса.
func (s *Service) History(ctx context.Context, tgID int64, limit int) ([]models.LedgerEntry, error) {
	const op = "services.tokens.History"
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	entries, err := s.repo.History(ctx, tgID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, describeUser(err))
	}
	return entries, nil
}

// SetBalance устанавливает баланс пользователя вручную. Изменение пишется в журнал.
func (s *Service) SetBalance(ctx context.Context, userID, balance int) (int, error) {
	const op = "services.tokens.SetBalance"
	if balance < 0 {
		return 0, fmt.Errorf("%s: %w", op,
			apperr.New(apperr.ErrInvalidArgument, "Баланс не может быть отрицательным"))
	}

	newBalance, err := s.repo.SetBalance(ctx, userID, balance)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, describeUser(err))
	}
	s.log.Info("balance set by admin", slog.String("op", op), slog.Int("user_id", userID), slog.Int("balance", newBalance))
	return newBalance, nil
}

// CreatePurchase создает заявку на покупку токенов. Стоимость равна amount, умноженному на цену токена.
func (s *Service) CreatePurchase(ctx context.Context, tgID int64, amount int) (*models.TokenPurchase, error) {
	const op = "services.tokens.CreatePurchase"
	if amount <= 0 {
		return nil, fmt.Errorf("%s: %w", op,
			apperr.New(apperr.ErrInvalidArgument, "Количество токенов должно быть больше нуля"))
	}

	cost := s.pricer.Current().TokenPriceRub.Mul(decimal.NewFromInt(int64(amount))).Round(2)
	purchase, err := s.repo.CreateTokenPurchase(ctx, tgID, amount, cost)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, describeUser(err))
	}
	s.log.Info("token purchase requested", slog.String("op", op), slog.Int64("tg_id", tgID),
		slog.Int("amount", amount), slog.String("cost", cost.String()))
	return purchase, nil
}

func describeUser(err error) error {
	return apperr.Describe(err, apperr.ErrNotFound, "Пользователь не найден")
}
