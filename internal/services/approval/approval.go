// Package approval проводит заявки на бонусы, покупку токенов и выплаты через одобрение администратора.
//
// Все четыре вида заявок обрабатываются одним кодом: переход из pending выполняется
// условным обновлением в хранилище, начисление токенов проходит в той же транзакции,
// уведомление отправляется после фиксации и на результат не влияет.
package approval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Uz11ps/markethelper/internal/lib/apperr"
	"github.com/Uz11ps/markethelper/internal/lib/metrics"
	"github.com/Uz11ps/markethelper/internal/models"
)

// Repository переходы состояний заявок.
type Repository interface {
	ApproveRequest(ctx context.Context, kind models.RequestKind, id, adminID int,
		in models.ApproveInput) (*models.ApproveResult, error)
	RejectRequest(ctx context.Context, kind models.RequestKind, id, adminID int,
		comment *string) (*models.RejectResult, error)
	ListApprovals(ctx context.Context, kind models.RequestKind, status string) ([]models.ApprovalRequest, error)
}

// Notifier отправляет уведомление пользователю без ожидания доставки.
type Notifier interface {
	Notify(ctx context.Context, tgID int64, message string)
}

// Service одобрение и отклонение заявок.
type Service struct {
	repo     Repository
	notifier Notifier
	log      *slog.Logger
}

// NewService создает новый экземпляр Service.
func NewService(repo Repository, notifier Notifier, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		log:      log,
	}
}

// Approve одобряет заявку и начисляет токены, если вид заявки это предусматривает.
func (s *Service) Approve(ctx context.Context, kind models.RequestKind, id, adminID int,
	in models.ApproveInput) (*models.ApproveResult, error) {
	const op = "services.approval.Approve"
	d, err := lookup(kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res, err := s.repo.ApproveRequest(ctx, kind, id, adminID, in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, d.describe(err))
	}

	metrics.Approvals.WithLabelValues(string(kind), metrics.DecisionApproved).Inc()
	s.log.Info("request approved", slog.String("op", op), slog.String("kind", string(kind)),
		slog.Int("id", id), slog.Int("admin_id", adminID), slog.Int("credited", res.Credited))

	s.notifier.Notify(ctx, res.UserTgID, d.approvedText(res))
	return res, nil
}

// Reject отклоняет заявку без изменения баланса.
func (s *Service) Reject(ctx context.Context, kind models.RequestKind, id, adminID int,
	comment *string) (*models.RejectResult, error) {
	const op = "services.approval.Reject"
	d, err := lookup(kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var text string
	if comment != nil {
		text = strings.TrimSpace(*comment)
	}
	if d.commentRequired && text == "" {
		return nil, fmt.Errorf("%s: %w", op,
			apperr.New(apperr.ErrInvalidArgument, "Укажите причину отклонения"))
	}

	res, err := s.repo.RejectRequest(ctx, kind, id, adminID, comment)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, d.describe(err))
	}

	metrics.Approvals.WithLabelValues(string(kind), metrics.DecisionRejected).Inc()
	s.log.Info("request rejected", slog.String("op", op), slog.String("kind", string(kind)),
		slog.Int("id", id), slog.Int("admin_id", adminID))

	if d.rejectedText != nil {
		s.notifier.Notify(ctx, res.UserTgID, d.rejectedText(res, text))
	}
	return res, nil
}

// List возвращает заявки вида kind, новые первыми. Пустой status означает все статусы.
func (s *Service) List(ctx context.Context, kind models.RequestKind, status string) ([]models.ApprovalRequest, error) {
	const op = "services.approval.List"
	if _, err := lookup(kind); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	switch status {
	case "", models.StatusPending, models.StatusApproved, models.StatusRejected:
	default:
		return nil, fmt.Errorf("%s: %w", op, apperr.New(apperr.ErrInvalidArgument, "Неизвестный статус заявки"))
	}

	res, err := s.repo.ListApprovals(ctx, kind, status)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if res == nil {
		res = []models.ApprovalRequest{}
	}
	return res, nil
}

func lookup(kind models.RequestKind) (descriptor, error) {
	d, ok := descriptors[kind]
	if !ok {
		return descriptor{}, apperr.New(apperr.ErrInvalidArgument, "Неизвестный тип заявки")
	}
	return d, nil
}

func (d descriptor) describe(err error) error {
	err = apperr.Describe(err, apperr.ErrNotFound, d.notFound)
	return apperr.Describe(err, apperr.ErrAlreadyProcessed, d.processed)
}
