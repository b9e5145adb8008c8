// Package notification доставляет сообщения пользователям Telegram.
//
// Publisher работает в API: ставит сообщения в очередь RabbitMQ и не ждет доставки.
// Sender работает в сервисе уведомлений: читает очередь и отправляет сообщения через бота.
package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Uz11ps/markethelper/internal/lib/apperr"
	"github.com/Uz11ps/markethelper/internal/lib/metrics"
	"github.com/Uz11ps/markethelper/internal/lib/rabbitmq"
	"github.com/Uz11ps/markethelper/internal/lib/sl"
	"github.com/Uz11ps/markethelper/internal/models"
)

const (
	typeNotify    = "notify"
	typeBroadcast = "broadcast"
	statsLimit    = 20

	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// BroadcastRepository получатели и журнал рассылок.
type BroadcastRepository interface {
	ListAudience(ctx context.Context, audience string) ([]int64, error)
	CreateBroadcast(ctx context.Context, message, audience string, total int) (int, error)
	BroadcastStats(ctx context.Context, limit int) (*models.BroadcastStats, error)
	BroadcastHistory(ctx context.Context, limit, offset int) ([]models.BroadcastMessage, error)
}

// Publisher ставит уведомления в очередь.
type Publisher struct {
	ch   rabbitmq.Channel
	repo BroadcastRepository
	log  *slog.Logger
}

// NewPublisher создает новый экземпляр Publisher.
func NewPublisher(ch rabbitmq.Channel, repo BroadcastRepository, log *slog.Logger) *Publisher {
	return &Publisher{
		ch:   ch,
		repo: repo,
		log:  log,
	}
}

// Notify ставит в очередь сообщение одному пользователю. Ошибки только логируются:
// к этому моменту бизнес-операция уже завершена.
func (p *Publisher) Notify(_ context.Context, tgID int64, message string) {
	const op = "services.notification.Notify"
	msg := models.NotifyMessage{ID: uuid.NewString(), TgID: tgID, Message: message}

	err := rabbitmq.PublishMessage(p.ch, rabbitmq.Exchange, rabbitmq.RoutingKeyNotify, msg)
	metrics.Notifications.WithLabelValues(typeNotify+"_enqueue", metrics.Result(err)).Inc()
	if err != nil {
		p.log.Error("failed to enqueue notification", slog.String("op", op), slog.Int64("tg_id", tgID), sl.Err(err))
		return
	}
	p.log.Debug("notification enqueued", slog.String("op", op), slog.String("id", msg.ID), slog.Int64("tg_id", tgID))
}

// Broadcast выбирает получателей по аудитории, сохраняет рассылку и ставит ее в очередь.
func (p *Publisher) Broadcast(ctx context.Context, req models.BroadcastRequest) (*models.BroadcastTicket, error) {
	const op = "services.notification.Broadcast"
	log := p.log.With(slog.String("op", op), slog.String("target", req.Target))

	userIDs, err := p.repo.ListAudience(ctx, req.Target)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(userIDs) == 0 {
		log.Info("no recipients for broadcast")
		return &models.BroadcastTicket{TotalUsers: 0, Status: models.BroadcastFinished}, nil
	}

	broadcastID, err := p.repo.CreateBroadcast(ctx, req.Message, req.Target, len(userIDs))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	job := models.BroadcastJob{
		ID:          uuid.NewString(),
		BroadcastID: broadcastID,
		UserIDs:     userIDs,
		Message:     req.Message,
	}
	err = rabbitmq.PublishMessage(p.ch, rabbitmq.Exchange, rabbitmq.RoutingKeyBroadcast, job)
	metrics.Notifications.WithLabelValues(typeBroadcast+"_enqueue", metrics.Result(err)).Inc()
	if err != nil {
		log.Error("failed to enqueue broadcast", slog.Int("broadcast_id", broadcastID), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op,
			apperr.New(apperr.ErrUnavailable, "Не удалось поставить рассылку в очередь"))
	}

	log.Info("broadcast enqueued", slog.Int("broadcast_id", broadcastID), slog.Int("recipients", len(userIDs)))
	return &models.BroadcastTicket{
		BroadcastID: broadcastID,
		TotalUsers:  len(userIDs),
		Status:      models.BroadcastQueued,
	}, nil
}

// Stats возвращает статистику последних рассылок.
func (p *Publisher) Stats(ctx context.Context) (*models.BroadcastStats, error) {
	const op = "services.notification.Stats"
	stats, err := p.repo.BroadcastStats(ctx, statsLimit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return stats, nil
}

// History возвращает рассылки от новых к старым. Нулевой лимит означает 50 записей.
func (p *Publisher) History(ctx context.Context, limit, offset int) ([]models.BroadcastMessage, error) {
	const op = "services.notification.History"
	if limit == 0 {
		limit = defaultHistoryLimit
	}
	if limit < 0 || limit > maxHistoryLimit || offset < 0 {
		return nil, fmt.Errorf("%s: %w", op,
			apperr.New(apperr.ErrInvalidArgument, fmt.Sprintf("Лимит должен быть от 1 до %d, смещение неотрицательным", maxHistoryLimit)))
	}
	history, err := p.repo.BroadcastHistory(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return history, nil
}
