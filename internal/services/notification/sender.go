package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/Uz11ps/markethelper/internal/lib/metrics"
	"github.com/Uz11ps/markethelper/internal/lib/sl"
	"github.com/Uz11ps/markethelper/internal/models"
)

// Messenger отправляет текстовое сообщение в чат Telegram.
type Messenger interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// ResultRepository сохраняет итоги рассылок.
type ResultRepository interface {
	FinishBroadcast(ctx context.Context, id int, result models.BroadcastResult) error
}

// Sender доставляет сообщения из очереди.
type Sender struct {
	messenger Messenger
	repo      ResultRepository
	limiter   *rate.Limiter
	sleep     func(ctx context.Context, d time.Duration) error
	log       *slog.Logger
}

// NewSender создает Sender, отправляющий не больше perSecond сообщений в секунду.
func NewSender(messenger Messenger, repo ResultRepository, perSecond int, log *slog.Logger) *Sender {
	limit := rate.Inf
	burst := 1
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
		burst = perSecond
	}
	return &Sender{
		messenger: messenger,
		repo:      repo,
		limiter:   rate.NewLimiter(limit, burst),
		sleep:     sleepContext,
		log:       log,
	}
}

// HandleNotify обрабатывает сообщение из очереди notify. Некорректные сообщения и
// окончательные отказы Telegram (400, 403) подтверждаются. При сбое связи, 429 и 5xx
// возвращается ошибка, чтобы сообщение было доставлено повторно. Перед возвратом 429
// выдерживается пауза retry_after.
func (s *Sender) HandleNotify(body []byte) error {
	const op = "services.notification.HandleNotify"
	log := s.log.With(slog.String("op", op))

	var msg models.NotifyMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		log.Error("malformed notification dropped", sl.Err(err))
		return nil
	}
	if msg.TgID == 0 || msg.Message == "" {
		log.Error("notification without tg_id or message dropped", slog.String("id", msg.ID))
		return nil
	}

	ctx := context.Background()
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	err := s.messenger.Send(ctx, msg.TgID, msg.Message)
	metrics.Notifications.WithLabelValues(typeNotify, metrics.Result(err)).Inc()
	if err != nil {
		if isPermanent(err) {
			log.Warn("telegram refused notification", slog.Int64("tg_id", msg.TgID), sl.Err(err))
			return nil
		}
		if d := retryAfter(err); d > 0 {
			log.Warn("telegram rate limit, retrying later", slog.Int64("tg_id", msg.TgID), slog.Duration("retry_after", d))
			if sleepErr := s.sleep(ctx, d); sleepErr != nil {
				log.Warn("retry pause interrupted", sl.Err(sleepErr))
			}
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("notification sent", slog.String("id", msg.ID), slog.Int64("tg_id", msg.TgID))
	return nil
}

// HandleBroadcast обрабатывает задание на рассылку и сохраняет ее итог.
func (s *Sender) HandleBroadcast(body []byte) error {
	const op = "services.notification.HandleBroadcast"
	log := s.log.With(slog.String("op", op))

	var job models.BroadcastJob
	if err := json.Unmarshal(body, &job); err != nil {
		log.Error("malformed broadcast dropped", sl.Err(err))
		return nil
	}
	if job.Message == "" {
		log.Error("broadcast without message dropped", slog.String("id", job.ID))
		return nil
	}

	ctx := context.Background()
	result := s.Broadcast(ctx, job.UserIDs, job.Message)
	log.Info("broadcast finished", slog.Int("broadcast_id", job.BroadcastID),
		slog.Int("success", result.SuccessCount), slog.Int("failed", result.FailedCount))

	if job.BroadcastID > 0 {
		if err := s.repo.FinishBroadcast(ctx, job.BroadcastID, result); err != nil {
			log.Error("failed to save broadcast result", slog.Int("broadcast_id", job.BroadcastID), sl.Err(err))
		}
	}
	return nil
}

// Broadcast отправляет сообщение каждому получателю. Ошибки отдельных получателей
// не прерывают рассылку; в результат попадают первые models.MaxBroadcastErrors ошибок.
func (s *Sender) Broadcast(ctx context.Context, userIDs []int64, message string) models.BroadcastResult {
	result := models.BroadcastResult{Errors: []models.BroadcastError{}}
	for _, tgID := range userIDs {
		err := s.send(ctx, tgID, message)
		if d := retryAfter(err); d > 0 {
			// Одна повторная попытка после паузы, которую назвал Telegram.
			if err = s.sleep(ctx, d); err == nil {
				err = s.send(ctx, tgID, message)
			}
		}
		metrics.Notifications.WithLabelValues(typeBroadcast, metrics.Result(err)).Inc()
		if err != nil {
			result.FailedCount++
			if len(result.Errors) < models.MaxBroadcastErrors {
				result.Errors = append(result.Errors, models.BroadcastError{TgID: tgID, Error: err.Error()})
			}
			s.log.Debug("broadcast delivery failed", slog.Int64("tg_id", tgID), sl.Err(err))
			continue
		}
		result.SuccessCount++
	}
	return result
}

func (s *Sender) send(ctx context.Context, tgID int64, message string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	return s.messenger.Send(ctx, tgID, message)
}

// isPermanent сообщает, что Telegram отказал окончательно: бот заблокирован,
// чат не найден или запрос некорректен. Повтор такого сообщения бесполезен.
func isPermanent(err error) bool {
	var tgErr *tgbotapi.Error
	if !errors.As(err, &tgErr) {
		return false
	}
	return tgErr.Code == http.StatusBadRequest || tgErr.Code == http.StatusForbidden
}

// retryAfter возвращает паузу, которую Telegram требует выдержать после 429.
func retryAfter(err error) time.Duration {
	var tgErr *tgbotapi.Error
	if !errors.As(err, &tgErr) || tgErr.Code != http.StatusTooManyRequests {
		return 0
	}
	if tgErr.RetryAfter <= 0 {
		return time.Second
	}
	return time.Duration(tgErr.RetryAfter) * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
