// Package notifier доставляет уведомления и рассылки из RabbitMQ в Telegram.
package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/Uz11ps/markethelper/internal/config"
	"github.com/Uz11ps/markethelper/internal/lib/rabbitmq"
	"github.com/Uz11ps/markethelper/internal/lib/sl"
	"github.com/Uz11ps/markethelper/internal/services/notification"
	"github.com/Uz11ps/markethelper/internal/storage"
)

// App потребитель очередей уведомлений.
type App struct {
	db     *storage.Storage
	conn   *amqp.Connection
	ch     *amqp.Channel
	sender *notification.Sender
	logger *slog.Logger
}

// New подключает хранилище, брокер и Telegram Bot API.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}

	messenger, err := notification.NewTelegramMessenger(cfg.BotToken, cfg.BotAPIDebug)
	if err != nil {
		_ = db.DB.Close()
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		_ = db.DB.Close()
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		_ = conn.Close()
		_ = db.DB.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	return &App{
		db:     db,
		conn:   conn,
		ch:     ch,
		sender: notification.NewSender(messenger, db, cfg.BroadcastRate, logger),
		logger: logger,
	}, nil
}

// Run запускает потребителей и ждет отмены ctx. Если брокер разорвал соединение,
// Run возвращает ошибку.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	closed := a.conn.NotifyClose(make(chan *amqp.Error, 1))

	err := rabbitmq.ConsumerMessage(ctx, a.logger, a.ch, rabbitmq.QueueNotify, a.sender.HandleNotify)
	if err != nil {
		a.logger.Error("failed to start notify consumer", sl.Err(err))
		return err
	}

	err = rabbitmq.ConsumerMessage(ctx, a.logger, a.ch, rabbitmq.QueueBroadcast, a.sender.HandleBroadcast)
	if err != nil {
		a.logger.Error("failed to start broadcast consumer", sl.Err(err))
		return err
	}

	a.logger.Info("notifier started", slog.String("notify", rabbitmq.QueueNotify),
		slog.String("broadcast", rabbitmq.QueueBroadcast))
	if err := rabbitmq.WaitClosed(ctx, closed); err != nil {
		a.logger.Error("lost RabbitMQ connection", sl.Err(err))
		return err
	}
	a.logger.Info("shutting down notifier")
	return nil
}

func (a *App) close() {
	if a.conn.IsClosed() {
		a.logger.Debug("RabbitMQ connection already closed")
	} else {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close RabbitMQ channel", sl.Err(err))
		}
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close RabbitMQ connection", sl.Err(err))
		}
	}
	if err := a.db.DB.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}
