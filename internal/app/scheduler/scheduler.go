// Package scheduler содержит приложение планировщика задач по подпискам.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/Uz11ps/markethelper/internal/config"
	"github.com/Uz11ps/markethelper/internal/lib/rabbitmq"
	"github.com/Uz11ps/markethelper/internal/lib/sl"
	"github.com/Uz11ps/markethelper/internal/services/notification"
	schedulerservice "github.com/Uz11ps/markethelper/internal/services/scheduler"
	"github.com/Uz11ps/markethelper/internal/storage"
)

// App представляет приложение планировщика.
type App struct {
	schedulerService *schedulerservice.Service
	db               *storage.Storage
	conn             *amqp.Connection
	ch               *amqp.Channel
	logger           *slog.Logger
}

func waitForDB(db *storage.Storage) error {
	for range 10 {
		err := storage.CheckDatabaseReady(db)
		if err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр приложения планировщика.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	// Схему создает API, планировщик только ждет ее.
	if err := waitForDB(db); err != nil {
		_ = db.DB.Close()
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		_ = db.DB.Close()
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		closeResources(nil, conn, logger)
		_ = db.DB.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	publisher := notification.NewPublisher(ch, db, logger)

	return &App{
		schedulerService: schedulerservice.NewService(db, publisher, cfg.Scheduler, logger),
		db:               db,
		conn:             conn,
		ch:               ch,
		logger:           logger,
	}, nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", sl.Err(err))
		}
	}
}

// Run запускает планировщик и останавливает его при отмене ctx.
func (a *App) Run(ctx context.Context) error {
	defer func() {
		closeResources(a.ch, a.conn, a.logger)
		if err := a.db.DB.Close(); err != nil {
			a.logger.Error("failed to close storage", sl.Err(err))
		}
	}()

	if err := a.schedulerService.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	a.logger.Info("shutting down scheduler service")
	a.schedulerService.Stop()
	return nil
}
