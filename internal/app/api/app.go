// Package api собирает HTTP API для бота и админ-панели.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/Uz11ps/markethelper/internal/cache"
	"github.com/Uz11ps/markethelper/internal/config"
	"github.com/Uz11ps/markethelper/internal/lib/jwt"
	"github.com/Uz11ps/markethelper/internal/lib/rabbitmq"
	"github.com/Uz11ps/markethelper/internal/lib/sl"
	"github.com/Uz11ps/markethelper/internal/migrations"
	adminservice "github.com/Uz11ps/markethelper/internal/services/admin"
	approvalservice "github.com/Uz11ps/markethelper/internal/services/approval"
	channelservice "github.com/Uz11ps/markethelper/internal/services/channel"
	cookieservice "github.com/Uz11ps/markethelper/internal/services/cookies"
	"github.com/Uz11ps/markethelper/internal/services/notification"
	referralservice "github.com/Uz11ps/markethelper/internal/services/referral"
	settingsservice "github.com/Uz11ps/markethelper/internal/services/settings"
	subscriptionservice "github.com/Uz11ps/markethelper/internal/services/subscription"
	tokenservice "github.com/Uz11ps/markethelper/internal/services/tokens"
	userservice "github.com/Uz11ps/markethelper/internal/services/users"
	"github.com/Uz11ps/markethelper/internal/storage"
)

const settingsRefreshInterval = time.Minute

// App HTTP API вместе с его зависимостями.
type App struct {
	server   *http.Server
	logger   *slog.Logger
	db       *storage.Storage
	cache    *cache.Cache
	conn     *amqp.Connection
	ch       *amqp.Channel
	settings *settingsservice.Service
}

// New подключает хранилище, кэш и брокер и регистрирует маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.DB.Close()
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.DB.Close()
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		_ = cacheRedis.Close()
		_ = db.DB.Close()
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		_ = conn.Close()
		_ = cacheRedis.Close()
		_ = db.DB.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	app := &App{
		logger: logger,
		db:     db,
		cache:  cacheRedis,
		conn:   conn,
		ch:     ch,
	}

	publisher := notification.NewPublisher(ch, db, logger)

	settings := settingsservice.NewService(db, cacheRedis, logger)
	if err = settings.Load(ctx); err != nil {
		app.close()
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	app.settings = settings

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	adminService := adminservice.NewService(db, jwtMaker, logger)
	if err = adminService.EnsureBootstrapAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		app.close()
		return nil, err
	}

	tokens := tokenservice.NewService(db, settings, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg.RateLimit, Services{
		Tokens:        tokens,
		Pricer:        settings,
		Settings:      settings,
		Channel:       channelservice.NewService(db, settings, logger),
		Subscriptions: subscriptionservice.NewService(db, settings, publisher, logger),
		Referrals:     referralservice.NewService(db, settings, cfg.BotUsername, logger),
		Files: cookieservice.NewService(db, cookieservice.NewLoginClient(cfg.CookieBroker), publisher,
			cfg.CookieBroker, logger),
		Users:     userservice.NewService(db, logger),
		Approvals: approvalservice.NewService(db, publisher, logger),
		Broadcast: publisher,
		Admin:     adminService,
		Accounts:  adminService,
		JWT:       jwtMaker,
		DB:        db.DB,
	})

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return app, nil
}

// Run запускает HTTP сервер и останавливает его при отмене ctx.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	go a.refreshSettings(ctx)

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// refreshSettings подтягивает настройки, измененные другими экземплярами API.
func (a *App) refreshSettings(ctx context.Context) {
	ticker := time.NewTicker(settingsRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.settings.Refresh(ctx); err != nil {
				a.logger.Warn("failed to refresh settings", sl.Err(err))
			}
		}
	}
}

func (a *App) close() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close RabbitMQ channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close RabbitMQ connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close cache", sl.Err(err))
		}
	}
	if err := a.db.DB.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}
