package api

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/Uz11ps/markethelper/internal/config"
	"github.com/Uz11ps/markethelper/internal/http/handlers/admin"
	"github.com/Uz11ps/markethelper/internal/http/handlers/approvals"
	"github.com/Uz11ps/markethelper/internal/http/handlers/broadcast"
	"github.com/Uz11ps/markethelper/internal/http/handlers/channel"
	"github.com/Uz11ps/markethelper/internal/http/handlers/files"
	"github.com/Uz11ps/markethelper/internal/http/handlers/health"
	"github.com/Uz11ps/markethelper/internal/http/handlers/referrals"
	"github.com/Uz11ps/markethelper/internal/http/handlers/settings"
	"github.com/Uz11ps/markethelper/internal/http/handlers/subscriptions"
	"github.com/Uz11ps/markethelper/internal/http/handlers/tokens"
	"github.com/Uz11ps/markethelper/internal/http/handlers/users"
	"github.com/Uz11ps/markethelper/internal/http/middlewarectx"
)

// Services сервисы, которые обслуживают маршруты API.
type Services struct {
	Tokens        tokens.Ledger
	Pricer        tokens.Pricer
	Settings      settings.Service
	Channel       channel.Service
	Subscriptions subscriptions.Service
	Referrals     referrals.Service
	Files         files.Service
	Users         users.Service
	Approvals     approvals.Service
	Broadcast     broadcast.Service
	Admin         admin.Service
	Accounts      admin.AccountService
	JWT           middlewarectx.TokenParser
	DB            health.Pinger
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg config.RateLimit, s Services) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	tokensHandler := tokens.New(logger, s.Tokens, s.Pricer)
	channelHandler := channel.New(logger, s.Channel)
	subsHandler := subscriptions.New(logger, s.Subscriptions)
	refHandler := referrals.New(logger, s.Referrals)
	filesHandler := files.New(logger, s.Files)
	usersHandler := users.New(logger, s.Users)
	approvalsHandler := approvals.New(logger, s.Approvals)
	settingsHandler := settings.New(logger, s.Settings)
	broadcastHandler := broadcast.New(logger, s.Broadcast)
	accountsHandler := admin.NewAccounts(logger, s.Accounts)

	r.Route("/api", func(r chi.Router) {
		// Маршруты бота, доступные только из внутренней сети
		r.Post("/users", usersHandler.Register)
		r.Get("/profile/{tg_id}", usersHandler.Profile)

		r.Get("/tokens/pricing", tokensHandler.Pricing)
		r.Post("/tokens/charge", tokensHandler.Charge)
		r.Post("/tokens/purchase", tokensHandler.Purchase)
		r.Get("/tokens/{tg_id}/balance", tokensHandler.Balance)
		r.Get("/tokens/{tg_id}/history", tokensHandler.History)

		r.Get("/channel/settings", channelHandler.Settings)
		r.Get("/channel/has-pending-request/{tg_id}", channelHandler.HasPending)
		r.Post("/channel/mark-message-shown/{tg_id}", channelHandler.MarkShown)
		r.Post("/channel/check-subscription/{tg_id}", channelHandler.Check)

		r.Post("/requests", subsHandler.CreateRequest)
		r.Get("/subscriptions/{tg_id}/active", subsHandler.Active)

		r.Post("/referrals/bind", refHandler.Bind)
		r.Get("/referrals/{tg_id}/info", refHandler.Info)
		r.Get("/referrals/{tg_id}/list", refHandler.List)
		r.Post("/referrals/{tg_id}/payout", refHandler.Payout)

		r.Get("/files/user/{tg_id}/get", filesHandler.UserContent)
		r.Post("/files/user/{tg_id}/regen", filesHandler.RegenerateForUser)
		r.Get("/files/{group_id}/status", filesHandler.Status)
		r.Get("/cookie/{group_id}/get", filesHandler.GroupContent)
		r.Post("/cookie/{group_id}/regen", filesHandler.RegenerateForGroup)

		r.Route("/admin", func(r chi.Router) {
			r.With(middlewarectx.RateLimitMiddleware(logger, cfg.LoginRPS, cfg.LoginBurst)).
				Post("/login", admin.New(logger, s.Admin).ServeHTTP)

			// Группа с JWT аутентификацией
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.JWTMiddleware(s.JWT, logger))

				r.Get("/requests", subsHandler.ListRequests)
				r.Post("/requests/{id}/approve", subsHandler.ApproveRequest)
				r.Post("/requests/{id}/reject", subsHandler.RejectRequest)
				r.Get("/subscriptions", subsHandler.ListSubscriptions)
				r.Post("/subscriptions/{id}/extend", subsHandler.Extend)
				r.Delete("/subscriptions/{id}", subsHandler.Revoke)

				r.Get("/approvals/{kind}", approvalsHandler.List)
				r.Post("/approvals/{kind}/{id}/approve", approvalsHandler.Approve)
				r.Post("/approvals/{kind}/{id}/reject", approvalsHandler.Reject)

				r.Get("/me", accountsHandler.Me)
				r.Get("/admins", accountsHandler.List)
				r.Post("/admins", accountsHandler.Register)
				r.Get("/admins/{id}", accountsHandler.Get)
				r.Put("/admins/{id}", accountsHandler.Update)
				r.Delete("/admins/{id}", accountsHandler.Delete)

				r.Get("/users", usersHandler.List)
				r.Get("/users/stats", usersHandler.Stats)
				r.Get("/users/{id}", usersHandler.Details)
				r.Delete("/users/{id}", usersHandler.Delete)
				r.Put("/users/{id}/ban", usersHandler.SetBanned)
				r.Put("/users/{id}/tokens", tokensHandler.SetBalance)

				r.Get("/settings", settingsHandler.Get)
				r.Put("/settings", settingsHandler.Update)

				r.Post("/broadcast", broadcastHandler.Send)
				r.Get("/broadcast/stats", broadcastHandler.Stats)
				r.Get("/broadcast/history", broadcastHandler.History)

				r.Get("/groups", filesHandler.ListGroups)
				r.Post("/groups", filesHandler.CreateGroup)
				r.Put("/groups/{id}", filesHandler.RenameGroup)
				r.Delete("/groups/{id}", filesHandler.DeleteGroup)
				r.Post("/files", filesHandler.AddFile)
				r.Post("/files/{id}/refresh", filesHandler.Refresh)
			})
		})
	})

	r.Handle("/health", health.New(logger, s.DB))
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
