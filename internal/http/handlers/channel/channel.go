// Package channel реализует HTTP-обработчики бонуса за подписку на канал.
package channel

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/Uz11ps/markethelper/internal/http/request"
	"github.com/Uz11ps/markethelper/internal/http/response"
	"github.com/Uz11ps/markethelper/internal/lib/sl"
	"github.com/Uz11ps/markethelper/internal/models"
)

// Service описывает бизнес-логику бонуса за канал.
type Service interface {
	Settings() models.ChannelSettings
	Check(ctx context.Context, tgID int64) (*models.ChannelCheckResult, error)
	HasPending(ctx context.Context, tgID int64) (bool, error)
	MarkShown(ctx context.Context, tgID int64) error
}

// Handler обрабатывает запросы бота о канале.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// Settings godoc
// @Summary Настройки канала
// @Tags Channel
// @Produce json
// @Success 200 {object} response.Response{data=models.ChannelSettings}
// @Router /channel/settings [get]
func (h *Handler) Settings(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, response.StatusOKWithData(h.service.Settings()))
}

// HasPending godoc
// @Summary Есть ли у пользователя заявка на бонус за канал
// @Tags Channel
// @Produce json
// @Param tg_id path int true "Telegram ID"
// @Success 200 {object} response.Response
// @Router /channel/has-pending-request/{tg_id} [get]
func (h *Handler) HasPending(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.channel.HasPending")

	tgID, ok := request.TgID(w, r, log)
	if !ok {
		return
	}
	pending, err := h.service.HasPending(r.Context(), tgID)
	if err != nil {
		log.Error("failed to check pending channel bonus", sl.Err(err))
		response.WriteError(w, r, err, "could not check pending request")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"has_pending_request": pending,
	}))
}

// MarkShown godoc
// @Summary Отметить, что сообщение о канале показано
// @Tags Channel
// @Produce json
// @Param tg_id path int true "Telegram ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Router /channel/mark-message-shown/{tg_id} [post]
func (h *Handler) MarkShown(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.channel.MarkShown")

	tgID, ok := request.TgID(w, r, log)
	if !ok {
		return
	}
	if err := h.service.MarkShown(r.Context(), tgID); err != nil {
		log.Error("failed to mark channel message shown", sl.Err(err))
		response.WriteError(w, r, err, "could not mark message shown")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"success": true}))
}

// Check godoc
// @Summary Запросить бонус за подписку на канал
// @Description Создает заявку на бонус. Повторная заявка и уже выданный бонус возвращаются с пояснением.
// @Tags Channel
// @Produce json
// @Param tg_id path int true "Telegram ID"
// @Success 200 {object} response.Response{data=models.ChannelCheckResult}
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Router /channel/check-subscription/{tg_id} [post]
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.channel.Check")

	tgID, ok := request.TgID(w, r, log)
	if !ok {
		return
	}
	res, err := h.service.Check(r.Context(), tgID)
	if err != nil {
		log.Error("failed to request channel bonus", sl.Err(err))
		response.WriteError(w, r, err, "could not check subscription")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(res))
}
