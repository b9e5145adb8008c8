// Package broadcast реализует HTTP-обработчики массовых рассылок.
package broadcast

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/Uz11ps/markethelper/internal/http/request"
	"github.com/Uz11ps/markethelper/internal/http/response"
	"github.com/Uz11ps/markethelper/internal/lib/sl"
	"github.com/Uz11ps/markethelper/internal/models"
)

// Service описывает постановку рассылок в очередь и их статистику.
type Service interface {
	Broadcast(ctx context.Context, req models.BroadcastRequest) (*models.BroadcastTicket, error)
	Stats(ctx context.Context) (*models.BroadcastStats, error)
	History(ctx context.Context, limit, offset int) ([]models.BroadcastMessage, error)
}

// Handler обрабатывает запросы рассылок.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// Send godoc
// @Summary Разослать сообщение
// @Description Рассылка ставится в очередь, результат доставки появляется в статистике.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.BroadcastRequest true "Текст и аудитория"
// @Success 200 {object} response.Response{data=models.BroadcastTicket}
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 503 {object} response.ErrorResponse "Очередь недоступна"
// @Router /admin/broadcast [post]
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.broadcast.Send"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.BroadcastRequest
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	ticket, err := h.service.Broadcast(r.Context(), req)
	if err != nil {
		log.Error("failed to start broadcast", sl.Err(err))
		response.WriteError(w, r, err, "could not start broadcast")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(ticket))
}

// Stats godoc
// @Summary Статистика рассылок
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=models.BroadcastStats}
// @Router /admin/broadcast/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.broadcast.Stats"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	stats, err := h.service.Stats(r.Context())
	if err != nil {
		log.Error("failed to get broadcast stats", sl.Err(err))
		response.WriteError(w, r, err, "could not get broadcast stats")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(stats))
}

// History godoc
// @Summary История рассылок
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Размер страницы, от 1 до 500" default(50)
// @Param offset query int false "Смещение" default(0)
// @Success 200 {object} response.Response{data=[]models.BroadcastMessage}
// @Failure 400 {object} response.ErrorResponse "Неверные параметры страницы"
// @Router /admin/broadcast/history [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.broadcast.History"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	limit, ok := request.QueryInt(w, r, log, "limit", 0)
	if !ok {
		return
	}
	offset, ok := request.QueryInt(w, r, log, "offset", 0)
	if !ok {
		return
	}
	history, err := h.service.History(r.Context(), limit, offset)
	if err != nil {
		log.Warn("failed to get broadcast history", sl.Err(err))
		response.WriteError(w, r, err, "could not get broadcast history")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(history))
}
