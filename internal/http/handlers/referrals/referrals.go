// Package referrals реализует HTTP-обработчики реферальной программы.
package referrals

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

// Service описывает бизнес-логику рефералов.
type Service interface {
	Bind(ctx context.Context, referredTg, referrerTg int64) (bool, error)
	Info(ctx context.Context, tgID int64) (*models.ReferralInfo, error)
	List(ctx context.Context, tgID int64) ([]models.ReferralEntry, error)
	CreatePayout(ctx context.Context, tgID int64, count int) (*models.Payout, error)
}

// PayoutRequest количество рефералов, за которые запрошена выплата.
type PayoutRequest struct {
	ReferralCount int `json:"referral_count" validate:"required,gt=0"`
}

// Handler обрабатывает запросы реферальной программы.
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

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// Bind godoc
// @Summary Привязать приглашенного пользователя
// @Description Связь создается один раз. Повторная привязка не меняет пригласившего.
// @Tags Referrals
// @Accept json
// @Produce json
// @Param request body models.BindReferral true "Пара пользователей"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Нельзя пригласить самого себя"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Router /referrals/bind [post]
func (h *Handler) Bind(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.referrals.Bind")

	var req models.BindReferral
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	created, err := h.service.Bind(r.Context(), req.ReferredTg, req.ReferrerTg)
	if err != nil {
		log.Error("failed to bind referral", sl.Err(err))
		response.WriteError(w, r, err, "could not bind referral")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"created": created}))
}

// Info godoc
// @Summary Сводка по рефералам
// @Tags Referrals
// @Produce json
// @Param tg_id path int true "Telegram ID"
// @Success 200 {object} response.Response{data=models.ReferralInfo}
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Router /referrals/{tg_id}/info [get]
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.referrals.Info")

	tgID, ok := request.TgID(w, r, log)
	if !ok {
		return
	}
	info, err := h.service.Info(r.Context(), tgID)
	if err != nil {
		log.Error("failed to get referral info", sl.Err(err))
		response.WriteError(w, r, err, "could not get referral info")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(info))
}

// List godoc
// @Summary Приглашенные пользователи
// @Tags Referrals
// @Produce json
// @Param tg_id path int true "Telegram ID"
// @Success 200 {object} response.Response{data=[]models.ReferralEntry}
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Router /referrals/{tg_id}/list [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.referrals.List")

	tgID, ok := request.TgID(w, r, log)
	if !ok {
		return
	}
	entries, err := h.service.List(r.Context(), tgID)
	if err != nil {
		log.Error("failed to list referrals", sl.Err(err))
		response.WriteError(w, r, err, "could not list referrals")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(entries))
}

// Payout godoc
// @Summary Заявка на выплату за рефералов
// @Tags Referrals
// @Accept json
// @Produce json
// @Param tg_id path int true "Telegram ID"
// @Param request body PayoutRequest true "Количество рефералов"
// @Success 200 {object} response.Response{data=models.Payout}
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /referrals/{tg_id}/payout [post]
func (h *Handler) Payout(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.referrals.Payout")

	tgID, ok := request.TgID(w, r, log)
	if !ok {
		return
	}
	var req PayoutRequest
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	payout, err := h.service.CreatePayout(r.Context(), tgID, req.ReferralCount)
	if err != nil {
		log.Error("failed to create payout", sl.Err(err))
		response.WriteError(w, r, err, "could not create payout")
		return
	}
	log.Info("payout requested", slog.Int("id", payout.ID))
	render.JSON(w, r, response.StatusOKWithData(payout))
}
