// Package approvals реализует HTTP-обработчики заявок, требующих одобрения
// администратора: реферальных бонусов, бонусов за канал, покупок токенов и
// выплат за рефералов. Вид заявки задается сегментом пути.
package approvals

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/Uz11ps/markethelper/internal/http/request"
	"github.com/Uz11ps/markethelper/internal/http/response"
	"github.com/Uz11ps/markethelper/internal/lib/sl"
	"github.com/Uz11ps/markethelper/internal/models"
)

// pathKinds соответствие сегмента пути виду заявки.
var pathKinds = map[string]models.RequestKind{
	"bonuses":          models.KindReferralBonus,
	"channel-bonuses":  models.KindChannelBonus,
	"token-purchases":  models.KindTokenPurchase,
	"referral-payouts": models.KindReferralPayout,
}

// Service описывает бизнес-логику заявок.
type Service interface {
	Approve(ctx context.Context, kind models.RequestKind, id, adminID int, in models.ApproveInput) (*models.ApproveResult, error)
	Reject(ctx context.Context, kind models.RequestKind, id, adminID int, comment *string) (*models.RejectResult, error)
	List(ctx context.Context, kind models.RequestKind, status string) ([]models.ApprovalRequest, error)
}

// RejectRequest причина отклонения.
type RejectRequest struct {
	Comment *string `json:"comment,omitempty"`
}

// Handler обрабатывает запросы администратора к заявкам.
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
		slog.String("kind", chi.URLParam(r, "kind")),
	)
}

func kindParam(w http.ResponseWriter, r *http.Request, log *slog.Logger) (models.RequestKind, bool) {
	kind, ok := pathKinds[chi.URLParam(r, "kind")]
	if !ok {
		log.Error("unknown request kind")
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("unknown request kind"))
	}
	return kind, ok
}

// List godoc
// @Summary Список заявок
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param kind path string true "bonuses, channel-bonuses, token-purchases или referral-payouts"
// @Param status query string false "pending, approved или rejected"
// @Success 200 {object} response.Response{data=[]models.ApprovalRequest}
// @Failure 400 {object} response.ErrorResponse "Неизвестный статус"
// @Failure 404 {object} response.ErrorResponse "Неизвестный вид заявки"
// @Router /admin/approvals/{kind} [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.approvals.List")

	kind, ok := kindParam(w, r, log)
	if !ok {
		return
	}
	reqs, err := h.service.List(r.Context(), kind, r.URL.Query().Get("status"))
	if err != nil {
		log.Error("failed to list approvals", sl.Err(err))
		response.WriteError(w, r, err, "could not list requests")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(reqs))
}

// Approve godoc
// @Summary Одобрить заявку
// @Description Переводит заявку из pending в approved один раз и начисляет токены, если вид заявки это предусматривает.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param kind path string true "Вид заявки"
// @Param id path int true "ID заявки"
// @Param request body models.ApproveInput false "Комментарий и способ оплаты"
// @Success 200 {object} response.Response{data=models.ApproveResult}
// @Failure 404 {object} response.ErrorResponse "Заявка не найдена"
// @Failure 409 {object} response.ErrorResponse "Заявка уже обработана"
// @Router /admin/approvals/{kind}/{id}/approve [post]
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.approvals.Approve")

	kind, ok := kindParam(w, r, log)
	if !ok {
		return
	}
	id, ok := request.IntParam(w, r, log, "id")
	if !ok {
		return
	}
	var in models.ApproveInput
	if !request.DecodeOptional(w, r, log, h.validate, &in) {
		return
	}
	adminID, ok := request.AdminID(w, r, log)
	if !ok {
		return
	}

	res, err := h.service.Approve(r.Context(), kind, id, adminID, in)
	if err != nil {
		log.Error("failed to approve request", slog.Int("id", id), sl.Err(err))
		response.WriteError(w, r, err, "could not approve request")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(res))
}

// Reject godoc
// @Summary Отклонить заявку
// @Description Баланс не меняется. Для выплат за рефералов причина обязательна.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param kind path string true "Вид заявки"
// @Param id path int true "ID заявки"
// @Param request body RejectRequest false "Причина отклонения"
// @Success 200 {object} response.Response{data=models.RejectResult}
// @Failure 400 {object} response.ErrorResponse "Укажите причину отклонения"
// @Failure 404 {object} response.ErrorResponse "Заявка не найдена"
// @Failure 409 {object} response.ErrorResponse "Заявка уже обработана"
// @Router /admin/approvals/{kind}/{id}/reject [post]
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.approvals.Reject")

	kind, ok := kindParam(w, r, log)
	if !ok {
		return
	}
	id, ok := request.IntParam(w, r, log, "id")
	if !ok {
		return
	}
	var req RejectRequest
	if !request.DecodeOptional(w, r, log, h.validate, &req) {
		return
	}
	adminID, ok := request.AdminID(w, r, log)
	if !ok {
		return
	}

	res, err := h.service.Reject(r.Context(), kind, id, adminID, req.Comment)
	if err != nil {
		log.Error("failed to reject request", slog.Int("id", id), sl.Err(err))
		response.WriteError(w, r, err, "could not reject request")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(res))
}
