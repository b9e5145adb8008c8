// Package subscriptions реализует HTTP-обработчики заявок на подписку и
// управления подписками. Бот создает заявки, администратор их одобряет или
// отклоняет, продлевает и отзывает подписки.
package subscriptions

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

// Service описывает бизнес-логику заявок и подписок.
type Service interface {
	CreateRequest(ctx context.Context, in models.NewRequest) (*models.Request, error)
	ListRequests(ctx context.Context, status string) ([]models.Request, error)
	ApproveRequest(ctx context.Context, requestID, adminID int, groupID *int) (*models.ApprovedSubscription, error)
	RejectRequest(ctx context.Context, requestID, adminID int) (*models.RejectedRequest, error)
	ListSubscriptions(ctx context.Context) ([]models.Subscription, error)
	Extend(ctx context.Context, id, days int) (*models.Subscription, error)
	Revoke(ctx context.Context, id int) (*models.Subscription, error)
	Active(ctx context.Context, tgID int64) (*models.Subscription, error)
}

// ApproveRequest необязательная группа доступа для групповой подписки.
type ApproveRequest struct {
	GroupID *int `json:"group_id,omitempty"`
}

// ExtendRequest количество дней продления.
type ExtendRequest struct {
	Days int `json:"days" validate:"required,gt=0"`
}

// Handler обрабатывает запросы заявок и подписок.
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

// CreateRequest godoc
// @Summary Создать заявку на подписку
// @Tags Requests
// @Accept json
// @Produce json
// @Param request body models.NewRequest true "Тариф и срок"
// @Success 200 {object} response.Response{data=models.Request}
// @Failure 400 {object} response.ErrorResponse "Неизвестный тариф или срок"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /requests [post]
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.subscriptions.CreateRequest")

	var req models.NewRequest
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	created, err := h.service.CreateRequest(r.Context(), req)
	if err != nil {
		log.Error("failed to create subscription request", sl.Err(err))
		response.WriteError(w, r, err, "could not create request")
		return
	}
	log.Info("subscription request created", slog.Int("id", created.ID))
	render.JSON(w, r, response.StatusOKWithData(created))
}

// Active godoc
// @Summary Действующая подписка пользователя
// @Tags Requests
// @Produce json
// @Param tg_id path int true "Telegram ID"
// @Success 200 {object} response.Response{data=models.Subscription}
// @Failure 404 {object} response.ErrorResponse "Активная подписка не найдена"
// @Router /subscriptions/{tg_id}/active [get]
func (h *Handler) Active(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.subscriptions.Active")

	tgID, ok := request.TgID(w, r, log)
	if !ok {
		return
	}
	sub, err := h.service.Active(r.Context(), tgID)
	if err != nil {
		log.Info("no active subscription", sl.Err(err))
		response.WriteError(w, r, err, "could not get subscription")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(sub))
}

// ListRequests godoc
// @Summary Список заявок на подписку
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, approved или rejected"
// @Success 200 {object} response.Response{data=[]models.Request}
// @Failure 400 {object} response.ErrorResponse "Неизвестный статус"
// @Router /admin/requests [get]
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.subscriptions.ListRequests")

	reqs, err := h.service.ListRequests(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		log.Error("failed to list requests", sl.Err(err))
		response.WriteError(w, r, err, "could not list requests")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(reqs))
}

// ApproveRequest godoc
// @Summary Одобрить заявку на подписку
// @Description Выдает подписку и активирует реферальную связь пользователя.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID заявки"
// @Param request body ApproveRequest false "Группа доступа"
// @Success 200 {object} response.Response{data=models.ApprovedSubscription}
// @Failure 400 {object} response.ErrorResponse "Нужна группа"
// @Failure 404 {object} response.ErrorResponse "Заявка не найдена"
// @Failure 409 {object} response.ErrorResponse "Заявка уже обработана"
// @Router /admin/requests/{id}/approve [post]
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.subscriptions.ApproveRequest")

	id, ok := request.IntParam(w, r, log, "id")
	if !ok {
		return
	}
	var req ApproveRequest
	if !request.DecodeOptional(w, r, log, h.validate, &req) {
		return
	}
	adminID, ok := request.AdminID(w, r, log)
	if !ok {
		return
	}

	res, err := h.service.ApproveRequest(r.Context(), id, adminID, req.GroupID)
	if err != nil {
		log.Error("failed to approve request", sl.Err(err))
		response.WriteError(w, r, err, "could not approve request")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(res))
}

// RejectRequest godoc
// @Summary Отклонить заявку на подписку
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID заявки"
// @Success 200 {object} response.Response{data=models.RejectedRequest}
// @Failure 404 {object} response.ErrorResponse "Заявка не найдена"
// @Failure 409 {object} response.ErrorResponse "Заявка уже обработана"
// @Router /admin/requests/{id}/reject [post]
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.subscriptions.RejectRequest")

	id, ok := request.IntParam(w, r, log, "id")
	if !ok {
		return
	}
	adminID, ok := request.AdminID(w, r, log)
	if !ok {
		return
	}

	res, err := h.service.RejectRequest(r.Context(), id, adminID)
	if err != nil {
		log.Error("failed to reject request", sl.Err(err))
		response.WriteError(w, r, err, "could not reject request")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(res))
}

// ListSubscriptions godoc
// @Summary Список подписок
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]models.Subscription}
// @Router /admin/subscriptions [get]
func (h *Handler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.subscriptions.ListSubscriptions")

	subs, err := h.service.ListSubscriptions(r.Context())
	if err != nil {
		log.Error("failed to list subscriptions", sl.Err(err))
		response.WriteError(w, r, err, "could not list subscriptions")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(subs))
}

// Extend godoc
// @Summary Продлить подписку
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID подписки"
// @Param request body ExtendRequest true "Количество дней"
// @Success 200 {object} response.Response{data=models.Subscription}
// @Failure 404 {object} response.ErrorResponse "Подписка не найдена"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /admin/subscriptions/{id}/extend [post]
func (h *Handler) Extend(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.subscriptions.Extend")

	id, ok := request.IntParam(w, r, log, "id")
	if !ok {
		return
	}
	var req ExtendRequest
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	sub, err := h.service.Extend(r.Context(), id, req.Days)
	if err != nil {
		log.Error("failed to extend subscription", sl.Err(err))
		response.WriteError(w, r, err, "could not extend subscription")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(sub))
}

// Revoke godoc
// @Summary Отозвать подписку
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID подписки"
// @Success 200 {object} response.Response{data=models.Subscription}
// @Failure 404 {object} response.ErrorResponse "Подписка не найдена"
// @Router /admin/subscriptions/{id} [delete]
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.subscriptions.Revoke")

	id, ok := request.IntParam(w, r, log, "id")
	if !ok {
		return
	}
	sub, err := h.service.Revoke(r.Context(), id)
	if err != nil {
		log.Error("failed to revoke subscription", sl.Err(err))
		response.WriteError(w, r, err, "could not revoke subscription")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(sub))
}
