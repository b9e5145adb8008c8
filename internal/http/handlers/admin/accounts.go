package admin

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

// AccountService описывает управление учетными записями администраторов.
// actorID идентификатор администратора из JWT.
type AccountService interface {
	Me(ctx context.Context, actorID int) (*models.Admin, error)
	Register(ctx context.Context, actorID int, in models.NewAdmin) (*models.Admin, error)
	List(ctx context.Context, actorID int) ([]*models.Admin, error)
	Get(ctx context.Context, actorID, id int) (*models.Admin, error)
	Update(ctx context.Context, actorID, id int, in models.AdminUpdate) (*models.Admin, error)
	Delete(ctx context.Context, actorID, id int) error
}

// Accounts обрабатывает запросы к учетным записям администраторов.
type Accounts struct {
	log      *slog.Logger
	service  AccountService
	validate *validator.Validate
}

// NewAccounts создает новый Accounts.
func NewAccounts(log *slog.Logger, service AccountService) *Accounts {
	return &Accounts{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Accounts) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

func (h *Accounts) fail(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error, msg, fallback string) {
	log.Warn(msg, sl.Err(err))
	response.WriteError(w, r, err, fallback)
}

// Me godoc
// @Summary Текущий администратор
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=models.Admin}
// @Failure 401 {object} response.ErrorResponse "Учетная запись отключена"
// @Router /admin/me [get]
func (h *Accounts) Me(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.Me")

	actorID, ok := request.AdminID(w, r, log)
	if !ok {
		return
	}
	a, err := h.service.Me(r.Context(), actorID)
	if err != nil {
		h.fail(w, r, log, err, "failed to get current admin", "could not get admin")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(a))
}

// Register godoc
// @Summary Зарегистрировать администратора
// @Description Доступно только суперадминистратору.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.NewAdmin true "Учетная запись"
// @Success 201 {object} response.Response{data=models.Admin}
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Failure 409 {object} response.ErrorResponse "Логин уже занят"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /admin/admins [post]
func (h *Accounts) Register(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.Register")

	actorID, ok := request.AdminID(w, r, log)
	if !ok {
		return
	}
	var req models.NewAdmin
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}
	a, err := h.service.Register(r.Context(), actorID, req)
	if err != nil {
		h.fail(w, r, log, err, "failed to register admin", "could not register admin")
		return
	}
	log.Info("admin registered", slog.Int("admin_id", a.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(a))
}

// List godoc
// @Summary Список администраторов
// @Description Доступно только суперадминистратору.
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]models.Admin}
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Router /admin/admins [get]
func (h *Accounts) List(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.List")

	actorID, ok := request.AdminID(w, r, log)
	if !ok {
		return
	}
	admins, err := h.service.List(r.Context(), actorID)
	if err != nil {
		h.fail(w, r, log, err, "failed to list admins", "could not list admins")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(admins))
}

// Get godoc
// @Summary Учетная запись администратора
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID администратора"
// @Success 200 {object} response.Response{data=models.Admin}
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Failure 404 {object} response.ErrorResponse "Администратор не найден"
// @Router /admin/admins/{id} [get]
func (h *Accounts) Get(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.Get")

	actorID, ok := request.AdminID(w, r, log)
	if !ok {
		return
	}
	id, ok := request.IntParam(w, r, log, "id")
	if !ok {
		return
	}
	a, err := h.service.Get(r.Context(), actorID, id)
	if err != nil {
		h.fail(w, r, log, err, "failed to get admin", "could not get admin")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(a))
}

// Update godoc
// @Summary Изменить учетную запись администратора
// @Description Свою запись меняет любой администратор, чужую и флаг активности только суперадминистратор.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID администратора"
// @Param request body models.AdminUpdate true "Изменяемые поля"
// @Success 200 {object} response.Response{data=models.Admin}
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Failure 404 {object} response.ErrorResponse "Администратор не найден"
// @Router /admin/admins/{id} [put]
func (h *Accounts) Update(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.Update")

	actorID, ok := request.AdminID(w, r, log)
	if !ok {
		return
	}
	id, ok := request.IntParam(w, r, log, "id")
	if !ok {
		return
	}
	var req models.AdminUpdate
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}
	a, err := h.service.Update(r.Context(), actorID, id, req)
	if err != nil {
		h.fail(w, r, log, err, "failed to update admin", "could not update admin")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(a))
}

// Delete godoc
// @Summary Удалить администратора
// @Description Доступно только суперадминистратору. Удалить себя нельзя.
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID администратора"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Failure 404 {object} response.ErrorResponse "Администратор не найден"
// @Router /admin/admins/{id} [delete]
func (h *Accounts) Delete(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.Delete")

	actorID, ok := request.AdminID(w, r, log)
	if !ok {
		return
	}
	id, ok := request.IntParam(w, r, log, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), actorID, id); err != nil {
		h.fail(w, r, log, err, "failed to delete admin", "could not delete admin")
		return
	}
	log.Info("admin deleted", slog.Int("admin_id", id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"deleted": id}))
}
