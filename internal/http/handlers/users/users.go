// Package users реализует HTTP-обработчики регистрации и профиля пользователя бота,
// а также управление пользователями из панели администратора.
package users

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

// Service описывает бизнес-логику пользователей.
type Service interface {
	Register(ctx context.Context, in models.UpsertUser) (*models.User, error)
	Get(ctx context.Context, tgID int64) (*models.User, error)
	List(ctx context.Context, f models.UserFilter) (*models.UserPage, error)
	Stats(ctx context.Context) (*models.UserStats, error)
	Details(ctx context.Context, id int) (*models.User, error)
	SetBanned(ctx context.Context, id int, banned bool) (*models.User, error)
	Delete(ctx context.Context, id int) error
}

// Handler обрабатывает запросы пользователей бота.
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

// Register godoc
// @Summary Зарегистрировать пользователя
// @Description Создает пользователя при первом обращении или обновляет имя существующего.
// @Tags Users
// @Accept json
// @Produce json
// @Param request body models.UpsertUser true "Данные Telegram"
// @Success 200 {object} response.Response{data=models.User}
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /users [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.users.Register"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.UpsertUser
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	user, err := h.service.Register(r.Context(), req)
	if err != nil {
		log.Error("failed to register user", sl.Err(err))
		response.WriteError(w, r, err, "could not register user")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(user))
}

// Profile godoc
// @Summary Профиль пользователя
// @Tags Users
// @Produce json
// @Param tg_id path int true "Telegram ID"
// @Success 200 {object} response.Response{data=models.User}
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Router /profile/{tg_id} [get]
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.users.Profile"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	tgID, ok := request.TgID(w, r, log)
	if !ok {
		return
	}
	user, err := h.service.Get(r.Context(), tgID)
	if err != nil {
		log.Error("failed to get user", sl.Err(err))
		response.WriteError(w, r, err, "could not get user")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(user))
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// List godoc
// @Summary Список пользователей
// @Description Поиск по логину и имени без учета регистра, новые пользователи первыми.
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param search query string false "Подстрока логина или имени"
// @Param limit query int false "Размер страницы, от 1 до 1000" default(100)
// @Param offset query int false "Смещение" default(0)
// @Success 200 {object} response.Response{data=models.UserPage}
// @Failure 400 {object} response.ErrorResponse "Неверные параметры страницы"
// @Router /admin/users [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.users.List")

	limit, ok := request.QueryInt(w, r, log, "limit", 0)
	if !ok {
		return
	}
	offset, ok := request.QueryInt(w, r, log, "offset", 0)
	if !ok {
		return
	}

	page, err := h.service.List(r.Context(), models.UserFilter{
		Search: r.URL.Query().Get("search"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		log.Warn("failed to list users", sl.Err(err))
		response.WriteError(w, r, err, "could not list users")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(page))
}

// Stats godoc
// @Summary Статистика пользователей
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=models.UserStats}
// @Router /admin/users/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.users.Stats")

	st, err := h.service.Stats(r.Context())
	if err != nil {
		log.Error("failed to get user stats", sl.Err(err))
		response.WriteError(w, r, err, "could not get stats")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(st))
}

// Details godoc
// @Summary Карточка пользователя
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID пользователя"
// @Success 200 {object} response.Response{data=models.User}
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Router /admin/users/{id} [get]
func (h *Handler) Details(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.users.Details")

	id, ok := request.IntParam(w, r, log, "id")
	if !ok {
		return
	}
	u, err := h.service.Details(r.Context(), id)
	if err != nil {
		log.Warn("failed to get user", sl.Err(err))
		response.WriteError(w, r, err, "could not get user")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(u))
}

// SetBanned godoc
// @Summary Заблокировать или разблокировать пользователя
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID пользователя"
// @Param request body models.BanUser true "Флаг блокировки"
// @Success 200 {object} response.Response{data=models.User}
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Router /admin/users/{id}/ban [put]
func (h *Handler) SetBanned(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.users.SetBanned")

	id, ok := request.IntParam(w, r, log, "id")
	if !ok {
		return
	}
	var req models.BanUser
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}
	u, err := h.service.SetBanned(r.Context(), id, req.Banned)
	if err != nil {
		log.Warn("failed to change ban", sl.Err(err))
		response.WriteError(w, r, err, "could not change ban")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(u))
}

// Delete godoc
// @Summary Удалить пользователя
// @Description Удаляет пользователя вместе с заявками, подписками и журналом токенов.
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID пользователя"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Router /admin/users/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.users.Delete")

	id, ok := request.IntParam(w, r, log, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		log.Warn("failed to delete user", sl.Err(err))
		response.WriteError(w, r, err, "could not delete user")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"deleted": id}))
}
