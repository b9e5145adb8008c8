// Package admin реализует HTTP-обработчики входа в панель и управления учетными записями администраторов.
//
// Handler принимает логин и пароль, проверяет их через сервис администраторов
// и возвращает JWT для последующих запросов к /admin.
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
	adminservice "github.com/Uz11ps/markethelper/internal/services/admin"
)

// Request структура входных данных для авторизации.
type Request struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required"`
}

// Service описывает интерфейс бизнес-логики аутентификации.
type Service interface {
	Login(ctx context.Context, username, password string) (*adminservice.LoginResult, error)
}

// Handler обрабатывает HTTP-запросы для авторизации.
type Handler struct {
	log      *slog.Logger        // Логгер для записи операций и ошибок
	service  Service             // Сервис проверки учетных данных
	validate *validator.Validate // Валидатор для проверки входных данных
}

// New создает новый экземпляр Handler с указанными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Вход администратора
// @Description Проверяет логин и пароль. Возвращает JWT и данные администратора.
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body Request true "Учетные данные администратора"
// @Success 200 {object} response.Response{data=adminservice.LoginResult}
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Неверный логин или пароль"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 429 {object} response.ErrorResponse "Слишком много попыток"
// @Router /admin/login [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.login"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}
	log.Info("all fields are validated", slog.String("username", req.Username))

	res, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		log.Error("login failed", sl.Err(err))
		response.WriteError(w, r, err, "invalid credentials")
		return
	}

	log.Info("login success", slog.String("username", req.Username))
	render.JSON(w, r, response.StatusOKWithData(res))
}
