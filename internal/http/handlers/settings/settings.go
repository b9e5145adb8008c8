// Package settings реализует HTTP-обработчики настроек бизнес-логики.
package settings

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

// Service описывает чтение и изменение настроек.
type Service interface {
	Current() models.Settings
	Update(ctx context.Context, patch models.SettingsPatch) (models.Settings, error)
}

// Handler обрабатывает запросы к настройкам.
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

// Get godoc
// @Summary Текущие настройки
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=models.Settings}
// @Router /admin/settings [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, response.StatusOKWithData(h.service.Current()))
}

// Update godoc
// @Summary Изменить настройки
// @Description Меняются только переданные поля. Новые значения сразу применяются к расчету стоимости.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.SettingsPatch true "Изменяемые поля"
// @Success 200 {object} response.Response{data=models.Settings}
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /admin/settings [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.settings.Update"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var patch models.SettingsPatch
	if !request.Decode(w, r, log, h.validate, &patch) {
		return
	}

	updated, err := h.service.Update(r.Context(), patch)
	if err != nil {
		log.Error("failed to update settings", sl.Err(err))
		response.WriteError(w, r, err, "could not update settings")
		return
	}
	log.Info("settings updated")
	render.JSON(w, r, response.StatusOKWithData(updated))
}
