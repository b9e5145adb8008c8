// Package files реализует HTTP-обработчики файлов доступа: выдачу кук боту,
// проверку и обновление файлов, а также управление группами и файлами
// из панели администратора.
package files

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

// Service описывает бизнес-логику файлов доступа.
type Service interface {
	GroupContent(ctx context.Context, groupID int) (*models.FileContent, error)
	UserContent(ctx context.Context, tgID int64) (*models.FileContent, error)
	Validate(ctx context.Context, groupID int) (*models.FileStatus, error)
	Regenerate(ctx context.Context, fileID int, filename string) (*models.AccessFile, error)
	RegenerateForGroup(ctx context.Context, groupID int) (*models.AccessFile, error)
	RegenerateForUser(ctx context.Context, tgID int64, filename string) (*models.AccessFile, error)
	AddFile(ctx context.Context, in models.NewAccessFile) (*models.AccessFile, error)
	ListGroups(ctx context.Context) ([]models.AccessGroup, error)
	CreateGroup(ctx context.Context, name string) (*models.AccessGroup, error)
	RenameGroup(ctx context.Context, id int, name string) (*models.AccessGroup, error)
	DeleteGroup(ctx context.Context, id int) error
}

// RegenRequest необязательное новое имя файла.
type RegenRequest struct {
	Filename string `json:"filename,omitempty"`
}

// GroupRequest название группы.
type GroupRequest struct {
	Name string `json:"name" validate:"required"`
}

// Handler обрабатывает запросы файлов доступа.
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

// UserContent godoc
// @Summary Куки группы пользователя
// @Tags Files
// @Produce json
// @Param tg_id path int true "Telegram ID"
// @Success 200 {object} response.Response{data=models.FileContent}
// @Failure 404 {object} response.ErrorResponse "Нет подписки или файла"
// @Router /files/user/{tg_id}/get [get]
func (h *Handler) UserContent(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.files.UserContent")

	tgID, ok := request.TgID(w, r, log)
	if !ok {
		return
	}
	content, err := h.service.UserContent(r.Context(), tgID)
	if err != nil {
		log.Error("failed to get user file", sl.Err(err))
		response.WriteError(w, r, err, "could not get file")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(content))
}

// RegenerateForUser godoc
// @Summary Обновить куки группы пользователя
// @Tags Files
// @Accept json
// @Produce json
// @Param tg_id path int true "Telegram ID"
// @Param request body RegenRequest false "Новое имя файла"
// @Success 200 {object} response.Response{data=models.AccessFile}
// @Failure 401 {object} response.ErrorResponse "Внешний сервис отклонил вход"
// @Failure 404 {object} response.ErrorResponse "Нет подписки или файла"
// @Failure 503 {object} response.ErrorResponse "Внешний сервис недоступен"
// @Failure 504 {object} response.ErrorResponse "Превышено время ожидания"
// @Router /files/user/{tg_id}/regen [post]
func (h *Handler) RegenerateForUser(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.files.RegenerateForUser")

	tgID, ok := request.TgID(w, r, log)
	if !ok {
		return
	}
	var req RegenRequest
	if !request.DecodeOptional(w, r, log, h.validate, &req) {
		return
	}

	f, err := h.service.RegenerateForUser(r.Context(), tgID, req.Filename)
	if err != nil {
		log.Error("failed to regenerate user file", sl.Err(err))
		response.WriteError(w, r, err, "could not regenerate file")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(f))
}

// Status godoc
// @Summary Проверить файл группы
// @Tags Files
// @Produce json
// @Param group_id path int true "ID группы"
// @Success 200 {object} response.Response{data=models.FileStatus}
// @Failure 404 {object} response.ErrorResponse "Нет файлов для этой группы"
// @Router /files/{group_id}/status [get]
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.files.Status")

	groupID, ok := request.IntParam(w, r, log, "group_id")
	if !ok {
		return
	}
	status, err := h.service.Validate(r.Context(), groupID)
	if err != nil {
		log.Error("failed to validate file", sl.Err(err))
		response.WriteError(w, r, err, "could not validate file")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(status))
}

// GroupContent godoc
// @Summary Куки группы
// @Tags Files
// @Produce json
// @Param group_id path int true "ID группы"
// @Success 200 {object} response.Response{data=models.FileContent}
// @Failure 404 {object} response.ErrorResponse "Файл отсутствует или пуст"
// @Router /cookie/{group_id}/get [get]
func (h *Handler) GroupContent(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.files.GroupContent")

	groupID, ok := request.IntParam(w, r, log, "group_id")
	if !ok {
		return
	}
	content, err := h.service.GroupContent(r.Context(), groupID)
	if err != nil {
		log.Error("failed to get group file", sl.Err(err))
		response.WriteError(w, r, err, "could not get file")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(content))
}

// RegenerateForGroup godoc
// @Summary Обновить куки группы
// @Tags Files
// @Produce json
// @Param group_id path int true "ID группы"
// @Success 200 {object} response.Response{data=models.AccessFile}
// @Failure 401 {object} response.ErrorResponse "Внешний сервис отклонил вход"
// @Failure 404 {object} response.ErrorResponse "Нет файлов для этой группы"
// @Failure 503 {object} response.ErrorResponse "Внешний сервис недоступен"
// @Failure 504 {object} response.ErrorResponse "Превышено время ожидания"
// @Router /cookie/{group_id}/regen [post]
func (h *Handler) RegenerateForGroup(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.files.RegenerateForGroup")

	groupID, ok := request.IntParam(w, r, log, "group_id")
	if !ok {
		return
	}
	f, err := h.service.RegenerateForGroup(r.Context(), groupID)
	if err != nil {
		log.Error("failed to regenerate group file", sl.Err(err))
		response.WriteError(w, r, err, "could not regenerate file")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(f))
}

// AddFile godoc
// @Summary Добавить файл доступа
// @Description Создает файл с учетными данными и сразу получает для него куки. Без group_id создается новая группа.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.NewAccessFile true "Учетные данные внешнего сервиса"
// @Success 200 {object} response.Response{data=models.AccessFile}
// @Failure 401 {object} response.ErrorResponse "Внешний сервис отклонил вход"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /admin/files [post]
func (h *Handler) AddFile(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.files.AddFile")

	var req models.NewAccessFile
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	f, err := h.service.AddFile(r.Context(), req)
	if err != nil {
		log.Error("failed to add file", sl.Err(err))
		response.WriteError(w, r, err, "could not add file")
		return
	}
	log.Info("file added", slog.Int("id", f.ID), slog.Int("group_id", f.GroupID))
	render.JSON(w, r, response.StatusOKWithData(f))
}

// Refresh godoc
// @Summary Обновить куки файла
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID файла"
// @Param request body RegenRequest false "Новое имя файла"
// @Success 200 {object} response.Response{data=models.AccessFile}
// @Failure 404 {object} response.ErrorResponse "Файл не найден"
// @Router /admin/files/{id}/refresh [post]
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.files.Refresh")

	id, ok := request.IntParam(w, r, log, "id")
	if !ok {
		return
	}
	var req RegenRequest
	if !request.DecodeOptional(w, r, log, h.validate, &req) {
		return
	}

	f, err := h.service.Regenerate(r.Context(), id, req.Filename)
	if err != nil {
		log.Error("failed to refresh file", sl.Err(err))
		response.WriteError(w, r, err, "could not refresh file")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(f))
}

// ListGroups godoc
// @Summary Список групп доступа
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]models.AccessGroup}
// @Router /admin/groups [get]
func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.files.ListGroups")

	groups, err := h.service.ListGroups(r.Context())
	if err != nil {
		log.Error("failed to list groups", sl.Err(err))
		response.WriteError(w, r, err, "could not list groups")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(groups))
}

// CreateGroup godoc
// @Summary Создать группу доступа
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body GroupRequest true "Название группы"
// @Success 200 {object} response.Response{data=models.AccessGroup}
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /admin/groups [post]
func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.files.CreateGroup")

	var req GroupRequest
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}
	g, err := h.service.CreateGroup(r.Context(), req.Name)
	if err != nil {
		log.Error("failed to create group", sl.Err(err))
		response.WriteError(w, r, err, "could not create group")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(g))
}

// RenameGroup godoc
// @Summary Переименовать группу доступа
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID группы"
// @Param request body GroupRequest true "Новое название"
// @Success 200 {object} response.Response{data=models.AccessGroup}
// @Failure 404 {object} response.ErrorResponse "Группа не найдена"
// @Router /admin/groups/{id} [put]
func (h *Handler) RenameGroup(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.files.RenameGroup")

	id, ok := request.IntParam(w, r, log, "id")
	if !ok {
		return
	}
	var req GroupRequest
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}
	g, err := h.service.RenameGroup(r.Context(), id, req.Name)
	if err != nil {
		log.Error("failed to rename group", sl.Err(err))
		response.WriteError(w, r, err, "could not rename group")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(g))
}

// DeleteGroup godoc
// @Summary Удалить группу доступа
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID группы"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse "Группа не найдена"
// @Router /admin/groups/{id} [delete]
func (h *Handler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.files.DeleteGroup")

	id, ok := request.IntParam(w, r, log, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteGroup(r.Context(), id); err != nil {
		log.Error("failed to delete group", sl.Err(err))
		response.WriteError(w, r, err, "could not delete group")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"deleted": id}))
}
