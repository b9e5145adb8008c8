// Package tokens реализует HTTP-обработчики баланса токенов: стоимость действий,
// списание за действие бота, заявку на покупку, баланс и историю пользователя,
// а также ручную установку баланса администратором.
package tokens

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/Uz11ps/markethelper/internal/http/request"
	"github.com/Uz11ps/markethelper/internal/http/response"
	"github.com/Uz11ps/markethelper/internal/lib/apperr"
	"github.com/Uz11ps/markethelper/internal/lib/sl"
	"github.com/Uz11ps/markethelper/internal/models"
)

// Ledger описывает операции с балансом.
type Ledger interface {
	Charge(ctx context.Context, req models.ChargeRequest) (*models.ChargeResult, error)
	Balance(ctx context.Context, tgID int64) (int, error)
	History(ctx context.Context, tgID int64, limit int) ([]models.LedgerEntry, error)
	SetBalance(ctx context.Context, userID, balance int) (int, error)
	CreatePurchase(ctx context.Context, tgID int64, amount int) (*models.TokenPurchase, error)
}

// Pricer отдает текущую стоимость действий.
type Pricer interface {
	Pricing() models.Pricing
}

// PurchaseRequest заявка пользователя на покупку токенов.
type PurchaseRequest struct {
	TgID   int64 `json:"tg_id" validate:"required"`
	Amount int   `json:"amount" validate:"required,gt=0"`
}

// SetBalanceRequest новое значение баланса.
type SetBalanceRequest struct {
	Balance *int `json:"balance" validate:"required"`
}

// Handler обрабатывает запросы к балансу токенов.
type Handler struct {
	log      *slog.Logger
	ledger   Ledger
	pricer   Pricer
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger, ledger Ledger, pricer Pricer) *Handler {
	return &Handler{
		log:      log,
		ledger:   ledger,
		pricer:   pricer,
		validate: validator.New(),
	}
}

// logFailure пишет отказы клиенту (4xx) на уровне Warn, а сбои сервера на уровне Error.
func logFailure(log *slog.Logger, msg string, err error) {
	if apperr.HTTPStatus(err) < http.StatusInternalServerError {
		log.Warn(msg, sl.Err(err))
		return
	}
	log.Error(msg, sl.Err(err))
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// Pricing godoc
// @Summary Стоимость действий
// @Tags Tokens
// @Produce json
// @Success 200 {object} response.Response{data=models.Pricing}
// @Router /tokens/pricing [get]
func (h *Handler) Pricing(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, response.StatusOKWithData(h.pricer.Pricing()))
}

// Charge godoc
// @Summary Списать токены за действие
// @Description Стоимость берется из настроек по действию и модели, явная cost имеет приоритет.
// @Tags Tokens
// @Accept json
// @Produce json
// @Param request body models.ChargeRequest true "Действие пользователя"
// @Success 200 {object} response.Response{data=models.ChargeResult}
// @Failure 400 {object} response.ErrorResponse "Неизвестное действие"
// @Failure 402 {object} response.ErrorResponse "Недостаточно токенов"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /tokens/charge [post]
func (h *Handler) Charge(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.tokens.Charge")

	var req models.ChargeRequest
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	res, err := h.ledger.Charge(r.Context(), req)
	if err != nil {
		logFailure(log, "failed to charge tokens", err)
		response.WriteError(w, r, err, "could not charge tokens")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(res))
}

// Purchase godoc
// @Summary Заявка на покупку токенов
// @Description Создает заявку со стоимостью по текущей цене токена. Токены начисляются после одобрения.
// @Tags Tokens
// @Accept json
// @Produce json
// @Param request body PurchaseRequest true "Количество токенов"
// @Success 200 {object} response.Response{data=models.TokenPurchase}
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /tokens/purchase [post]
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.tokens.Purchase")

	var req PurchaseRequest
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	purchase, err := h.ledger.CreatePurchase(r.Context(), req.TgID, req.Amount)
	if err != nil {
		logFailure(log, "failed to create token purchase", err)
		response.WriteError(w, r, err, "could not create token purchase")
		return
	}
	log.Info("token purchase created", slog.Int("id", purchase.ID))
	render.JSON(w, r, response.StatusOKWithData(purchase))
}

// Balance godoc
// @Summary Баланс пользователя
// @Tags Tokens
// @Produce json
// @Param tg_id path int true "Telegram ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Router /tokens/{tg_id}/balance [get]
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.tokens.Balance")

	tgID, ok := request.TgID(w, r, log)
	if !ok {
		return
	}
	balance, err := h.ledger.Balance(r.Context(), tgID)
	if err != nil {
		logFailure(log, "failed to get balance", err)
		response.WriteError(w, r, err, "could not get balance")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"tg_id":   tgID,
		"balance": balance,
	}))
}

// History godoc
// @Summary История изменений баланса
// @Tags Tokens
// @Produce json
// @Param tg_id path int true "Telegram ID"
// @Param limit query int false "Количество записей"
// @Success 200 {object} response.Response{data=[]models.LedgerEntry}
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Router /tokens/{tg_id}/history [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.tokens.History")

	tgID, ok := request.TgID(w, r, log)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.ledger.History(r.Context(), tgID, limit)
	if err != nil {
		logFailure(log, "failed to get history", err)
		response.WriteError(w, r, err, "could not get history")
		return
	}
	if entries == nil {
		entries = []models.LedgerEntry{}
	}
	render.JSON(w, r, response.StatusOKWithData(entries))
}

// SetBalance godoc
// @Summary Установить баланс пользователя
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID пользователя"
// @Param request body SetBalanceRequest true "Новый баланс"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Отрицательный баланс"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Router /admin/users/{id}/tokens [put]
func (h *Handler) SetBalance(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.tokens.SetBalance")

	userID, ok := request.IntParam(w, r, log, "id")
	if !ok {
		return
	}
	var req SetBalanceRequest
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	balance, err := h.ledger.SetBalance(r.Context(), userID, *req.Balance)
	if err != nil {
		logFailure(log, "failed to set balance", err)
		response.WriteError(w, r, err, "could not set balance")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"user_id": userID,
		"balance": balance,
	}))
}
