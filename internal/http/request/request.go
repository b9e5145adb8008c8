// Package request разбирает параметры и тело HTTP-запросов. При ошибке ответ
// клиенту уже записан, и обработчику остается только вернуться.
package request

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/Uz11ps/markethelper/internal/http/middlewarectx"
	"github.com/Uz11ps/markethelper/internal/http/response"
	"github.com/Uz11ps/markethelper/internal/lib/sl"
)

// Decode читает JSON из тела запроса в dst и проверяет его валидатором.
func Decode(w http.ResponseWriter, r *http.Request, log *slog.Logger, validate *validator.Validate, dst any) bool {
	return decode(w, r, log, validate, dst, false)
}

// DecodeOptional работает как Decode, но допускает пустое тело.
func DecodeOptional(w http.ResponseWriter, r *http.Request, log *slog.Logger, validate *validator.Validate, dst any) bool {
	return decode(w, r, log, validate, dst, true)
}

func decode(w http.ResponseWriter, r *http.Request, log *slog.Logger, validate *validator.Validate,
	dst any, optional bool) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if !(optional && errors.Is(err, io.EOF)) {
			log.Error("failed to decode request body", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid request body"))
			return false
		}
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			log.Error("failed to validate request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid request body"))
			return false
		}
		log.Error("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(verrs))
		return false
	}
	return true
}

// IntParam возвращает целочисленный параметр пути.
func IntParam(w http.ResponseWriter, r *http.Request, log *slog.Logger, name string) (int, bool) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		log.Error("failed to decode param from url", slog.String("param", name), sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid "+name))
		return 0, false
	}
	return v, true
}

// QueryInt возвращает целочисленный параметр строки запроса или def, если параметр не передан.
func QueryInt(w http.ResponseWriter, r *http.Request, log *slog.Logger, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Warn("failed to decode query param", slog.String("param", name), sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid "+name))
		return 0, false
	}
	return v, true
}

// TgID возвращает Telegram ID пользователя из параметра пути tg_id.
func TgID(w http.ResponseWriter, r *http.Request, log *slog.Logger) (int64, bool) {
	v, err := strconv.ParseInt(chi.URLParam(r, "tg_id"), 10, 64)
	if err != nil || v == 0 {
		log.Error("failed to decode tg_id from url", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid tg_id"))
		return 0, false
	}
	return v, true
}

// AdminID возвращает идентификатор администратора, проверенного JWTMiddleware.
func AdminID(w http.ResponseWriter, r *http.Request, log *slog.Logger) (int, bool) {
	id, ok := middlewarectx.AdminIDFromContext(r.Context())
	if !ok {
		log.Error("admin id not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
	}
	return id, ok
}
