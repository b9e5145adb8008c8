// Package apperr описывает таксономию доменных ошибок и их отображение в HTTP-статусы.
//
// Сервисы возвращают ошибки, созданные через New, и оборачивают их через fmt.Errorf("%s: %w").
// Обработчики определяют статус через HTTPStatus и текст для пользователя через Message.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Виды доменных ошибок.
var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyProcessed  = errors.New("already processed")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrUnavailable       = errors.New("unavailable")
	ErrDeadlineExceeded  = errors.New("deadline exceeded")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
)

// Error доменная ошибка с сообщением для пользователя.
type Error struct {
	Kind error
	Msg  string
}

// New создает доменную ошибку указанного вида.
func New(kind error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func (e *Error) Error() string {
	return e.Kind.Error() + ": " + e.Msg
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// HTTPStatus возвращает HTTP-статус для ошибки.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyProcessed):
		return http.StatusConflict
	case errors.Is(err, ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrDeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Message возвращает сообщение доменной ошибки или fallback для прочих ошибок.
func Message(err error, fallback string) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Msg
	}
	return fallback
}

// Describe добавляет сообщение msg к ошибке вида kind, у которой сообщения еще нет.
// Остальные ошибки возвращаются без изменений.
func Describe(err error, kind error, msg string) error {
	var appErr *Error
	if err == nil || !errors.Is(err, kind) || errors.As(err, &appErr) {
		return err
	}
	return fmt.Errorf("%w: %w", New(kind, msg), err)
}
