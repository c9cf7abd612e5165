// Package apperr описывает виды ошибок доменного уровня и их отображение
// в пары (HTTP-статус, сообщение) для единой обработки на границе HTTP.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator"
)

// Виды ошибок. Нижние слои оборачивают их через fmt.Errorf("%s: %w", op, err),
// проверка выполняется через errors.Is.
var (
	ErrValidation           = errors.New("validation failed")
	ErrDuplicateEmail       = errors.New("email already exists")
	ErrNotFound             = errors.New("not found")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrUnauthenticated      = errors.New("unauthenticated")
	ErrForbidden            = errors.New("forbidden")
	ErrSubscriptionRequired = errors.New("subscription required")
	ErrInvalidOrExpired     = errors.New("token is invalid or expired")
	ErrSignatureInvalid     = errors.New("signature invalid")
	ErrUpstream             = errors.New("upstream failure")
)

// ValidationError несёт человекочитаемое описание некорректного ввода.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Is позволяет сравнивать ValidationError с ErrValidation через errors.Is.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Validation создаёт ошибку валидации с форматированным сообщением.
func Validation(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// FromValidator превращает ошибки go-playground/validator в ValidationError.
// Каждое нарушение формируется в отдельную фразу, фразы объединяются через запятую.
func FromValidator(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return Validation("invalid input")
	}
	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		switch fe.ActualTag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("field %s is a required field", fe.Field()))
		case "email":
			msgs = append(msgs, fmt.Sprintf("field %s must be a valid email address", fe.Field()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("field %s must be at least %s characters", fe.Field(), fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("field %s must be at most %s characters", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s is not a valid", fe.Field()))
		}
	}
	return &ValidationError{Msg: strings.Join(msgs, ", ")}
}

// Upstream помечает сбой внешнего сервиса (хранилище файлов, почта, платёжный провайдер).
func Upstream(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
}

// Status возвращает HTTP-статус и безопасное для клиента сообщение.
//
// Сообщения для ErrInvalidCredentials и ErrInvalidOrExpired не уточняют,
// какое именно поле или условие не выполнено.
func Status(err error) (int, string) {
	var vErr *ValidationError
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.As(err, &vErr):
		return http.StatusBadRequest, vErr.Msg
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, ErrDuplicateEmail):
		return http.StatusConflict, "email already exists"
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized, "email or password does not match"
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated, please login again"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "you do not have permission to view this route"
	case errors.Is(err, ErrSubscriptionRequired):
		return http.StatusForbidden, "please subscribe to access this route"
	case errors.Is(err, ErrInvalidOrExpired):
		return http.StatusBadRequest, "token is invalid or expired, please try again"
	case errors.Is(err, ErrSignatureInvalid):
		return http.StatusBadRequest, "payment not verified, please try again"
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "requested resource not found"
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway, "upstream service unavailable, please try again"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "service unavailable, please try again"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
