// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON-ответов HTTP-обработчиков.
package response

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/lms-identity/internal/apperr"
	"github.com/magabrotheeeer/lms-identity/internal/lib/sl"
)

// Response описывает стандартную структуру JSON-ответа сервера.
// Поле Status статус запроса ("OK" или "Error").
// Поле Error текст ошибки (при неуспехе).
// Поле Data данные ответа (при успехе).
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

const (
	// StatusOK значение статуса для успешного ответа.
	StatusOK = "OK"
	// StatusError значение статуса для ответа с ошибкой.
	StatusError = "Error"
)

// OKWithData возвращает успешный Response с переданными данными.
func OKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error возвращает Response с ошибкой и переданным сообщением.
func Error(msg string) Response {
	return Response{
		Status: StatusError,
		Error:  msg,
	}
}

// OK пишет успешный ответ с кодом status.
func OK(w http.ResponseWriter, r *http.Request, status int, data any) {
	render.Status(r, status)
	render.JSON(w, r, OKWithData(data))
}

// Fail переводит ошибку в HTTP-статус и безопасное сообщение.
// Ошибки 5xx логируются как Error, остальные как Info.
func Fail(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status, msg := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", slog.Int("status", status), sl.Err(err))
	} else {
		log.Info("request rejected", slog.Int("status", status), sl.Err(err))
	}
	render.Status(r, status)
	render.JSON(w, r, Error(msg))
}

// BadRequest отвечает 400 с сообщением msg.
func BadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, Error(msg))
}
