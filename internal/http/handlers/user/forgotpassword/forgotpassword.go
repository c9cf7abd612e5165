// Package forgotpassword отправляет пользователю ссылку для сброса пароля.
package forgotpassword

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/lms-identity/internal/http/request"
	"github.com/magabrotheeeer/lms-identity/internal/http/response"
)

type Request struct {
	Email string `json:"email"`
}

type Service interface {
	RequestReset(ctx context.Context, email string) error
}

type Handler struct {
	log *slog.Logger
	svc Service
}

func New(log *slog.Logger, svc Service) *Handler {
	return &Handler{log: log, svc: svc}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.forgotpassword"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := request.DecodeJSON(r, &req); err != nil {
		response.Fail(w, r, log, err)
		return
	}

	if err := h.svc.RequestReset(r.Context(), req.Email); err != nil {
		response.Fail(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, map[string]string{"message": "password reset link sent to your email"})
}
