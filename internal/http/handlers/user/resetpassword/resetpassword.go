// Package resetpassword устанавливает новый пароль по токену из письма.
package resetpassword

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/lms-identity/internal/http/request"
	"github.com/magabrotheeeer/lms-identity/internal/http/response"
)

// TokenParam имя параметра маршрута с токеном сброса.
const TokenParam = "resetToken"

type Request struct {
	Password string `json:"password"`
}

type Service interface {
	CompleteReset(ctx context.Context, rawToken, newPassword string) error
}

type Handler struct {
	log *slog.Logger
	svc Service
}

func New(log *slog.Logger, svc Service) *Handler {
	return &Handler{log: log, svc: svc}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.resetpassword"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := request.DecodeJSON(r, &req); err != nil {
		response.Fail(w, r, log, err)
		return
	}

	if err := h.svc.CompleteReset(r.Context(), chi.URLParam(r, TokenParam), req.Password); err != nil {
		response.Fail(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, map[string]string{"message": "password reset successfully"})
}
