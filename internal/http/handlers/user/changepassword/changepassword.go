// Package changepassword меняет пароль текущего пользователя после проверки старого.
package changepassword

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/lms-identity/internal/apperr"
	"github.com/magabrotheeeer/lms-identity/internal/http/middlewarectx"
	"github.com/magabrotheeeer/lms-identity/internal/http/request"
	"github.com/magabrotheeeer/lms-identity/internal/http/response"
)

type Request struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type Service interface {
	ChangePassword(ctx context.Context, userUID, oldPassword, newPassword string) error
}

type Handler struct {
	log *slog.Logger
	svc Service
}

func New(log *slog.Logger, svc Service) *Handler {
	return &Handler{log: log, svc: svc}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.changepassword"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	principal, ok := middlewarectx.PrincipalFromContext(r.Context())
	if !ok {
		response.Fail(w, r, log, apperr.ErrUnauthenticated)
		return
	}

	var req Request
	if err := request.DecodeJSON(r, &req); err != nil {
		response.Fail(w, r, log, err)
		return
	}

	if err := h.svc.ChangePassword(r.Context(), principal.UserUID, req.OldPassword, req.NewPassword); err != nil {
		response.Fail(w, r, log, err)
		return
	}
	log.Info("password changed", slog.String("user_id", principal.UserUID))
	response.OK(w, r, http.StatusOK, map[string]string{"message": "password changed successfully"})
}
