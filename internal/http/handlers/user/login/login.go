// Package login реализует HTTP-обработчик входа по email и паролю.
package login

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/lms-identity/internal/http/cookie"
	"github.com/magabrotheeeer/lms-identity/internal/http/request"
	"github.com/magabrotheeeer/lms-identity/internal/http/response"
	"github.com/magabrotheeeer/lms-identity/internal/services/auth"
)

// Request учетные данные пользователя.
type Request struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Service описывает вход пользователя.
type Service interface {
	Login(ctx context.Context, email, password string) (*auth.Session, error)
}

type Handler struct {
	log        *slog.Logger
	svc        Service
	cookieName string
}

func New(log *slog.Logger, svc Service, cookieName string) *Handler {
	return &Handler{
		log:        log,
		svc:        svc,
		cookieName: cookieName,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.login"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := request.DecodeJSON(r, &req); err != nil {
		response.Fail(w, r, log, err)
		return
	}

	session, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		response.Fail(w, r, log, err)
		return
	}

	cookie.Set(w, h.cookieName, session.Token, time.Until(session.ExpiresAt))
	log.Info("login success", slog.String("user_id", session.User.UUID))
	response.OK(w, r, http.StatusOK, map[string]any{
		"user":      session.User,
		"token":     session.Token,
		"expiresAt": session.ExpiresAt,
	})
}
