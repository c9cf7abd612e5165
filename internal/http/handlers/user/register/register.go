// Package register реализует HTTP-обработчик регистрации пользователя.
//
// Принимает JSON или multipart/form-data (с необязательным файлом avatar),
// создаёт учётную запись, выставляет cookie сессии и возвращает токен в теле ответа.
package register

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

// Request входные данные регистрации в JSON-варианте.
type Request struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Service описывает регистрацию в бизнес-слое.
type Service interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.Session, error)
}

// Handler обрабатывает HTTP-запросы регистрации.
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
	const op = "handlers.user.register"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var in auth.RegisterInput
	if request.IsMultipart(r) {
		upload, cleanup, err := request.Form(r, "avatar")
		defer cleanup()
		if err != nil {
			response.Fail(w, r, log, err)
			return
		}
		in = auth.RegisterInput{
			FullName: r.FormValue("fullName"),
			Email:    r.FormValue("email"),
			Password: r.FormValue("password"),
			Avatar:   upload,
		}
	} else {
		var req Request
		if err := request.DecodeJSON(r, &req); err != nil {
			response.Fail(w, r, log, err)
			return
		}
		in = auth.RegisterInput{FullName: req.FullName, Email: req.Email, Password: req.Password}
	}

	session, err := h.svc.Register(r.Context(), in)
	if err != nil {
		response.Fail(w, r, log, err)
		return
	}

	cookie.Set(w, h.cookieName, session.Token, time.Until(session.ExpiresAt))
	log.Info("user registered", slog.String("user_id", session.User.UUID))
	response.OK(w, r, http.StatusCreated, map[string]any{
		"user":      session.User,
		"token":     session.Token,
		"expiresAt": session.ExpiresAt,
	})
}
