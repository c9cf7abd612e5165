// Package updateprofile обновляет имя и аватар текущего пользователя.
//
// Принимает multipart/form-data (fullName, avatar) или JSON только с fullName.
package updateprofile

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/lms-identity/internal/apperr"
	"github.com/magabrotheeeer/lms-identity/internal/http/middlewarectx"
	"github.com/magabrotheeeer/lms-identity/internal/http/request"
	"github.com/magabrotheeeer/lms-identity/internal/http/response"
	"github.com/magabrotheeeer/lms-identity/internal/models"
	"github.com/magabrotheeeer/lms-identity/internal/services/auth"
)

type Request struct {
	FullName string `json:"fullName"`
}

type Service interface {
	UpdateProfile(ctx context.Context, userUID string, in auth.UpdateProfileInput) (*models.User, error)
}

type Handler struct {
	log *slog.Logger
	svc Service
}

func New(log *slog.Logger, svc Service) *Handler {
	return &Handler{log: log, svc: svc}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.updateprofile"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	principal, ok := middlewarectx.PrincipalFromContext(r.Context())
	if !ok {
		response.Fail(w, r, log, apperr.ErrUnauthenticated)
		return
	}

	var in auth.UpdateProfileInput
	if request.IsMultipart(r) {
		upload, cleanup, err := request.Form(r, "avatar")
		defer cleanup()
		if err != nil {
			response.Fail(w, r, log, err)
			return
		}
		in = auth.UpdateProfileInput{FullName: r.FormValue("fullName"), Avatar: upload}
	} else {
		var req Request
		if err := request.DecodeJSON(r, &req); err != nil {
			response.Fail(w, r, log, err)
			return
		}
		in.FullName = req.FullName
	}

	user, err := h.svc.UpdateProfile(r.Context(), principal.UserUID, in)
	if err != nil {
		response.Fail(w, r, log, err)
		return
	}
	log.Info("profile updated", slog.String("user_id", principal.UserUID))
	response.OK(w, r, http.StatusOK, user)
}
