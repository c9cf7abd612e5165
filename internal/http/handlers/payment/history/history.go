// Package history отдаёт подтверждённые платежи текущего пользователя.
package history

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/lms-identity/internal/apperr"
	"github.com/magabrotheeeer/lms-identity/internal/http/middlewarectx"
	"github.com/magabrotheeeer/lms-identity/internal/http/response"
	"github.com/magabrotheeeer/lms-identity/internal/models"
)

type Service interface {
	History(ctx context.Context, userUID string) ([]*models.PaymentRecord, error)
}

type Handler struct {
	log *slog.Logger
	svc Service
}

func New(log *slog.Logger, svc Service) *Handler {
	return &Handler{log: log, svc: svc}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.history"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	principal, ok := middlewarectx.PrincipalFromContext(r.Context())
	if !ok {
		response.Fail(w, r, log, apperr.ErrUnauthenticated)
		return
	}

	list, err := h.svc.History(r.Context(), principal.UserUID)
	if err != nil {
		response.Fail(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, map[string]any{
		"count":    len(list),
		"payments": list,
	})
}
