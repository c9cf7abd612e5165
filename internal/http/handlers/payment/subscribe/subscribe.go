// Package subscribe создаёт подписку у платёжного провайдера для текущего пользователя.
package subscribe

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
	Subscribe(ctx context.Context, userUID string) (models.Subscription, error)
}

type Handler struct {
	log *slog.Logger
	svc Service
}

func New(log *slog.Logger, svc Service) *Handler {
	return &Handler{log: log, svc: svc}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.subscribe"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	principal, ok := middlewarectx.PrincipalFromContext(r.Context())
	if !ok {
		response.Fail(w, r, log, apperr.ErrUnauthenticated)
		return
	}

	sub, err := h.svc.Subscribe(r.Context(), principal.UserUID)
	if err != nil {
		response.Fail(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusCreated, map[string]any{
		"subscriptionId": sub.ID,
		"status":         sub.Status,
	})
}
