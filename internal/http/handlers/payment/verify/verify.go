// Package verify подтверждает оплату подписки по подписи провайдера.
package verify

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
	"github.com/magabrotheeeer/lms-identity/internal/services/payment"
)

type Service interface {
	Verify(ctx context.Context, userUID string, in payment.VerifyInput) (*models.PaymentRecord, error)
}

type Handler struct {
	log *slog.Logger
	svc Service
}

func New(log *slog.Logger, svc Service) *Handler {
	return &Handler{log: log, svc: svc}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.verify"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	principal, ok := middlewarectx.PrincipalFromContext(r.Context())
	if !ok {
		response.Fail(w, r, log, apperr.ErrUnauthenticated)
		return
	}

	var req payment.VerifyInput
	if err := request.DecodeJSON(r, &req); err != nil {
		response.Fail(w, r, log, err)
		return
	}

	rec, err := h.svc.Verify(r.Context(), principal.UserUID, req)
	if err != nil {
		response.Fail(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, map[string]any{
		"message": "payment verified successfully",
		"payment": rec,
	})
}
