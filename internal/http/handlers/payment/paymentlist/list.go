// Package paymentlist отдаёт администратору подписки провайдера и их распределение по месяцам.
package paymentlist

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/lms-identity/internal/apperr"
	"github.com/magabrotheeeer/lms-identity/internal/http/response"
	"github.com/magabrotheeeer/lms-identity/internal/services/payment"
)

type Service interface {
	Stats(ctx context.Context, count, skip int) (*payment.Stats, error)
}

type Handler struct {
	log *slog.Logger
	svc Service
}

func New(log *slog.Logger, svc Service) *Handler {
	return &Handler{log: log, svc: svc}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.list"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	count, err := intParam(r, "count")
	if err != nil {
		response.Fail(w, r, log, err)
		return
	}
	skip, err := intParam(r, "skip")
	if err != nil {
		response.Fail(w, r, log, err)
		return
	}

	stats, err := h.svc.Stats(r.Context(), count, skip)
	if err != nil {
		response.Fail(w, r, log, err)
		return
	}
	log.Info("payment stats", slog.Int("count", len(stats.AllPayments.Items)))
	response.OK(w, r, http.StatusOK, stats)
}

// intParam читает неотрицательное целое из query. Отсутствие параметра даёт 0.
func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperr.Validation("query parameter %s must be a non-negative integer", name)
	}
	return v, nil
}
