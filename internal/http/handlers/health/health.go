// Package health отвечает на проверку живости сервиса.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/lms-identity/internal/http/response"
	"github.com/magabrotheeeer/lms-identity/internal/lib/sl"
)

const pingTimeout = 2 * time.Second

// Pinger проверяет доступность хранилища. nil означает хранилище в памяти.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	log *slog.Logger
	db  Pinger
}

func New(log *slog.Logger, db Pinger) *Handler {
	return &Handler{
		log: log,
		db:  db,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			h.log.Error("storage is unavailable", slog.String("op", op), sl.Err(err))
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("storage is unavailable"))
			return
		}
	}
	response.OK(w, r, http.StatusOK, map[string]any{
		"status": "ok",
	})
}
