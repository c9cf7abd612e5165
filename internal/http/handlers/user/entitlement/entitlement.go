// Package entitlement отвечает 200, если доступ к платному контенту разрешён.
// Проверку выполняет middleware с guard.RequireEntitlement.
package entitlement

import (
	"log/slog"
	"net/http"

	"github.com/magabrotheeeer/lms-identity/internal/apperr"
	"github.com/magabrotheeeer/lms-identity/internal/http/middlewarectx"
	"github.com/magabrotheeeer/lms-identity/internal/http/response"
)

type Handler struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Handler {
	return &Handler{log: log}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	principal, ok := middlewarectx.PrincipalFromContext(r.Context())
	if !ok {
		response.Fail(w, r, h.log, apperr.ErrUnauthenticated)
		return
	}
	response.OK(w, r, http.StatusOK, map[string]any{
		"entitled": true,
		"role":     principal.Role,
	})
}
