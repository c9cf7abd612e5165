// Package apikey отдаёт публичный ключ платёжного провайдера для checkout на клиенте.
package apikey

import (
	"net/http"

	"github.com/magabrotheeeer/lms-identity/internal/http/response"
)

type Service interface {
	APIKey() string
}

type Handler struct {
	svc Service
}

func New(svc Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	response.OK(w, r, http.StatusOK, map[string]string{"key": h.svc.APIKey()})
}
