// Package logout сбрасывает cookie сессии. Сам токен не отзывается
// и остаётся действительным до истечения срока.
package logout

import (
	"net/http"

	"github.com/magabrotheeeer/lms-identity/internal/http/cookie"
	"github.com/magabrotheeeer/lms-identity/internal/http/response"
)

type Handler struct {
	cookieName string
}

func New(cookieName string) *Handler {
	return &Handler{cookieName: cookieName}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cookie.Clear(w, h.cookieName)
	response.OK(w, r, http.StatusOK, map[string]string{"message": "logged out successfully"})
}
