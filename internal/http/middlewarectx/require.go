package middlewarectx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/lms-identity/internal/guard"
	"github.com/magabrotheeeer/lms-identity/internal/http/response"
)

// Require применяет policy к Principal из контекста. Ставится после Authenticate.
func Require(log *slog.Logger, policy guard.Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.Require"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			principal, _ := PrincipalFromContext(r.Context())
			if err := policy.Authorize(r.Context(), principal); err != nil {
				response.Fail(w, r, log, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
