// Package middlewarectx содержит HTTP middleware аутентификации, авторизации
// и ограничения частоты запросов.
//
// Authenticate берёт токен из заголовка Authorization (Bearer) или из cookie сессии,
// проверяет его и кладёт Principal в контекст запроса. Require применяет политику
// доступа к Principal из контекста.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/lms-identity/internal/guard"
	"github.com/magabrotheeeer/lms-identity/internal/http/response"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

// PrincipalKey ключ для Principal в контексте.
const PrincipalKey Key = "principal"

// Authenticator проверяет токен сессии.
type Authenticator interface {
	Authenticate(token string) (*guard.Principal, error)
}

// WithPrincipal кладёт Principal в контекст.
func WithPrincipal(ctx context.Context, p *guard.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

// PrincipalFromContext достаёт Principal, положенный Authenticate.
func PrincipalFromContext(ctx context.Context) (*guard.Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(*guard.Principal)
	return p, ok && p != nil
}

// Authenticate возвращает middleware, который пропускает только запросы с валидным токеном.
// Заголовок Authorization имеет приоритет над cookie.
func Authenticate(log *slog.Logger, authn Authenticator, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.Authenticate"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			principal, err := authn.Authenticate(tokenFromRequest(r, cookieName))
			if err != nil {
				response.Fail(w, r, log, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

func tokenFromRequest(r *http.Request, cookieName string) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if cookieName == "" {
		return ""
	}
	c, err := r.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
