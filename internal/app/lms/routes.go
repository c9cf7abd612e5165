package lms

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/lms-identity/internal/config"
	"github.com/magabrotheeeer/lms-identity/internal/guard"
	"github.com/magabrotheeeer/lms-identity/internal/http/handlers/health"
	"github.com/magabrotheeeer/lms-identity/internal/http/handlers/payment/apikey"
	"github.com/magabrotheeeer/lms-identity/internal/http/handlers/payment/history"
	"github.com/magabrotheeeer/lms-identity/internal/http/handlers/payment/paymentlist"
	"github.com/magabrotheeeer/lms-identity/internal/http/handlers/payment/subscribe"
	"github.com/magabrotheeeer/lms-identity/internal/http/handlers/payment/unsubscribe"
	"github.com/magabrotheeeer/lms-identity/internal/http/handlers/payment/verify"
	"github.com/magabrotheeeer/lms-identity/internal/http/handlers/user/changepassword"
	"github.com/magabrotheeeer/lms-identity/internal/http/handlers/user/entitlement"
	"github.com/magabrotheeeer/lms-identity/internal/http/handlers/user/forgotpassword"
	"github.com/magabrotheeeer/lms-identity/internal/http/handlers/user/login"
	"github.com/magabrotheeeer/lms-identity/internal/http/handlers/user/logout"
	"github.com/magabrotheeeer/lms-identity/internal/http/handlers/user/profile"
	"github.com/magabrotheeeer/lms-identity/internal/http/handlers/user/register"
	"github.com/magabrotheeeer/lms-identity/internal/http/handlers/user/resetpassword"
	"github.com/magabrotheeeer/lms-identity/internal/http/handlers/user/updateprofile"
	"github.com/magabrotheeeer/lms-identity/internal/http/middlewarectx"
	"github.com/magabrotheeeer/lms-identity/internal/models"
)

// RegisterRoutes регистрирует все маршруты приложения.
// limiter ограничивает эндпоинты, принимающие учётные данные.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config, svcs *Services, limiter *rate.Limiter) {
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)

	cookieName := cfg.CookieName
	authenticated := middlewarectx.Authenticate(logger, svcs.Authenticator, cookieName)
	limited := middlewarectx.RateLimitMiddleware(logger, limiter)

	r.Route("/api/v1/user", func(r chi.Router) {
		// Открытые конечные точки
		r.With(limited).Post("/register", register.New(logger, svcs.Auth, cookieName).ServeHTTP)
		r.With(limited).Post("/login", login.New(logger, svcs.Auth, cookieName).ServeHTTP)
		r.Post("/logout", logout.New(cookieName).ServeHTTP)
		r.With(limited).Post("/reset", forgotpassword.New(logger, svcs.Reset).ServeHTTP)
		r.Post("/reset/{"+resetpassword.TokenParam+"}", resetpassword.New(logger, svcs.Reset).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(authenticated)
			r.Get("/me", profile.New(logger, svcs.Auth).ServeHTTP)
			r.Post("/change-password", changepassword.New(logger, svcs.Auth).ServeHTTP)
			r.Put("/update", updateprofile.New(logger, svcs.Auth).ServeHTTP)
			r.With(middlewarectx.Require(logger, guard.RequireEntitlement(svcs.Users))).
				Get("/entitlement", entitlement.New(logger).ServeHTTP)
		})
	})

	r.Route("/api/v1/payments", func(r chi.Router) {
		r.Use(authenticated)
		r.Get("/razorpay-key", apikey.New(svcs.Payment).ServeHTTP)
		r.Post("/subscribe", subscribe.New(logger, svcs.Payment).ServeHTTP)
		r.Post("/verify", verify.New(logger, svcs.Payment).ServeHTTP)
		r.Post("/unsubscribe", unsubscribe.New(logger, svcs.Payment).ServeHTTP)
		r.Get("/history", history.New(logger, svcs.Payment).ServeHTTP)
		r.With(middlewarectx.Require(logger, guard.RequireRole(guard.NewRoleSet(models.RoleAdmin)))).
			Get("/", paymentlist.New(logger, svcs.Payment).ServeHTTP)
	})

	r.Get("/health", health.New(logger, svcs.DB).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
}
