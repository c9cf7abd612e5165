// Package lms собирает HTTP-сервер идентификации и доступа: хранилище,
// сервисы, middleware и маршруты.
package lms

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/lms-identity/internal/cache"
	"github.com/magabrotheeeer/lms-identity/internal/config"
	"github.com/magabrotheeeer/lms-identity/internal/guard"
	"github.com/magabrotheeeer/lms-identity/internal/http/handlers/health"
	"github.com/magabrotheeeer/lms-identity/internal/lib/jwt"
	"github.com/magabrotheeeer/lms-identity/internal/lib/password"
	"github.com/magabrotheeeer/lms-identity/internal/lib/signature"
	"github.com/magabrotheeeer/lms-identity/internal/lib/sl"
	"github.com/magabrotheeeer/lms-identity/internal/lib/smtp"
	"github.com/magabrotheeeer/lms-identity/internal/migrations"
	"github.com/magabrotheeeer/lms-identity/internal/objectstore"
	"github.com/magabrotheeeer/lms-identity/internal/paymentprovider"
	"github.com/magabrotheeeer/lms-identity/internal/rabbitmq"
	"github.com/magabrotheeeer/lms-identity/internal/services/auth"
	"github.com/magabrotheeeer/lms-identity/internal/services/payment"
	"github.com/magabrotheeeer/lms-identity/internal/services/reset"
	"github.com/magabrotheeeer/lms-identity/internal/services/scheduler"
	"github.com/magabrotheeeer/lms-identity/internal/services/sender"
	"github.com/magabrotheeeer/lms-identity/internal/storage/memory"
	"github.com/magabrotheeeer/lms-identity/internal/storage/repository"
)

// MemoryStorage значение storage_connection_string для хранилища в памяти.
const MemoryStorage = "memory"

const (
	shutdownTimeout = 15 * time.Second
	rabbitRetries   = 5
	rabbitDelay     = 2 * time.Second
)

// Store объединяет методы хранилища, нужные всем сервисам.
type Store interface {
	auth.UserRepository
	reset.UserRepository
	payment.Repository
	scheduler.ResetTokenRepository
}

// Services набор сервисов приложения.
type Services struct {
	Auth          *auth.Service
	Reset         *reset.Service
	Payment       *payment.PaymentService
	Authenticator *guard.Authenticator
	Users         guard.UserReader
	DB            health.Pinger
	Sweeper       *scheduler.SchedulerService
}

type App struct {
	server  *http.Server
	sweeper *scheduler.SchedulerService
	logger  *slog.Logger
	closers []func() error
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{logger: logger}
	svcs, err := app.buildServices(ctx, cfg)
	if err != nil {
		app.close()
		return nil, err
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, svcs, rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst))

	app.sweeper = svcs.Sweeper
	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return app, nil
}

func (a *App) buildServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	var (
		store Store
		db    health.Pinger
	)
	if cfg.StorageConnectionString == MemoryStorage {
		a.logger.Warn("using in-memory storage, data is lost on restart")
		store = memory.New()
	} else {
		pg, err := repository.New(ctx, cfg.StorageConnectionString)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pg.Close)
		version, err := migrations.Run(pg.DB, cfg.MigrationsPath)
		if err != nil {
			return nil, err
		}
		a.logger.Info("database migrated", slog.Uint64("version", uint64(version)))
		if err := repository.CheckDatabaseReady(ctx, pg); err != nil {
			return nil, err
		}
		store, db = pg, pg.DB
	}

	// Опциональные зависимости передаются как nil-интерфейсы, а не nil-указатели.
	var (
		resetThrottle reset.Throttle
		statsCache    payment.Cache
	)
	if cfg.AddressRedis != "" {
		redisCache, err := cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, redisCache.Close)
		resetThrottle, statsCache = redisCache, redisCache
	} else {
		a.logger.Warn("redis is not configured, reset cooldown and stats cache are disabled")
	}

	var files auth.ObjectStore
	if cfg.Bucket != "" {
		s3, err := objectstore.NewS3(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		files = s3
	} else {
		a.logger.Warn("s3 bucket is not configured, avatar upload is disabled")
	}

	var events payment.EventPublisher
	if cfg.RabbitMQ.URL != "" {
		conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, rabbitRetries, rabbitDelay)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, conn.Close)
		ch, err := rabbitmq.SetupChannel(conn, cfg.Exchange)
		if err != nil {
			return nil, err
		}
		events = rabbitmq.NewPublisher(ch, cfg.Exchange)
	} else {
		a.logger.Warn("rabbitmq is not configured, domain events are not published")
	}

	tokens := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	hasher := password.NewHasher(password.DefaultCost)
	mail := sender.NewSenderService(a.logger, smtp.NewTransport(cfg.SMTP, a.logger))

	return &Services{
		Auth:          auth.NewService(a.logger, store, hasher, tokens, files, events, cfg.DefaultAvatarURL),
		Reset:         reset.NewService(a.logger, store, mail, hasher, resetThrottle, cfg.PasswordReset),
		Payment: payment.New(a.logger, store, paymentprovider.NewClient(cfg.Payment),
			signature.NewVerifier(cfg.KeySecret), statsCache, events, cfg.Payment),
		Authenticator: guard.NewAuthenticator(tokens),
		Users:         store,
		DB:            db,
		Sweeper:       scheduler.NewSchedulerService(store, a.logger, cfg.SweepInterval),
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	go a.sweeper.PurgeExpiredResetTokens(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

// close освобождает ресурсы в обратном порядке создания.
func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("failed to release resource", sl.Err(err))
		}
	}
	a.closers = nil
}
