// Package reset реализует восстановление пароля по одноразовому токену.
//
// У пользователя не более одного ожидающего токена. В хранилище попадает только
// SHA-256 хэш токена, исходное значение уходит пользователю в письме. Если письмо
// не отправлено, токен удаляется: живой токен без письма не остаётся.
package reset

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/lms-identity/internal/apperr"
	"github.com/magabrotheeeer/lms-identity/internal/config"
	"github.com/magabrotheeeer/lms-identity/internal/lib/sl"
	"github.com/magabrotheeeer/lms-identity/internal/metrics"
	"github.com/magabrotheeeer/lms-identity/internal/models"
)

const tokenBytes = 20

// UserRepository операции хранилища, необходимые для сброса пароля.
type UserRepository interface {
	GetUserByEmail(ctx context.Context, email string, withPassword bool) (*models.User, error)
	SetResetToken(ctx context.Context, userUID string, token models.ResetToken) error
	ClearResetToken(ctx context.Context, userUID, tokenHash string) error
	GetUserByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error)
	ConsumeResetToken(ctx context.Context, userUID, tokenHash, passwordHash string, now time.Time) error
}

// EmailSender отправляет HTML-письма.
type EmailSender interface {
	SendHTML(ctx context.Context, to, subject, html string) error
}

// PasswordHasher хэширует новый пароль.
type PasswordHasher interface {
	Hash(plain string) (string, error)
}

// Throttle ограничивает частоту запросов сброса для одного адреса.
// Invalidate освобождает ключ, если запрос не дошёл до пользователя.
type Throttle interface {
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Invalidate(ctx context.Context, key string) error
}

type completeInput struct {
	Token    string `validate:"required"`
	Password string `validate:"required,min=8,max=72"`
}

// Service сервис восстановления пароля.
type Service struct {
	log      *slog.Logger
	users    UserRepository
	mail     EmailSender
	hasher   PasswordHasher
	throttle Throttle
	cfg      config.PasswordReset
	validate *validator.Validate
	now      func() time.Time
	random   func([]byte) (int, error)
}

// NewService создаёт Service. throttle может быть nil, тогда частота запросов не ограничивается.
func NewService(log *slog.Logger, users UserRepository, mail EmailSender, hasher PasswordHasher,
	throttle Throttle, cfg config.PasswordReset) *Service {
	return &Service{
		log:      log,
		users:    users,
		mail:     mail,
		hasher:   hasher,
		throttle: throttle,
		cfg:      cfg,
		validate: validator.New(),
		now:      time.Now,
		random:   rand.Read,
	}
}

// HashToken возвращает hex SHA-256 от исходного токена.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// RequestReset выпускает токен сброса для email и отправляет ссылку письмом.
// Новый запрос заменяет ранее выпущенный токен.
func (s *Service) RequestReset(ctx context.Context, email string) (err error) {
	const op = "reset.RequestReset"
	log := s.log.With(slog.String("op", op))
	defer func() {
		metrics.PasswordResets.WithLabelValues("request", metrics.Result(err)).Inc()
	}()

	email = models.NormalizeEmail(email)
	if email == "" {
		return apperr.Validation("field Email is a required field")
	}

	release, err := s.reserve(ctx, log, email)
	if err != nil {
		return err
	}

	user, err := s.users.GetUserByEmail(ctx, email, false)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	raw, err := s.newToken()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	token := models.ResetToken{
		Hash:      HashToken(raw),
		ExpiresAt: s.now().Add(s.cfg.ResetTTL),
	}
	if err := s.users.SetResetToken(ctx, user.UUID, token); err != nil {
		release()
		return fmt.Errorf("%s: %w", op, err)
	}

	link := s.resetURL(raw)
	if err := s.mail.SendHTML(ctx, user.Email, "Reset Password", resetEmailBody(link)); err != nil {
		// Письмо не ушло, повторный запрос не должен упираться в cooldown.
		release()
		// Отзываем только свой токен, чтобы не стереть более новый.
		if clearErr := s.users.ClearResetToken(context.WithoutCancel(ctx), user.UUID, token.Hash); clearErr != nil {
			log.Error("failed to clear reset token after email failure",
				slog.String("user_id", user.UUID), sl.Err(clearErr))
			return fmt.Errorf("%s: %w", op, errors.Join(err, clearErr))
		}
		log.Warn("reset email not sent, token revoked", slog.String("user_id", user.UUID), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("reset token issued", slog.String("user_id", user.UUID))
	return nil
}

// CompleteReset устанавливает новый пароль по исходному токену и гасит токен.
// Неизвестный, чужой, просроченный и уже использованный токены дают ErrInvalidOrExpired.
func (s *Service) CompleteReset(ctx context.Context, rawToken, newPassword string) (err error) {
	const op = "reset.CompleteReset"
	defer func() {
		metrics.PasswordResets.WithLabelValues("complete", metrics.Result(err)).Inc()
	}()

	in := completeInput{Token: strings.TrimSpace(rawToken), Password: newPassword}
	if err := s.validate.Struct(in); err != nil {
		return apperr.FromValidator(err)
	}

	hash := HashToken(in.Token)
	now := s.now()
	user, err := s.users.GetUserByResetToken(ctx, hash, now)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.users.ConsumeResetToken(ctx, user.UUID, hash, passwordHash, now); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("password reset completed", slog.String("op", op), slog.String("user_id", user.UUID))
	return nil
}

// reserve отклоняет повторный запрос для адреса в пределах cooldown.
// Недоступность redis не блокирует восстановление пароля.
// Возвращённый release снимает cooldown, занятый этим вызовом.
func (s *Service) reserve(ctx context.Context, log *slog.Logger, email string) (func(), error) {
	noop := func() {}
	if s.throttle == nil || s.cfg.Cooldown <= 0 {
		return noop, nil
	}
	key := "reset:" + HashToken(email)
	ok, err := s.throttle.Reserve(ctx, key, s.cfg.Cooldown)
	if err != nil {
		log.Warn("reset throttle unavailable", sl.Err(err))
		return noop, nil
	}
	if !ok {
		return nil, apperr.Validation("reset already requested, please try again later")
	}
	return func() {
		if err := s.throttle.Invalidate(context.WithoutCancel(ctx), key); err != nil {
			log.Warn("failed to release reset cooldown", sl.Err(err))
		}
	}, nil
}

func (s *Service) newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := s.random(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func (s *Service) resetURL(raw string) string {
	return strings.TrimRight(s.cfg.FrontendURL, "/") + "/reset-password/" + raw
}

func resetEmailBody(link string) string {
	l := html.EscapeString(link)
	return fmt.Sprintf(`<p>You can reset your password by clicking <a href="%s" target="_blank">Reset your password</a>.</p>
<p>If the link above does not work, copy and paste this link into a new tab: %s</p>
<p>If you have not requested this, kindly ignore this email.</p>`, l, l)
}
