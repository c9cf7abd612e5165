// Package auth содержит бизнес-логику учётных записей: регистрацию, вход,
// профиль и смену пароля. Пароль хэшируется ровно один раз при каждом его
// изменении; операции, не меняющие пароль, хэш не затрагивают.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/lms-identity/internal/apperr"
	"github.com/magabrotheeeer/lms-identity/internal/lib/jwt"
	"github.com/magabrotheeeer/lms-identity/internal/lib/sl"
	"github.com/magabrotheeeer/lms-identity/internal/metrics"
	"github.com/magabrotheeeer/lms-identity/internal/models"
	"github.com/magabrotheeeer/lms-identity/internal/rabbitmq"
)

// UserRepository описывает контракт хранилища учётных записей.
type UserRepository interface {
	CreateUser(ctx context.Context, user models.User) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string, withPassword bool) (*models.User, error)
	GetUser(ctx context.Context, userUID string, withPassword bool) (*models.User, error)
	UpdatePassword(ctx context.Context, userUID, passwordHash string) error
	UpdateProfile(ctx context.Context, userUID, fullName string, avatar *models.Avatar) (*models.User, error)
}

// PasswordHasher хэширует и проверяет пароли.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

// ObjectStore внешнее хранилище файлов аватаров.
type ObjectStore interface {
	Upload(ctx context.Context, file models.Upload) (models.Avatar, error)
	Delete(ctx context.Context, publicID string) error
}

// EventPublisher публикует доменные события.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Session результат успешной регистрации или входа.
type Session struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

// RegisterInput данные для регистрации.
type RegisterInput struct {
	FullName string         `validate:"required,min=5,max=50"`
	Email    string         `validate:"required,email"`
	Password string         `validate:"required,min=8,max=72"`
	Avatar   *models.Upload `validate:"-"`
}

// UpdateProfileInput данные для обновления профиля. Пустое имя оставляет текущее.
type UpdateProfileInput struct {
	FullName string         `validate:"omitempty,min=5,max=50"`
	Avatar   *models.Upload `validate:"-"`
}

type changePasswordInput struct {
	OldPassword string `validate:"required"`
	NewPassword string `validate:"required,min=8,max=72"`
}

type loginInput struct {
	Email    string `validate:"required"`
	Password string `validate:"required"`
}

// Service отвечает за регистрацию, вход и управление профилем.
type Service struct {
	log              *slog.Logger
	users            UserRepository
	hasher           PasswordHasher
	tokens           jwt.Maker
	files            ObjectStore
	events           EventPublisher
	defaultAvatarURL string
	validate         *validator.Validate

	dummyOnce sync.Once
	dummyHash string
}

// NewService создаёт Service. files может быть nil, тогда загрузка аватаров отключена.
func NewService(log *slog.Logger, users UserRepository, hasher PasswordHasher, tokens jwt.Maker,
	files ObjectStore, events EventPublisher, defaultAvatarURL string) *Service {
	if events == nil {
		events = rabbitmq.NopPublisher{}
	}
	return &Service{
		log:              log,
		users:            users,
		hasher:           hasher,
		tokens:           tokens,
		files:            files,
		events:           events,
		defaultAvatarURL: defaultAvatarURL,
		validate:         validator.New(),
	}
}

// Register создаёт учётную запись с ролью USER и выпускает сессию.
// Аватар загружается до создания записи и удаляется, если запись создать не удалось.
func (s *Service) Register(ctx context.Context, in RegisterInput) (session *Session, err error) {
	const op = "auth.Register"
	log := s.log.With(slog.String("op", op))
	defer func() {
		metrics.Registrations.WithLabelValues(metrics.Result(err)).Inc()
	}()

	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = models.NormalizeEmail(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return nil, apperr.FromValidator(err)
	}

	_, err = s.users.GetUserByEmail(ctx, in.Email, false)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrDuplicateEmail)
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	avatar := models.Avatar{SecureURL: s.defaultAvatarURL}
	uploaded := false
	if in.Avatar != nil {
		if s.files == nil {
			log.Warn("avatar upload is not configured, using default avatar")
		} else {
			avatar, err = s.files.Upload(ctx, *in.Avatar)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			uploaded = true
		}
	}

	user, err := s.users.CreateUser(ctx, models.User{
		FullName:     in.FullName,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         models.RoleUser,
		Avatar:       avatar,
	})
	if err != nil {
		if uploaded {
			s.deleteAvatar(ctx, log, avatar.PublicID)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if pubErr := s.events.Publish(ctx, rabbitmq.RoutingUserRegistered, rabbitmq.Event{
		UserUID:    user.UUID,
		Email:      user.Email,
		OccurredAt: time.Now().UTC(),
	}); pubErr != nil {
		log.Error("failed to publish user registered event", sl.Err(pubErr))
	}

	log.Info("user registered", slog.String("user_id", user.UUID))
	return s.issue(op, user)
}

// Login проверяет email и пароль. Неизвестный email и неверный пароль неразличимы.
func (s *Service) Login(ctx context.Context, email, password string) (session *Session, err error) {
	const op = "auth.Login"
	defer func() {
		metrics.Logins.WithLabelValues(metrics.Result(err)).Inc()
	}()

	in := loginInput{Email: models.NormalizeEmail(email), Password: password}
	if err := s.validate.Struct(in); err != nil {
		return nil, apperr.FromValidator(err)
	}

	user, err := s.users.GetUserByEmail(ctx, in.Email, true)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			s.hasher.Verify(in.Password, s.dummy())
			return nil, fmt.Errorf("%s: %w", op, apperr.ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrInvalidCredentials)
	}
	user.PasswordHash = ""
	return s.issue(op, user)
}

// Profile возвращает актуальную запись пользователя без хэша пароля.
func (s *Service) Profile(ctx context.Context, userUID string) (*models.User, error) {
	const op = "auth.Profile"
	user, err := s.users.GetUser(ctx, userUID, false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// ChangePassword меняет пароль после проверки текущего.
func (s *Service) ChangePassword(ctx context.Context, userUID, oldPassword, newPassword string) error {
	const op = "auth.ChangePassword"
	in := changePasswordInput{OldPassword: oldPassword, NewPassword: newPassword}
	if err := s.validate.Struct(in); err != nil {
		return apperr.FromValidator(err)
	}

	user, err := s.users.GetUser(ctx, userUID, true)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !s.hasher.Verify(in.OldPassword, user.PasswordHash) {
		return fmt.Errorf("%s: %w", op, apperr.ErrInvalidCredentials)
	}

	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.users.UpdatePassword(ctx, userUID, hash); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("password changed", slog.String("op", op), slog.String("user_id", userUID))
	return nil
}

// UpdateProfile меняет имя и аватар пользователя. Новый аватар загружается
// до записи в хранилище, старый удаляется после успешной записи.
func (s *Service) UpdateProfile(ctx context.Context, userUID string, in UpdateProfileInput) (*models.User, error) {
	const op = "auth.UpdateProfile"
	log := s.log.With(slog.String("op", op), slog.String("user_id", userUID))

	in.FullName = strings.TrimSpace(in.FullName)
	if err := s.validate.Struct(in); err != nil {
		return nil, apperr.FromValidator(err)
	}
	if in.Avatar != nil && s.files == nil {
		return nil, apperr.Validation("avatar upload is not available")
	}

	current, err := s.users.GetUser(ctx, userUID, false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	fullName := in.FullName
	if fullName == "" {
		fullName = current.FullName
	}

	var avatar *models.Avatar
	if in.Avatar != nil {
		uploaded, err := s.files.Upload(ctx, *in.Avatar)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		avatar = &uploaded
	}

	updated, err := s.users.UpdateProfile(ctx, userUID, fullName, avatar)
	if err != nil {
		if avatar != nil {
			s.deleteAvatar(ctx, log, avatar.PublicID)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if avatar != nil && current.Avatar.PublicID != "" {
		s.deleteAvatar(ctx, log, current.Avatar.PublicID)
	}
	return updated, nil
}

func (s *Service) issue(op string, user *models.User) (*Session, error) {
	token, exp, err := s.tokens.GenerateToken(user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Session{User: user, Token: token, ExpiresAt: exp}, nil
}

func (s *Service) deleteAvatar(ctx context.Context, log *slog.Logger, publicID string) {
	if publicID == "" || s.files == nil {
		return
	}
	if err := s.files.Delete(ctx, publicID); err != nil {
		log.Error("failed to delete avatar", slog.String("public_id", publicID), sl.Err(err))
	}
}

// dummy возвращает хэш, по которому проверяется пароль для неизвестного email,
// чтобы время ответа не выдавало существование учётной записи.
func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("lms-identity-dummy-password")
	})
	return s.dummyHash
}
