package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/lms-identity/internal/apperr"
	"github.com/magabrotheeeer/lms-identity/internal/models"
)

const userColumns = `uid, full_name, email, password_hash, role,
	avatar_public_id, avatar_secure_url, subscription_id, subscription_status,
	reset_token_hash, reset_token_expiry, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner, withPassword bool) (*models.User, error) {
	u := &models.User{}
	var resetHash sql.NullString
	var resetExpiry sql.NullTime
	if err := row.Scan(&u.UUID, &u.FullName, &u.Email, &u.PasswordHash, &u.Role,
		&u.Avatar.PublicID, &u.Avatar.SecureURL, &u.Subscription.ID, &u.Subscription.Status,
		&resetHash, &resetExpiry, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if resetHash.Valid && resetExpiry.Valid {
		u.ResetToken = &models.ResetToken{Hash: resetHash.String, ExpiresAt: resetExpiry.Time}
	}
	if !withPassword {
		u.PasswordHash = ""
	}
	return u, nil
}

func notFound(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// CreateUser сохраняет нового пользователя и возвращает сохранённую запись без хэша пароля.
// Email должен быть уже нормализован. Совпадение email без учёта регистра даёт ErrDuplicateEmail.
func (s *Storage) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	const op = "storage.CreateUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if user.UUID == "" {
		user.UUID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	query := `INSERT INTO users (uid, full_name, email, password_hash, role,
			      avatar_public_id, avatar_secure_url, subscription_id, subscription_status)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			  RETURNING ` + userColumns
	row := s.DB.QueryRowContext(ctx, query,
		user.UUID, user.FullName, user.Email, user.PasswordHash, user.Role,
		user.Avatar.PublicID, user.Avatar.SecureURL, user.Subscription.ID, user.Subscription.Status)
	created, err := scanUser(row, false)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%s: %w", op, apperr.ErrDuplicateEmail)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return created, nil
}

// GetUserByEmail возвращает пользователя по email без учёта регистра.
// Хэш пароля заполняется только при withPassword.
func (s *Storage) GetUserByEmail(ctx context.Context, email string, withPassword bool) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, email), withPassword)
	if err != nil {
		return nil, notFound(op, err)
	}
	return u, nil
}

// GetUser возвращает пользователя по его UID.
func (s *Storage) GetUser(ctx context.Context, userUID string, withPassword bool) (*models.User, error) {
	const op = "storage.GetUser"
	if _, err := uuid.Parse(userUID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE uid = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, userUID), withPassword)
	if err != nil {
		return nil, notFound(op, err)
	}
	return u, nil
}

func (s *Storage) execOne(ctx context.Context, op string, missing error, query string, args ...any) error {
	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, missing)
	}
	return nil
}

// UpdatePassword заменяет хэш пароля.
func (s *Storage) UpdatePassword(ctx context.Context, userUID, passwordHash string) error {
	const op = "storage.UpdatePassword"
	return s.execOne(ctx, op, apperr.ErrNotFound,
		`UPDATE users SET password_hash = $1, updated_at = NOW() WHERE uid = $2`,
		passwordHash, userUID)
}

// UpdateProfile меняет имя и, если avatar не nil, аватар. Возвращает обновлённую запись.
func (s *Storage) UpdateProfile(ctx context.Context, userUID, fullName string, avatar *models.Avatar) (*models.User, error) {
	const op = "storage.UpdateProfile"
	var publicID, secureURL sql.NullString
	if avatar != nil {
		publicID = sql.NullString{String: avatar.PublicID, Valid: true}
		secureURL = sql.NullString{String: avatar.SecureURL, Valid: true}
	}
	query := `UPDATE users
			  SET full_name = $1,
			      avatar_public_id = COALESCE($2, avatar_public_id),
			      avatar_secure_url = COALESCE($3, avatar_secure_url),
			      updated_at = NOW()
			  WHERE uid = $4
			  RETURNING ` + userColumns
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, fullName, publicID, secureURL, userUID), false)
	if err != nil {
		return nil, notFound(op, err)
	}
	return u, nil
}

// SetSubscription сохраняет ссылку на подписку провайдера и её статус.
func (s *Storage) SetSubscription(ctx context.Context, userUID string, sub models.Subscription) error {
	const op = "storage.SetSubscription"
	return s.execOne(ctx, op, apperr.ErrNotFound,
		`UPDATE users SET subscription_id = $1, subscription_status = $2, updated_at = NOW() WHERE uid = $3`,
		sub.ID, sub.Status, userUID)
}

// SetResetToken записывает хэш и срок действия токена сброса одним выражением,
// заменяя предыдущий ожидающий токен.
func (s *Storage) SetResetToken(ctx context.Context, userUID string, token models.ResetToken) error {
	const op = "storage.SetResetToken"
	return s.execOne(ctx, op, apperr.ErrNotFound,
		`UPDATE users SET reset_token_hash = $1, reset_token_expiry = $2, updated_at = NOW() WHERE uid = $3`,
		token.Hash, token.ExpiresAt, userUID)
}

// ClearResetToken очищает поля сброса, только если сохранён именно этот хэш.
// Более новый токен, записанный параллельным запросом, не затрагивается.
func (s *Storage) ClearResetToken(ctx context.Context, userUID, tokenHash string) error {
	const op = "storage.ClearResetToken"
	_, err := s.DB.ExecContext(ctx,
		`UPDATE users SET reset_token_hash = NULL, reset_token_expiry = NULL, updated_at = NOW()
		 WHERE uid = $1 AND reset_token_hash = $2`,
		userUID, tokenHash)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// PurgeExpiredResetTokens очищает поля сброса у всех просроченных токенов.
func (s *Storage) PurgeExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.PurgeExpiredResetTokens"
	res, err := s.DB.ExecContext(ctx,
		`UPDATE users SET reset_token_hash = NULL, reset_token_expiry = NULL, updated_at = NOW()
		 WHERE reset_token_expiry IS NOT NULL AND reset_token_expiry <= $1`,
		now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// GetUserByResetToken ищет пользователя с совпадающим и ещё не истёкшим токеном сброса.
// Отсутствующий, чужой и просроченный токены неразличимы: все дают ErrInvalidOrExpired.
func (s *Storage) GetUserByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	const op = "storage.GetUserByResetToken"
	query := `SELECT ` + userColumns + ` FROM users
			  WHERE reset_token_hash = $1 AND reset_token_expiry > $2`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, tokenHash, now), false)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, apperr.ErrInvalidOrExpired)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// ConsumeResetToken атомарно устанавливает новый хэш пароля и очищает поля сброса,
// если токен всё ещё сохранён и не истёк. Повторный вызов с тем же токеном даёт ErrInvalidOrExpired.
func (s *Storage) ConsumeResetToken(ctx context.Context, userUID, tokenHash, passwordHash string, now time.Time) error {
	const op = "storage.ConsumeResetToken"
	return s.execOne(ctx, op, apperr.ErrInvalidOrExpired,
		`UPDATE users
		 SET password_hash = $1, reset_token_hash = NULL, reset_token_expiry = NULL, updated_at = NOW()
		 WHERE uid = $2 AND reset_token_hash = $3 AND reset_token_expiry > $4`,
		passwordHash, userUID, tokenHash, now)
}
