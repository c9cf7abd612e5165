package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/magabrotheeeer/lms-identity/internal/apperr"
	"github.com/magabrotheeeer/lms-identity/internal/models"
)

// Claims данные пользователя, которые хранятся в токене.
//
// Subscription является снимком на момент выпуска и не должен использоваться
// для проверки доступа к платному контенту.
type Claims struct {
	UserUID      string              `json:"id"`
	Email        string              `json:"email"`
	Role         models.Role         `json:"role"`
	Subscription models.Subscription `json:"subscription"`
	jwt.RegisteredClaims
}

// GenerateToken создает JWT токен для пользователя, подписывая его секретным ключом (HS256).
func (j *MakerImpl) GenerateToken(user *models.User) (string, time.Time, error) {
	const op = "jwt.GenerateToken"
	if user == nil || user.UUID == "" {
		return "", time.Time{}, fmt.Errorf("%s: empty user", op)
	}
	if len(j.secretKey) == 0 {
		return "", time.Time{}, fmt.Errorf("%s: empty secret key", op)
	}

	issuedAt := j.now()
	expiresAt := issuedAt.Add(j.tokenTTL)
	claims := Claims{
		UserUID:      user.UUID,
		Email:        user.Email,
		Role:         user.Role,
		Subscription: user.Subscription,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.UUID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// ParseToken парсит JWT токен, проверяет подпись и срок действия.
//
// Любая ошибка возвращается обёрнутой в apperr.ErrInvalidOrExpired.
func (j *MakerImpl) ParseToken(tokenStr string) (*Claims, error) {
	const op = "jwt.ParseToken"
	if tokenStr == "" {
		return nil, fmt.Errorf("%s: %w: empty token", op, apperr.ErrInvalidOrExpired)
	}

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(_ *jwt.Token) (any, error) {
		return j.secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%s: %w: token expired", op, apperr.ErrInvalidOrExpired)
		}
		return nil, fmt.Errorf("%s: %w: %v", op, apperr.ErrInvalidOrExpired, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserUID == "" {
		return nil, fmt.Errorf("%s: %w: invalid claims", op, apperr.ErrInvalidOrExpired)
	}
	return claims, nil
}
