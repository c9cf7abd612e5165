// Package guard решает, может ли аутентифицированный пользователь выполнить запрос.
//
// Authenticator проверяет токен сессии и строит Principal. Политики (Policy)
// проверяют роль и подписку. RequireEntitlement всегда перечитывает пользователя
// из хранилища: подписка в токене могла устареть.
package guard

import (
	"context"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/lms-identity/internal/apperr"
	"github.com/magabrotheeeer/lms-identity/internal/lib/jwt"
	"github.com/magabrotheeeer/lms-identity/internal/models"
)

// Principal пользователь, чей токен прошёл проверку.
type Principal struct {
	UserUID      string
	Email        string
	Role         models.Role
	Subscription models.Subscription
}

type TokenParser interface {
	ParseToken(token string) (*jwt.Claims, error)
}

type Authenticator struct {
	tokens TokenParser
}

func NewAuthenticator(tokens TokenParser) *Authenticator {
	return &Authenticator{tokens: tokens}
}

// Authenticate проверяет подпись и срок действия токена.
func (a *Authenticator) Authenticate(token string) (*Principal, error) {
	const op = "guard.Authenticate"
	if token == "" {
		return nil, fmt.Errorf("%s: missing token: %w", op, apperr.ErrUnauthenticated)
	}
	claims, err := a.tokens.ParseToken(token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, apperr.ErrUnauthenticated, err)
	}
	return &Principal{
		UserUID:      claims.UserUID,
		Email:        claims.Email,
		Role:         claims.Role,
		Subscription: claims.Subscription,
	}, nil
}

// Policy одно правило доступа. Отсутствие Principal означает ErrUnauthenticated.
type Policy interface {
	Authorize(ctx context.Context, p *Principal) error
}

// RoleSet множество допустимых ролей.
type RoleSet map[models.Role]struct{}

func NewRoleSet(roles ...models.Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

func (s RoleSet) Contains(r models.Role) bool {
	_, ok := s[r]
	return ok
}

type RolePolicy struct {
	allowed RoleSet
}

// RequireRole пропускает только пользователей с ролью из allowed.
func RequireRole(allowed RoleSet) *RolePolicy {
	return &RolePolicy{allowed: allowed}
}

func (p *RolePolicy) Authorize(_ context.Context, principal *Principal) error {
	const op = "guard.RequireRole"
	if principal == nil {
		return fmt.Errorf("%s: %w", op, apperr.ErrUnauthenticated)
	}
	if !p.allowed.Contains(principal.Role) {
		return fmt.Errorf("%s: role %q: %w", op, principal.Role, apperr.ErrForbidden)
	}
	return nil
}

type UserReader interface {
	GetUser(ctx context.Context, userUID string, withPassword bool) (*models.User, error)
}

type EntitlementPolicy struct {
	users UserReader
}

// RequireEntitlement пропускает администратора или пользователя с активной подпиской
// по текущему состоянию хранилища.
func RequireEntitlement(users UserReader) *EntitlementPolicy {
	return &EntitlementPolicy{users: users}
}

func (p *EntitlementPolicy) Authorize(ctx context.Context, principal *Principal) error {
	const op = "guard.RequireEntitlement"
	if principal == nil {
		return fmt.Errorf("%s: %w", op, apperr.ErrUnauthenticated)
	}
	user, err := p.users.GetUser(ctx, principal.UserUID, false)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return fmt.Errorf("%s: account no longer exists: %w", op, apperr.ErrUnauthenticated)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if !user.Entitled() {
		return fmt.Errorf("%s: status %q: %w", op, user.Subscription.Status, apperr.ErrSubscriptionRequired)
	}
	return nil
}

// All требует выполнения всех политик по порядку.
type All []Policy

func (a All) Authorize(ctx context.Context, p *Principal) error {
	for _, policy := range a {
		if err := policy.Authorize(ctx, p); err != nil {
			return err
		}
	}
	return nil
}
