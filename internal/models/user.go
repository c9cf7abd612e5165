// Package models содержит доменную модель пользователя платформы (principal):
// учётные данные, роль, состояние подписки и поля сброса пароля.
// Структура используется в бизнес‑логике и при работе с хранилищем.
package models

import (
	"strings"
	"time"
)

// Role роль пользователя.
type Role string

const (
	// RoleUser роль по умолчанию.
	RoleUser Role = "USER"
	// RoleAdmin администратор, не подпадает под проверку подписки.
	RoleAdmin Role = "ADMIN"
)

// Valid сообщает, является ли роль одной из известных.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// SubscriptionStatus статус платной подписки пользователя.
type SubscriptionStatus string

const (
	SubscriptionNone      SubscriptionStatus = "none"
	SubscriptionCreated   SubscriptionStatus = "created"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// ParseSubscriptionStatus приводит статус платёжного провайдера к доменному.
// Неизвестные статусы сохраняются как есть и не дают доступа к платному контенту.
func ParseSubscriptionStatus(s string) SubscriptionStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return ""
	case "none":
		return SubscriptionNone
	case "created":
		return SubscriptionCreated
	case "active":
		return SubscriptionActive
	case "cancelled", "canceled":
		return SubscriptionCancelled
	default:
		return SubscriptionStatus(strings.ToLower(strings.TrimSpace(s)))
	}
}

// Subscription ссылка на подписку у платёжного провайдера и её статус.
// Пустые поля означают отсутствие подписки.
type Subscription struct {
	ID     string             `json:"id,omitempty"`
	Status SubscriptionStatus `json:"status,omitempty"`
}

// Avatar ссылка на объект во внешнем хранилище файлов.
type Avatar struct {
	PublicID  string `json:"public_id,omitempty"`
	SecureURL string `json:"secure_url,omitempty"`
}

// ResetToken хэш токена сброса пароля и срок его действия.
// Хранится только парой: либо оба поля, либо ничего.
type ResetToken struct {
	Hash      string
	ExpiresAt time.Time
}

// User представляет зарегистрированного пользователя системы.
//
// PasswordHash и ResetToken никогда не попадают в JSON-представление.
type User struct {
	UUID         string       `json:"id"`
	FullName     string       `json:"fullName"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"`
	Role         Role         `json:"role"`
	Avatar       Avatar       `json:"avatar"`
	Subscription Subscription `json:"subscription"`
	ResetToken   *ResetToken  `json:"-"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// Entitled сообщает, есть ли у пользователя доступ к платному контенту:
// администратор либо активная подписка.
func (u *User) Entitled() bool {
	return u.Role == RoleAdmin || u.Subscription.Status == SubscriptionActive
}

// NormalizeEmail обрезает пробелы и приводит адрес к нижнему регистру.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
