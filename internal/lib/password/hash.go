// Package password реализует одностороннее хэширование паролей и их проверку.
//
// Используется bcrypt с фиксированной стоимостью не ниже DefaultCost; сравнение
// выполняется внутри bcrypt за постоянное время.
package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost минимальная стоимость bcrypt, используемая для новых хэшей.
const DefaultCost = 10

// Hasher хэширует и проверяет пароли.
type Hasher struct {
	cost int
}

// NewHasher создаёт Hasher. Стоимость ниже DefaultCost поднимается до DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < DefaultCost {
		cost = DefaultCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{cost: cost}
}

// Hash принимает пароль пользователя и возвращает его bcrypt‑хэш.
func (h *Hasher) Hash(plain string) (string, error) {
	const op = "password.Hash"
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashed), nil
}

// Verify сообщает, соответствует ли пароль хэшу.
func (h *Hasher) Verify(plain, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
