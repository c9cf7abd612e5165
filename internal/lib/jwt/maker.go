// Package jwt реализует выпуск и проверку подписанных сессионных токенов.
//
// Токены не хранятся на сервере: проверяются только подпись и срок действия.
// Отзыва до истечения срока нет, выход из системы лишь просит клиента удалить
// токен. Смена секретного ключа делает недействительными все выданные токены.
package jwt

import (
	"time"

	"github.com/magabrotheeeer/lms-identity/internal/models"
)

// Maker описывает интерфейс для генерации и парсинга JWT токенов.
type Maker interface {
	// GenerateToken выпускает токен для пользователя и возвращает момент его истечения.
	GenerateToken(user *models.User) (string, time.Time, error)
	// ParseToken проверяет подпись и срок действия и возвращает claims.
	ParseToken(tokenStr string) (*Claims, error)
}

// MakerImpl реализует интерфейс Maker с использованием секретного ключа
// и времени жизни токена (TTL).
type MakerImpl struct {
	secretKey []byte
	tokenTTL  time.Duration
	now       func() time.Time
}

// NewJWTMaker создаёт новый экземпляр MakerImpl на основе секретного ключа и TTL.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: []byte(secretKey),
		tokenTTL:  ttl,
		now:       time.Now,
	}
}

// TTL возвращает время жизни выпускаемых токенов.
func (j *MakerImpl) TTL() time.Duration {
	return j.tokenTTL
}
