// Package signature проверяет подписи платёжного провайдера.
//
// Подпись вычисляется как hex(HMAC-SHA256(secret, paymentID + "|" + subscriptionID)),
// в том же порядке полей, что и подпись checkout-ответа Razorpay для подписок.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Verifier проверяет подписи с общим секретом провайдера.
type Verifier struct {
	secret []byte
}

// NewVerifier создаёт Verifier для секрета провайдера.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Sign вычисляет ожидаемую подпись для пары платёж/подписка.
func (v *Verifier) Sign(paymentID, subscriptionID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(paymentID + "|" + subscriptionID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify сравнивает заявленную подпись с ожидаемой за постоянное время.
// Пустой секрет или пустые идентификаторы никогда не проходят проверку.
func (v *Verifier) Verify(paymentID, subscriptionID, claimed string) bool {
	if len(v.secret) == 0 || paymentID == "" || subscriptionID == "" || claimed == "" {
		return false
	}
	expected := v.Sign(paymentID, subscriptionID)
	return hmac.Equal([]byte(expected), []byte(claimed))
}
