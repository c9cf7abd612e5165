package models

import (
	"io"
	"time"
)

// PaymentRecord запись о подтверждённом платеже.
// Существование записи означает, что подпись была проверена при её создании.
type PaymentRecord struct {
	ID             int       `json:"id"`
	UserUID        string    `json:"userId"`
	PaymentID      string    `json:"paymentId"`
	SubscriptionID string    `json:"subscriptionId"`
	Signature      string    `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Upload файл, полученный от клиента для загрузки во внешнее хранилище.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}
