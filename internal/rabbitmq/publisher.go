package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"
)

// Ключи маршрутизации доменных событий.
const (
	RoutingUserRegistered        = "user.registered"
	RoutingSubscriptionActivated = "subscription.activated"
	RoutingSubscriptionCancelled = "subscription.cancelled"
)

// Event тело доменного события.
type Event struct {
	UserUID        string    `json:"user_id"`
	Email          string    `json:"email,omitempty"`
	SubscriptionID string    `json:"subscription_id,omitempty"`
	PaymentID      string    `json:"payment_id,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Publisher публикует события в обменник. amqp.Channel не потокобезопасен,
// поэтому публикации сериализуются мьютексом.
type Publisher struct {
	mu       sync.Mutex
	ch       *amqp.Channel
	exchange string
}

// NewPublisher создаёт Publisher поверх уже настроенного канала.
func NewPublisher(ch *amqp.Channel, exchange string) *Publisher {
	return &Publisher{ch: ch, exchange: exchange}
}

// Publish сериализует message в JSON и публикует его с ключом routingKey.
func (p *Publisher) Publish(ctx context.Context, routingKey string, message any) error {
	const op = "rabbitmq.Publish"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.Publish(
		p.exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// NopPublisher отбрасывает события. Используется, когда брокер не настроен.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }
