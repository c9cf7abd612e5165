// Package payment управляет платной подпиской пользователя: создание и отмена
// подписки у провайдера, проверка подписи платежа и статистика для администратора.
package payment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/lms-identity/internal/apperr"
	"github.com/magabrotheeeer/lms-identity/internal/config"
	"github.com/magabrotheeeer/lms-identity/internal/lib/sl"
	"github.com/magabrotheeeer/lms-identity/internal/metrics"
	"github.com/magabrotheeeer/lms-identity/internal/models"
	"github.com/magabrotheeeer/lms-identity/internal/paymentprovider"
	"github.com/magabrotheeeer/lms-identity/internal/rabbitmq"
)

const (
	defaultStatsCount = 10
	maxStatsCount     = 100
	statsCacheTTL     = time.Minute
)

type Repository interface {
	GetUser(ctx context.Context, userUID string, withPassword bool) (*models.User, error)
	SetSubscription(ctx context.Context, userUID string, sub models.Subscription) error
	SavePaymentAndActivate(ctx context.Context, rec models.PaymentRecord) (*models.PaymentRecord, error)
	ListPayments(ctx context.Context, userUID string) ([]*models.PaymentRecord, error)
}

type Provider interface {
	KeyID() string
	CreateSubscription(ctx context.Context, req paymentprovider.CreateSubscriptionRequest) (*paymentprovider.Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) (*paymentprovider.Subscription, error)
	ListSubscriptions(ctx context.Context, count, skip int) (*paymentprovider.SubscriptionList, error)
}

type SignatureVerifier interface {
	Verify(paymentID, subscriptionID, claimed string) bool
}

type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// VerifyInput данные, которые checkout провайдера возвращает клиенту после оплаты.
type VerifyInput struct {
	PaymentID      string `json:"paymentId" validate:"required"`
	SubscriptionID string `json:"subscriptionId" validate:"required"`
	Signature      string `json:"signature" validate:"required"`
}

// Stats сводка подписок провайдера по месяцам начала.
type Stats struct {
	AllPayments        *paymentprovider.SubscriptionList `json:"allPayments"`
	FinalMonths        map[string]int                    `json:"finalMonths"`
	MonthlySalesRecord []int                             `json:"monthlySalesRecord"`
}

type PaymentService struct {
	log      *slog.Logger
	repo     Repository
	provider Provider
	verifier SignatureVerifier
	cache    Cache
	events   EventPublisher
	cfg      config.Payment
	validate *validator.Validate
}

// New создаёт PaymentService. cache и events могут быть nil.
func New(log *slog.Logger, repo Repository, provider Provider, verifier SignatureVerifier,
	cache Cache, events EventPublisher, cfg config.Payment) *PaymentService {
	if events == nil {
		events = rabbitmq.NopPublisher{}
	}
	return &PaymentService{
		log:      log,
		repo:     repo,
		provider: provider,
		verifier: verifier,
		cache:    cache,
		events:   events,
		cfg:      cfg,
		validate: validator.New(),
	}
}

// APIKey возвращает публичный ключ провайдера для клиентского checkout.
func (s *PaymentService) APIKey() string {
	return s.provider.KeyID()
}

// Subscribe создаёт подписку у провайдера и сохраняет её у пользователя.
func (s *PaymentService) Subscribe(ctx context.Context, userUID string) (models.Subscription, error) {
	const op = "payment.Subscribe"
	user, err := s.subscriber(ctx, op, userUID)
	if err != nil {
		return models.Subscription{}, err
	}
	if user.Subscription.Status == models.SubscriptionActive {
		return models.Subscription{}, apperr.Validation("subscription is already active")
	}
	if s.cfg.PlanID == "" {
		return models.Subscription{}, fmt.Errorf("%s: payment plan id is not configured", op)
	}

	created, err := s.provider.CreateSubscription(ctx, paymentprovider.CreateSubscriptionRequest{
		PlanID:         s.cfg.PlanID,
		TotalCount:     s.cfg.TotalCount,
		CustomerNotify: 1,
	})
	if err != nil {
		return models.Subscription{}, fmt.Errorf("%s: %w", op, err)
	}

	sub := models.Subscription{ID: created.ID, Status: models.ParseSubscriptionStatus(created.Status)}
	if err := s.repo.SetSubscription(ctx, userUID, sub); err != nil {
		return models.Subscription{}, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("subscription created", slog.String("op", op),
		slog.String("user_id", userUID), slog.String("subscription_id", sub.ID))
	return sub, nil
}

// Verify проверяет подпись платежа и только при успехе сохраняет запись о платеже
// и активирует подписку. Подпись проверяется по идентификатору подписки,
// сохранённому у пользователя, а не присланному клиентом.
func (s *PaymentService) Verify(ctx context.Context, userUID string, in VerifyInput) (rec *models.PaymentRecord, err error) {
	const op = "payment.Verify"
	defer func() {
		metrics.PaymentVerifications.WithLabelValues(metrics.Result(err)).Inc()
	}()

	if err := s.validate.Struct(in); err != nil {
		return nil, apperr.FromValidator(err)
	}

	user, err := s.repo.GetUser(ctx, userUID, false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if user.Subscription.ID == "" {
		return nil, apperr.Validation("no subscription to verify, please subscribe first")
	}
	if in.SubscriptionID != user.Subscription.ID ||
		!s.verifier.Verify(in.PaymentID, user.Subscription.ID, in.Signature) {
		s.log.Warn("payment signature mismatch", slog.String("op", op),
			slog.String("user_id", userUID), slog.String("payment_id", in.PaymentID))
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrSignatureInvalid)
	}

	rec, err = s.repo.SavePaymentAndActivate(ctx, models.PaymentRecord{
		UserUID:        userUID,
		PaymentID:      in.PaymentID,
		SubscriptionID: user.Subscription.ID,
		Signature:      in.Signature,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.publish(ctx, op, rabbitmq.RoutingSubscriptionActivated, rabbitmq.Event{
		UserUID:        userUID,
		Email:          user.Email,
		SubscriptionID: rec.SubscriptionID,
		PaymentID:      rec.PaymentID,
		OccurredAt:     rec.CreatedAt,
	})
	s.log.Info("payment verified", slog.String("op", op),
		slog.String("user_id", userUID), slog.String("payment_id", rec.PaymentID))
	return rec, nil
}

// Cancel отменяет подписку у провайдера и сохраняет возвращённый статус.
func (s *PaymentService) Cancel(ctx context.Context, userUID string) (models.Subscription, error) {
	const op = "payment.Cancel"
	user, err := s.subscriber(ctx, op, userUID)
	if err != nil {
		return models.Subscription{}, err
	}
	if user.Subscription.ID == "" {
		return models.Subscription{}, apperr.Validation("no subscription to cancel")
	}

	cancelled, err := s.provider.CancelSubscription(ctx, user.Subscription.ID)
	if err != nil {
		return models.Subscription{}, fmt.Errorf("%s: %w", op, err)
	}

	sub := models.Subscription{ID: user.Subscription.ID, Status: models.ParseSubscriptionStatus(cancelled.Status)}
	if err := s.repo.SetSubscription(ctx, userUID, sub); err != nil {
		return models.Subscription{}, fmt.Errorf("%s: %w", op, err)
	}

	s.publish(ctx, op, rabbitmq.RoutingSubscriptionCancelled, rabbitmq.Event{
		UserUID:        userUID,
		Email:          user.Email,
		SubscriptionID: sub.ID,
		OccurredAt:     time.Now().UTC(),
	})
	return sub, nil
}

// History возвращает проверенные платежи пользователя.
func (s *PaymentService) History(ctx context.Context, userUID string) ([]*models.PaymentRecord, error) {
	const op = "payment.History"
	list, err := s.repo.ListPayments(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if list == nil {
		list = []*models.PaymentRecord{}
	}
	return list, nil
}

// Stats возвращает страницу подписок провайдера и их распределение по месяцам начала.
// count по умолчанию 10, skip по умолчанию 0.
func (s *PaymentService) Stats(ctx context.Context, count, skip int) (*Stats, error) {
	const op = "payment.Stats"
	if count <= 0 {
		count = defaultStatsCount
	}
	if count > maxStatsCount {
		count = maxStatsCount
	}
	if skip < 0 {
		skip = 0
	}

	key := fmt.Sprintf("payments:stats:%d:%d", count, skip)
	if s.cache != nil {
		var cached Stats
		found, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.log.Warn("payment stats cache read failed", slog.String("op", op), sl.Err(err))
		} else if found {
			return &cached, nil
		}
	}

	list, err := s.provider.ListSubscriptions(ctx, count, skip)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	stats := Aggregate(list)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, stats, statsCacheTTL); err != nil {
			s.log.Warn("payment stats cache write failed", slog.String("op", op), sl.Err(err))
		}
	}
	return stats, nil
}

// Aggregate раскладывает подписки по календарным месяцам start_at (UTC).
// Подписки без даты начала не учитываются.
func Aggregate(list *paymentprovider.SubscriptionList) *Stats {
	if list == nil {
		list = &paymentprovider.SubscriptionList{}
	}
	if list.Items == nil {
		list.Items = []paymentprovider.Subscription{}
	}
	record := make([]int, 12)
	for _, item := range list.Items {
		if item.StartAt <= 0 {
			continue
		}
		record[time.Unix(item.StartAt, 0).UTC().Month()-1]++
	}
	months := make(map[string]int, 12)
	for m := time.January; m <= time.December; m++ {
		months[m.String()] = record[m-1]
	}
	return &Stats{
		AllPayments:        list,
		FinalMonths:        months,
		MonthlySalesRecord: record,
	}
}

// subscriber загружает пользователя и запрещает операции с подпиской администратору.
func (s *PaymentService) subscriber(ctx context.Context, op, userUID string) (*models.User, error) {
	user, err := s.repo.GetUser(ctx, userUID, false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if user.Role == models.RoleAdmin {
		return nil, fmt.Errorf("%s: admin cannot manage a subscription: %w", op, apperr.ErrForbidden)
	}
	return user, nil
}

func (s *PaymentService) publish(ctx context.Context, op, routingKey string, event rabbitmq.Event) {
	if err := s.events.Publish(ctx, routingKey, event); err != nil {
		s.log.Error("failed to publish event", slog.String("op", op),
			slog.String("routing_key", routingKey), sl.Err(err))
	}
}
