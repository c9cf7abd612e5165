package payment_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/lms-identity/internal/apperr"
	"github.com/magabrotheeeer/lms-identity/internal/cache"
	"github.com/magabrotheeeer/lms-identity/internal/config"
	"github.com/magabrotheeeer/lms-identity/internal/lib/signature"
	"github.com/magabrotheeeer/lms-identity/internal/models"
	"github.com/magabrotheeeer/lms-identity/internal/paymentprovider"
	"github.com/magabrotheeeer/lms-identity/internal/rabbitmq"
	"github.com/magabrotheeeer/lms-identity/internal/services/payment"
	"github.com/magabrotheeeer/lms-identity/internal/storage/memory"
)

const secret = "razorpay_secret"

type ProviderMock struct {
	mock.Mock
}

func (m *ProviderMock) KeyID() string {
	return m.Called().String(0)
}

func (m *ProviderMock) CreateSubscription(ctx context.Context, req paymentprovider.CreateSubscriptionRequest) (*paymentprovider.Subscription, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.Subscription), args.Error(1)
}

func (m *ProviderMock) CancelSubscription(ctx context.Context, subscriptionID string) (*paymentprovider.Subscription, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.Subscription), args.Error(1)
}

func (m *ProviderMock) ListSubscriptions(ctx context.Context, count, skip int) (*paymentprovider.SubscriptionList, error) {
	args := m.Called(ctx, count, skip)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.SubscriptionList), args.Error(1)
}

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, message any) error {
	args := m.Called(ctx, routingKey, message)
	return args.Error(0)
}

type fixture struct {
	svc      *payment.PaymentService
	store    *memory.Storage
	provider *ProviderMock
	events   *PublisherMock
	verifier *signature.Verifier
}

func newFixture(t *testing.T, c payment.Cache) fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := fixture{
		store:    memory.New(),
		provider: new(ProviderMock),
		events:   new(PublisherMock),
		verifier: signature.NewVerifier(secret),
	}
	cfg := config.Payment{KeyID: "rzp_test_key", PlanID: "plan_1", TotalCount: 12}
	f.svc = payment.New(log, f.store, f.provider, f.verifier, c, f.events, cfg)
	return f
}

func (f fixture) createUser(t *testing.T, role models.Role, sub models.Subscription) *models.User {
	t.Helper()
	u, err := f.store.CreateUser(context.Background(), models.User{
		FullName:     "Alice Smith",
		Email:        string(role) + "@x.com",
		PasswordHash: "hash",
		Role:         role,
		Subscription: sub,
	})
	require.NoError(t, err)
	return u
}

func TestPaymentService_APIKey(t *testing.T) {
	f := newFixture(t, nil)
	f.provider.On("KeyID").Return("rzp_test_key")

	assert.Equal(t, "rzp_test_key", f.svc.APIKey())
}

func TestPaymentService_Subscribe(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	user := f.createUser(t, models.RoleUser, models.Subscription{})

	f.provider.On("CreateSubscription", mock.Anything, paymentprovider.CreateSubscriptionRequest{
		PlanID: "plan_1", TotalCount: 12, CustomerNotify: 1,
	}).Return(&paymentprovider.Subscription{ID: "sub_1", Status: "created"}, nil).Once()

	sub, err := f.svc.Subscribe(ctx, user.UUID)
	require.NoError(t, err)
	assert.Equal(t, models.Subscription{ID: "sub_1", Status: models.SubscriptionCreated}, sub)

	stored, err := f.store.GetUser(ctx, user.UUID, false)
	require.NoError(t, err)
	assert.Equal(t, sub, stored.Subscription)
	assert.False(t, stored.Entitled())
	f.provider.AssertExpectations(t)
}

func TestPaymentService_Subscribe_Denied(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	admin := f.createUser(t, models.RoleAdmin, models.Subscription{})
	_, err := f.svc.Subscribe(ctx, admin.UUID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	active := f.createUser(t, models.RoleUser, models.Subscription{ID: "sub_9", Status: models.SubscriptionActive})
	_, err = f.svc.Subscribe(ctx, active.UUID)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	f.provider.AssertNotCalled(t, "CreateSubscription", mock.Anything, mock.Anything)
}

func TestPaymentService_Subscribe_ProviderError(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	user := f.createUser(t, models.RoleUser, models.Subscription{})

	f.provider.On("CreateSubscription", mock.Anything, mock.Anything).
		Return(nil, apperr.Upstream("paymentprovider.CreateSubscription", errors.New("503"))).Once()

	_, err := f.svc.Subscribe(ctx, user.UUID)
	assert.ErrorIs(t, err, apperr.ErrUpstream)

	stored, err := f.store.GetUser(ctx, user.UUID, false)
	require.NoError(t, err)
	assert.Empty(t, stored.Subscription.ID)
}

func TestPaymentService_Verify(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	user := f.createUser(t, models.RoleUser, models.Subscription{ID: "sub_1", Status: models.SubscriptionCreated})

	f.events.On("Publish", mock.Anything, rabbitmq.RoutingSubscriptionActivated, mock.MatchedBy(func(e rabbitmq.Event) bool {
		return e.UserUID == user.UUID && e.PaymentID == "pay_1" && e.SubscriptionID == "sub_1"
	})).Return(nil).Once()

	rec, err := f.svc.Verify(ctx, user.UUID, payment.VerifyInput{
		PaymentID:      "pay_1",
		SubscriptionID: "sub_1",
		Signature:      f.verifier.Sign("pay_1", "sub_1"),
	})
	require.NoError(t, err)
	assert.Equal(t, "pay_1", rec.PaymentID)
	assert.Equal(t, user.UUID, rec.UserUID)

	stored, err := f.store.GetUser(ctx, user.UUID, false)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionActive, stored.Subscription.Status)
	assert.True(t, stored.Entitled())

	history, err := f.svc.History(ctx, user.UUID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "pay_1", history[0].PaymentID)
	f.events.AssertExpectations(t)
}

func TestPaymentService_Verify_RejectsWithoutMutation(t *testing.T) {
	tests := []struct {
		name    string
		in      func(v *signature.Verifier) payment.VerifyInput
		wantErr error
	}{
		{
			name: "forged signature",
			in: func(*signature.Verifier) payment.VerifyInput {
				return payment.VerifyInput{PaymentID: "pay_1", SubscriptionID: "sub_1", Signature: "deadbeef"}
			},
			wantErr: apperr.ErrSignatureInvalid,
		},
		{
			name: "signed with another secret",
			in: func(*signature.Verifier) payment.VerifyInput {
				other := signature.NewVerifier("other_secret")
				return payment.VerifyInput{PaymentID: "pay_1", SubscriptionID: "sub_1", Signature: other.Sign("pay_1", "sub_1")}
			},
			wantErr: apperr.ErrSignatureInvalid,
		},
		{
			name: "foreign subscription",
			in: func(v *signature.Verifier) payment.VerifyInput {
				return payment.VerifyInput{PaymentID: "pay_1", SubscriptionID: "sub_other", Signature: v.Sign("pay_1", "sub_other")}
			},
			wantErr: apperr.ErrSignatureInvalid,
		},
		{
			name: "missing signature",
			in: func(*signature.Verifier) payment.VerifyInput {
				return payment.VerifyInput{PaymentID: "pay_1", SubscriptionID: "sub_1"}
			},
			wantErr: apperr.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			ctx := context.Background()
			user := f.createUser(t, models.RoleUser, models.Subscription{ID: "sub_1", Status: models.SubscriptionCreated})

			_, err := f.svc.Verify(ctx, user.UUID, tt.in(f.verifier))
			assert.ErrorIs(t, err, tt.wantErr)

			stored, err := f.store.GetUser(ctx, user.UUID, false)
			require.NoError(t, err)
			assert.Equal(t, models.SubscriptionCreated, stored.Subscription.Status)

			history, err := f.svc.History(ctx, user.UUID)
			require.NoError(t, err)
			assert.Empty(t, history)
			f.events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestPaymentService_Verify_NoSubscription(t *testing.T) {
	f := newFixture(t, nil)
	user := f.createUser(t, models.RoleUser, models.Subscription{})

	_, err := f.svc.Verify(context.Background(), user.UUID, payment.VerifyInput{
		PaymentID: "pay_1", SubscriptionID: "sub_1", Signature: f.verifier.Sign("pay_1", "sub_1"),
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestPaymentService_Verify_ReplayRejected(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	user := f.createUser(t, models.RoleUser, models.Subscription{ID: "sub_1", Status: models.SubscriptionCreated})
	f.events.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	in := payment.VerifyInput{PaymentID: "pay_1", SubscriptionID: "sub_1", Signature: f.verifier.Sign("pay_1", "sub_1")}
	_, err := f.svc.Verify(ctx, user.UUID, in)
	require.NoError(t, err, "publish failure must not fail verification")

	_, err = f.svc.Verify(ctx, user.UUID, in)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	history, err := f.svc.History(ctx, user.UUID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestPaymentService_Cancel(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	user := f.createUser(t, models.RoleUser, models.Subscription{ID: "sub_1", Status: models.SubscriptionActive})

	f.provider.On("CancelSubscription", mock.Anything, "sub_1").
		Return(&paymentprovider.Subscription{ID: "sub_1", Status: "cancelled"}, nil).Once()
	f.events.On("Publish", mock.Anything, rabbitmq.RoutingSubscriptionCancelled, mock.Anything).Return(nil).Once()

	sub, err := f.svc.Cancel(ctx, user.UUID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionCancelled, sub.Status)

	stored, err := f.store.GetUser(ctx, user.UUID, false)
	require.NoError(t, err)
	assert.False(t, stored.Entitled())
	f.provider.AssertExpectations(t)
	f.events.AssertExpectations(t)
}

func TestPaymentService_Cancel_Denied(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	admin := f.createUser(t, models.RoleAdmin, models.Subscription{})
	_, err := f.svc.Cancel(ctx, admin.UUID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	none := f.createUser(t, models.RoleUser, models.Subscription{})
	_, err = f.svc.Cancel(ctx, none.UUID)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.Cancel(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	f.provider.AssertNotCalled(t, "CancelSubscription", mock.Anything, mock.Anything)
}

func unix(year int, month time.Month, day int) int64 {
	return time.Date(year, month, day, 12, 0, 0, 0, time.UTC).Unix()
}

func TestAggregate(t *testing.T) {
	list := &paymentprovider.SubscriptionList{
		Entity: "collection",
		Count:  4,
		Items: []paymentprovider.Subscription{
			{ID: "sub_1", StartAt: unix(2024, time.January, 3)},
			{ID: "sub_2", StartAt: unix(2025, time.January, 30)},
			{ID: "sub_3", StartAt: unix(2024, time.March, 1)},
			{ID: "sub_4"},
		},
	}

	stats := payment.Aggregate(list)
	assert.Equal(t, []int{2, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0}, stats.MonthlySalesRecord)
	assert.Len(t, stats.FinalMonths, 12)
	assert.Equal(t, 2, stats.FinalMonths["January"])
	assert.Equal(t, 1, stats.FinalMonths["March"])
	assert.Equal(t, 0, stats.FinalMonths["December"])
	assert.Same(t, list, stats.AllPayments)

	empty := payment.Aggregate(nil)
	assert.NotNil(t, empty.AllPayments.Items)
	assert.Equal(t, make([]int, 12), empty.MonthlySalesRecord)
}

func TestPaymentService_Stats_Cached(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c, err := cache.InitServer(context.Background(), config.RedisConnection{AddressRedis: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	f := newFixture(t, c)
	ctx := context.Background()
	f.provider.On("ListSubscriptions", mock.Anything, 10, 0).Return(&paymentprovider.SubscriptionList{
		Entity: "collection",
		Count:  1,
		Items:  []paymentprovider.Subscription{{ID: "sub_1", StartAt: unix(2024, time.May, 5)}},
	}, nil).Twice()

	first, err := f.svc.Stats(ctx, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, 1, first.FinalMonths["May"])

	second, err := f.svc.Stats(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, first.MonthlySalesRecord, second.MonthlySalesRecord)
	f.provider.AssertNumberOfCalls(t, "ListSubscriptions", 1)

	mr.FastForward(2 * time.Minute)
	_, err = f.svc.Stats(ctx, 10, 0)
	require.NoError(t, err)
	f.provider.AssertNumberOfCalls(t, "ListSubscriptions", 2)
}

func TestPaymentService_Stats_ProviderError(t *testing.T) {
	f := newFixture(t, nil)
	f.provider.On("ListSubscriptions", mock.Anything, 100, 5).
		Return(nil, apperr.Upstream("paymentprovider.ListSubscriptions", errors.New("timeout")))

	_, err := f.svc.Stats(context.Background(), 500, 5)
	assert.ErrorIs(t, err, apperr.ErrUpstream)
}
