package repository

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/lms-identity/internal/apperr"
	"github.com/magabrotheeeer/lms-identity/internal/migrations"
	"github.com/magabrotheeeer/lms-identity/internal/models"
)

var (
	sharedOnce    sync.Once
	sharedStorage *Storage
	sharedErr     error
)

// setupTestDatabase поднимает один контейнер PostgreSQL на пакет и очищает таблицы перед каждым тестом.
func setupTestDatabase(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres test in short mode")
	}

	sharedOnce.Do(func() {
		ctx := context.Background()
		pgContainer, err := postgres.Run(ctx,
			"postgres:15-alpine",
			postgres.WithDatabase("testdb"),
			postgres.WithUsername("testuser"),
			postgres.WithPassword("testpass"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(time.Minute),
			),
		)
		if err != nil {
			sharedErr = err
			return
		}
		dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			sharedErr = err
			return
		}
		sharedStorage, sharedErr = New(ctx, dsn)
		if sharedErr != nil {
			return
		}
		path, err := filepath.Abs("../../../migrations")
		if err != nil {
			sharedErr = err
			return
		}
		_, sharedErr = migrations.Run(sharedStorage.DB, path)
	})
	require.NoError(t, sharedErr)

	_, err := sharedStorage.DB.Exec(`TRUNCATE payments, users CASCADE`)
	require.NoError(t, err)
	return sharedStorage
}

func createTestUser(t *testing.T, s *Storage, email string) *models.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), models.User{
		FullName:     "Alice Smith",
		Email:        email,
		PasswordHash: "$2a$10$hash",
		Role:         models.RoleUser,
		Avatar:       models.Avatar{SecureURL: "https://cdn/default.png"},
	})
	require.NoError(t, err)
	return u
}

func TestStorage_CreateUser(t *testing.T) {
	s := setupTestDatabase(t)
	ctx := context.Background()

	u := createTestUser(t, s, "a@x.com")
	_, err := uuid.Parse(u.UUID)
	require.NoError(t, err)
	assert.Equal(t, "Alice Smith", u.FullName)
	assert.Equal(t, models.RoleUser, u.Role)
	assert.Empty(t, u.PasswordHash)
	assert.Nil(t, u.ResetToken)
	assert.False(t, u.CreatedAt.IsZero())

	_, err = s.CreateUser(ctx, models.User{FullName: "Other", Email: "A@X.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, apperr.ErrDuplicateEmail)
}

func TestStorage_GetUserByEmail(t *testing.T) {
	s := setupTestDatabase(t)
	ctx := context.Background()
	created := createTestUser(t, s, "a@x.com")

	tests := []struct {
		name         string
		email        string
		withPassword bool
		wantErr      error
	}{
		{name: "with password", email: "a@x.com", withPassword: true},
		{name: "without password", email: "a@x.com", withPassword: false},
		{name: "case insensitive", email: "A@X.COM", withPassword: true},
		{name: "not found", email: "b@x.com", wantErr: apperr.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := s.GetUserByEmail(ctx, tt.email, tt.withPassword)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, created.UUID, u.UUID)
			if tt.withPassword {
				assert.Equal(t, "$2a$10$hash", u.PasswordHash)
			} else {
				assert.Empty(t, u.PasswordHash)
			}
		})
	}
}

func TestStorage_GetUser_NotFound(t *testing.T) {
	s := setupTestDatabase(t)
	ctx := context.Background()

	_, err := s.GetUser(ctx, uuid.NewString(), false)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = s.GetUser(ctx, "not-a-uuid", false)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStorage_UpdateProfileAndPassword(t *testing.T) {
	s := setupTestDatabase(t)
	ctx := context.Background()
	u := createTestUser(t, s, "a@x.com")

	updated, err := s.UpdateProfile(ctx, u.UUID, "Alice Jones", nil)
	require.NoError(t, err)
	assert.Equal(t, "Alice Jones", updated.FullName)
	assert.Equal(t, "https://cdn/default.png", updated.Avatar.SecureURL)

	updated, err = s.UpdateProfile(ctx, u.UUID, "Alice Jones", &models.Avatar{PublicID: "lms/avatars/1.png", SecureURL: "https://cdn/1.png"})
	require.NoError(t, err)
	assert.Equal(t, models.Avatar{PublicID: "lms/avatars/1.png", SecureURL: "https://cdn/1.png"}, updated.Avatar)

	require.NoError(t, s.UpdatePassword(ctx, u.UUID, "$2a$10$new"))
	got, err := s.GetUser(ctx, u.UUID, true)
	require.NoError(t, err)
	assert.Equal(t, "$2a$10$new", got.PasswordHash)

	err = s.UpdatePassword(ctx, uuid.NewString(), "h")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStorage_ResetTokenLifecycle(t *testing.T) {
	s := setupTestDatabase(t)
	ctx := context.Background()
	u := createTestUser(t, s, "a@x.com")
	now := time.Now().UTC().Truncate(time.Microsecond)

	require.NoError(t, s.SetResetToken(ctx, u.UUID, models.ResetToken{Hash: "h1", ExpiresAt: now.Add(15 * time.Minute)}))

	got, err := s.GetUserByResetToken(ctx, "h1", now)
	require.NoError(t, err)
	assert.Equal(t, u.UUID, got.UUID)
	require.NotNil(t, got.ResetToken)
	assert.Equal(t, "h1", got.ResetToken.Hash)

	_, err = s.GetUserByResetToken(ctx, "h1", now.Add(16*time.Minute))
	assert.ErrorIs(t, err, apperr.ErrInvalidOrExpired)

	_, err = s.GetUserByResetToken(ctx, "other", now)
	assert.ErrorIs(t, err, apperr.ErrInvalidOrExpired)

	require.NoError(t, s.ConsumeResetToken(ctx, u.UUID, "h1", "$2a$10$reset", now))
	err = s.ConsumeResetToken(ctx, u.UUID, "h1", "$2a$10$again", now)
	assert.ErrorIs(t, err, apperr.ErrInvalidOrExpired)

	got, err = s.GetUser(ctx, u.UUID, true)
	require.NoError(t, err)
	assert.Nil(t, got.ResetToken)
	assert.Equal(t, "$2a$10$reset", got.PasswordHash)
}

func TestStorage_ClearResetToken_OnlyMatchingHash(t *testing.T) {
	s := setupTestDatabase(t)
	ctx := context.Background()
	u := createTestUser(t, s, "a@x.com")
	exp := time.Now().Add(15 * time.Minute)

	require.NoError(t, s.SetResetToken(ctx, u.UUID, models.ResetToken{Hash: "newer", ExpiresAt: exp}))
	require.NoError(t, s.ClearResetToken(ctx, u.UUID, "older"))

	got, err := s.GetUser(ctx, u.UUID, false)
	require.NoError(t, err)
	require.NotNil(t, got.ResetToken)
	assert.Equal(t, "newer", got.ResetToken.Hash)

	require.NoError(t, s.ClearResetToken(ctx, u.UUID, "newer"))
	got, err = s.GetUser(ctx, u.UUID, false)
	require.NoError(t, err)
	assert.Nil(t, got.ResetToken)
}

func TestStorage_PurgeExpiredResetTokens(t *testing.T) {
	s := setupTestDatabase(t)
	ctx := context.Background()
	now := time.Now().UTC()
	stale := createTestUser(t, s, "stale@x.com")
	live := createTestUser(t, s, "live@x.com")

	require.NoError(t, s.SetResetToken(ctx, stale.UUID, models.ResetToken{Hash: "h1", ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, s.SetResetToken(ctx, live.UUID, models.ResetToken{Hash: "h2", ExpiresAt: now.Add(time.Minute)}))

	n, err := s.PurgeExpiredResetTokens(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.GetUser(ctx, stale.UUID, false)
	require.NoError(t, err)
	assert.Nil(t, got.ResetToken)

	got, err = s.GetUser(ctx, live.UUID, false)
	require.NoError(t, err)
	require.NotNil(t, got.ResetToken)
	assert.Equal(t, "h2", got.ResetToken.Hash)
}

func TestStorage_SavePaymentAndActivate(t *testing.T) {
	s := setupTestDatabase(t)
	ctx := context.Background()
	u := createTestUser(t, s, "a@x.com")
	require.NoError(t, s.SetSubscription(ctx, u.UUID, models.Subscription{ID: "sub_1", Status: models.SubscriptionCreated}))

	rec, err := s.SavePaymentAndActivate(ctx, models.PaymentRecord{
		UserUID: u.UUID, PaymentID: "pay_1", SubscriptionID: "sub_1", Signature: "sig",
	})
	require.NoError(t, err)
	assert.NotZero(t, rec.ID)

	got, err := s.GetUser(ctx, u.UUID, false)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionActive, got.Subscription.Status)

	_, err = s.SavePaymentAndActivate(ctx, models.PaymentRecord{
		UserUID: u.UUID, PaymentID: "pay_1", SubscriptionID: "sub_1", Signature: "sig",
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	list, err := s.ListPayments(ctx, u.UUID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestStorage_SavePaymentAndActivate_SubscriptionChangedRollsBack(t *testing.T) {
	s := setupTestDatabase(t)
	ctx := context.Background()
	u := createTestUser(t, s, "a@x.com")
	require.NoError(t, s.SetSubscription(ctx, u.UUID, models.Subscription{ID: "sub_2", Status: models.SubscriptionCreated}))

	_, err := s.SavePaymentAndActivate(ctx, models.PaymentRecord{
		UserUID: u.UUID, PaymentID: "pay_1", SubscriptionID: "sub_1", Signature: "sig",
	})
	assert.ErrorIs(t, err, apperr.ErrSignatureInvalid)

	list, err := s.ListPayments(ctx, u.UUID)
	require.NoError(t, err)
	assert.Empty(t, list)

	got, err := s.GetUser(ctx, u.UUID, false)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionCreated, got.Subscription.Status)
}
