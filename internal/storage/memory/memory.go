// Package memory хранилище учётных записей и платежей в памяти процесса.
// Используется в тестах и при storage_connection_string: memory.
// Семантика методов совпадает с repository.Storage.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/lms-identity/internal/apperr"
	"github.com/magabrotheeeer/lms-identity/internal/models"
)

type Storage struct {
	mu       sync.Mutex
	users    map[string]*models.User
	byEmail  map[string]string
	payments []*models.PaymentRecord
	now      func() time.Time
}

func New() *Storage {
	return &Storage{
		users:   make(map[string]*models.User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func clone(u *models.User, withPassword bool) *models.User {
	c := *u
	if u.ResetToken != nil {
		rt := *u.ResetToken
		c.ResetToken = &rt
	}
	if !withPassword {
		c.PasswordHash = ""
	}
	return &c
}

func (s *Storage) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	const op = "memory.CreateUser"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.NormalizeEmail(user.Email)
	if _, ok := s.byEmail[key]; ok {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrDuplicateEmail)
	}
	if user.UUID == "" {
		user.UUID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	now := s.now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	user.ResetToken = nil

	stored := user
	s.users[user.UUID] = &stored
	s.byEmail[key] = user.UUID
	return clone(&stored, false), nil
}

func (s *Storage) GetUserByEmail(_ context.Context, email string, withPassword bool) (*models.User, error) {
	const op = "memory.GetUserByEmail"
	s.mu.Lock()
	defer s.mu.Unlock()

	uid, ok := s.byEmail[models.NormalizeEmail(email)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	return clone(s.users[uid], withPassword), nil
}

func (s *Storage) GetUser(_ context.Context, userUID string, withPassword bool) (*models.User, error) {
	const op = "memory.GetUser"
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userUID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	return clone(u, withPassword), nil
}

// update применяет fn к записи под блокировкой.
func (s *Storage) update(op, userUID string, fn func(u *models.User) error) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userUID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	next := clone(u, true)
	if err := fn(next); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	next.UpdatedAt = s.now().UTC()
	s.users[userUID] = next
	return clone(next, false), nil
}

func (s *Storage) UpdatePassword(_ context.Context, userUID, passwordHash string) error {
	_, err := s.update("memory.UpdatePassword", userUID, func(u *models.User) error {
		u.PasswordHash = passwordHash
		return nil
	})
	return err
}

func (s *Storage) UpdateProfile(_ context.Context, userUID, fullName string, avatar *models.Avatar) (*models.User, error) {
	return s.update("memory.UpdateProfile", userUID, func(u *models.User) error {
		u.FullName = fullName
		if avatar != nil {
			u.Avatar = *avatar
		}
		return nil
	})
}

func (s *Storage) SetSubscription(_ context.Context, userUID string, sub models.Subscription) error {
	_, err := s.update("memory.SetSubscription", userUID, func(u *models.User) error {
		u.Subscription = sub
		return nil
	})
	return err
}

func (s *Storage) SetResetToken(_ context.Context, userUID string, token models.ResetToken) error {
	_, err := s.update("memory.SetResetToken", userUID, func(u *models.User) error {
		u.ResetToken = &token
		return nil
	})
	return err
}

func (s *Storage) ClearResetToken(_ context.Context, userUID, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[userUID]; ok && u.ResetToken != nil && u.ResetToken.Hash == tokenHash {
		next := clone(u, true)
		next.ResetToken = nil
		next.UpdatedAt = s.now().UTC()
		s.users[userUID] = next
	}
	return nil
}

func (s *Storage) PurgeExpiredResetTokens(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for uid, u := range s.users {
		if u.ResetToken == nil || now.Before(u.ResetToken.ExpiresAt) {
			continue
		}
		next := clone(u, true)
		next.ResetToken = nil
		next.UpdatedAt = s.now().UTC()
		s.users[uid] = next
		n++
	}
	return n, nil
}

func (s *Storage) GetUserByResetToken(_ context.Context, tokenHash string, now time.Time) (*models.User, error) {
	const op = "memory.GetUserByResetToken"
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if liveToken(u, tokenHash, now) {
			return clone(u, false), nil
		}
	}
	return nil, fmt.Errorf("%s: %w", op, apperr.ErrInvalidOrExpired)
}

func (s *Storage) ConsumeResetToken(_ context.Context, userUID, tokenHash, passwordHash string, now time.Time) error {
	const op = "memory.ConsumeResetToken"
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userUID]
	if !ok || !liveToken(u, tokenHash, now) {
		return fmt.Errorf("%s: %w", op, apperr.ErrInvalidOrExpired)
	}
	next := clone(u, true)
	next.PasswordHash = passwordHash
	next.ResetToken = nil
	next.UpdatedAt = s.now().UTC()
	s.users[userUID] = next
	return nil
}

func liveToken(u *models.User, tokenHash string, now time.Time) bool {
	return tokenHash != "" && u.ResetToken != nil &&
		u.ResetToken.Hash == tokenHash && now.Before(u.ResetToken.ExpiresAt)
}

func (s *Storage) SavePaymentAndActivate(_ context.Context, rec models.PaymentRecord) (*models.PaymentRecord, error) {
	const op = "memory.SavePaymentAndActivate"
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.payments {
		if p.PaymentID == rec.PaymentID {
			return nil, fmt.Errorf("%s: %w", op, apperr.Validation("payment already verified"))
		}
	}
	u, ok := s.users[rec.UserUID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	if u.Subscription.ID != rec.SubscriptionID {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrSignatureInvalid)
	}

	saved := rec
	saved.ID = len(s.payments) + 1
	saved.CreatedAt = s.now().UTC()
	s.payments = append(s.payments, &saved)

	next := clone(u, true)
	next.Subscription.Status = models.SubscriptionActive
	next.UpdatedAt = saved.CreatedAt
	s.users[rec.UserUID] = next

	out := saved
	return &out, nil
}

func (s *Storage) ListPayments(_ context.Context, userUID string) ([]*models.PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*models.PaymentRecord
	for _, p := range s.payments {
		if p.UserUID == userUID {
			c := *p
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}
