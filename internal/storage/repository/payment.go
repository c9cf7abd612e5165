package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/lms-identity/internal/apperr"
	"github.com/magabrotheeeer/lms-identity/internal/models"
)

// SavePaymentAndActivate в одной транзакции сохраняет запись о проверенном платеже
// и переводит подписку пользователя в active. Подписка обновляется, только если
// у пользователя по-прежнему сохранён rec.SubscriptionID.
func (s *Storage) SavePaymentAndActivate(ctx context.Context, rec models.PaymentRecord) (*models.PaymentRecord, error) {
	const op = "storage.SavePaymentAndActivate"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	saved := rec
	err = tx.QueryRowContext(ctx,
		`INSERT INTO payments (user_uid, payment_id, subscription_id, signature)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		rec.UserUID, rec.PaymentID, rec.SubscriptionID, rec.Signature,
	).Scan(&saved.ID, &saved.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%s: %w", op, apperr.Validation("payment already verified"))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET subscription_status = $1, updated_at = NOW()
		 WHERE uid = $2 AND subscription_id = $3`,
		models.SubscriptionActive, rec.UserUID, rec.SubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrSignatureInvalid)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &saved, nil
}

// ListPayments возвращает проверенные платежи пользователя, новые первыми.
func (s *Storage) ListPayments(ctx context.Context, userUID string) ([]*models.PaymentRecord, error) {
	const op = "storage.ListPayments"
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, user_uid, payment_id, subscription_id, signature, created_at
		 FROM payments WHERE user_uid = $1 ORDER BY created_at DESC, id DESC`, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.PaymentRecord
	for rows.Next() {
		var p models.PaymentRecord
		if err := rows.Scan(&p.ID, &p.UserUID, &p.PaymentID, &p.SubscriptionID, &p.Signature, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
