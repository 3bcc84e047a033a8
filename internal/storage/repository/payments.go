package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/magabrotheeeer/travel-compliance/internal/models"
)

// InsertPaymentOnce добавляет запись в журнал платежей, если записи
// с таким external_ref ещё нет. Возвращает false, если вставка была
// пропущена из-за дубликата: именно так обеспечивается идемпотентность
// повторно доставленных вебхуков.
func (s *Storage) InsertPaymentOnce(ctx context.Context, payment models.Payment) (bool, error) {
	const op = "storage.InsertPaymentOnce"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var externalRef, failureReason sql.NullString
	if payment.ExternalRef != nil {
		externalRef = sql.NullString{String: *payment.ExternalRef, Valid: true}
	}
	if payment.FailureReason != nil {
		failureReason = sql.NullString{String: *payment.FailureReason, Valid: true}
	}

	query := `INSERT INTO payments (user_uid, subscription_id, amount, currency, status,
			      external_ref, failure_reason)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  ON CONFLICT (external_ref) DO NOTHING;`
	res, err := s.DB.ExecContext(ctx, query,
		payment.UserUID, payment.SubscriptionID, payment.Amount, payment.Currency,
		payment.Status, externalRef, failureReason)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// ListPaymentsByUser возвращает журнал платежей пользователя,
// от новых к старым.
func (s *Storage) ListPaymentsByUser(ctx context.Context, userUID string) ([]*models.Payment, error) {
	const op = "storage.ListPaymentsByUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, subscription_id, amount, currency, status,
			      external_ref, failure_reason, created_at
			  FROM payments
			  WHERE user_uid = $1
			  ORDER BY created_at DESC`
	rows, err := s.DB.QueryContext(ctx, query, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Payment
	for rows.Next() {
		var p models.Payment
		var externalRef, failureReason sql.NullString
		if err = rows.Scan(&p.ID, &p.UserUID, &p.SubscriptionID, &p.Amount, &p.Currency,
			&p.Status, &externalRef, &failureReason, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		if externalRef.Valid {
			p.ExternalRef = &externalRef.String
		}
		if failureReason.Valid {
			p.FailureReason = &failureReason.String
		}
		result = append(result, &p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
