package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/travel-compliance/internal/models"
)

// CreateSubscription сохраняет новую подписку и возвращает её ID.
// Частичный уникальный индекс по (user_uid) WHERE status = 'active'
// не допускает второй активной подписки; нарушение переводится
// в models.ErrSubscriptionExists.
func (s *Storage) CreateSubscription(ctx context.Context, sub models.Subscription) (int64, error) {
	const op = "storage.CreateSubscription"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var externalRef sql.NullString
	if sub.ExternalRef != nil {
		externalRef = sql.NullString{String: *sub.ExternalRef, Valid: true}
	}

	var newID int64
	query := `INSERT INTO subscriptions (user_uid, external_ref, plan_id, status, price_amount,
			      currency, billing_frequency, started_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  RETURNING id;`
	if err := s.DB.QueryRowContext(ctx, query,
		sub.UserUID, externalRef, sub.PlanID, sub.Status, sub.PriceAmount,
		sub.Currency, sub.BillingFrequency, sub.StartedAt).Scan(&newID); err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%s: %w", op, models.ErrSubscriptionExists)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetActiveSubscriptionByUser возвращает активную подписку пользователя.
func (s *Storage) GetActiveSubscriptionByUser(ctx context.Context, userUID string) (*models.Subscription, error) {
	const op = "storage.GetActiveSubscriptionByUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, external_ref, plan_id, status, price_amount,
			      currency, billing_frequency, started_at, ended_at, created_at, updated_at
			  FROM subscriptions
			  WHERE user_uid = $1 AND status = 'active'`
	return s.scanSubscriptionRow(s.DB.QueryRowContext(ctx, query, userUID), op)
}

// GetSubscriptionByExternalRef возвращает подписку по её идентификатору
// в платёжном шлюзе.
func (s *Storage) GetSubscriptionByExternalRef(ctx context.Context, ref string) (*models.Subscription, error) {
	const op = "storage.GetSubscriptionByExternalRef"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, external_ref, plan_id, status, price_amount,
			      currency, billing_frequency, started_at, ended_at, created_at, updated_at
			  FROM subscriptions
			  WHERE external_ref = $1`
	return s.scanSubscriptionRow(s.DB.QueryRowContext(ctx, query, ref), op)
}

func (s *Storage) scanSubscriptionRow(row *sql.Row, op string) (*models.Subscription, error) {
	sub := &models.Subscription{}
	var externalRef sql.NullString
	var endedAt sql.NullTime
	if err := row.Scan(&sub.ID, &sub.UserUID, &externalRef, &sub.PlanID, &sub.Status,
		&sub.PriceAmount, &sub.Currency, &sub.BillingFrequency, &sub.StartedAt,
		&endedAt, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if externalRef.Valid {
		sub.ExternalRef = &externalRef.String
	}
	if endedAt.Valid {
		sub.EndedAt = &endedAt.Time
	}
	return sub, nil
}

// UpdateSubscriptionStatusByExternalRef обновляет статус подписки по её
// идентификатору в шлюзе и возвращает UID владельца. endedAt
// устанавливается только при передаче ненулевого значения.
func (s *Storage) UpdateSubscriptionStatusByExternalRef(ctx context.Context, ref, status string, endedAt *time.Time) (string, error) {
	const op = "storage.UpdateSubscriptionStatusByExternalRef"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var endedAtVal sql.NullTime
	if endedAt != nil {
		endedAtVal = sql.NullTime{Time: *endedAt, Valid: true}
	}

	var userUID string
	query := `UPDATE subscriptions
			  SET status = $1,
			      ended_at = COALESCE($2, ended_at),
			      updated_at = NOW()
			  WHERE external_ref = $3
			  RETURNING user_uid;`
	if err := s.DB.QueryRowContext(ctx, query, status, endedAtVal, ref).Scan(&userUID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%s: %w", op, models.ErrNotFound)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return userUID, nil
}

// ActivatePendingSubscription переводит ожидающую подписку пользователя
// в статус active и привязывает идентификатор подписки в шлюзе.
// Возвращает models.ErrNotFound, если ожидающей подписки нет.
func (s *Storage) ActivatePendingSubscription(ctx context.Context, userUID, externalRef string) error {
	const op = "storage.ActivatePendingSubscription"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET status = 'active',
			      external_ref = COALESCE(external_ref, $1),
			      updated_at = NOW()
			  WHERE user_uid = $2 AND status = 'pending'`
	res, err := s.DB.ExecContext(ctx, query, externalRef, userUID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", op, models.ErrSubscriptionExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return nil
}
