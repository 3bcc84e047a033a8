package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/travel-compliance/internal/models"
)

// CreateUser сохраняет нового пользователя и возвращает его UID.
// Нарушение уникальности email переводится в models.ErrDuplicateEmail:
// предварительная проверка в сервисе не атомарна, ограничение базы —
// единственная надежная защита от гонки.
func (s *Storage) CreateUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.CreateUser"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var passwordHash sql.NullString
	if user.PasswordHash != "" {
		passwordHash = sql.NullString{String: user.PasswordHash, Valid: true}
	}

	var newUID string
	query := `INSERT INTO users (email, first_name, last_name, password_hash)
			  VALUES ($1, $2, $3, $4)
			  RETURNING uid;`
	if err := s.DB.QueryRowContext(ctx, query,
		user.Email, user.FirstName, user.LastName, passwordHash).Scan(&newUID); err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("%s: %w", op, models.ErrDuplicateEmail)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newUID, nil
}

// GetUserByEmail возвращает пользователя по email (в нижнем регистре).
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT uid, email, first_name, last_name, password_hash, billing_customer_ref,
			      subscription_active, is_verified, created_at, updated_at, last_login_at
			  FROM users
			  WHERE email = $1`
	return s.scanUserRow(s.DB.QueryRowContext(ctx, query, email), op)
}

// GetUser возвращает пользователя по его UID.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT uid, email, first_name, last_name, password_hash, billing_customer_ref,
			      subscription_active, is_verified, created_at, updated_at, last_login_at
			  FROM users
			  WHERE uid = $1`
	return s.scanUserRow(s.DB.QueryRowContext(ctx, query, userUID), op)
}

// GetUserByBillingCustomerRef возвращает пользователя по ссылке на клиента
// в платёжном шлюзе.
func (s *Storage) GetUserByBillingCustomerRef(ctx context.Context, ref string) (*models.User, error) {
	const op = "storage.GetUserByBillingCustomerRef"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT uid, email, first_name, last_name, password_hash, billing_customer_ref,
			      subscription_active, is_verified, created_at, updated_at, last_login_at
			  FROM users
			  WHERE billing_customer_ref = $1`
	return s.scanUserRow(s.DB.QueryRowContext(ctx, query, ref), op)
}

func (s *Storage) scanUserRow(row *sql.Row, op string) (*models.User, error) {
	u := &models.User{}
	var passwordHash, billingCustomerRef sql.NullString
	var lastLoginAt sql.NullTime
	if err := row.Scan(&u.UID, &u.Email, &u.FirstName, &u.LastName, &passwordHash,
		&billingCustomerRef, &u.SubscriptionActive, &u.IsVerified,
		&u.CreatedAt, &u.UpdatedAt, &lastLoginAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if passwordHash.Valid {
		u.PasswordHash = passwordHash.String
	}
	if billingCustomerRef.Valid {
		u.BillingCustomerRef = &billingCustomerRef.String
	}
	if lastLoginAt.Valid {
		u.LastLoginAt = &lastLoginAt.Time
	}
	return u, nil
}

// UpdateLastLogin обновляет дату последнего входа пользователя.
func (s *Storage) UpdateLastLogin(ctx context.Context, userUID string) error {
	const op = "storage.UpdateLastLogin"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET last_login_at = NOW(), updated_at = NOW()
			  WHERE uid = $1`
	_, err := s.DB.ExecContext(ctx, query, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetBillingCustomerRef сохраняет ссылку на клиента платёжного шлюза.
func (s *Storage) SetBillingCustomerRef(ctx context.Context, userUID, ref string) error {
	const op = "storage.SetBillingCustomerRef"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET billing_customer_ref = $1, updated_at = NOW()
			  WHERE uid = $2`
	res, err := s.DB.ExecContext(ctx, query, ref, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return nil
}

// SetUserSubscriptionActive выставляет флаг активной подписки пользователя.
func (s *Storage) SetUserSubscriptionActive(ctx context.Context, userUID string, active bool) error {
	const op = "storage.SetUserSubscriptionActive"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET subscription_active = $1, updated_at = NOW()
			  WHERE uid = $2`
	res, err := s.DB.ExecContext(ctx, query, active, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return nil
}
