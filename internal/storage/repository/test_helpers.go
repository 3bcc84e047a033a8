package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/travel-compliance/internal/models"
)

// TestDataFactory содержит методы для создания тестовых данных
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создает новую фабрику тестовых данных
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateUser создает тестового пользователя и возвращает его UID
func (f *TestDataFactory) CreateUser(t *testing.T, email, firstName, lastName, passwordHash string) string {
	userUID := uuid.New().String()
	_, err := f.storage.DB.Exec(`INSERT INTO users (uid, email, first_name, last_name, password_hash)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))`,
		userUID, email, firstName, lastName, passwordHash)
	require.NoError(t, err)
	return userUID
}

// CreateSubscription создает тестовую подписку и возвращает её ID
func (f *TestDataFactory) CreateSubscription(t *testing.T, userUID, externalRef, planID, status string,
	priceAmount int, currency, billingFrequency string, startedAt time.Time) int64 {
	var id int64
	err := f.storage.DB.QueryRow(`INSERT INTO subscriptions
		(user_uid, external_ref, plan_id, status, price_amount, currency, billing_frequency, started_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8) RETURNING id`,
		userUID, externalRef, planID, status, priceAmount, currency, billingFrequency, startedAt).Scan(&id)
	require.NoError(t, err)
	return id
}

// CreateSession создает тестовую сессию
func (f *TestDataFactory) CreateSession(t *testing.T, token, userUID string, expiresAt time.Time) {
	_, err := f.storage.DB.Exec(`INSERT INTO sessions (token, user_uid, expires_at)
		VALUES ($1, $2, $3)`,
		token, userUID, expiresAt)
	require.NoError(t, err)
}

// CreatePayment создает запись в журнале платежей
func (f *TestDataFactory) CreatePayment(t *testing.T, userUID string, subscriptionID int64,
	amount int, currency, status, externalRef string) {
	_, err := f.storage.DB.Exec(`INSERT INTO payments
		(user_uid, subscription_id, amount, currency, status, external_ref)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))`,
		userUID, subscriptionID, amount, currency, status, externalRef)
	require.NoError(t, err)
}

// GetTestUserData возвращает стандартные тестовые данные пользователя
func GetTestUserData() models.User {
	return models.User{
		Email:        "test@example.com",
		FirstName:    "Test",
		LastName:     "User",
		PasswordHash: "hashedpassword",
	}
}

// TestVerification содержит общие функции для проверки результатов тестов
type TestVerification struct {
	storage *Storage
}

// NewTestVerification создает новый объект для проверки результатов
func NewTestVerification(storage *Storage) *TestVerification {
	return &TestVerification{storage: storage}
}

// VerifyUserExists проверяет существование пользователя в БД
func (v *TestVerification) VerifyUserExists(t *testing.T, userUID string) {
	var count int
	err := v.storage.DB.QueryRow("SELECT COUNT(*) FROM users WHERE uid = $1", userUID).Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

// VerifySubscriptionStatus проверяет статус подписки в БД
func (v *TestVerification) VerifySubscriptionStatus(t *testing.T, subscriptionID int64, expectedStatus string) {
	var status string
	err := v.storage.DB.QueryRow("SELECT status FROM subscriptions WHERE id = $1", subscriptionID).
		Scan(&status)
	require.NoError(t, err)
	require.Equal(t, expectedStatus, status)
}

// VerifyUserSubscriptionActive проверяет флаг активной подписки пользователя
func (v *TestVerification) VerifyUserSubscriptionActive(t *testing.T, userUID string, expected bool) {
	var active bool
	err := v.storage.DB.QueryRow("SELECT subscription_active FROM users WHERE uid = $1", userUID).
		Scan(&active)
	require.NoError(t, err)
	require.Equal(t, expected, active)
}

// VerifyPaymentCount проверяет число записей в журнале платежей пользователя
func (v *TestVerification) VerifyPaymentCount(t *testing.T, userUID string, expected int) {
	var count int
	err := v.storage.DB.QueryRow("SELECT COUNT(*) FROM payments WHERE user_uid = $1", userUID).Scan(&count)
	require.NoError(t, err)
	require.Equal(t, expected, count)
}

// setupTestDatabase создает тестовую БД с контейнером PostgreSQL
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(3*time.Minute)),
	)
	require.NoError(t, err, "failed to start container")

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	// Пробуем подключиться несколько раз с ретраями
	var storage *Storage
	for range 10 {
		storage, err = New(connStr)
		if err == nil {
			err = storage.DB.Ping()
			if err == nil {
				break
			}
		}
		time.Sleep(1 * time.Second)
	}
	require.NoError(t, err, "failed to create storage after retries")

	// Создаем таблицы
	_, err = storage.DB.Exec(`
        CREATE EXTENSION IF NOT EXISTS pgcrypto;

        CREATE TABLE users (
            uid UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            email TEXT NOT NULL UNIQUE,
            first_name TEXT NOT NULL,
            last_name TEXT NOT NULL,
            password_hash TEXT,
            billing_customer_ref TEXT UNIQUE,
            subscription_active BOOLEAN NOT NULL DEFAULT FALSE,
            is_verified BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            last_login_at TIMESTAMPTZ
        );

        CREATE TABLE sessions (
            id BIGSERIAL PRIMARY KEY,
            token TEXT NOT NULL UNIQUE,
            user_uid UUID NOT NULL REFERENCES users(uid),
            expires_at TIMESTAMPTZ NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            last_used_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            user_agent TEXT NOT NULL DEFAULT '',
            ip TEXT NOT NULL DEFAULT ''
        );

        CREATE TABLE subscriptions (
            id BIGSERIAL PRIMARY KEY,
            user_uid UUID NOT NULL REFERENCES users(uid),
            external_ref TEXT UNIQUE,
            plan_id TEXT NOT NULL,
            status TEXT NOT NULL CHECK (status IN ('pending', 'active', 'canceled', 'paused')),
            price_amount INTEGER NOT NULL,
            currency TEXT NOT NULL,
            billing_frequency TEXT NOT NULL,
            started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            ended_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );

        CREATE UNIQUE INDEX uniq_subscriptions_active_per_user
            ON subscriptions(user_uid) WHERE status = 'active';

        CREATE TABLE payments (
            id BIGSERIAL PRIMARY KEY,
            user_uid UUID NOT NULL REFERENCES users(uid),
            subscription_id BIGINT NOT NULL REFERENCES subscriptions(id),
            amount INTEGER NOT NULL,
            currency TEXT NOT NULL,
            status TEXT NOT NULL CHECK (status IN ('success', 'failed', 'pending', 'refunded')),
            external_ref TEXT UNIQUE,
            failure_reason TEXT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );

        CREATE INDEX idx_payments_user_uid ON payments(user_uid);
    `)
	require.NoError(t, err, "failed to create tables")

	cleanup := func() {
		if storage != nil && storage.DB != nil {
			_ = storage.DB.Close()
		}
		if postgresContainer != nil {
			_ = postgresContainer.Terminate(ctx)
		}
	}

	return storage, cleanup
}
