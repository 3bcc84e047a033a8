package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/travel-compliance/internal/models"
)

func TestStorage_CreateUser(t *testing.T) {
	tests := []struct {
		name    string
		user    models.User
		wantErr error
		setup   func(t *testing.T, factory *TestDataFactory)
	}{
		{
			name:    "successful create user",
			user:    GetTestUserData(),
			wantErr: nil,
			setup:   func(_ *testing.T, _ *TestDataFactory) {},
		},
		{
			name:    "duplicate email returns conflict",
			user:    GetTestUserData(),
			wantErr: models.ErrDuplicateEmail,
			setup: func(t *testing.T, factory *TestDataFactory) {
				factory.CreateUser(t, "test@example.com", "Existing", "User", "hashedpassword")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage, cleanup := setupTestDatabase(t)
			defer cleanup()

			factory := NewTestDataFactory(storage)
			tt.setup(t, factory)

			gotUID, err := storage.CreateUser(context.Background(), tt.user)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				require.NotEmpty(t, gotUID)

				verification := NewTestVerification(storage)
				verification.VerifyUserExists(t, gotUID)
			}
		})
	}
}

func TestStorage_GetUserByEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr error
		setup   func(t *testing.T, factory *TestDataFactory) string
	}{
		{
			name:    "successful get user by email",
			email:   "test@example.com",
			wantErr: nil,
			setup: func(t *testing.T, factory *TestDataFactory) string {
				return factory.CreateUser(t, "test@example.com", "Test", "User", "hashedpassword")
			},
		},
		{
			name:    "get non-existing user by email",
			email:   "missing@example.com",
			wantErr: models.ErrNotFound,
			setup:   func(_ *testing.T, _ *TestDataFactory) string { return "" },
		},
		{
			name:    "passwordless user has empty hash",
			email:   "guest@example.com",
			wantErr: nil,
			setup: func(t *testing.T, factory *TestDataFactory) string {
				return factory.CreateUser(t, "guest@example.com", "Guest", "User", "")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage, cleanup := setupTestDatabase(t)
			defer cleanup()

			factory := NewTestDataFactory(storage)
			wantUID := tt.setup(t, factory)

			got, err := storage.GetUserByEmail(context.Background(), tt.email)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				require.NotNil(t, got)
				assert.Equal(t, wantUID, got.UID)
				assert.Equal(t, tt.email, got.Email)
			}
		})
	}
}

func TestStorage_GetUserByBillingCustomerRef(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	userUID := factory.CreateUser(t, "test@example.com", "Test", "User", "hashedpassword")

	err := storage.SetBillingCustomerRef(context.Background(), userUID, "CUST123")
	require.NoError(t, err)

	got, err := storage.GetUserByBillingCustomerRef(context.Background(), "CUST123")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, userUID, got.UID)
	require.NotNil(t, got.BillingCustomerRef)
	assert.Equal(t, "CUST123", *got.BillingCustomerRef)

	_, err = storage.GetUserByBillingCustomerRef(context.Background(), "UNKNOWN")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestStorage_SetUserSubscriptionActive(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	userUID := factory.CreateUser(t, "test@example.com", "Test", "User", "hashedpassword")

	err := storage.SetUserSubscriptionActive(context.Background(), userUID, true)
	require.NoError(t, err)

	verification := NewTestVerification(storage)
	verification.VerifyUserSubscriptionActive(t, userUID, true)

	err = storage.SetUserSubscriptionActive(context.Background(), userUID, false)
	require.NoError(t, err)
	verification.VerifyUserSubscriptionActive(t, userUID, false)
}

func TestStorage_Sessions(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	userUID := factory.CreateUser(t, "test@example.com", "Test", "User", "hashedpassword")

	expiresAt := time.Now().Add(24 * time.Hour).UTC()
	gotID, err := storage.CreateSession(context.Background(), models.Session{
		Token:     "sessiontoken123",
		UserUID:   userUID,
		ExpiresAt: expiresAt,
		UserAgent: "go-test",
		IP:        "127.0.0.1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), gotID)

	got, err := storage.GetSessionByToken(context.Background(), "sessiontoken123")
	require.NoError(t, err)
	assert.Equal(t, userUID, got.UserUID)
	assert.Equal(t, "go-test", got.UserAgent)
	assert.False(t, got.Expired(time.Now()))

	err = storage.ExpireSession(context.Background(), "sessiontoken123")
	require.NoError(t, err)

	got, err = storage.GetSessionByToken(context.Background(), "sessiontoken123")
	require.NoError(t, err)
	assert.True(t, got.Expired(time.Now().Add(time.Second)))

	err = storage.ExpireSession(context.Background(), "unknowntoken")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestStorage_CreateSubscription(t *testing.T) {
	startedAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		wantErr error
		setup   func(t *testing.T, factory *TestDataFactory, userUID string)
	}{
		{
			name:    "successful create subscription",
			wantErr: nil,
			setup:   func(_ *testing.T, _ *TestDataFactory, _ string) {},
		},
		{
			name:    "second active subscription is rejected",
			wantErr: models.ErrSubscriptionExists,
			setup: func(t *testing.T, factory *TestDataFactory, userUID string) {
				factory.CreateSubscription(t, userUID, "SUB0", "pro-monthly", "active",
					299, "GBP", "MONTHLY", startedAt)
			},
		},
		{
			name:    "canceled subscription does not block a new one",
			wantErr: nil,
			setup: func(t *testing.T, factory *TestDataFactory, userUID string) {
				factory.CreateSubscription(t, userUID, "SUB0", "pro-monthly", "canceled",
					299, "GBP", "MONTHLY", startedAt)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage, cleanup := setupTestDatabase(t)
			defer cleanup()

			factory := NewTestDataFactory(storage)
			userUID := factory.CreateUser(t, "test@example.com", "Test", "User", "hashedpassword")
			tt.setup(t, factory, userUID)

			externalRef := "SUB1"
			gotID, err := storage.CreateSubscription(context.Background(), models.Subscription{
				UserUID:          userUID,
				ExternalRef:      &externalRef,
				PlanID:           "pro-monthly",
				Status:           models.SubscriptionActive,
				PriceAmount:      299,
				Currency:         "GBP",
				BillingFrequency: "MONTHLY",
				StartedAt:        startedAt,
			})

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				require.NotZero(t, gotID)

				got, err := storage.GetActiveSubscriptionByUser(context.Background(), userUID)
				require.NoError(t, err)
				assert.Equal(t, "pro-monthly", got.PlanID)
				assert.Equal(t, 299, got.PriceAmount)
			}
		})
	}
}

func TestStorage_GetActiveSubscriptionByUser(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	userUID := factory.CreateUser(t, "test@example.com", "Test", "User", "hashedpassword")

	_, err := storage.GetActiveSubscriptionByUser(context.Background(), userUID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	factory.CreateSubscription(t, userUID, "SUB1", "business-annual", "active",
		9999, "GBP", "ANNUAL", time.Now().UTC())

	got, err := storage.GetActiveSubscriptionByUser(context.Background(), userUID)
	require.NoError(t, err)
	assert.Equal(t, "business-annual", got.PlanID)
	assert.Equal(t, models.SubscriptionActive, got.Status)
	require.NotNil(t, got.ExternalRef)
	assert.Equal(t, "SUB1", *got.ExternalRef)
}

func TestStorage_ActivatePendingSubscription(t *testing.T) {
	startedAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		wantErr error
		setup   func(t *testing.T, factory *TestDataFactory, userUID string) int64
	}{
		{
			name:    "pending subscription becomes active",
			wantErr: nil,
			setup: func(t *testing.T, factory *TestDataFactory, userUID string) int64 {
				return factory.CreateSubscription(t, userUID, "", "pro-monthly", "pending",
					299, "GBP", "MONTHLY", startedAt)
			},
		},
		{
			name:    "no pending subscription is a no-op",
			wantErr: models.ErrNotFound,
			setup: func(t *testing.T, factory *TestDataFactory, userUID string) int64 {
				return factory.CreateSubscription(t, userUID, "SUB1", "pro-monthly", "active",
					299, "GBP", "MONTHLY", startedAt)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage, cleanup := setupTestDatabase(t)
			defer cleanup()

			factory := NewTestDataFactory(storage)
			userUID := factory.CreateUser(t, "test@example.com", "Test", "User", "hashedpassword")
			subscriptionID := tt.setup(t, factory, userUID)

			err := storage.ActivatePendingSubscription(context.Background(), userUID, "SUB1")

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)

				verification := NewTestVerification(storage)
				verification.VerifySubscriptionStatus(t, subscriptionID, "active")

				got, err := storage.GetSubscriptionByExternalRef(context.Background(), "SUB1")
				require.NoError(t, err)
				assert.Equal(t, subscriptionID, got.ID)
			}
		})
	}
}

func TestStorage_UpdateSubscriptionStatusByExternalRef(t *testing.T) {
	startedAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	endedAt := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		externalRef string
		status      string
		endedAt     *time.Time
		wantErr     error
	}{
		{
			name:        "cancel sets ended_at and returns owner",
			externalRef: "SUB1",
			status:      models.SubscriptionCanceled,
			endedAt:     &endedAt,
			wantErr:     nil,
		},
		{
			name:        "pause keeps ended_at empty",
			externalRef: "SUB1",
			status:      models.SubscriptionPaused,
			endedAt:     nil,
			wantErr:     nil,
		},
		{
			name:        "unknown external ref",
			externalRef: "UNKNOWN",
			status:      models.SubscriptionCanceled,
			endedAt:     nil,
			wantErr:     models.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage, cleanup := setupTestDatabase(t)
			defer cleanup()

			factory := NewTestDataFactory(storage)
			userUID := factory.CreateUser(t, "test@example.com", "Test", "User", "hashedpassword")
			factory.CreateSubscription(t, userUID, "SUB1", "pro-monthly", "active",
				299, "GBP", "MONTHLY", startedAt)

			gotUID, err := storage.UpdateSubscriptionStatusByExternalRef(
				context.Background(), tt.externalRef, tt.status, tt.endedAt)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, userUID, gotUID)

			got, err := storage.GetSubscriptionByExternalRef(context.Background(), tt.externalRef)
			require.NoError(t, err)
			assert.Equal(t, tt.status, got.Status)
			if tt.endedAt != nil {
				require.NotNil(t, got.EndedAt)
				assert.True(t, tt.endedAt.Equal(*got.EndedAt))
			} else {
				assert.Nil(t, got.EndedAt)
			}
		})
	}
}

func TestStorage_InsertPaymentOnce(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	userUID := factory.CreateUser(t, "test@example.com", "Test", "User", "hashedpassword")
	subscriptionID := factory.CreateSubscription(t, userUID, "SUB1", "pro-monthly", "active",
		299, "GBP", "MONTHLY", time.Now().UTC())

	externalRef := "INV1"
	payment := models.Payment{
		UserUID:        userUID,
		SubscriptionID: subscriptionID,
		Amount:         299,
		Currency:       "GBP",
		Status:         models.PaymentSuccess,
		ExternalRef:    &externalRef,
	}

	inserted, err := storage.InsertPaymentOnce(context.Background(), payment)
	require.NoError(t, err)
	assert.True(t, inserted)

	// Повторная доставка того же вебхука не порождает вторую запись
	inserted, err = storage.InsertPaymentOnce(context.Background(), payment)
	require.NoError(t, err)
	assert.False(t, inserted)

	verification := NewTestVerification(storage)
	verification.VerifyPaymentCount(t, userUID, 1)

	// Записи без external_ref вставляются всегда
	reason := "card declined"
	failed := models.Payment{
		UserUID:        userUID,
		SubscriptionID: subscriptionID,
		Amount:         299,
		Currency:       "GBP",
		Status:         models.PaymentFailed,
		FailureReason:  &reason,
	}
	inserted, err = storage.InsertPaymentOnce(context.Background(), failed)
	require.NoError(t, err)
	assert.True(t, inserted)
	verification.VerifyPaymentCount(t, userUID, 2)
}

func TestStorage_ListPaymentsByUser(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	userUID := factory.CreateUser(t, "test@example.com", "Test", "User", "hashedpassword")
	otherUID := factory.CreateUser(t, "other@example.com", "Other", "User", "hashedpassword")
	subscriptionID := factory.CreateSubscription(t, userUID, "SUB1", "pro-monthly", "active",
		299, "GBP", "MONTHLY", time.Now().UTC())
	otherSubID := factory.CreateSubscription(t, otherUID, "SUB2", "pro-monthly", "active",
		299, "GBP", "MONTHLY", time.Now().UTC())

	factory.CreatePayment(t, userUID, subscriptionID, 299, "GBP", "success", "INV1")
	factory.CreatePayment(t, userUID, subscriptionID, 299, "GBP", "failed", "INV2")
	factory.CreatePayment(t, otherUID, otherSubID, 299, "GBP", "success", "INV3")

	got, err := storage.ListPaymentsByUser(context.Background(), userUID)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	for _, p := range got {
		assert.Equal(t, userUID, p.UserUID)
	}

	got, err = storage.ListPaymentsByUser(context.Background(), otherUID)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	require.NotNil(t, got[0].ExternalRef)
	assert.Equal(t, "INV3", *got[0].ExternalRef)
}
