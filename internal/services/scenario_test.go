package services_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/travel-compliance/internal/lib/jwt"
	"github.com/magabrotheeeer/travel-compliance/internal/models"
	"github.com/magabrotheeeer/travel-compliance/internal/paymentprovider"
	authservice "github.com/magabrotheeeer/travel-compliance/internal/services/auth"
	subservice "github.com/magabrotheeeer/travel-compliance/internal/services/subscription"
	webhookservice "github.com/magabrotheeeer/travel-compliance/internal/services/webhook"
)

// memoryStore — хранилище в памяти, реализующее контракты всех трёх сервисов.
// Повторяет поведение PostgreSQL-репозитория: уникальный email, не более
// одной активной подписки на пользователя, дедупликация платежей по external_ref.
type memoryStore struct {
	users    map[string]*models.User
	sessions map[string]*models.Session
	subs     map[int64]*models.Subscription
	payments []*models.Payment
	nextUser int
	nextSub  int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:    make(map[string]*models.User),
		sessions: make(map[string]*models.Session),
		subs:     make(map[int64]*models.Subscription),
	}
}

func (m *memoryStore) CreateUser(_ context.Context, user models.User) (string, error) {
	for _, u := range m.users {
		if u.Email == user.Email {
			return "", models.ErrDuplicateEmail
		}
	}
	m.nextUser++
	uid := fmt.Sprintf("uid-%d", m.nextUser)
	user.UID = uid
	m.users[uid] = &user
	return uid, nil
}

func (m *memoryStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memoryStore) GetUser(_ context.Context, uid string) (*models.User, error) {
	u, ok := m.users[uid]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *memoryStore) GetUserByBillingCustomerRef(_ context.Context, ref string) (*models.User, error) {
	for _, u := range m.users {
		if u.BillingCustomerRef != nil && *u.BillingCustomerRef == ref {
			copied := *u
			return &copied, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memoryStore) UpdateLastLogin(_ context.Context, uid string) error {
	if u, ok := m.users[uid]; ok {
		now := time.Now().UTC()
		u.LastLoginAt = &now
	}
	return nil
}

func (m *memoryStore) SetBillingCustomerRef(_ context.Context, uid, ref string) error {
	u, ok := m.users[uid]
	if !ok {
		return models.ErrNotFound
	}
	u.BillingCustomerRef = &ref
	return nil
}

func (m *memoryStore) SetUserSubscriptionActive(_ context.Context, uid string, active bool) error {
	u, ok := m.users[uid]
	if !ok {
		return models.ErrNotFound
	}
	u.SubscriptionActive = active
	return nil
}

func (m *memoryStore) CreateSession(_ context.Context, session models.Session) (int64, error) {
	session.ID = int64(len(m.sessions) + 1)
	m.sessions[session.Token] = &session
	return session.ID, nil
}

func (m *memoryStore) GetSessionByToken(_ context.Context, token string) (*models.Session, error) {
	s, ok := m.sessions[token]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (m *memoryStore) ExpireSession(_ context.Context, token string) error {
	s, ok := m.sessions[token]
	if !ok {
		return models.ErrNotFound
	}
	s.ExpiresAt = time.Now().UTC()
	return nil
}

func (m *memoryStore) CreateSubscription(_ context.Context, sub models.Subscription) (int64, error) {
	if sub.Status == models.SubscriptionActive {
		for _, existing := range m.subs {
			if existing.UserUID == sub.UserUID && existing.Status == models.SubscriptionActive {
				return 0, models.ErrSubscriptionExists
			}
		}
	}
	m.nextSub++
	sub.ID = m.nextSub
	m.subs[sub.ID] = &sub
	return sub.ID, nil
}

func (m *memoryStore) GetActiveSubscriptionByUser(_ context.Context, uid string) (*models.Subscription, error) {
	for _, sub := range m.subs {
		if sub.UserUID == uid && sub.Status == models.SubscriptionActive {
			copied := *sub
			return &copied, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memoryStore) GetSubscriptionByExternalRef(_ context.Context, ref string) (*models.Subscription, error) {
	for _, sub := range m.subs {
		if sub.ExternalRef != nil && *sub.ExternalRef == ref {
			copied := *sub
			return &copied, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memoryStore) ActivatePendingSubscription(_ context.Context, uid, externalRef string) error {
	for _, sub := range m.subs {
		if sub.UserUID == uid && sub.Status == models.SubscriptionPending {
			sub.Status = models.SubscriptionActive
			if sub.ExternalRef == nil {
				sub.ExternalRef = &externalRef
			}
			return nil
		}
	}
	return models.ErrNotFound
}

func (m *memoryStore) UpdateSubscriptionStatusByExternalRef(_ context.Context, ref, status string,
	endedAt *time.Time) (string, error) {
	for _, sub := range m.subs {
		if sub.ExternalRef != nil && *sub.ExternalRef == ref {
			sub.Status = status
			if endedAt != nil {
				sub.EndedAt = endedAt
			}
			return sub.UserUID, nil
		}
	}
	return "", models.ErrNotFound
}

func (m *memoryStore) InsertPaymentOnce(_ context.Context, payment models.Payment) (bool, error) {
	if payment.ExternalRef != nil {
		for _, p := range m.payments {
			if p.ExternalRef != nil && *p.ExternalRef == *payment.ExternalRef {
				return false, nil
			}
		}
	}
	payment.ID = int64(len(m.payments) + 1)
	payment.CreatedAt = time.Now().UTC()
	m.payments = append(m.payments, &payment)
	return true, nil
}

func (m *memoryStore) ListPaymentsByUser(_ context.Context, uid string) ([]*models.Payment, error) {
	var result []*models.Payment
	for i := len(m.payments) - 1; i >= 0; i-- {
		if m.payments[i].UserUID == uid {
			result = append(result, m.payments[i])
		}
	}
	return result, nil
}

// noopCache никогда не находит значение: каждый запрос идет в хранилище.
type noopCache struct{}

func (noopCache) Get(string, any) (bool, error)        { return false, nil }
func (noopCache) Set(string, any, time.Duration) error { return nil }
func (noopCache) Invalidate(string) error              { return nil }

type recordingPublisher struct {
	messages []models.NotificationMessage
}

func (p *recordingPublisher) Publish(_ string, message any) error {
	if msg, ok := message.(models.NotificationMessage); ok {
		p.messages = append(p.messages, msg)
	}
	return nil
}

type stubGateway struct{}

func (stubGateway) CreateCustomer(_ context.Context,
	req paymentprovider.CreateCustomerRequest) (*paymentprovider.Customer, error) {
	return &paymentprovider.Customer{
		ID:           "CUST1",
		GivenName:    req.GivenName,
		FamilyName:   req.FamilyName,
		EmailAddress: req.EmailAddress,
		ReferenceID:  req.ReferenceID,
	}, nil
}

func (stubGateway) CreateSubscription(_ context.Context,
	req paymentprovider.CreateSubscriptionRequest) (*paymentprovider.Subscription, error) {
	return &paymentprovider.Subscription{
		ID:         "SUB1",
		CustomerID: req.CustomerID,
		PlanID:     req.PlanID,
		Status:     "ACTIVE",
		Price:      req.PriceOverride,
	}, nil
}

func paymentMadeEvent(eventID, paymentID string) *models.GatewayEvent {
	invoice := &models.GatewayInvoice{
		ID:             "INVOICE1",
		SubscriptionID: "SUB1",
		CustomerID:     "CUST1",
		PaymentID:      paymentID,
		Status:         "PAID",
	}
	invoice.Amount.Amount = 299
	invoice.Amount.Currency = "GBP"
	return &models.GatewayEvent{
		Type:    models.EventPaymentMade,
		EventID: eventID,
		Data: models.GatewayEventData{Object: models.GatewayEventObject{
			Invoice: invoice,
		}},
	}
}

// Полный путь пользователя: регистрация, вход, оформление подписки,
// платежи и отмена через события шлюза.
func TestUserJourney(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := newMemoryStore()
	publisher := &recordingPublisher{}

	subscriptionService := subservice.NewSubscriptionService(store, stubGateway{}, noopCache{}, logger)
	authService := authservice.NewAuthService(store, subscriptionService,
		jwt.NewJWTMaker("journey-secret", 168*time.Hour), 168*time.Hour, logger)
	webhookService := webhookservice.NewWebhookService(store, noopCache{}, publisher, logger)

	meta := models.SessionMeta{UserAgent: "go-test", IP: "127.0.0.1"}

	// Регистрация: email нормализуется, выдается JWT и сессия
	registered, err := authService.Register(ctx, "Traveler@Example.COM", "supersecret",
		"Ada", "Lovelace", meta)
	require.NoError(t, err)
	assert.Equal(t, "traveler@example.com", registered.User.Email)
	assert.NotEmpty(t, registered.Token)
	assert.Len(t, registered.SessionToken, 64)

	// Повторная регистрация в другом регистре — конфликт
	_, err = authService.Register(ctx, "TRAVELER@example.com", "supersecret",
		"Ada", "Lovelace", meta)
	assert.ErrorIs(t, err, models.ErrDuplicateEmail)

	// Неверный пароль и неизвестный email неразличимы
	_, errWrongPassword := authService.Login(ctx, "traveler@example.com", "wrongpass", meta)
	_, errUnknownEmail := authService.Login(ctx, "stranger@example.com", "supersecret", meta)
	assert.ErrorIs(t, errWrongPassword, models.ErrInvalidCredentials)
	assert.ErrorIs(t, errUnknownEmail, models.ErrInvalidCredentials)
	assert.Equal(t, errWrongPassword.Error(), errUnknownEmail.Error())

	// Успешный вход открывает новую сессию, старая остается валидной
	loggedIn, err := authService.Login(ctx, "traveler@example.com", "supersecret", meta)
	require.NoError(t, err)
	assert.NotEqual(t, registered.SessionToken, loggedIn.SessionToken)
	assert.Nil(t, loggedIn.Subscription)

	// Оформление подписки: цена из локального каталога
	created, err := subscriptionService.Create(ctx, "traveler@example.com", "Ada", "Lovelace",
		"pro-monthly", "card-token")
	require.NoError(t, err)
	assert.Equal(t, "ACTIVE", created.Subscription.Status)
	assert.Equal(t, 299, created.Subscription.Price)
	assert.Equal(t, "GBP", created.Subscription.Currency)

	// Verify читает флаг подписки из хранилища, а не из токена
	verified, err := authService.Verify(ctx, registered.Token)
	require.NoError(t, err)
	assert.True(t, verified.SubscriptionActive)

	// Вторая подписка при живой активной — конфликт вне зависимости от плана
	_, err = subscriptionService.Create(ctx, "traveler@example.com", "Ada", "Lovelace",
		"business-annual", "card-token")
	assert.ErrorIs(t, err, models.ErrSubscriptionExists)

	// Повтор события оплаты оставляет ровно одну запись в журнале
	require.NoError(t, webhookService.Process(ctx, paymentMadeEvent("evt-1", "PAY1")))
	require.NoError(t, webhookService.Process(ctx, paymentMadeEvent("evt-2", "PAY1")))

	payments, err := subscriptionService.ListPayments(ctx, verified.UID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, models.PaymentSuccess, payments[0].Status)
	assert.Equal(t, 299, payments[0].Amount)

	// Отмена со стороны шлюза гасит подписку и флаг пользователя
	cancelEvent := &models.GatewayEvent{
		Type:    models.EventSubscriptionUpdated,
		EventID: "evt-3",
		Data: models.GatewayEventData{Object: models.GatewayEventObject{
			Subscription: &models.GatewaySubscription{
				ID:         "SUB1",
				CustomerID: "CUST1",
				PlanID:     "pro-monthly",
				Status:     "CANCELED",
			},
		}},
	}
	require.NoError(t, webhookService.Process(ctx, cancelEvent))

	_, err = subscriptionService.CurrentForUser(ctx, verified.UID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	verified, err = authService.Verify(ctx, registered.Token)
	require.NoError(t, err)
	assert.False(t, verified.SubscriptionActive)

	require.Len(t, publisher.messages, 1)
	assert.Equal(t, models.NotifySubscriptionCanceled, publisher.messages[0].Kind)
	assert.Equal(t, "traveler@example.com", publisher.messages[0].Email)
	assert.Equal(t, "Pro Monthly", publisher.messages[0].PlanName)

	// Logout закрывает сессию, повторный logout по тому же токену отклоняется
	require.NoError(t, authService.Logout(ctx, loggedIn.SessionToken))
	assert.ErrorIs(t, authService.Logout(ctx, loggedIn.SessionToken), models.ErrInvalidToken)
}
