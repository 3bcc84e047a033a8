// Package services содержит бизнес-логику оформления подписок и работы с платёжным шлюзом.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/travel-compliance/internal/lib/sl"
	"github.com/magabrotheeeer/travel-compliance/internal/models"
	"github.com/magabrotheeeer/travel-compliance/internal/paymentprovider"
)

// SubscriptionRepository определяет методы для работы с подписками и платежами в хранилище.
type SubscriptionRepository interface {
	// CreateSubscription добавляет новую подписку и возвращает её ID.
	CreateSubscription(ctx context.Context, sub models.Subscription) (int64, error)
	// GetActiveSubscriptionByUser возвращает активную подписку пользователя.
	GetActiveSubscriptionByUser(ctx context.Context, userUID string) (*models.Subscription, error)
	// ListPaymentsByUser возвращает платежи пользователя, новые первыми.
	ListPaymentsByUser(ctx context.Context, userUID string) ([]*models.Payment, error)
	// CreateUser сохраняет нового пользователя и возвращает его UID.
	CreateUser(ctx context.Context, user models.User) (string, error)
	// GetUserByEmail возвращает пользователя по email.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// SetBillingCustomerRef сохраняет ID клиента платёжного шлюза на пользователе.
	SetBillingCustomerRef(ctx context.Context, userUID, ref string) error
	// SetUserSubscriptionActive переключает флаг активной подписки.
	SetUserSubscriptionActive(ctx context.Context, userUID string, active bool) error
}

// GatewayClient описывает операции платёжного шлюза, нужные для оформления подписки.
type GatewayClient interface {
	CreateCustomer(ctx context.Context, req paymentprovider.CreateCustomerRequest) (*paymentprovider.Customer, error)
	CreateSubscription(ctx context.Context, req paymentprovider.CreateSubscriptionRequest) (*paymentprovider.Subscription, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(key string, value any, expiration time.Duration) error
	// Invalidate удаляет значение из кеша по ключу.
	Invalidate(key string) error
}

// SubscriptionService реализует оформление подписок: локальное хранилище
// и платёжный шлюз, с кешированием активной подписки.
type SubscriptionService struct {
	repo    SubscriptionRepository
	gateway GatewayClient
	cache   Cache
	log     *slog.Logger
}

// CreateResult содержит данные созданной подписки, отдаваемые клиенту.
type CreateResult struct {
	User         *models.UserSummary         `json:"user"`
	Subscription *models.SubscriptionSummary `json:"subscription"`
}

// NewSubscriptionService создает новый экземпляр SubscriptionService.
func NewSubscriptionService(repo SubscriptionRepository, gateway GatewayClient,
	cache Cache, log *slog.Logger) *SubscriptionService {
	return &SubscriptionService{
		repo:    repo,
		gateway: gateway,
		cache:   cache,
		log:     log,
	}
}

// Create оформляет подписку: находит или создает пользователя, создает клиента
// и подписку в платёжном шлюзе и сохраняет локальную запись.
//
// Цена берется из локального каталога планов, а не из шлюза. Если подписка
// создана в шлюзе, но локальная запись не сохранилась, возвращаемая ошибка
// содержит ID подписки шлюза: автоматического отката нет, запись восстанавливают
// по этому ID.
func (s *SubscriptionService) Create(ctx context.Context, email, firstName, lastName,
	planID, paymentToken string) (*CreateResult, error) {
	const op = "services.subscription.Create"

	plan, ok := models.PlanByID(planID)
	if !ok {
		return nil, models.ErrUnknownPlan
	}

	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.resolveUser(ctx, email, firstName, lastName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	existing, err := s.repo.GetActiveSubscriptionByUser(ctx, user.UID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if existing != nil {
		return nil, models.ErrSubscriptionExists
	}

	customerRef, err := s.resolveCustomerRef(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	gatewaySub, err := s.gateway.CreateSubscription(ctx, paymentprovider.CreateSubscriptionRequest{
		CustomerID:   customerRef,
		PlanID:       plan.ID,
		PaymentToken: paymentToken,
		PriceOverride: paymentprovider.Money{
			Amount:   plan.PriceAmount,
			Currency: plan.Currency,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()
	sub := models.Subscription{
		UserUID:          user.UID,
		ExternalRef:      &gatewaySub.ID,
		PlanID:           plan.ID,
		Status:           models.SubscriptionActive,
		PriceAmount:      plan.PriceAmount,
		Currency:         plan.Currency,
		BillingFrequency: plan.BillingFrequency,
		StartedAt:        now,
	}
	if _, err := s.repo.CreateSubscription(ctx, sub); err != nil {
		if errors.Is(err, models.ErrSubscriptionExists) {
			return nil, models.ErrSubscriptionExists
		}
		return nil, fmt.Errorf("%s: gateway subscription %s created but not persisted: %w",
			op, gatewaySub.ID, models.ErrStorage)
	}

	if err := s.repo.SetUserSubscriptionActive(ctx, user.UID, true); err != nil {
		s.log.Warn("failed to mark user subscription active",
			slog.String("uid", user.UID), sl.Err(err))
	}
	user.SubscriptionActive = true

	s.invalidateActive(user.UID)
	s.log.Info("subscription created",
		slog.String("uid", user.UID),
		slog.String("plan", plan.ID),
		slog.String("external_ref", gatewaySub.ID))

	return &CreateResult{
		User:         user.Summary(),
		Subscription: sub.Summary(),
	}, nil
}

// CurrentForUser возвращает сводку активной подписки пользователя, используя кеш.
func (s *SubscriptionService) CurrentForUser(ctx context.Context, userUID string) (*models.SubscriptionSummary, error) {
	const op = "services.subscription.CurrentForUser"

	cacheKey := activeSubscriptionKey(userUID)
	var cached models.SubscriptionSummary
	found, err := s.cache.Get(cacheKey, &cached)
	if err != nil {
		s.log.Warn("failed to read cache", slog.String("key", cacheKey), sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	sub, err := s.repo.GetActiveSubscriptionByUser(ctx, userUID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	summary := sub.Summary()
	if err := s.cache.Set(cacheKey, summary, time.Hour); err != nil {
		s.log.Warn("failed to cache subscription", slog.String("key", cacheKey), sl.Err(err))
	}
	return summary, nil
}

// ListPayments возвращает список платежей пользователя.
func (s *SubscriptionService) ListPayments(ctx context.Context, userUID string) ([]*models.Payment, error) {
	return s.repo.ListPaymentsByUser(ctx, userUID)
}

// resolveUser возвращает пользователя по email, создавая запись без пароля,
// если пользователь оформляет подписку до регистрации.
func (s *SubscriptionService) resolveUser(ctx context.Context, email, firstName, lastName string) (*models.User, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	newUser := models.User{
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
	}
	uid, err := s.repo.CreateUser(ctx, newUser)
	if err != nil {
		return nil, err
	}
	newUser.UID = uid
	s.log.Info("created user for subscription", slog.String("uid", uid))
	return &newUser, nil
}

// resolveCustomerRef возвращает ID клиента в платёжном шлюзе, создавая клиента
// при первом обращении и сохраняя ссылку на пользователе.
func (s *SubscriptionService) resolveCustomerRef(ctx context.Context, user *models.User) (string, error) {
	if user.BillingCustomerRef != nil && *user.BillingCustomerRef != "" {
		return *user.BillingCustomerRef, nil
	}

	customer, err := s.gateway.CreateCustomer(ctx, paymentprovider.CreateCustomerRequest{
		GivenName:    user.FirstName,
		FamilyName:   user.LastName,
		EmailAddress: user.Email,
		ReferenceID:  user.UID,
	})
	if err != nil {
		return "", err
	}

	if err := s.repo.SetBillingCustomerRef(ctx, user.UID, customer.ID); err != nil {
		return "", err
	}
	user.BillingCustomerRef = &customer.ID
	return customer.ID, nil
}

func (s *SubscriptionService) invalidateActive(userUID string) {
	cacheKey := activeSubscriptionKey(userUID)
	if err := s.cache.Invalidate(cacheKey); err != nil {
		s.log.Warn("failed to invalidate cache", slog.String("key", cacheKey), sl.Err(err))
	}
}

func activeSubscriptionKey(userUID string) string {
	return fmt.Sprintf("subscription:active:%s", userUID)
}
