// Package services содержит сверку состояния подписок и платежей по событиям платёжного шлюза.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/travel-compliance/internal/lib/sl"
	"github.com/magabrotheeeer/travel-compliance/internal/models"
	"github.com/magabrotheeeer/travel-compliance/internal/rabbitmq"
)

// WebhookRepository определяет методы хранилища, нужные для сверки по событиям шлюза.
type WebhookRepository interface {
	// GetUserByBillingCustomerRef возвращает пользователя по ID клиента шлюза.
	GetUserByBillingCustomerRef(ctx context.Context, ref string) (*models.User, error)
	// GetUser возвращает пользователя по UID.
	GetUser(ctx context.Context, uid string) (*models.User, error)
	// GetSubscriptionByExternalRef возвращает подписку по ID подписки шлюза.
	GetSubscriptionByExternalRef(ctx context.Context, ref string) (*models.Subscription, error)
	// ActivatePendingSubscription переводит pending-подписку пользователя в active.
	ActivatePendingSubscription(ctx context.Context, userUID, externalRef string) error
	// UpdateSubscriptionStatusByExternalRef обновляет статус подписки и возвращает UID владельца.
	UpdateSubscriptionStatusByExternalRef(ctx context.Context, ref, status string, endedAt *time.Time) (string, error)
	// SetUserSubscriptionActive переключает флаг активной подписки.
	SetUserSubscriptionActive(ctx context.Context, userUID string, active bool) error
	// InsertPaymentOnce добавляет запись платежа, если платеж с таким external_ref ещё не записан.
	InsertPaymentOnce(ctx context.Context, payment models.Payment) (bool, error)
}

// Cache описывает инвалидацию кеша активной подписки.
type Cache interface {
	Invalidate(key string) error
}

// Publisher публикует уведомления в очередь отправки писем.
type Publisher interface {
	Publish(routingKey string, message any) error
}

// WebhookService применяет события платёжного шлюза к локальному состоянию.
// Каждое событие обрабатывается независимо и идемпотентно: повтор того же
// события не меняет состояние второй раз.
type WebhookService struct {
	repo      WebhookRepository
	cache     Cache
	publisher Publisher
	log       *slog.Logger
}

// NewWebhookService создает новый экземпляр WebhookService.
func NewWebhookService(repo WebhookRepository, cache Cache, publisher Publisher,
	log *slog.Logger) *WebhookService {
	return &WebhookService{
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		log:       log,
	}
}

// Process применяет одно событие шлюза. Ненайденные ссылки не считаются ошибкой:
// событие логируется и подтверждается, повторную доставку выполняет шлюз.
func (s *WebhookService) Process(ctx context.Context, event *models.GatewayEvent) error {
	switch event.Type {
	case models.EventSubscriptionCreated:
		return s.handleSubscriptionCreated(ctx, event)
	case models.EventSubscriptionUpdated:
		return s.handleSubscriptionUpdated(ctx, event)
	case models.EventPaymentMade:
		return s.handlePaymentMade(ctx, event)
	case models.EventPaymentFailed:
		return s.handlePaymentFailed(ctx, event)
	default:
		s.log.Info("ignoring unknown gateway event",
			slog.String("type", event.Type), slog.String("event_id", event.EventID))
		return nil
	}
}

func (s *WebhookService) handleSubscriptionCreated(ctx context.Context, event *models.GatewayEvent) error {
	const op = "services.webhook.handleSubscriptionCreated"

	sub := event.Data.Object.Subscription
	if sub == nil {
		s.log.Warn("subscription.created without subscription object",
			slog.String("event_id", event.EventID))
		return nil
	}

	user, err := s.repo.GetUserByBillingCustomerRef(ctx, sub.CustomerID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.log.Warn("gateway customer not known locally",
				slog.String("customer_id", sub.CustomerID), slog.String("event_id", event.EventID))
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.repo.ActivatePendingSubscription(ctx, user.UID, sub.ID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// подписка уже активна или создана локально, повтор события
			s.log.Info("no pending subscription to activate",
				slog.String("uid", user.UID), slog.String("external_ref", sub.ID))
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.repo.SetUserSubscriptionActive(ctx, user.UID, true); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidateActive(user.UID)

	s.log.Info("pending subscription activated",
		slog.String("uid", user.UID), slog.String("external_ref", sub.ID))
	return nil
}

func (s *WebhookService) handleSubscriptionUpdated(ctx context.Context, event *models.GatewayEvent) error {
	const op = "services.webhook.handleSubscriptionUpdated"

	sub := event.Data.Object.Subscription
	if sub == nil {
		s.log.Warn("subscription.updated without subscription object",
			slog.String("event_id", event.EventID))
		return nil
	}

	status, ok := localStatus(sub.Status)
	if !ok {
		s.log.Warn("unknown gateway subscription status",
			slog.String("status", sub.Status), slog.String("event_id", event.EventID))
		return nil
	}

	var endedAt *time.Time
	if status == models.SubscriptionCanceled {
		now := time.Now().UTC()
		endedAt = &now
	}

	userUID, err := s.repo.UpdateSubscriptionStatusByExternalRef(ctx, sub.ID, status, endedAt)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.log.Warn("gateway subscription not known locally",
				slog.String("external_ref", sub.ID), slog.String("event_id", event.EventID))
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if status == models.SubscriptionCanceled || status == models.SubscriptionPaused {
		if err := s.repo.SetUserSubscriptionActive(ctx, userUID, false); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	} else if status == models.SubscriptionActive {
		if err := s.repo.SetUserSubscriptionActive(ctx, userUID, true); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	s.invalidateActive(userUID)

	if status == models.SubscriptionCanceled {
		s.notifyCanceled(ctx, userUID, sub.PlanID)
	}

	s.log.Info("subscription status updated",
		slog.String("uid", userUID),
		slog.String("external_ref", sub.ID),
		slog.String("status", status))
	return nil
}

func (s *WebhookService) handlePaymentMade(ctx context.Context, event *models.GatewayEvent) error {
	const op = "services.webhook.handlePaymentMade"

	invoice := event.Data.Object.Invoice
	if invoice == nil {
		s.log.Warn("invoice.payment_made without invoice object",
			slog.String("event_id", event.EventID))
		return nil
	}

	sub, err := s.repo.GetSubscriptionByExternalRef(ctx, invoice.SubscriptionID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.log.Warn("payment for unknown subscription",
				slog.String("subscription_id", invoice.SubscriptionID),
				slog.String("event_id", event.EventID))
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.repo.SetUserSubscriptionActive(ctx, sub.UserUID, true); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidateActive(sub.UserUID)

	inserted, err := s.repo.InsertPaymentOnce(ctx, models.Payment{
		UserUID:        sub.UserUID,
		SubscriptionID: sub.ID,
		Amount:         invoice.Amount.Amount,
		Currency:       invoice.Amount.Currency,
		Status:         models.PaymentSuccess,
		ExternalRef:    &invoice.PaymentID,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !inserted {
		s.log.Info("payment already recorded", slog.String("payment_id", invoice.PaymentID))
		return nil
	}

	s.log.Info("payment recorded",
		slog.String("uid", sub.UserUID), slog.String("payment_id", invoice.PaymentID))
	return nil
}

func (s *WebhookService) handlePaymentFailed(ctx context.Context, event *models.GatewayEvent) error {
	const op = "services.webhook.handlePaymentFailed"

	invoice := event.Data.Object.Invoice
	if invoice == nil {
		s.log.Warn("invoice.payment_failed without invoice object",
			slog.String("event_id", event.EventID))
		return nil
	}

	sub, err := s.repo.GetSubscriptionByExternalRef(ctx, invoice.SubscriptionID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.log.Warn("failed payment for unknown subscription",
				slog.String("subscription_id", invoice.SubscriptionID),
				slog.String("event_id", event.EventID))
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var reason *string
	if invoice.FailureReason != "" {
		reason = &invoice.FailureReason
	}

	// флаг подписки не трогаем: неуспешный платеж не блокирует доступ
	inserted, err := s.repo.InsertPaymentOnce(ctx, models.Payment{
		UserUID:        sub.UserUID,
		SubscriptionID: sub.ID,
		Amount:         invoice.Amount.Amount,
		Currency:       invoice.Amount.Currency,
		Status:         models.PaymentFailed,
		ExternalRef:    &invoice.PaymentID,
		FailureReason:  reason,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !inserted {
		s.log.Info("failed payment already recorded", slog.String("payment_id", invoice.PaymentID))
		return nil
	}

	s.notifyPaymentFailed(ctx, sub, invoice)

	s.log.Warn("payment failure recorded",
		slog.String("uid", sub.UserUID),
		slog.String("payment_id", invoice.PaymentID),
		slog.String("reason", invoice.FailureReason))
	return nil
}

func (s *WebhookService) notifyPaymentFailed(ctx context.Context, sub *models.Subscription,
	invoice *models.GatewayInvoice) {
	if s.publisher == nil {
		return
	}
	user, err := s.repo.GetUser(ctx, sub.UserUID)
	if err != nil {
		s.log.Warn("failed to load user for notification", slog.String("uid", sub.UserUID), sl.Err(err))
		return
	}

	planName := sub.PlanID
	if plan, ok := models.PlanByID(sub.PlanID); ok {
		planName = plan.Name
	}
	msg := models.NotificationMessage{
		Kind:      models.NotifyPaymentFailed,
		Email:     user.Email,
		FirstName: user.FirstName,
		PlanName:  planName,
		Amount:    invoice.Amount.Amount,
		Currency:  invoice.Amount.Currency,
		Reason:    invoice.FailureReason,
	}
	if err := s.publisher.Publish(rabbitmq.RoutingKeyNotification, msg); err != nil {
		s.log.Warn("failed to publish notification", sl.Err(err))
	}
}

func (s *WebhookService) notifyCanceled(ctx context.Context, userUID, planID string) {
	if s.publisher == nil {
		return
	}
	user, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		s.log.Warn("failed to load user for notification", slog.String("uid", userUID), sl.Err(err))
		return
	}

	planName := planID
	if plan, ok := models.PlanByID(planID); ok {
		planName = plan.Name
	}
	msg := models.NotificationMessage{
		Kind:      models.NotifySubscriptionCanceled,
		Email:     user.Email,
		FirstName: user.FirstName,
		PlanName:  planName,
	}
	if err := s.publisher.Publish(rabbitmq.RoutingKeyNotification, msg); err != nil {
		s.log.Warn("failed to publish notification", sl.Err(err))
	}
}

func (s *WebhookService) invalidateActive(userUID string) {
	key := fmt.Sprintf("subscription:active:%s", userUID)
	if err := s.cache.Invalidate(key); err != nil {
		s.log.Warn("failed to invalidate cache", slog.String("key", key), sl.Err(err))
	}
}

// localStatus переводит статус подписки шлюза в локальный закрытый набор.
func localStatus(gatewayStatus string) (string, bool) {
	switch gatewayStatus {
	case "ACTIVE":
		return models.SubscriptionActive, true
	case "CANCELED":
		return models.SubscriptionCanceled, true
	case "PAUSED", "DEACTIVATED":
		return models.SubscriptionPaused, true
	case "PENDING":
		return models.SubscriptionPending, true
	default:
		return "", false
	}
}
