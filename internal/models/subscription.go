package models

import (
	"strings"
	"time"
)

// Статусы подписки. Закрытый набор, другие значения в хранилище не допускаются.
const (
	SubscriptionPending  = "pending"
	SubscriptionActive   = "active"
	SubscriptionCanceled = "canceled"
	SubscriptionPaused   = "paused"
)

// Subscription представляет подписку пользователя на тарифный план.
//
// ExternalRef — идентификатор подписки в платёжном шлюзе, уникален,
// может быть nil до подтверждения шлюзом. Не более одной подписки
// пользователя может находиться в статусе active.
type Subscription struct {
	ID               int64      // Идентификатор записи
	UserUID          string     // Владелец подписки
	ExternalRef      *string    // ID подписки в платёжном шлюзе
	PlanID           string     // Идентификатор тарифного плана
	Status           string     // Один из Subscription* статусов
	PriceAmount      int        // Цена в минимальных единицах валюты
	Currency         string     // Валюта, например GBP
	BillingFrequency string     // MONTHLY или ANNUAL
	StartedAt        time.Time  // Дата начала
	EndedAt          *time.Time // Дата окончания, устанавливается при отмене
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SubscriptionSummary — представление подписки, отдаваемое клиенту.
// Статус отдается в верхнем регистре: ACTIVE, CANCELED, PAUSED, PENDING.
type SubscriptionSummary struct {
	PlanType         string     `json:"planType"`
	PlanName         string     `json:"planName"`
	Status           string     `json:"status"`
	Price            int        `json:"price"`
	Currency         string     `json:"currency"`
	BillingFrequency string     `json:"billingFrequency"`
	StartedAt        time.Time  `json:"startedAt"`
	EndedAt          *time.Time `json:"endedAt,omitempty"`
}

// Summary возвращает клиентское представление подписки.
func (s *Subscription) Summary() *SubscriptionSummary {
	planName := s.PlanID
	if plan, ok := PlanByID(s.PlanID); ok {
		planName = plan.Name
	}
	return &SubscriptionSummary{
		PlanType:         s.PlanID,
		PlanName:         planName,
		Status:           strings.ToUpper(s.Status),
		Price:            s.PriceAmount,
		Currency:         s.Currency,
		BillingFrequency: s.BillingFrequency,
		StartedAt:        s.StartedAt,
		EndedAt:          s.EndedAt,
	}
}
