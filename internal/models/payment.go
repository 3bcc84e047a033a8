package models

import "time"

// Статусы платежа.
const (
	PaymentSuccess  = "success"
	PaymentFailed   = "failed"
	PaymentPending  = "pending"
	PaymentRefunded = "refunded"
)

// Payment представляет запись в журнале платежей.
//
// Журнал append-only: записи никогда не изменяются после вставки,
// повторная попытка списания порождает новую запись. Дедупликация
// вебхуков выполняется по ExternalRef.
type Payment struct {
	ID             int64     `json:"id"`
	UserUID        string    `json:"userUid"`
	SubscriptionID int64     `json:"subscriptionId"`
	Amount         int       `json:"amount"`
	Currency       string    `json:"currency"`
	Status         string    `json:"status"`
	ExternalRef    *string   `json:"externalRef,omitempty"`
	FailureReason  *string   `json:"failureReason,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}
