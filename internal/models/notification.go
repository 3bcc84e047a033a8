package models

// Виды уведомлений, публикуемых в очередь для отправки писем.
const (
	NotifyPaymentFailed        = "payment_failed"
	NotifySubscriptionCanceled = "subscription_canceled"
)

// NotificationMessage — сообщение для воркера отправки писем.
type NotificationMessage struct {
	Kind      string `json:"kind"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	PlanName  string `json:"plan_name"`
	Amount    int    `json:"amount"`
	Currency  string `json:"currency"`
	Reason    string `json:"reason,omitempty"`
}
