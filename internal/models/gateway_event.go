package models

// Типы событий, присылаемых платёжным шлюзом на вебхук.
const (
	EventSubscriptionCreated = "subscription.created"
	EventSubscriptionUpdated = "subscription.updated"
	EventPaymentMade         = "invoice.payment_made"
	EventPaymentFailed       = "invoice.payment_failed"
)

// GatewayEvent — уведомление платёжного шлюза. Тело события содержит
// вложенный объект: подписку или счёт, в зависимости от типа.
type GatewayEvent struct {
	Type    string           `json:"type"`
	EventID string           `json:"event_id"`
	Data    GatewayEventData `json:"data"`
}

// GatewayEventData — контейнер объекта события.
type GatewayEventData struct {
	Object GatewayEventObject `json:"object"`
}

// GatewayEventObject — вложенный объект события.
type GatewayEventObject struct {
	Subscription *GatewaySubscription `json:"subscription,omitempty"`
	Invoice      *GatewayInvoice      `json:"invoice,omitempty"`
}

// GatewaySubscription — подписка в представлении шлюза.
type GatewaySubscription struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id"`
	PlanID     string `json:"plan_id"`
	Status     string `json:"status"`
}

// GatewayInvoice — счёт в представлении шлюза.
type GatewayInvoice struct {
	ID             string `json:"id"`
	SubscriptionID string `json:"subscription_id"`
	CustomerID     string `json:"customer_id"`
	PaymentID      string `json:"payment_id"`
	Status         string `json:"status"`
	Amount         struct {
		Amount   int    `json:"amount"`
		Currency string `json:"currency"`
	} `json:"amount"`
	FailureReason string `json:"failure_reason,omitempty"`
}
