package rabbitmq

// Exchange — exchange для биллинговых уведомлений.
const Exchange = "billing.events"

// Ключи маршрутизации уведомлений.
const (
	RoutingKeyNotification = "notification"
)

// QueueConfig описывает очередь и ключ маршрутизации для привязки.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetNotificationQueues возвращает очереди воркера отправки писем.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "billing.notifications", RoutingKey: RoutingKeyNotification},
	}
}
