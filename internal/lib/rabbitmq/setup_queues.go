package rabbitmq

// Ключи маршрутизации уведомлений.
const (
	RoutingKeyNotify    = "notify"
	RoutingKeyBroadcast = "broadcast"
)

// Очереди сервиса уведомлений.
const (
	QueueNotify    = "notification.notify"
	QueueBroadcast = "notification.broadcast"
)

// QueueConfig очередь и ключ, с которым она привязана к обменнику.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetNotificationQueues возвращает очереди, которые читает сервис уведомлений.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: QueueNotify, RoutingKey: RoutingKeyNotify},
		{QueueName: QueueBroadcast, RoutingKey: RoutingKeyBroadcast},
	}
}
