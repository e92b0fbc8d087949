package kafka

// TopicOrderEvents — топик уведомлений о заказах по умолчанию.
const TopicOrderEvents = "oms.order.events"

// Заголовки сообщений с уведомлениями.
const (
	HeaderEventType = "x-event-type"
	HeaderOrderID   = "x-order-id"
)
