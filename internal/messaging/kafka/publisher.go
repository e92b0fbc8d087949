package kafka

import (
	"context"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// EventPublisher отправляет уведомления о заказах в Kafka.
// Ключом сообщения служит идентификатор заказа, поэтому события одного заказа
// попадают в одну партицию и читаются по порядку.
type EventPublisher struct {
	producer *Producer
	topic    string
}

// NewEventPublisher создаёт publisher поверх producer. Пустой topic заменяется на TopicOrderEvents.
func NewEventPublisher(producer *Producer, topic string) *EventPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &EventPublisher{producer: producer, topic: topic}
}

// Publish отправляет событие синхронно.
func (p *EventPublisher) Publish(ctx context.Context, event domain.OrderEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.producer.Send(p.topic, event.OrderID, event, map[string]string{
		HeaderEventType: string(event.Type),
		HeaderOrderID:   event.OrderID,
	})
}

// Topic возвращает топик публикации.
func (p *EventPublisher) Topic() string {
	return p.topic
}

var _ domain.EventPublisher = (*EventPublisher)(nil)
