package events

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// LogPublisher пишет уведомления в лог. Используется, когда брокер не настроен.
type LogPublisher struct {
	logger *log.Entry
}

// NewLogPublisher создаёт приёмник поверх logger.
func NewLogPublisher(logger *log.Entry) *LogPublisher {
	if logger == nil {
		logger = log.New().WithField("component", "order-events")
	}
	return &LogPublisher{logger: logger}
}

// Publish записывает событие на уровне info.
func (p *LogPublisher) Publish(_ context.Context, event domain.OrderEvent) error {
	p.logger.WithFields(log.Fields{
		"event_type":     event.Type,
		"order_id":       event.OrderID,
		"user_id":        event.UserID,
		"status":         event.Status,
		"payment_status": event.PaymentStatus,
		"total_amount":   event.TotalAmount.StringFixed(2),
		"reason":         event.Reason,
	}).Info("order event")
	return nil
}

var _ domain.EventPublisher = (*LogPublisher)(nil)
