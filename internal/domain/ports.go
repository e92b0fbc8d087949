package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentProvider описывает синхронного платёжного провайдера.
type PaymentProvider interface {
	// Charge списывает сумму по платёжному токену. Ошибка означает неопределённый исход
	// (таймаут, сеть), отказ провайдера возвращается как ChargeResult.Success == false.
	Charge(ctx context.Context, amount decimal.Decimal, token string) (ChargeResult, error)
}

// EventType — тип уведомления о заказе.
type EventType string

const (
	EventOrderCreated   EventType = "order.created"
	EventOrderPaid      EventType = "order.paid"
	EventPaymentFailed  EventType = "order.payment_failed"
	EventOrderCancelled EventType = "order.cancelled"
	EventOrderRefunded  EventType = "order.refunded"
	EventOrderShipped   EventType = "order.shipped"
	EventOrderDelivered EventType = "order.delivered"
)

// OrderEvent — уведомление, которое публикуется после фиксации транзакции.
type OrderEvent struct {
	Type          EventType       `json:"event_type"`
	OrderID       string          `json:"order_id"`
	UserID        string          `json:"user_id"`
	Status        OrderStatus     `json:"status"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Reason        string          `json:"reason,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// NewOrderEvent собирает уведомление по текущему состоянию заказа.
func NewOrderEvent(eventType EventType, order Order, reason string) OrderEvent {
	return OrderEvent{
		Type:          eventType,
		OrderID:       order.ID,
		UserID:        order.UserID,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		TotalAmount:   order.TotalAmount,
		Reason:        reason,
		Timestamp:     order.UpdatedAt,
	}
}

// EventPublisher — fire-and-forget приёмник уведомлений. Ошибки публикации
// не влияют на результат бизнес-операции.
type EventPublisher interface {
	Publish(ctx context.Context, event OrderEvent) error
}

// StatsCache кэширует агрегаты статистики. Промах и ошибка кэша
// не мешают посчитать статистику по хранилищу.
type StatsCache interface {
	// Get возвращает закэшированные агрегаты; false означает промах.
	Get(ctx context.Context) (OrderStats, bool, error)
	Set(ctx context.Context, stats OrderStats) error
	Invalidate(ctx context.Context) error
}
