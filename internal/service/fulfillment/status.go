package fulfillment

import (
	"context"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// UpdateOrderStatus выполняет административный переход статуса.
// Неизвестное значение даёт ErrInvalidStatus, ребро вне графа даёт ErrInvalidTransition.
// Переходы в processing и cancelled доступны только через оплату, отмену и возврат.
func (s *Service) UpdateOrderStatus(ctx context.Context, p domain.Principal, orderID, status string) (order domain.Order, err error) {
	ctx, end := s.begin(ctx, "update_order_status", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.status", status),
	))
	defer func() { end(err) }()

	if !p.IsAdmin() || p.UserID == "" {
		return domain.Order{}, domain.ErrUnauthorized
	}
	next, err := domain.ParseOrderStatus(status)
	if err != nil {
		return domain.Order{}, err
	}

	err = s.storage.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		var err error
		order, err = loadForUpdate(ctx, repos, p, orderID)
		if err != nil {
			return err
		}
		change, err := order.Advance(next, s.now().UTC())
		if err != nil {
			return err
		}
		if err := repos.Orders.Save(ctx, order); err != nil {
			return err
		}
		return repos.Timeline.Append(ctx, change)
	})
	if err != nil {
		return domain.Order{}, err
	}
	order.Version++

	s.metrics.RecordStatusChange(string(order.Status))
	eventType := domain.EventOrderShipped
	if order.Status == domain.OrderStatusDelivered {
		eventType = domain.EventOrderDelivered
	}
	s.dispatcher.Dispatch(ctx, domain.NewOrderEvent(eventType, order, ""))
	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"status":   order.Status,
	}).Info("order status updated")
	return order, nil
}
