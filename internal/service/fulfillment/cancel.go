package fulfillment

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// CancelOrder отменяет заказ владельца или администратора и возвращает товар на склад.
// Оплаченный заказ при отмене получает платёжный статус refunded.
func (s *Service) CancelOrder(ctx context.Context, p domain.Principal, orderID, reason string) (order domain.Order, err error) {
	ctx, end := s.begin(ctx, "cancel_order", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer func() { end(err) }()

	if p.UserID == "" {
		return domain.Order{}, domain.ErrUnauthorized
	}
	if reason == "" {
		reason = "cancelled by customer"
	}

	order, err = s.releaseAndApply(ctx, p, orderID, func(o *domain.Order, now time.Time) (domain.StatusChange, error) {
		return o.Cancel(reason, now)
	})
	if err != nil {
		return domain.Order{}, err
	}

	notices := []domain.OrderEvent{domain.NewOrderEvent(domain.EventOrderCancelled, order, reason)}
	if order.PaymentStatus == domain.PaymentStatusRefunded {
		notices = append(notices, domain.NewOrderEvent(domain.EventOrderRefunded, order, reason))
	}
	s.dispatcher.Dispatch(ctx, notices...)
	s.logger.WithFields(log.Fields{
		"order_id":       order.ID,
		"payment_status": order.PaymentStatus,
		"reason":         reason,
	}).Info("order cancelled")
	return order, nil
}

// ProcessRefund возвращает деньги по оплаченному заказу в статусе processing.
// Доступно только администратору.
func (s *Service) ProcessRefund(ctx context.Context, p domain.Principal, orderID, reason string) (order domain.Order, err error) {
	ctx, end := s.begin(ctx, "process_refund", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer func() { end(err) }()

	if !p.IsAdmin() || p.UserID == "" {
		return domain.Order{}, domain.ErrUnauthorized
	}
	if reason == "" {
		reason = "refund processed"
	}

	order, err = s.releaseAndApply(ctx, p, orderID, func(o *domain.Order, now time.Time) (domain.StatusChange, error) {
		return o.Refund(reason, now)
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.dispatcher.Dispatch(ctx, domain.NewOrderEvent(domain.EventOrderRefunded, order, reason))
	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"amount":   order.TotalAmount.StringFixed(2),
		"reason":   reason,
	}).Info("order refunded")
	return order, nil
}

// releaseAndApply блокирует заказ, применяет переход и возвращает все позиции
// на склад в одной транзакции. Второй параллельный вызов увидит терминальный
// статус и получит ErrInvalidTransition.
func (s *Service) releaseAndApply(ctx context.Context, p domain.Principal, orderID string, transition func(*domain.Order, time.Time) (domain.StatusChange, error)) (domain.Order, error) {
	var order domain.Order
	err := s.storage.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		var err error
		order, err = loadForUpdate(ctx, repos, p, orderID)
		if err != nil {
			return err
		}
		change, err := transition(&order, s.now().UTC())
		if err != nil {
			return err
		}
		if err := s.ledger.ReleaseItems(ctx, repos.Products, order.Items); err != nil {
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
	return order, nil
}
