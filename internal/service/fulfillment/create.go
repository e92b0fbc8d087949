package fulfillment

import (
	"context"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// CreateOrder оформляет заказ из корзины пользователя.
//
// Снимок корзины и предварительная проверка остатков выполняются до транзакции.
// В транзакции создаётся заказ с позициями, резервируется каждая строка и
// из корзины убирается ровно то, что попало в заказ. Любая ошибка откатывает всё целиком.
func (s *Service) CreateOrder(ctx context.Context, p domain.Principal, address domain.ShippingAddress, notes string) (order domain.Order, err error) {
	ctx, end := s.begin(ctx, "create_order", trace.WithAttributes(attribute.String("user.id", p.UserID)))
	defer func() { end(err) }()

	if p.UserID == "" {
		return domain.Order{}, domain.ErrUnauthorized
	}

	snapshot, err := s.carts.Snapshot(ctx, p.UserID)
	if err != nil {
		return domain.Order{}, err
	}
	if err := s.ledger.CheckAvailability(snapshot); err != nil {
		return domain.Order{}, err
	}

	order, err = domain.NewOrder(s.newID(), snapshot, address, notes, s.now().UTC())
	if err != nil {
		return domain.Order{}, err
	}

	err = s.storage.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		if err := repos.Orders.Create(ctx, order); err != nil {
			return err
		}
		if err := s.ledger.ReserveLines(ctx, repos.Products, snapshot.Lines); err != nil {
			return err
		}
		if err := repos.Timeline.Append(ctx, domain.StatusChange{
			OrderID:   order.ID,
			To:        order.Status,
			PaymentTo: order.PaymentStatus,
			Reason:    "order created",
			Occurred:  order.CreatedAt,
		}); err != nil {
			return err
		}
		return repos.Carts.Consume(ctx, p.UserID, snapshot.Lines)
	})
	if err != nil {
		s.logger.WithError(err).WithField("user_id", p.UserID).Warn("order creation aborted")
		return domain.Order{}, err
	}

	s.metrics.RecordOrderCreated()
	s.dispatcher.Dispatch(ctx, domain.NewOrderEvent(domain.EventOrderCreated, order, ""))
	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"user_id":  order.UserID,
		"items":    len(order.Items),
		"total":    order.TotalAmount.StringFixed(2),
	}).Info("order created")
	return order, nil
}
