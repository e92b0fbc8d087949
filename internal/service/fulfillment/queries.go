package fulfillment

import (
	"context"
	"errors"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// OrderDetails — заказ вместе с попытками оплаты и историей статусов.
type OrderDetails struct {
	Order    domain.Order
	Payments []domain.Payment
	History  []domain.StatusChange
}

// GetOrder возвращает заказ владельцу или администратору.
func (s *Service) GetOrder(ctx context.Context, p domain.Principal, orderID string) (details OrderDetails, err error) {
	ctx, end := s.begin(ctx, "get_order")
	defer func() { end(err) }()

	if p.UserID == "" {
		return OrderDetails{}, domain.ErrUnauthorized
	}
	repos := s.storage.Repos()
	order, err := repos.Orders.Get(ctx, orderID)
	if err != nil {
		return OrderDetails{}, err
	}
	if !p.CanAccess(order) {
		return OrderDetails{}, domain.ErrUnauthorized
	}

	payments, err := repos.Payments.ListByOrder(ctx, orderID)
	if err != nil {
		return OrderDetails{}, err
	}
	history, err := repos.Timeline.List(ctx, orderID)
	if err != nil {
		return OrderDetails{}, err
	}
	return OrderDetails{Order: order, Payments: payments, History: history}, nil
}

// ListOrders возвращает страницу заказов пользователя, новые первыми.
// Покупатель видит только свои заказы; пустой userID означает вызывающего.
func (s *Service) ListOrders(ctx context.Context, p domain.Principal, userID string, limit, offset int) (orders []domain.Order, err error) {
	ctx, end := s.begin(ctx, "list_orders")
	defer func() { end(err) }()

	if p.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	if userID == "" {
		userID = p.UserID
	}
	if userID != p.UserID && !p.IsAdmin() {
		return nil, domain.ErrUnauthorized
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.storage.Repos().Orders.ListByUser(ctx, userID, limit, offset)
}

// Statistics возвращает агрегаты по всем заказам. Доступно администратору.
// При настроенном кэше значение читается из него; ошибки кэша не мешают ответу.
func (s *Service) Statistics(ctx context.Context, p domain.Principal) (stats domain.OrderStats, err error) {
	ctx, end := s.begin(ctx, "statistics")
	defer func() { end(err) }()

	if !p.IsAdmin() || p.UserID == "" {
		return domain.OrderStats{}, domain.ErrUnauthorized
	}

	if s.stats != nil {
		cached, ok, cacheErr := s.stats.Get(ctx)
		if cacheErr != nil {
			s.logger.WithError(cacheErr).Warn("statistics cache read failed")
		}
		if ok {
			return cached, nil
		}
	}

	stats, err = s.storage.Repos().Orders.Stats(ctx)
	if err != nil {
		return domain.OrderStats{}, err
	}
	if s.stats != nil {
		if cacheErr := s.stats.Set(ctx, stats); cacheErr != nil && !errors.Is(cacheErr, context.Canceled) {
			s.logger.WithError(cacheErr).Warn("statistics cache write failed")
		}
	}
	return stats, nil
}
