package memory

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// orderRepository — in-memory реализация OrderRepository.
type orderRepository struct {
	a accessor
}

// Create сохраняет новый заказ, если ID ещё не занят.
func (r *orderRepository) Create(_ context.Context, order domain.Order) error {
	return r.a.write(func(st *state) error {
		if _, exists := st.orders[order.ID]; exists {
			return domain.ErrOrderVersionConflict
		}
		// Храним копию, чтобы вызывающий не мог изменить состояние в обход Save.
		st.orders[order.ID] = cloneOrder(order)
		return nil
	})
}

// Get возвращает заказ или ErrNotFound, если его нет.
func (r *orderRepository) Get(_ context.Context, id string) (domain.Order, error) {
	var order domain.Order
	err := r.a.read(func(st *state) error {
		stored, ok := st.orders[id]
		if !ok {
			return domain.NotFound("order", id)
		}
		order = cloneOrder(stored)
		return nil
	})
	return order, err
}

// GetForUpdate совпадает с Get: транзакции хранилища и так сериализованы.
func (r *orderRepository) GetForUpdate(ctx context.Context, id string) (domain.Order, error) {
	return r.Get(ctx, id)
}

// ListByUser возвращает заказы пользователя, новые первыми.
func (r *orderRepository) ListByUser(_ context.Context, userID string, limit, offset int) ([]domain.Order, error) {
	var result []domain.Order
	err := r.a.read(func(st *state) error {
		result = make([]domain.Order, 0)
		for _, order := range st.orders {
			if order.UserID != userID {
				continue
			}
			result = append(result, cloneOrder(order))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if offset > 0 {
		if offset >= len(result) {
			return []domain.Order{}, nil
		}
		result = result[offset:]
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Save перезаписывает заказ, проверяя версию (optimistic locking).
func (r *orderRepository) Save(_ context.Context, order domain.Order) error {
	return r.a.write(func(st *state) error {
		current, ok := st.orders[order.ID]
		if !ok {
			return domain.NotFound("order", order.ID)
		}
		if current.Version != order.Version {
			return domain.ErrOrderVersionConflict
		}
		order = cloneOrder(order)
		order.Version++
		st.orders[order.ID] = order
		return nil
	})
}

// Stats считает агрегаты так же, как SQL-вариант: сумма и среднее по всем заказам.
func (r *orderRepository) Stats(_ context.Context) (domain.OrderStats, error) {
	stats := domain.OrderStats{TotalRevenue: decimal.Zero, AverageOrderValue: decimal.Zero}
	err := r.a.read(func(st *state) error {
		for _, order := range st.orders {
			stats.TotalOrders++
			stats.TotalRevenue = stats.TotalRevenue.Add(order.TotalAmount)
			if order.Status == domain.OrderStatusPending {
				stats.PendingOrders++
			}
		}
		return nil
	})
	if err != nil {
		return domain.OrderStats{}, err
	}
	if stats.TotalOrders > 0 {
		stats.AverageOrderValue = stats.TotalRevenue.Div(decimal.NewFromInt(stats.TotalOrders)).Round(2)
	}
	return stats, nil
}

func cloneOrder(order domain.Order) domain.Order {
	order.Items = append([]domain.OrderItem(nil), order.Items...)
	if order.ShippedAt != nil {
		t := *order.ShippedAt
		order.ShippedAt = &t
	}
	if order.DeliveredAt != nil {
		t := *order.DeliveredAt
		order.DeliveredAt = &t
	}
	return order
}

var _ domain.OrderRepository = (*orderRepository)(nil)
