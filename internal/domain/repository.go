package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// ProductRepository — каталог и складские остатки.
type ProductRepository interface {
	// Get возвращает товар или ErrNotFound.
	Get(ctx context.Context, id string) (Product, error)
	// Upsert создаёт или обновляет товар целиком.
	Upsert(ctx context.Context, product Product) error
	// TryReserve атомарно уменьшает остаток, только если его хватает.
	// Возвращает false без изменений, если stock < qty.
	TryReserve(ctx context.Context, id string, qty int32) (bool, error)
	// Release увеличивает остаток. Ошибка только ErrNotFound.
	Release(ctx context.Context, id string, qty int32) error
}

// CartRepository — корзины пользователей.
type CartRepository interface {
	// Lines читает корзину вместе с текущими ценами одним запросом.
	Lines(ctx context.Context, userID string) ([]CartLine, error)
	// AddItem добавляет товар в корзину, суммируя количество для повторного товара.
	AddItem(ctx context.Context, item CartItem) error
	// Consume вычитает из корзины количества оформленных строк. Строка, у которой
	// ничего не осталось, удаляется; добавленное после снимка остаётся в корзине.
	Consume(ctx context.Context, userID string, lines []CartLine) error
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ вместе с позициями.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ по идентификатору или ErrNotFound.
	Get(ctx context.Context, id string) (Order, error)
	// GetForUpdate читает заказ и блокирует его строку до конца транзакции.
	GetForUpdate(ctx context.Context, id string) (Order, error)
	// ListByUser возвращает заказы пользователя, новые первыми.
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(ctx context.Context, order Order) error
	// Stats считает агрегаты по всем заказам.
	Stats(ctx context.Context) (OrderStats, error)
}

// PaymentRepository хранит попытки оплаты. Записи не изменяются.
type PaymentRepository interface {
	Create(ctx context.Context, payment Payment) error
	// Latest возвращает последнюю попытку по заказу или ErrNotFound.
	Latest(ctx context.Context, orderID string) (Payment, error)
	ListByOrder(ctx context.Context, orderID string) ([]Payment, error)
	CountFailed(ctx context.Context, orderID string) (int, error)
}

// TimelineRepository хранит историю переходов заказа.
type TimelineRepository interface {
	Append(ctx context.Context, change StatusChange) error
	List(ctx context.Context, orderID string) ([]StatusChange, error)
}

// Repositories — набор репозиториев, привязанных к одной транзакции или к пулу.
type Repositories struct {
	Products ProductRepository
	Carts    CartRepository
	Orders   OrderRepository
	Payments PaymentRepository
	Timeline TimelineRepository
}

// Storage предоставляет репозитории и единицу работы.
type Storage interface {
	// Repos возвращает репозитории вне транзакции.
	Repos() Repositories
	// WithinTx выполняет fn в одной транзакции. Ошибка fn откатывает все изменения.
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// OrderStats — агрегаты для административной статистики.
type OrderStats struct {
	TotalOrders       int64           `json:"total_orders"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	PendingOrders     int64           `json:"pending_orders"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
}
