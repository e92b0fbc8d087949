package inventory

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/metrics"
)

// Ledger резервирует и возвращает складские остатки через репозиторий,
// привязанный к текущей транзакции.
type Ledger struct {
	logger  *log.Entry
	metrics *metrics.FulfillmentMetrics
}

// NewLedger создаёт складской учёт. metrics может быть nil.
func NewLedger(logger *log.Entry, m *metrics.FulfillmentMetrics) *Ledger {
	if logger == nil {
		logger = log.New().WithField("component", "inventory")
	}
	return &Ledger{logger: logger, metrics: m}
}

// Reserve атомарно списывает qty единиц товара. Если остатка не хватает,
// возвращает ошибку ErrInsufficientStock с названием товара.
func (l *Ledger) Reserve(ctx context.Context, products domain.ProductRepository, productID string, qty int32) error {
	ok, err := products.TryReserve(ctx, productID, qty)
	if err != nil {
		return fmt.Errorf("reserve %s: %w", productID, err)
	}
	if !ok {
		l.metrics.RecordStockRejection()
		name := productID
		if product, err := products.Get(ctx, productID); err == nil {
			name = product.Name
		}
		return domain.InsufficientStock(name)
	}
	l.metrics.RecordUnitsReserved(qty)
	return nil
}

// ReserveLines резервирует все строки снимка корзины. Первая неудача
// прерывает цикл; откат уже списанного выполняет транзакция.
func (l *Ledger) ReserveLines(ctx context.Context, products domain.ProductRepository, lines []domain.CartLine) error {
	for _, line := range lines {
		if err := l.Reserve(ctx, products, line.ProductID, line.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// Release возвращает qty единиц товара на склад.
func (l *Ledger) Release(ctx context.Context, products domain.ProductRepository, productID string, qty int32) error {
	if err := products.Release(ctx, productID, qty); err != nil {
		return fmt.Errorf("release %s: %w", productID, err)
	}
	l.metrics.RecordUnitsReleased(qty)
	return nil
}

// ReleaseItems возвращает на склад все позиции заказа. Отсутствующий товар
// прерывает операцию с ErrNotFound, транзакция откатывается целиком.
func (l *Ledger) ReleaseItems(ctx context.Context, products domain.ProductRepository, items []domain.OrderItem) error {
	for _, item := range items {
		if err := l.Release(ctx, products, item.ProductID, item.Quantity); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				l.logger.WithFields(log.Fields{
					"order_id":   item.OrderID,
					"product_id": item.ProductID,
				}).Error("product missing from catalog, stock cannot be returned")
			}
			return err
		}
	}
	return nil
}

// CheckAvailability сверяет снимок корзины с остатками на момент чтения.
// Это ранний отказ без блокировок; окончательную проверку делает Reserve.
func (l *Ledger) CheckAvailability(snapshot domain.CartSnapshot) error {
	for _, line := range snapshot.Lines {
		if line.Stock < line.Quantity {
			l.metrics.RecordStockRejection()
			return domain.InsufficientStock(line.ProductName)
		}
	}
	return nil
}
