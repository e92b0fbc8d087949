package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyCart возвращается, если в корзине пользователя нет позиций.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInsufficientStock — на складе меньше единиц товара, чем запрошено.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidTransition — переход статуса запрещён графом жизненного цикла.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidStatus — значение статуса не входит в перечисление.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrPaymentAlreadyProcessed — платёжный статус заказа уже не pending.
	ErrPaymentAlreadyProcessed = errors.New("payment already processed")
	// ErrPaymentFailed — провайдер отклонил списание или не ответил вовремя.
	ErrPaymentFailed = errors.New("payment failed")
	// ErrNotFound — сущность не найдена.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized — у вызывающего нет прав на операцию.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrInvalidQuantity — количество для резерва/возврата должно быть больше нуля.
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
	// ErrDuplicateTransaction — платёж с таким transaction_id уже записан.
	ErrDuplicateTransaction = errors.New("duplicate payment transaction_id")
	// ErrUnknownPaymentMethod — для метода оплаты не настроен провайдер.
	ErrUnknownPaymentMethod = errors.New("unknown payment method")
	// ErrPaymentAttemptsExhausted — исчерпан лимит неудачных попыток оплаты.
	ErrPaymentAttemptsExhausted = errors.New("payment attempts exhausted")

	// Ошибки валидации агрегата.
	ErrUserRequired       = errors.New("user_id is required")
	ErrItemsRequired      = errors.New("order must contain at least one item")
	ErrAmountNegative     = errors.New("total amount must be non-negative")
	ErrItemQtyInvalid     = errors.New("item quantity must be greater than zero")
	ErrItemPriceInvalid   = errors.New("item price must be non-negative")
	ErrSubtotalMismatch   = errors.New("item subtotal does not match quantity * unit price")
	ErrAmountMismatch     = errors.New("order total does not match items sum")
	ErrStatusPaymentState = errors.New("order status does not match payment status")
	ErrAddressIncomplete  = errors.New("shipping address is incomplete")
	ErrOrderIDRequired    = errors.New("order_id is required")
)

// InsufficientStock формирует ошибку нехватки товара с его названием.
func InsufficientStock(productName string) error {
	return fmt.Errorf("%w for %s", ErrInsufficientStock, productName)
}

// InvalidTransition формирует ошибку запрещённого перехода статуса.
func InvalidTransition(from, to OrderStatus) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// InvalidStatus формирует ошибку неизвестного значения статуса.
func InvalidStatus(value string) error {
	return fmt.Errorf("%w: %q", ErrInvalidStatus, value)
}

// PaymentFailed оборачивает причину отказа провайдера.
func PaymentFailed(reason string) error {
	return fmt.Errorf("%w: %s", ErrPaymentFailed, reason)
}

// PaymentAttemptsExhausted оборачивает причину последнего отказа,
// после которого заказ переведён в payment_status=failed.
func PaymentAttemptsExhausted(reason string) error {
	return fmt.Errorf("%w: %s (%w)", ErrPaymentFailed, reason, ErrPaymentAttemptsExhausted)
}

// NotFound формирует ошибку отсутствующей сущности.
func NotFound(entity, id string) error {
	return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}
