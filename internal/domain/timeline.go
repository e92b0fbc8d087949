package domain

import "time"

// StatusChange — запись истории заказа. Пишется в той же транзакции, что и переход.
type StatusChange struct {
	OrderID     string
	From        OrderStatus
	To          OrderStatus
	PaymentFrom PaymentStatus
	PaymentTo   PaymentStatus
	Reason      string
	Occurred    time.Time
}
