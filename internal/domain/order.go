package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, товар зарезервирован, оплаты ещё нет.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing — оплата подтверждена, заказ собирается.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped — заказ передан в доставку.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered — заказ доставлен, терминальный статус.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled — заказ отменён, резервы возвращены на склад.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Граф допустимых переходов. Терминальные статусы исходящих рёбер не имеют.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  nil,
	OrderStatusCancelled:  nil,
}

// ParseOrderStatus разбирает строковое значение статуса.
func ParseOrderStatus(value string) (OrderStatus, error) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(value)))
	if !status.Valid() {
		return "", InvalidStatus(value)
	}
	return status, nil
}

// Valid сообщает, входит ли статус в перечисление.
func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// IsTerminal возвращает true для delivered и cancelled.
func (s OrderStatus) IsTerminal() bool {
	return s.Valid() && len(orderTransitions[s]) == 0
}

// CanTransitionTo проверяет наличие ребра s -> next в графе.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentStatus — платёжное состояние заказа.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Valid сообщает, входит ли платёжный статус в перечисление.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// ShippingAddress — адрес доставки, все поля обязательны.
type ShippingAddress struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	Country    string `json:"country"`
	PostalCode string `json:"postal_code"`
}

// Validate возвращает ErrAddressIncomplete с перечнем пустых полей.
func (a ShippingAddress) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"name", a.Name},
		{"email", a.Email},
		{"phone", a.Phone},
		{"address", a.Address},
		{"city", a.City},
		{"country", a.Country},
		{"postal_code", a.PostalCode},
	}
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Err: ErrAddressIncomplete, Fields: missing}
	}
	return nil
}

// OrderItem представляет одну позицию заказа с зафиксированной ценой.
type OrderItem struct {
	ID          string
	OrderID     string
	ProductID   string
	ProductName string
	Quantity    int32
	// UnitPrice копируется из каталога при оформлении и больше не меняется.
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
	CreatedAt time.Time
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID              string
	UserID          string
	Items           []OrderItem
	TotalAmount     decimal.Decimal
	Status          OrderStatus
	PaymentStatus   PaymentStatus
	ShippingAddress ShippingAddress
	Notes           string
	Version         int64
	ShippedAt       *time.Time
	DeliveredAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewOrder строит заказ в статусе pending из снимка корзины.
func NewOrder(id string, snapshot CartSnapshot, address ShippingAddress, notes string, now time.Time) (Order, error) {
	if len(snapshot.Lines) == 0 {
		return Order{}, ErrEmptyCart
	}
	if err := address.Validate(); err != nil {
		return Order{}, err
	}

	items := make([]OrderItem, 0, len(snapshot.Lines))
	for i, line := range snapshot.Lines {
		items = append(items, OrderItem{
			ID:          id + "-" + strconv.Itoa(i+1),
			OrderID:     id,
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Subtotal:    line.Subtotal(),
			CreatedAt:   now,
		})
	}

	order := Order{
		ID:              id,
		UserID:          snapshot.UserID,
		Items:           items,
		Status:          OrderStatusPending,
		PaymentStatus:   PaymentStatusPending,
		ShippingAddress: address,
		Notes:           notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	order.TotalAmount = order.CalculateTotal()

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return Order{}, errs[0]
	}
	return order, nil
}

// CalculateTotal суммирует подытоги позиций.
func (o *Order) CalculateTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal)
	}
	return total
}

// CanBeCancelled — отмена возможна только из pending и processing.
func (o *Order) CanBeCancelled() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusProcessing
}

// OwnedBy сообщает, принадлежит ли заказ пользователю.
func (o *Order) OwnedBy(userID string) bool {
	return o.UserID == userID
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.UserID == "" {
		errs = append(errs, ErrUserRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.TotalAmount.IsNegative() {
		errs = append(errs, ErrAmountNegative)
	}
	if !o.Status.Valid() {
		errs = append(errs, InvalidStatus(string(o.Status)))
	}
	if !o.PaymentStatus.Valid() {
		errs = append(errs, InvalidStatus(string(o.PaymentStatus)))
	}

	for _, item := range o.Items {
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.UnitPrice.IsNegative() {
			errs = append(errs, ErrItemPriceInvalid)
		}
		if !item.Subtotal.Equal(item.UnitPrice.Mul(decimal.NewFromInt32(item.Quantity))) {
			errs = append(errs, ErrSubtotalMismatch)
		}
	}
	if !o.CalculateTotal().Equal(o.TotalAmount) {
		errs = append(errs, ErrAmountMismatch)
	}

	switch o.PaymentStatus {
	case PaymentStatusCompleted:
		if o.Status != OrderStatusProcessing && o.Status != OrderStatusShipped && o.Status != OrderStatusDelivered {
			errs = append(errs, ErrStatusPaymentState)
		}
	case PaymentStatusRefunded:
		if o.Status != OrderStatusCancelled {
			errs = append(errs, ErrStatusPaymentState)
		}
	}

	return errs
}

// MarkPaid фиксирует успешную оплату: pending -> processing, платёж -> completed.
func (o *Order) MarkPaid(now time.Time) (StatusChange, error) {
	if o.PaymentStatus != PaymentStatusPending {
		return StatusChange{}, ErrPaymentAlreadyProcessed
	}
	if !o.Status.CanTransitionTo(OrderStatusProcessing) {
		return StatusChange{}, InvalidTransition(o.Status, OrderStatusProcessing)
	}
	return o.apply(OrderStatusProcessing, PaymentStatusCompleted, "payment completed", now), nil
}

// MarkPaymentFailed переводит платёжный статус в failed, статус заказа не меняется.
func (o *Order) MarkPaymentFailed(reason string, now time.Time) (StatusChange, error) {
	if o.PaymentStatus != PaymentStatusPending {
		return StatusChange{}, ErrPaymentAlreadyProcessed
	}
	return o.apply(o.Status, PaymentStatusFailed, reason, now), nil
}

// Cancel отменяет заказ. Оплаченный заказ при отмене получает платёжный статус refunded.
func (o *Order) Cancel(reason string, now time.Time) (StatusChange, error) {
	if !o.CanBeCancelled() {
		return StatusChange{}, InvalidTransition(o.Status, OrderStatusCancelled)
	}
	payment := o.PaymentStatus
	if payment == PaymentStatusCompleted {
		payment = PaymentStatusRefunded
	}
	return o.apply(OrderStatusCancelled, payment, reason, now), nil
}

// Refund возвращает оплаченный заказ в статусе processing: refunded + cancelled.
func (o *Order) Refund(reason string, now time.Time) (StatusChange, error) {
	if o.PaymentStatus != PaymentStatusCompleted || o.Status != OrderStatusProcessing {
		return StatusChange{}, InvalidTransition(o.Status, OrderStatusCancelled)
	}
	return o.apply(OrderStatusCancelled, PaymentStatusRefunded, reason, now), nil
}

// Advance выполняет административный переход по логистическим рёбрам графа.
// Рёбра в processing и cancelled требуют побочных эффектов и здесь запрещены.
func (o *Order) Advance(to OrderStatus, now time.Time) (StatusChange, error) {
	if !to.Valid() {
		return StatusChange{}, InvalidStatus(string(to))
	}
	if !o.Status.CanTransitionTo(to) {
		return StatusChange{}, InvalidTransition(o.Status, to)
	}
	switch to {
	case OrderStatusShipped:
		o.ShippedAt = &now
	case OrderStatusDelivered:
		o.DeliveredAt = &now
	default:
		return StatusChange{}, InvalidTransition(o.Status, to)
	}
	return o.apply(to, o.PaymentStatus, "status updated", now), nil
}

func (o *Order) apply(status OrderStatus, payment PaymentStatus, reason string, now time.Time) StatusChange {
	change := StatusChange{
		OrderID:     o.ID,
		From:        o.Status,
		To:          status,
		PaymentFrom: o.PaymentStatus,
		PaymentTo:   payment,
		Reason:      reason,
		Occurred:    now,
	}
	o.Status = status
	o.PaymentStatus = payment
	o.UpdatedAt = now
	return change
}
