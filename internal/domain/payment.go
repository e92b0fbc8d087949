package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChargeStatus описывает исход одной попытки списания.
type ChargeStatus string

const (
	ChargeStatusPending   ChargeStatus = "pending"
	ChargeStatusCompleted ChargeStatus = "completed"
	ChargeStatusFailed    ChargeStatus = "failed"
	// ChargeStatusCancelled — провайдер списал деньги, но заказ уже был оплачен другой попыткой.
	ChargeStatusCancelled ChargeStatus = "cancelled"
)

// PaymentMethod — тег провайдера, выбранного клиентом.
type PaymentMethod string

const (
	PaymentMethodStripe PaymentMethod = "stripe"
	PaymentMethodPayPal PaymentMethod = "paypal"
)

// Payment — неизменяемая запись о попытке оплаты. Каждая попытка пишется отдельной строкой.
type Payment struct {
	ID      string
	OrderID string
	Amount  decimal.Decimal
	Method  PaymentMethod
	// TransactionID уникален среди всех платежей; для неудачных попыток может быть пустым.
	TransactionID string
	Status        ChargeStatus
	RawResponse   []byte
	Notes         string
	CreatedAt     time.Time
}

// Validate проверяет корректность полей платежа и возвращает ошибки, если они есть.
func (p *Payment) Validate() []error {
	var errs []error

	if p.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if p.Method == "" {
		errs = append(errs, ErrUnknownPaymentMethod)
	}
	if p.Amount.IsNegative() {
		errs = append(errs, ErrAmountNegative)
	}

	return errs
}

// ChargeResult — ответ платёжного провайдера.
type ChargeResult struct {
	Success       bool
	TransactionID string
	Reason        string
	Raw           []byte
}
