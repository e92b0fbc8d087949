package memory

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

type paymentRepository struct {
	a accessor
}

// Create добавляет попытку оплаты. transaction_id уникален, пустой не проверяется.
func (r *paymentRepository) Create(_ context.Context, payment domain.Payment) error {
	return r.a.write(func(st *state) error {
		if _, ok := st.orders[payment.OrderID]; !ok {
			return domain.NotFound("order", payment.OrderID)
		}
		if payment.TransactionID != "" {
			if _, dup := st.txIDs[payment.TransactionID]; dup {
				return fmt.Errorf("%w: %s", domain.ErrDuplicateTransaction, payment.TransactionID)
			}
			st.txIDs[payment.TransactionID] = struct{}{}
		}
		st.payments[payment.OrderID] = append(st.payments[payment.OrderID], payment)
		return nil
	})
}

func (r *paymentRepository) Latest(_ context.Context, orderID string) (domain.Payment, error) {
	var payment domain.Payment
	err := r.a.read(func(st *state) error {
		list := st.payments[orderID]
		if len(list) == 0 {
			return domain.NotFound("payment for order", orderID)
		}
		payment = list[len(list)-1]
		return nil
	})
	return payment, err
}

func (r *paymentRepository) ListByOrder(_ context.Context, orderID string) ([]domain.Payment, error) {
	var result []domain.Payment
	err := r.a.read(func(st *state) error {
		result = append([]domain.Payment{}, st.payments[orderID]...)
		return nil
	})
	return result, err
}

func (r *paymentRepository) CountFailed(_ context.Context, orderID string) (int, error) {
	count := 0
	err := r.a.read(func(st *state) error {
		for _, p := range st.payments[orderID] {
			if p.Status == domain.ChargeStatusFailed {
				count++
			}
		}
		return nil
	})
	return count, err
}

var _ domain.PaymentRepository = (*paymentRepository)(nil)
