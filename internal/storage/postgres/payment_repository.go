package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

type paymentRepository struct {
	db dbtx
}

func (r *paymentRepository) Create(ctx context.Context, p domain.Payment) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	txID := sql.NullString{String: p.TransactionID, Valid: p.TransactionID != ""}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (
			id, order_id, amount, method, transaction_id, status, raw_response, notes, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		p.ID, p.OrderID, p.Amount, string(p.Method), txID, string(p.Status),
		p.RawResponse, p.Notes, p.CreatedAt,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return fmt.Errorf("%w: %s", domain.ErrDuplicateTransaction, p.TransactionID)
		case isForeignKeyViolation(err):
			return domain.NotFound("order", p.OrderID)
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *paymentRepository) Latest(ctx context.Context, orderID string) (domain.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	p, err := scanPayment(r.db.QueryRowContext(ctx, `
		SELECT id, order_id, amount, method, transaction_id, status, raw_response, notes, created_at
		FROM payments
		WHERE order_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Payment{}, domain.NotFound("payment for order", orderID)
		}
		return domain.Payment{}, fmt.Errorf("select latest payment: %w", err)
	}
	return p, nil
}

func (r *paymentRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, amount, method, transaction_id, status, raw_response, notes, created_at
		FROM payments
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	return payments, nil
}

func (r *paymentRepository) CountFailed(ctx context.Context, orderID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var count int
	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM payments WHERE order_id = $1 AND status = 'failed'
	`, orderID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count failed payments: %w", err)
	}
	return count, nil
}

func scanPayment(row rowScanner) (domain.Payment, error) {
	var (
		p      domain.Payment
		method string
		status string
		txID   sql.NullString
	)
	if err := row.Scan(&p.ID, &p.OrderID, &p.Amount, &method, &txID, &status, &p.RawResponse, &p.Notes, &p.CreatedAt); err != nil {
		return domain.Payment{}, err
	}
	p.Method = domain.PaymentMethod(method)
	p.Status = domain.ChargeStatus(status)
	p.TransactionID = txID.String
	return p, nil
}

var _ domain.PaymentRepository = (*paymentRepository)(nil)
