package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

type timelineRepository struct {
	db dbtx
}

func (r *timelineRepository) Append(ctx context.Context, change domain.StatusChange) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if change.Occurred.IsZero() {
		change.Occurred = time.Now().UTC()
	}

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO order_status_changes (order_id, from_status, to_status, payment_from, payment_to, reason, occurred)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		change.OrderID, string(change.From), string(change.To),
		string(change.PaymentFrom), string(change.PaymentTo), change.Reason, change.Occurred,
	); err != nil {
		return fmt.Errorf("append status change: %w", err)
	}

	return nil
}

func (r *timelineRepository) List(ctx context.Context, orderID string) ([]domain.StatusChange, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, from_status, to_status, payment_from, payment_to, reason, occurred
		FROM order_status_changes
		WHERE order_id = $1
		ORDER BY occurred ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list status changes: %w", err)
	}
	defer rows.Close()

	changes := make([]domain.StatusChange, 0)
	for rows.Next() {
		var (
			c                              domain.StatusChange
			from, to, paymentFrom, payment string
		)
		if err := rows.Scan(&c.OrderID, &from, &to, &paymentFrom, &payment, &c.Reason, &c.Occurred); err != nil {
			return nil, fmt.Errorf("scan status change: %w", err)
		}
		c.From = domain.OrderStatus(from)
		c.To = domain.OrderStatus(to)
		c.PaymentFrom = domain.PaymentStatus(paymentFrom)
		c.PaymentTo = domain.PaymentStatus(payment)
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status changes: %w", err)
	}

	return changes, nil
}

var _ domain.TimelineRepository = (*timelineRepository)(nil)
