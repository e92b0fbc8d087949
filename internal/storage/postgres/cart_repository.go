package postgres

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

type cartRepository struct {
	db dbtx
}

// Lines читает корзину и цены одним запросом, поэтому снимок согласован.
func (r *cartRepository) Lines(ctx context.Context, userID string) ([]domain.CartLine, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT c.product_id, p.name, c.quantity, p.price, p.stock
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("select cart lines: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.CartLine, 0)
	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(&line.ProductID, &line.ProductName, &line.Quantity, &line.UnitPrice, &line.Stock); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart lines: %w", err)
	}

	return lines, nil
}

func (r *cartRepository) AddItem(ctx context.Context, item domain.CartItem) error {
	if item.Quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_items (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id) DO UPDATE
		SET quantity = cart_items.quantity + EXCLUDED.quantity
	`, item.UserID, item.ProductID, item.Quantity)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.NotFound("product", item.ProductID)
		}
		return fmt.Errorf("insert cart item: %w", err)
	}
	return nil
}

// Consume вычитает оформленные количества. Условный DELETE и UPDATE берут
// блокировку строки, поэтому параллельное AddItem не теряется.
func (r *cartRepository) Consume(ctx context.Context, userID string, lines []domain.CartLine) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	for _, line := range lines {
		res, err := r.db.ExecContext(ctx, `
			DELETE FROM cart_items
			WHERE user_id = $1 AND product_id = $2 AND quantity <= $3
		`, userID, line.ProductID, line.Quantity)
		if err != nil {
			return fmt.Errorf("delete cart line %s: %w", line.ProductID, err)
		}
		deleted, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete cart line rows affected: %w", err)
		}
		if deleted > 0 {
			continue
		}

		if _, err := r.db.ExecContext(ctx, `
			UPDATE cart_items SET quantity = quantity - $3
			WHERE user_id = $1 AND product_id = $2 AND quantity > $3
		`, userID, line.ProductID, line.Quantity); err != nil {
			return fmt.Errorf("decrement cart line %s: %w", line.ProductID, err)
		}
	}
	return nil
}

var _ domain.CartRepository = (*cartRepository)(nil)
