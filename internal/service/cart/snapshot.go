package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// Reader читает согласованный снимок корзины.
type Reader struct {
	carts domain.CartRepository
	now   func() time.Time
}

// NewReader создаёт Reader. now может быть nil, тогда используется time.Now.
func NewReader(carts domain.CartRepository, now func() time.Time) *Reader {
	if now == nil {
		now = time.Now
	}
	return &Reader{carts: carts, now: now}
}

// Snapshot возвращает строки корзины с ценами каталога на момент чтения.
// Пустая корзина даёт ErrEmptyCart.
func (r *Reader) Snapshot(ctx context.Context, userID string) (domain.CartSnapshot, error) {
	lines, err := r.carts.Lines(ctx, userID)
	if err != nil {
		return domain.CartSnapshot{}, fmt.Errorf("read cart: %w", err)
	}
	if len(lines) == 0 {
		return domain.CartSnapshot{}, domain.ErrEmptyCart
	}
	return domain.CartSnapshot{
		UserID:     userID,
		Lines:      lines,
		CapturedAt: r.now().UTC(),
	}, nil
}
