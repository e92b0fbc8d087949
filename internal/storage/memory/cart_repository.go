package memory

import (
	"context"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

type cartRepository struct {
	a accessor
}

// Lines соединяет строки корзины с каталогом под одной блокировкой.
// Порядок строк совпадает с порядком добавления.
func (r *cartRepository) Lines(_ context.Context, userID string) ([]domain.CartLine, error) {
	var lines []domain.CartLine
	err := r.a.read(func(st *state) error {
		items := st.carts[userID]
		lines = make([]domain.CartLine, 0, len(items))
		for _, item := range items {
			p, ok := st.products[item.ProductID]
			if !ok {
				return domain.NotFound("product", item.ProductID)
			}
			lines = append(lines, domain.CartLine{
				ProductID:   p.ID,
				ProductName: p.Name,
				Quantity:    item.Quantity,
				UnitPrice:   p.Price,
				Stock:       p.Stock,
			})
		}
		return nil
	})
	return lines, err
}

// AddItem добавляет товар; повторный товар увеличивает количество существующей строки.
func (r *cartRepository) AddItem(_ context.Context, item domain.CartItem) error {
	if item.Quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	return r.a.write(func(st *state) error {
		if _, ok := st.products[item.ProductID]; !ok {
			return domain.NotFound("product", item.ProductID)
		}
		items := st.carts[item.UserID]
		for i := range items {
			if items[i].ProductID == item.ProductID {
				items[i].Quantity += item.Quantity
				return nil
			}
		}
		st.carts[item.UserID] = append(items, item)
		return nil
	})
}

func (r *cartRepository) Consume(_ context.Context, userID string, lines []domain.CartLine) error {
	return r.a.write(func(st *state) error {
		items := st.carts[userID]
		for _, line := range lines {
			for i := range items {
				if items[i].ProductID == line.ProductID {
					items[i].Quantity -= line.Quantity
					break
				}
			}
		}
		kept := items[:0]
		for _, item := range items {
			if item.Quantity > 0 {
				kept = append(kept, item)
			}
		}
		if len(kept) == 0 {
			delete(st.carts, userID)
			return nil
		}
		st.carts[userID] = kept
		return nil
	})
}

var _ domain.CartRepository = (*cartRepository)(nil)
