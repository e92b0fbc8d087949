package memory

import (
	"context"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// productRepository — каталог с остатками в памяти.
type productRepository struct {
	a accessor
}

func (r *productRepository) Get(_ context.Context, id string) (domain.Product, error) {
	var product domain.Product
	err := r.a.read(func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return domain.NotFound("product", id)
		}
		product = p
		return nil
	})
	return product, err
}

func (r *productRepository) Upsert(_ context.Context, product domain.Product) error {
	if product.Stock < 0 {
		return domain.ErrInvalidQuantity
	}
	return r.a.write(func(st *state) error {
		st.products[product.ID] = product
		return nil
	})
}

// TryReserve уменьшает остаток только при достаточном количестве.
func (r *productRepository) TryReserve(_ context.Context, id string, qty int32) (bool, error) {
	if qty <= 0 {
		return false, domain.ErrInvalidQuantity
	}
	reserved := false
	err := r.a.write(func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return domain.NotFound("product", id)
		}
		if p.Stock < qty {
			return nil
		}
		p.Stock -= qty
		st.products[id] = p
		reserved = true
		return nil
	})
	return reserved, err
}

func (r *productRepository) Release(_ context.Context, id string, qty int32) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}
	return r.a.write(func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return domain.NotFound("product", id)
		}
		p.Stock += qty
		st.products[id] = p
		return nil
	})
}

var _ domain.ProductRepository = (*productRepository)(nil)
