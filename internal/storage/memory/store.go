package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// state — всё содержимое хранилища. Транзакция работает с копией и подменяет оригинал при успехе.
type state struct {
	products map[string]domain.Product
	carts    map[string][]domain.CartItem
	orders   map[string]domain.Order
	payments map[string][]domain.Payment
	txIDs    map[string]struct{}
	timeline map[string][]domain.StatusChange
}

func newState() *state {
	return &state{
		products: make(map[string]domain.Product),
		carts:    make(map[string][]domain.CartItem),
		orders:   make(map[string]domain.Order),
		payments: make(map[string][]domain.Payment),
		txIDs:    make(map[string]struct{}),
		timeline: make(map[string][]domain.StatusChange),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.carts {
		c.carts[k] = append([]domain.CartItem(nil), v...)
	}
	for k, v := range s.orders {
		c.orders[k] = cloneOrder(v)
	}
	for k, v := range s.payments {
		c.payments[k] = append([]domain.Payment(nil), v...)
	}
	for k := range s.txIDs {
		c.txIDs[k] = struct{}{}
	}
	for k, v := range s.timeline {
		c.timeline[k] = append([]domain.StatusChange(nil), v...)
	}
	return c
}

// accessor выполняет fn над состоянием с нужной синхронизацией.
type accessor interface {
	read(fn func(st *state) error) error
	write(fn func(st *state) error) error
}

// Store — in-memory хранилище для локальной разработки и тестов.
// Транзакции сериализуются: одновременно выполняется не больше одной.
type Store struct {
	mu sync.RWMutex
	st *state
}

// NewStore создаёт пустое хранилище.
func NewStore() *Store {
	return &Store{st: newState()}
}

func (s *Store) read(fn func(st *state) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.st)
}

func (s *Store) write(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// Repos возвращает репозитории, каждая операция которых атомарна сама по себе.
func (s *Store) Repos() domain.Repositories {
	return reposFor(s)
}

// WithinTx выполняет fn над копией состояния. Ошибка или паника оставляют хранилище без изменений.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &txState{st: s.st.clone()}
	if err := fn(ctx, reposFor(tx)); err != nil {
		return err
	}
	s.st = tx.st
	return nil
}

// txState — состояние внутри транзакции; блокировка уже удерживается Store.
type txState struct {
	st *state
}

func (t *txState) read(fn func(st *state) error) error  { return fn(t.st) }
func (t *txState) write(fn func(st *state) error) error { return fn(t.st) }

func reposFor(a accessor) domain.Repositories {
	return domain.Repositories{
		Products: &productRepository{a: a},
		Carts:    &cartRepository{a: a},
		Orders:   &orderRepository{a: a},
		Payments: &paymentRepository{a: a},
		Timeline: &timelineRepository{a: a},
	}
}

var _ domain.Storage = (*Store)(nil)
