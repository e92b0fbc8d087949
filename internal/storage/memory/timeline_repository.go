package memory

import (
	"context"
	"sort"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// timelineRepository хранит историю переходов в памяти.
type timelineRepository struct {
	a accessor
}

// Append добавляет запись, сохраняя хронологический порядок.
func (r *timelineRepository) Append(_ context.Context, change domain.StatusChange) error {
	return r.a.write(func(st *state) error {
		events := append(st.timeline[change.OrderID], change)
		sort.SliceStable(events, func(i, j int) bool {
			return events[i].Occurred.Before(events[j].Occurred)
		})
		st.timeline[change.OrderID] = events
		return nil
	})
}

// List возвращает историю заказа в хронологическом порядке.
func (r *timelineRepository) List(_ context.Context, orderID string) ([]domain.StatusChange, error) {
	var result []domain.StatusChange
	err := r.a.read(func(st *state) error {
		events := st.timeline[orderID]
		result = make([]domain.StatusChange, len(events))
		copy(result, events)
		return nil
	})
	return result, err
}

var _ domain.TimelineRepository = (*timelineRepository)(nil)
