package events

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/metrics"
)

const defaultPublishTimeout = 3 * time.Second

// Dispatcher рассылает уведомления после фиксации транзакции и сбрасывает
// кэш статистики. Ошибки приёмников только логируются и учитываются в метриках.
type Dispatcher struct {
	publishers []domain.EventPublisher
	stats      domain.StatsCache
	metrics    *metrics.FulfillmentMetrics
	logger     *log.Entry
	timeout    time.Duration
}

// Option настраивает Dispatcher.
type Option func(*Dispatcher)

// WithPublisher добавляет приёмник уведомлений.
func WithPublisher(p domain.EventPublisher) Option {
	return func(d *Dispatcher) {
		if p != nil {
			d.publishers = append(d.publishers, p)
		}
	}
}

// WithStatsCache задаёт кэш статистики, который сбрасывается после каждого изменения.
func WithStatsCache(c domain.StatsCache) Option {
	return func(d *Dispatcher) { d.stats = c }
}

func WithMetrics(m *metrics.FulfillmentMetrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithTimeout ограничивает время одной публикации.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// NewDispatcher создаёт Dispatcher. Без приёмников события только сбрасывают кэш.
func NewDispatcher(logger *log.Entry, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = log.New().WithField("component", "events")
	}
	d := &Dispatcher{logger: logger, timeout: defaultPublishTimeout}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch публикует события во все приёмники по порядку. Отмена ctx вызывающего
// не прерывает рассылку: транзакция уже зафиксирована.
func (d *Dispatcher) Dispatch(ctx context.Context, events ...domain.OrderEvent) {
	if d == nil || len(events) == 0 {
		return
	}
	base := context.WithoutCancel(ctx)

	for _, event := range events {
		for _, p := range d.publishers {
			pctx, cancel := context.WithTimeout(base, d.timeout)
			err := p.Publish(pctx, event)
			cancel()
			if err != nil {
				d.metrics.RecordEventPublished(metrics.OutcomeError)
				d.logger.WithError(err).WithFields(log.Fields{
					"event_type": event.Type,
					"order_id":   event.OrderID,
				}).Warn("failed to publish order event")
				continue
			}
			d.metrics.RecordEventPublished(metrics.OutcomeSuccess)
		}
	}

	if d.stats != nil {
		cctx, cancel := context.WithTimeout(base, d.timeout)
		defer cancel()
		if err := d.stats.Invalidate(cctx); err != nil {
			d.logger.WithError(err).Warn("failed to invalidate statistics cache")
		}
	}
}
