// Package fulfillment реализует операции жизненного цикла заказа: оформление
// из корзины, отмену, возврат и административные переходы. Каждая операция
// выполняется одной транзакцией хранилища; уведомления рассылаются после фиксации.
package fulfillment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/metrics"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/cart"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/events"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/inventory"
	"github.com/vladislavdragonenkov/fulfillment/internal/tracing"
)

// Параметры постраничного списка заказов.
const (
	DefaultPageSize = 15
	MaxPageSize     = 100
)

// Service — сервис оформления и сопровождения заказов.
type Service struct {
	storage    domain.Storage
	carts      *cart.Reader
	ledger     *inventory.Ledger
	dispatcher *events.Dispatcher
	stats      domain.StatsCache
	metrics    *metrics.FulfillmentMetrics
	tracer     trace.Tracer
	logger     *log.Entry
	now        func() time.Time
	newID      func() string
}

// Option настраивает Service.
type Option func(*Service)

// WithDispatcher задаёт рассылку уведомлений после фиксации транзакций.
func WithDispatcher(d *events.Dispatcher) Option {
	return func(s *Service) { s.dispatcher = d }
}

// WithStatsCache включает кэширование статистики.
func WithStatsCache(c domain.StatsCache) Option {
	return func(s *Service) { s.stats = c }
}

func WithMetrics(m *metrics.FulfillmentMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator подменяет генератор идентификаторов заказов.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// NewService создаёт сервис поверх хранилища.
func NewService(storage domain.Storage, logger *log.Entry, opts ...Option) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "fulfillment")
	}
	s := &Service{
		storage: storage,
		tracer:  tracing.Tracer(),
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.carts = cart.NewReader(storage.Repos().Carts, s.now)
	s.ledger = inventory.NewLedger(logger.WithField("component", "inventory"), s.metrics)
	return s
}

// begin открывает span и метрику операции. Возвращённую функцию нужно вызвать
// с итоговой ошибкой.
func (s *Service) begin(ctx context.Context, operation string, opts ...trace.SpanStartOption) (context.Context, func(error)) {
	ctx, span := s.tracer.Start(ctx, "fulfillment."+operation, opts...)
	done := s.metrics.Track(operation)
	return ctx, func(err error) {
		done(outcome(err))
		tracing.End(span, err)
	}
}

// loadForUpdate блокирует заказ и проверяет право доступа в рамках транзакции.
func loadForUpdate(ctx context.Context, repos domain.Repositories, p domain.Principal, orderID string) (domain.Order, error) {
	order, err := repos.Orders.GetForUpdate(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !p.CanAccess(order) {
		return domain.Order{}, domain.ErrUnauthorized
	}
	return order, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrNotFound):
		return metrics.OutcomeRejected
	}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return metrics.OutcomeRejected
	}
	return metrics.OutcomeError
}
