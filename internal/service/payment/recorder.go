package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/metrics"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/events"
	"github.com/vladislavdragonenkov/fulfillment/internal/tracing"
)

// DefaultMaxFailedAttempts — лимит неудачных попыток оплаты одного заказа.
const DefaultMaxFailedAttempts = 3

// Charger вызывает провайдера по методу оплаты.
type Charger interface {
	Charge(ctx context.Context, method domain.PaymentMethod, amount decimal.Decimal, token string) (domain.ChargeResult, error)
}

// Recorder фиксирует результат списания и продвигает заказ.
type Recorder struct {
	storage           domain.Storage
	charger           Charger
	dispatcher        *events.Dispatcher
	metrics           *metrics.FulfillmentMetrics
	tracer            trace.Tracer
	logger            *log.Entry
	now               func() time.Time
	newID             func() string
	maxFailedAttempts int
}

// RecorderOption настраивает Recorder.
type RecorderOption func(*Recorder)

func WithDispatcher(d *events.Dispatcher) RecorderOption {
	return func(r *Recorder) { r.dispatcher = d }
}

func WithMetrics(m *metrics.FulfillmentMetrics) RecorderOption {
	return func(r *Recorder) { r.metrics = m }
}

func WithTracer(t trace.Tracer) RecorderOption {
	return func(r *Recorder) {
		if t != nil {
			r.tracer = t
		}
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIDGenerator подменяет генератор идентификаторов платежей.
func WithIDGenerator(newID func() string) RecorderOption {
	return func(r *Recorder) {
		if newID != nil {
			r.newID = newID
		}
	}
}

// WithMaxFailedAttempts задаёт лимит неудачных попыток; 0 снимает ограничение.
func WithMaxFailedAttempts(n int) RecorderOption {
	return func(r *Recorder) {
		if n >= 0 {
			r.maxFailedAttempts = n
		}
	}
}

// NewRecorder создаёт Recorder поверх хранилища и платёжного шлюза.
func NewRecorder(storage domain.Storage, charger Charger, logger *log.Entry, opts ...RecorderOption) *Recorder {
	if logger == nil {
		logger = log.New().WithField("component", "payment-recorder")
	}
	r := &Recorder{
		storage:           storage,
		charger:           charger,
		tracer:            tracing.Tracer(),
		logger:            logger,
		now:               time.Now,
		newID:             uuid.NewString,
		maxFailedAttempts: DefaultMaxFailedAttempts,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RecordPayment списывает сумму заказа и фиксирует результат.
//
// Провайдер вызывается вне транзакции. Успех в одной транзакции пишет платёж
// completed и переводит заказ в processing. Отказ или таймаут пишет платёж failed,
// заказ остаётся pending, пока не исчерпан лимит попыток.
func (r *Recorder) RecordPayment(ctx context.Context, p domain.Principal, orderID string, method domain.PaymentMethod, token string) (payment domain.Payment, err error) {
	ctx, span := r.tracer.Start(ctx, "payment.RecordPayment", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("payment.method", string(method)),
	))
	done := r.metrics.Track("record_payment")
	defer func() {
		done(outcome(err))
		tracing.End(span, err)
	}()

	if p.UserID == "" {
		return domain.Payment{}, domain.ErrUnauthorized
	}
	if _, err := ParseMethod(string(method)); err != nil {
		return domain.Payment{}, err
	}

	order, err := r.storage.Repos().Orders.Get(ctx, orderID)
	if err != nil {
		return domain.Payment{}, err
	}
	if !p.CanAccess(order) {
		return domain.Payment{}, domain.ErrUnauthorized
	}
	if err := checkPayable(order); err != nil {
		return domain.Payment{}, err
	}

	result, chargeErr := r.charger.Charge(ctx, method, order.TotalAmount, token)

	// Исход списания фиксируется даже после отмены запроса вызывающим.
	recordCtx := context.WithoutCancel(ctx)
	if chargeErr == nil && result.Success {
		return r.recordSuccess(recordCtx, orderID, method, result)
	}

	reason := result.Reason
	if chargeErr != nil {
		reason = chargeErr.Error()
	}
	if reason == "" {
		reason = "payment declined"
	}
	return r.recordFailure(recordCtx, orderID, method, reason, result.Raw)
}

func (r *Recorder) recordSuccess(ctx context.Context, orderID string, method domain.PaymentMethod, result domain.ChargeResult) (domain.Payment, error) {
	var (
		payment  domain.Payment
		order    domain.Order
		applyErr error
	)
	err := r.storage.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		var err error
		order, err = repos.Orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		now := r.now().UTC()
		payment = domain.Payment{
			ID:            r.newID(),
			OrderID:       order.ID,
			Amount:        order.TotalAmount,
			Method:        method,
			TransactionID: result.TransactionID,
			Status:        domain.ChargeStatusCompleted,
			RawResponse:   result.Raw,
			CreatedAt:     now,
		}

		change, markErr := order.MarkPaid(now)
		if markErr != nil {
			// Деньги списаны, но заказ уже оплачен или отменён: фиксируем списание
			// отдельной записью, чтобы его можно было вернуть вручную.
			payment.Status = domain.ChargeStatusCancelled
			payment.Notes = "charge not applied: " + markErr.Error()
			applyErr = markErr
			return repos.Payments.Create(ctx, payment)
		}

		if err := repos.Payments.Create(ctx, payment); err != nil {
			return err
		}
		if err := repos.Orders.Save(ctx, order); err != nil {
			return err
		}
		return repos.Timeline.Append(ctx, change)
	})
	if err != nil {
		r.logger.WithError(err).WithFields(log.Fields{
			"order_id":       orderID,
			"transaction_id": result.TransactionID,
		}).Error("charge succeeded but could not be recorded")
		return domain.Payment{}, fmt.Errorf("record payment: %w", err)
	}

	r.metrics.RecordPaymentAttempt(string(method), string(payment.Status))
	if applyErr != nil {
		r.logger.WithFields(log.Fields{
			"order_id":       orderID,
			"transaction_id": payment.TransactionID,
		}).Warn("charge recorded as cancelled, order no longer payable")
		return payment, applyErr
	}

	r.metrics.RecordStatusChange(string(domain.OrderStatusProcessing))
	r.dispatcher.Dispatch(ctx, domain.NewOrderEvent(domain.EventOrderPaid, order, ""))
	r.logger.WithFields(log.Fields{
		"order_id":       orderID,
		"transaction_id": payment.TransactionID,
		"amount":         payment.Amount.StringFixed(2),
	}).Info("payment completed")
	return payment, nil
}

func (r *Recorder) recordFailure(ctx context.Context, orderID string, method domain.PaymentMethod, reason string, raw []byte) (domain.Payment, error) {
	var (
		payment   domain.Payment
		order     domain.Order
		exhausted bool
	)
	err := r.storage.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		var err error
		order, err = repos.Orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		failed, err := repos.Payments.CountFailed(ctx, orderID)
		if err != nil {
			return err
		}

		now := r.now().UTC()
		payment = domain.Payment{
			ID:          r.newID(),
			OrderID:     order.ID,
			Amount:      order.TotalAmount,
			Method:      method,
			Status:      domain.ChargeStatusFailed,
			RawResponse: raw,
			Notes:       reason,
			CreatedAt:   now,
		}
		if err := repos.Payments.Create(ctx, payment); err != nil {
			return err
		}

		if r.maxFailedAttempts == 0 || failed+1 < r.maxFailedAttempts || order.PaymentStatus != domain.PaymentStatusPending {
			return nil
		}
		change, err := order.MarkPaymentFailed(reason, now)
		if err != nil {
			return err
		}
		if err := repos.Orders.Save(ctx, order); err != nil {
			return err
		}
		exhausted = true
		return repos.Timeline.Append(ctx, change)
	})
	if err != nil {
		return domain.Payment{}, fmt.Errorf("record failed payment: %w", err)
	}

	r.metrics.RecordPaymentAttempt(string(method), string(domain.ChargeStatusFailed))
	r.dispatcher.Dispatch(ctx, domain.NewOrderEvent(domain.EventPaymentFailed, order, reason))
	r.logger.WithFields(log.Fields{
		"order_id":  orderID,
		"method":    method,
		"reason":    reason,
		"exhausted": exhausted,
	}).Warn("payment failed")

	if exhausted {
		return payment, domain.PaymentAttemptsExhausted(reason)
	}
	return payment, domain.PaymentFailed(reason)
}

// StatusView — текущее платёжное состояние заказа.
type StatusView struct {
	OrderID       string
	PaymentStatus domain.PaymentStatus
	// Latest — последняя попытка или nil, если платежей не было.
	Latest   *domain.Payment
	Attempts int
}

// PaymentStatus возвращает платёжный статус заказа и последнюю попытку.
func (r *Recorder) PaymentStatus(ctx context.Context, p domain.Principal, orderID string) (StatusView, error) {
	if p.UserID == "" {
		return StatusView{}, domain.ErrUnauthorized
	}
	repos := r.storage.Repos()
	order, err := repos.Orders.Get(ctx, orderID)
	if err != nil {
		return StatusView{}, err
	}
	if !p.CanAccess(order) {
		return StatusView{}, domain.ErrUnauthorized
	}

	payments, err := repos.Payments.ListByOrder(ctx, orderID)
	if err != nil {
		return StatusView{}, err
	}
	view := StatusView{OrderID: order.ID, PaymentStatus: order.PaymentStatus, Attempts: len(payments)}
	if len(payments) > 0 {
		latest := payments[len(payments)-1]
		view.Latest = &latest
	}
	return view, nil
}

func checkPayable(order domain.Order) error {
	if order.PaymentStatus != domain.PaymentStatusPending {
		return domain.ErrPaymentAlreadyProcessed
	}
	if order.Status != domain.OrderStatusPending {
		return domain.InvalidTransition(order.Status, domain.OrderStatusProcessing)
	}
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, domain.ErrPaymentFailed),
		errors.Is(err, domain.ErrPaymentAlreadyProcessed),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrUnknownPaymentMethod):
		return metrics.OutcomeRejected
	}
	return metrics.OutcomeError
}
