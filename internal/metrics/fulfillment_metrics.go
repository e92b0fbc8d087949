package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты операций для меток.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// FulfillmentMetrics содержит метрики операций оформления и сопровождения заказов.
// Все методы безопасны для nil-получателя, чтобы тесты могли отключать метрики.
type FulfillmentMetrics struct {
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	inFlight          prometheus.Gauge

	ordersCreated   prometheus.Counter
	stockRejections prometheus.Counter
	unitsReserved   prometheus.Counter
	unitsReleased   prometheus.Counter
	paymentAttempts *prometheus.CounterVec
	statusChanges   *prometheus.CounterVec
	eventsPublished *prometheus.CounterVec
}

// NewFulfillmentMetrics регистрирует метрики в DefaultRegisterer.
func NewFulfillmentMetrics() *FulfillmentMetrics {
	return NewFulfillmentMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewFulfillmentMetricsWithRegisterer регистрирует метрики в переданном реестре.
func NewFulfillmentMetricsWithRegisterer(registerer prometheus.Registerer) *FulfillmentMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &FulfillmentMetrics{
		operations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "oms_fulfillment_operations_total",
			Help: "Total number of fulfillment operations by outcome",
		}, []string{"operation", "outcome"}),
		operationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "oms_fulfillment_operation_duration_seconds",
			Help:    "Duration of fulfillment operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
		inFlight: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "oms_fulfillment_operations_in_flight",
			Help: "Number of fulfillment operations currently executing",
		}),
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "oms_orders_created_total",
			Help: "Total number of orders created from carts",
		}),
		stockRejections: registerCounter(registerer, prometheus.CounterOpts{
			Name: "oms_inventory_rejections_total",
			Help: "Total number of order attempts rejected for insufficient stock",
		}),
		unitsReserved: registerCounter(registerer, prometheus.CounterOpts{
			Name: "oms_inventory_units_reserved_total",
			Help: "Total number of stock units reserved",
		}),
		unitsReleased: registerCounter(registerer, prometheus.CounterOpts{
			Name: "oms_inventory_units_released_total",
			Help: "Total number of stock units returned to inventory",
		}),
		paymentAttempts: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "oms_payment_attempts_total",
			Help: "Total number of payment attempts by method and charge status",
		}, []string{"method", "status"}),
		statusChanges: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "oms_order_status_changes_total",
			Help: "Total number of order status changes by target status",
		}, []string{"to"}),
		eventsPublished: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "oms_order_events_published_total",
			Help: "Total number of order notifications by publish outcome",
		}, []string{"outcome"}),
	}
}

// Track отмечает начало операции и возвращает функцию завершения с итоговой ошибкой.
func (m *FulfillmentMetrics) Track(operation string) func(outcome string) {
	if m == nil {
		return func(string) {}
	}
	start := time.Now()
	m.inFlight.Inc()
	return func(outcome string) {
		m.inFlight.Dec()
		m.operations.WithLabelValues(operation, outcome).Inc()
		m.operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *FulfillmentMetrics) RecordOrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

// RecordStockRejection увеличивает счётчик отказов по остаткам.
func (m *FulfillmentMetrics) RecordStockRejection() {
	if m == nil {
		return
	}
	m.stockRejections.Inc()
}

func (m *FulfillmentMetrics) RecordUnitsReserved(qty int32) {
	if m == nil {
		return
	}
	m.unitsReserved.Add(float64(qty))
}

func (m *FulfillmentMetrics) RecordUnitsReleased(qty int32) {
	if m == nil {
		return
	}
	m.unitsReleased.Add(float64(qty))
}

// RecordPaymentAttempt учитывает попытку оплаты.
func (m *FulfillmentMetrics) RecordPaymentAttempt(method, status string) {
	if m == nil {
		return
	}
	m.paymentAttempts.WithLabelValues(method, status).Inc()
}

// RecordStatusChange учитывает переход заказа.
func (m *FulfillmentMetrics) RecordStatusChange(to string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(to).Inc()
}

// RecordEventPublished учитывает результат публикации уведомления.
func (m *FulfillmentMetrics) RecordEventPublished(outcome string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(outcome).Inc()
}
