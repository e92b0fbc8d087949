package payment

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/events"
	"github.com/vladislavdragonenkov/fulfillment/internal/storage/memory"
)

var (
	owner = domain.Principal{UserID: "user-1", Role: domain.RoleCustomer}
	admin = domain.Principal{UserID: "admin-1", Role: domain.RoleAdmin}
)

type capturePublisher struct {
	mu     sync.Mutex
	events []domain.OrderEvent
}

func (p *capturePublisher) Publish(_ context.Context, e domain.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *capturePublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// chargerFunc позволяет подменить шлюз в тестах гонок.
type chargerFunc func(ctx context.Context, method domain.PaymentMethod, amount decimal.Decimal, token string) (domain.ChargeResult, error)

func (f chargerFunc) Charge(ctx context.Context, method domain.PaymentMethod, amount decimal.Decimal, token string) (domain.ChargeResult, error) {
	return f(ctx, method, amount, token)
}

type fixture struct {
	store     *memory.Store
	stripe    *MockProvider
	gateway   *Gateway
	publisher *capturePublisher
	order     domain.Order
}

func quietLogger() *log.Entry {
	logger := log.New()
	logger.SetOutput(&bytes.Buffer{})
	return log.NewEntry(logger)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	snapshot := domain.CartSnapshot{
		UserID: owner.UserID,
		Lines: []domain.CartLine{
			{ProductID: "p1", ProductName: "Keyboard", Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")},
			{ProductID: "p2", ProductName: "Mouse", Quantity: 1, UnitPrice: decimal.RequireFromString("5.50")},
		},
	}
	address := domain.ShippingAddress{
		Name: "Ada", Email: "ada@example.com", Phone: "+100", Address: "1 Main St",
		City: "Paris", Country: "FR", PostalCode: "75001",
	}
	order, err := domain.NewOrder("order-1", snapshot, address, "", time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, store.Repos().Orders.Create(ctx, order))

	stripe := NewMockProvider("stripe")
	gateway := NewGateway(GatewayConfig{Timeout: 50 * time.Millisecond}, map[domain.PaymentMethod]domain.PaymentProvider{
		domain.PaymentMethodStripe: stripe,
		domain.PaymentMethodPayPal: NewMockProvider("paypal"),
	}, quietLogger())

	return &fixture{store: store, stripe: stripe, gateway: gateway, publisher: &capturePublisher{}, order: order}
}

func (f *fixture) recorder(opts ...RecorderOption) *Recorder {
	return f.recorderWith(f.gateway, opts...)
}

func (f *fixture) recorderWith(charger Charger, opts ...RecorderOption) *Recorder {
	dispatcher := events.NewDispatcher(quietLogger(), events.WithPublisher(f.publisher))
	opts = append([]RecorderOption{WithDispatcher(dispatcher)}, opts...)
	return NewRecorder(f.store, charger, quietLogger(), opts...)
}

func (f *fixture) reload(t *testing.T) domain.Order {
	t.Helper()
	order, err := f.store.Repos().Orders.Get(context.Background(), f.order.ID)
	require.NoError(t, err)
	return order
}

func TestRecordPayment_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.recorder()

	payment, err := rec.RecordPayment(ctx, owner, f.order.ID, domain.PaymentMethodStripe, "tok_visa")
	require.NoError(t, err)
	assert.Equal(t, domain.ChargeStatusCompleted, payment.Status)
	assert.True(t, payment.Amount.Equal(decimal.RequireFromString("25.50")))
	assert.Regexp(t, `^stripe_`, payment.TransactionID)

	order := f.reload(t)
	assert.Equal(t, domain.OrderStatusProcessing, order.Status)
	assert.Equal(t, domain.PaymentStatusCompleted, order.PaymentStatus)

	history, _ := f.store.Repos().Timeline.List(ctx, f.order.ID)
	require.Len(t, history, 1)
	assert.Equal(t, domain.OrderStatusProcessing, history[0].To)
	assert.Equal(t, []domain.EventType{domain.EventOrderPaid}, f.publisher.types())

	_, err = rec.RecordPayment(ctx, owner, f.order.ID, domain.PaymentMethodStripe, "tok_visa")
	assert.ErrorIs(t, err, domain.ErrPaymentAlreadyProcessed)
	assert.Equal(t, 1, f.stripe.Calls())

	// Отклонённая попытка ничего не меняет.
	after := f.reload(t)
	assert.Equal(t, order.Version, after.Version)
	assert.True(t, order.UpdatedAt.Equal(after.UpdatedAt))
	assert.Equal(t, order.Status, after.Status)
	assert.Equal(t, order.PaymentStatus, after.PaymentStatus)
	payments, err := f.store.Repos().Payments.ListByOrder(ctx, f.order.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
	history, _ = f.store.Repos().Timeline.List(ctx, f.order.ID)
	assert.Len(t, history, 1)
	assert.Equal(t, []domain.EventType{domain.EventOrderPaid}, f.publisher.types())
}

func TestRecordPayment_DeclineKeepsOrderPendingUntilCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.recorder(WithMaxFailedAttempts(3))

	for i := 1; i <= 2; i++ {
		payment, err := rec.RecordPayment(ctx, owner, f.order.ID, domain.PaymentMethodStripe, DeclineToken)
		require.ErrorIs(t, err, domain.ErrPaymentFailed)
		assert.NotErrorIs(t, err, domain.ErrPaymentAttemptsExhausted)
		assert.Contains(t, err.Error(), "card declined")
		assert.Equal(t, domain.ChargeStatusFailed, payment.Status)
		order := f.reload(t)
		assert.Equal(t, domain.OrderStatusPending, order.Status)
		assert.Equal(t, domain.PaymentStatusPending, order.PaymentStatus)
	}

	_, err := rec.RecordPayment(ctx, owner, f.order.ID, domain.PaymentMethodStripe, DeclineToken)
	require.ErrorIs(t, err, domain.ErrPaymentFailed)
	require.ErrorIs(t, err, domain.ErrPaymentAttemptsExhausted)

	order := f.reload(t)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, domain.PaymentStatusFailed, order.PaymentStatus)

	_, err = rec.RecordPayment(ctx, owner, f.order.ID, domain.PaymentMethodStripe, "tok_visa")
	assert.ErrorIs(t, err, domain.ErrPaymentAlreadyProcessed)

	failed, _ := f.store.Repos().Payments.CountFailed(ctx, f.order.ID)
	assert.Equal(t, 3, failed)
	assert.Equal(t, 3, f.stripe.Calls())
}

func TestRecordPayment_UnlimitedAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.recorder(WithMaxFailedAttempts(0))

	for i := 0; i < 5; i++ {
		_, err := rec.RecordPayment(ctx, owner, f.order.ID, domain.PaymentMethodStripe, DeclineToken)
		require.ErrorIs(t, err, domain.ErrPaymentFailed)
	}
	_, err := rec.RecordPayment(ctx, owner, f.order.ID, domain.PaymentMethodStripe, "tok_visa")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, f.reload(t).PaymentStatus)
}

func TestRecordPayment_TimeoutIsFailedAttempt(t *testing.T) {
	f := newFixture(t)
	f.stripe.SetDelay(time.Second)
	rec := f.recorder()

	payment, err := rec.RecordPayment(context.Background(), owner, f.order.ID, domain.PaymentMethodStripe, "tok_visa")
	require.ErrorIs(t, err, domain.ErrPaymentFailed)
	assert.Contains(t, payment.Notes, "timed out")
	assert.Empty(t, payment.TransactionID)
	assert.Equal(t, domain.PaymentStatusPending, f.reload(t).PaymentStatus)
	assert.Equal(t, []domain.EventType{domain.EventPaymentFailed}, f.publisher.types())
}

func TestRecordPayment_CallerCancelledDuringChargeStillRecorded(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := f.recorderWith(chargerFunc(func(ctx context.Context, _ domain.PaymentMethod, _ decimal.Decimal, _ string) (domain.ChargeResult, error) {
		cancel()
		return domain.ChargeResult{}, ctx.Err()
	}))

	payment, err := rec.RecordPayment(ctx, owner, f.order.ID, domain.PaymentMethodStripe, "tok_visa")
	require.ErrorIs(t, err, domain.ErrPaymentFailed)
	assert.Equal(t, domain.ChargeStatusFailed, payment.Status)

	failed, err := f.store.Repos().Payments.CountFailed(context.Background(), f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, failed)
	assert.Equal(t, domain.PaymentStatusPending, f.reload(t).PaymentStatus)
}

func TestRecordPayment_CallerCancelledAfterSuccessfulCharge(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := f.recorderWith(chargerFunc(func(context.Context, domain.PaymentMethod, decimal.Decimal, string) (domain.ChargeResult, error) {
		cancel()
		return domain.ChargeResult{Success: true, TransactionID: "stripe_late"}, nil
	}))

	payment, err := rec.RecordPayment(ctx, owner, f.order.ID, domain.PaymentMethodStripe, "tok_visa")
	require.NoError(t, err)
	assert.Equal(t, "stripe_late", payment.TransactionID)
	assert.Equal(t, domain.PaymentStatusCompleted, f.reload(t).PaymentStatus)
}

func TestRecordPayment_AccessAndPreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.recorder()

	tests := []struct {
		name      string
		principal domain.Principal
		orderID   string
		method    domain.PaymentMethod
		want      error
	}{
		{"anonymous", domain.Principal{}, f.order.ID, domain.PaymentMethodStripe, domain.ErrUnauthorized},
		{"foreign user", domain.Principal{UserID: "user-2"}, f.order.ID, domain.PaymentMethodStripe, domain.ErrUnauthorized},
		{"missing order", owner, "missing", domain.PaymentMethodStripe, domain.ErrNotFound},
		{"unknown method", owner, f.order.ID, domain.PaymentMethod("cash"), domain.ErrUnknownPaymentMethod},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rec.RecordPayment(ctx, tt.principal, tt.orderID, tt.method, "tok_visa")
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, 0, f.stripe.Calls())

	_, err := rec.RecordPayment(ctx, admin, f.order.ID, domain.PaymentMethodPayPal, "tok_visa")
	require.NoError(t, err)
}

func TestRecordPayment_CancelledOrderRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.reload(t)
	_, err := order.Cancel("changed mind", time.Now())
	require.NoError(t, err)
	require.NoError(t, f.store.Repos().Orders.Save(ctx, order))

	_, err = f.recorder().RecordPayment(ctx, owner, f.order.ID, domain.PaymentMethodStripe, "tok_visa")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, 0, f.stripe.Calls())
}

func TestRecordPayment_LostRaceRecordsCancelledCharge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	racing := chargerFunc(func(ctx context.Context, method domain.PaymentMethod, amount decimal.Decimal, token string) (domain.ChargeResult, error) {
		// Параллельная попытка успевает оплатить заказ, пока идёт этот вызов.
		_, err := NewRecorder(f.store, f.gateway, quietLogger()).RecordPayment(ctx, owner, f.order.ID, domain.PaymentMethodStripe, "tok_other")
		require.NoError(t, err)
		return domain.ChargeResult{Success: true, TransactionID: "stripe_late", Raw: []byte(`{}`)}, nil
	})

	payment, err := f.recorderWith(racing).RecordPayment(ctx, owner, f.order.ID, domain.PaymentMethodStripe, "tok_visa")
	require.ErrorIs(t, err, domain.ErrPaymentAlreadyProcessed)
	assert.Equal(t, domain.ChargeStatusCancelled, payment.Status)
	assert.Equal(t, "stripe_late", payment.TransactionID)

	payments, _ := f.store.Repos().Payments.ListByOrder(ctx, f.order.ID)
	require.Len(t, payments, 2)
	assert.Equal(t, domain.ChargeStatusCompleted, payments[0].Status)
	assert.Equal(t, domain.ChargeStatusCancelled, payments[1].Status)
	assert.Equal(t, domain.PaymentStatusCompleted, f.reload(t).PaymentStatus)
	assert.Empty(t, f.publisher.types())
}

func TestRecorder_PaymentStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.recorder()

	view, err := rec.PaymentStatus(ctx, owner, f.order.ID)
	require.NoError(t, err)
	assert.Nil(t, view.Latest)
	assert.Equal(t, domain.PaymentStatusPending, view.PaymentStatus)

	_, _ = rec.RecordPayment(ctx, owner, f.order.ID, domain.PaymentMethodStripe, DeclineToken)
	_, err = rec.RecordPayment(ctx, owner, f.order.ID, domain.PaymentMethodStripe, "tok_visa")
	require.NoError(t, err)

	view, err = rec.PaymentStatus(ctx, admin, f.order.ID)
	require.NoError(t, err)
	require.NotNil(t, view.Latest)
	assert.Equal(t, domain.ChargeStatusCompleted, view.Latest.Status)
	assert.Equal(t, 2, view.Attempts)
	assert.Equal(t, domain.PaymentStatusCompleted, view.PaymentStatus)

	_, err = rec.PaymentStatus(ctx, domain.Principal{UserID: "user-2"}, f.order.ID)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}
