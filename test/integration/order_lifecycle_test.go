package integration

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"github.com/vladislavdragonenkov/fulfillment/internal/cache"
	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/events"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/fulfillment"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/payment"
	"github.com/vladislavdragonenkov/fulfillment/internal/storage/memory"
)

var (
	alice = domain.Principal{UserID: "alice", Role: domain.RoleCustomer}
	bob   = domain.Principal{UserID: "bob", Role: domain.RoleCustomer}
	admin = domain.Principal{UserID: "ops", Role: domain.RoleAdmin}

	address = domain.ShippingAddress{
		Name: "Alice", Email: "alice@example.com", Phone: "+1 555 0100",
		Address: "1 Main St", City: "Springfield", Country: "US", PostalCode: "12345",
	}
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.OrderEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e domain.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) typesFor(orderID string) []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.EventType
	for _, e := range p.events {
		if e.OrderID == orderID {
			out = append(out, e.Type)
		}
	}
	return out
}

// OrderLifecycleTestSuite проверяет сквозные сценарии: корзина, склад, оплата, уведомления и кэш статистики.
type OrderLifecycleTestSuite struct {
	suite.Suite

	ctx       context.Context
	redis     *miniredis.Miniredis
	store     *memory.Store
	publisher *recordingPublisher
	orders    *fulfillment.Service
	payments  *payment.Recorder
	stripe    *payment.MockProvider
}

func TestOrderLifecycleSuite(t *testing.T) {
	suite.Run(t, new(OrderLifecycleTestSuite))
}

func (s *OrderLifecycleTestSuite) SetupTest() {
	s.ctx = context.Background()
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel)
	logger := baseLogger.WithField("component", "integration-test")

	s.redis = miniredis.RunT(s.T())
	client := redis.NewClient(&redis.Options{Addr: s.redis.Addr()})
	s.T().Cleanup(func() { _ = client.Close() })
	statsCache := cache.NewStatsCache(client, 0)

	s.store = memory.NewStore()
	s.publisher = &recordingPublisher{}
	dispatcher := events.NewDispatcher(logger,
		events.WithPublisher(s.publisher),
		events.WithStatsCache(statsCache),
	)

	s.orders = fulfillment.NewService(s.store, logger,
		fulfillment.WithDispatcher(dispatcher),
		fulfillment.WithStatsCache(statsCache),
	)

	s.stripe = payment.NewMockProvider("stripe")
	gateway := payment.NewGateway(payment.DefaultGatewayConfig(), map[domain.PaymentMethod]domain.PaymentProvider{
		domain.PaymentMethodStripe: s.stripe,
		domain.PaymentMethodPayPal: payment.NewMockProvider("paypal"),
	}, logger)
	s.payments = payment.NewRecorder(s.store, gateway, logger,
		payment.WithDispatcher(dispatcher),
		payment.WithMaxFailedAttempts(2),
	)

	s.upsert("laptop", "Laptop Pro", "1999.00", 3)
	s.upsert("mouse", "Wireless Mouse", "29.99", 10)
}

func (s *OrderLifecycleTestSuite) upsert(id, name, price string, stock int32) {
	s.Require().NoError(s.store.Repos().Products.Upsert(s.ctx, domain.Product{
		ID: id, Name: name, Price: decimal.RequireFromString(price), Stock: stock,
	}))
}

func (s *OrderLifecycleTestSuite) addToCart(p domain.Principal, productID string, qty int32) {
	s.Require().NoError(s.store.Repos().Carts.AddItem(s.ctx, domain.CartItem{UserID: p.UserID, ProductID: productID, Quantity: qty}))
}

func (s *OrderLifecycleTestSuite) stock(productID string) int32 {
	p, err := s.store.Repos().Products.Get(s.ctx, productID)
	s.Require().NoError(err)
	return p.Stock
}

func (s *OrderLifecycleTestSuite) TestSuccessfulOrderLifecycle() {
	// 1. Оформляем заказ из корзины
	s.addToCart(alice, "laptop", 1)
	s.addToCart(alice, "mouse", 2)
	order, err := s.orders.CreateOrder(s.ctx, alice, address, "")
	s.Require().NoError(err)
	s.Equal("2058.98", order.TotalAmount.StringFixed(2))
	s.Equal(int32(2), s.stock("laptop"))
	s.Equal(int32(8), s.stock("mouse"))

	lines, err := s.store.Repos().Carts.Lines(s.ctx, alice.UserID)
	s.Require().NoError(err)
	s.Empty(lines, "cart must be cleared after checkout")

	// 2. Статистика попадает в кэш
	stats, err := s.orders.Statistics(s.ctx, admin)
	s.Require().NoError(err)
	s.Equal(int64(1), stats.PendingOrders)
	s.True(s.redis.Exists(cache.StatsKey))

	// 3. Оплата переводит заказ в processing и сбрасывает кэш
	paid, err := s.payments.RecordPayment(s.ctx, alice, order.ID, domain.PaymentMethodStripe, "tok_visa")
	s.Require().NoError(err)
	s.Equal(domain.ChargeStatusCompleted, paid.Status)
	s.False(s.redis.Exists(cache.StatsKey))

	// 4. Доставка
	for _, next := range []string{"shipped", "delivered"} {
		_, err := s.orders.UpdateOrderStatus(s.ctx, admin, order.ID, next)
		s.Require().NoError(err)
	}

	details, err := s.orders.GetOrder(s.ctx, alice, order.ID)
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusDelivered, details.Order.Status)
	s.Equal(domain.PaymentStatusCompleted, details.Order.PaymentStatus)
	s.Len(details.Payments, 1)
	s.Len(details.History, 4)

	s.Equal([]domain.EventType{
		domain.EventOrderCreated,
		domain.EventOrderPaid,
		domain.EventOrderShipped,
		domain.EventOrderDelivered,
	}, s.publisher.typesFor(order.ID))

	stats, err = s.orders.Statistics(s.ctx, admin)
	s.Require().NoError(err)
	s.Equal(int64(0), stats.PendingOrders)
	s.Equal("2058.98", stats.TotalRevenue.StringFixed(2))
}

func (s *OrderLifecycleTestSuite) TestLastUnitRace() {
	s.upsert("console", "Game Console", "499.00", 1)
	s.addToCart(alice, "console", 1)
	s.addToCart(bob, "console", 1)

	var (
		g         errgroup.Group
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for _, p := range []domain.Principal{alice, bob} {
		g.Go(func() error {
			_, err := s.orders.CreateOrder(s.ctx, p, address, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrInsufficientStock):
				rejected++
			default:
				return err
			}
			return nil
		})
	}
	s.Require().NoError(g.Wait())

	s.Equal(1, succeeded)
	s.Equal(1, rejected)
	s.Equal(int32(0), s.stock("console"))
}

func (s *OrderLifecycleTestSuite) TestPaymentAttemptsExhaustedThenCancel() {
	s.addToCart(alice, "laptop", 2)
	order, err := s.orders.CreateOrder(s.ctx, alice, address, "")
	s.Require().NoError(err)
	s.stripe.DeclineWith("insufficient funds")

	_, err = s.payments.RecordPayment(s.ctx, alice, order.ID, domain.PaymentMethodStripe, "tok_visa")
	s.Require().ErrorIs(err, domain.ErrPaymentFailed)
	s.NotErrorIs(err, domain.ErrPaymentAttemptsExhausted)

	_, err = s.payments.RecordPayment(s.ctx, alice, order.ID, domain.PaymentMethodStripe, "tok_visa")
	s.Require().ErrorIs(err, domain.ErrPaymentAttemptsExhausted)

	_, err = s.payments.RecordPayment(s.ctx, alice, order.ID, domain.PaymentMethodStripe, "tok_visa")
	s.Require().ErrorIs(err, domain.ErrPaymentAlreadyProcessed)

	view, err := s.payments.PaymentStatus(s.ctx, alice, order.ID)
	s.Require().NoError(err)
	s.Equal(domain.PaymentStatusFailed, view.PaymentStatus)
	s.Equal(2, view.Attempts)

	cancelled, err := s.orders.CancelOrder(s.ctx, alice, order.ID, "")
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusCancelled, cancelled.Status)
	s.Equal(int32(3), s.stock("laptop"))
}

func (s *OrderLifecycleTestSuite) TestCancelPaidOrderRefundsAndRestocks() {
	s.addToCart(bob, "mouse", 4)
	order, err := s.orders.CreateOrder(s.ctx, bob, address, "")
	s.Require().NoError(err)
	_, err = s.payments.RecordPayment(s.ctx, bob, order.ID, domain.PaymentMethodPayPal, "tok_paypal")
	s.Require().NoError(err)

	_, err = s.orders.CancelOrder(s.ctx, alice, order.ID, "")
	s.Require().ErrorIs(err, domain.ErrUnauthorized)

	cancelled, err := s.orders.CancelOrder(s.ctx, bob, order.ID, "changed mind")
	s.Require().NoError(err)
	s.Equal(domain.PaymentStatusRefunded, cancelled.PaymentStatus)
	s.Equal(int32(10), s.stock("mouse"))

	_, err = s.orders.CancelOrder(s.ctx, bob, order.ID, "")
	s.Require().ErrorIs(err, domain.ErrInvalidTransition)
	s.Equal(int32(10), s.stock("mouse"), "stock must be released exactly once")

	s.Contains(s.publisher.typesFor(order.ID), domain.EventOrderRefunded)
}
