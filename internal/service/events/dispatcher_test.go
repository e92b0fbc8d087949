package events

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/metrics"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.OrderEvent
	err    error
	ctxErr error
}

func (p *recordingPublisher) Publish(ctx context.Context, event domain.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ctxErr = ctx.Err()
	p.events = append(p.events, event)
	return p.err
}

type stubStatsCache struct {
	invalidations int
	err           error
}

func (c *stubStatsCache) Get(context.Context) (domain.OrderStats, bool, error) {
	return domain.OrderStats{}, false, nil
}

func (c *stubStatsCache) Set(context.Context, domain.OrderStats) error { return nil }

func (c *stubStatsCache) Invalidate(context.Context) error {
	c.invalidations++
	return c.err
}

func quietLogger() *log.Entry {
	logger := log.New()
	logger.SetOutput(&bytes.Buffer{})
	return log.NewEntry(logger)
}

func TestDispatcher_PublishesToAllSinksAndInvalidatesCache(t *testing.T) {
	first := &recordingPublisher{}
	failing := &recordingPublisher{err: errors.New("broker down")}
	cache := &stubStatsCache{}
	m := metrics.NewFulfillmentMetricsWithRegisterer(prometheus.NewRegistry())

	d := NewDispatcher(quietLogger(),
		WithPublisher(first),
		WithPublisher(failing),
		WithPublisher(nil),
		WithStatsCache(cache),
		WithMetrics(m),
		WithTimeout(time.Second),
	)

	events := []domain.OrderEvent{
		{Type: domain.EventOrderCancelled, OrderID: "o1"},
		{Type: domain.EventOrderRefunded, OrderID: "o1"},
	}
	d.Dispatch(context.Background(), events...)

	require.Len(t, first.events, 2)
	assert.Equal(t, domain.EventOrderRefunded, first.events[1].Type)
	assert.Len(t, failing.events, 2)
	assert.Equal(t, 1, cache.invalidations)
}

func TestDispatcher_IgnoresCallerCancellation(t *testing.T) {
	p := &recordingPublisher{}
	d := NewDispatcher(quietLogger(), WithPublisher(p))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Dispatch(ctx, domain.OrderEvent{Type: domain.EventOrderCreated, OrderID: "o1"})

	require.Len(t, p.events, 1)
	assert.NoError(t, p.ctxErr)
}

func TestDispatcher_NilAndEmpty(t *testing.T) {
	var d *Dispatcher
	d.Dispatch(context.Background(), domain.OrderEvent{})

	cache := &stubStatsCache{err: errors.New("redis down")}
	d = NewDispatcher(quietLogger(), WithStatsCache(cache))
	d.Dispatch(context.Background())
	assert.Equal(t, 0, cache.invalidations)

	d.Dispatch(context.Background(), domain.OrderEvent{OrderID: "o1"})
	assert.Equal(t, 1, cache.invalidations)
}

func TestLogPublisher_Publish(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&log.JSONFormatter{})

	p := NewLogPublisher(log.NewEntry(logger))
	err := p.Publish(context.Background(), domain.OrderEvent{
		Type: domain.EventOrderShipped, OrderID: "o-42", Status: domain.OrderStatusShipped,
	})
	require.NoError(t, err)
	assert.True(t, strings.Contains(buf.String(), `"order_id":"o-42"`), buf.String())
	assert.True(t, strings.Contains(buf.String(), `"event_type":"order.shipped"`), buf.String())
}
