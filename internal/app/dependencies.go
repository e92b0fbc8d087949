package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/cache"
	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/fulfillment/internal/metrics"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/events"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/fulfillment"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/payment"
	"github.com/vladislavdragonenkov/fulfillment/internal/storage/memory"
	"github.com/vladislavdragonenkov/fulfillment/internal/storage/postgres"
	"github.com/vladislavdragonenkov/fulfillment/internal/tracing"
)

// runtimeDependencies содержит все зависимости запущенного приложения.
type runtimeDependencies struct {
	storage  domain.Storage
	orders   *fulfillment.Service
	payments *payment.Recorder

	// storageChecker nil для хранилища в памяти.
	storageChecker func(ctx context.Context) error
	statsCache     *cache.StatsCache

	closers []func() error
}

// close освобождает ресурсы в обратном порядке.
func (d *runtimeDependencies) close(logger *log.Entry) {
	if d == nil {
		return
	}
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			logger.WithError(err).Warn("failed to close dependency")
		}
	}
	d.closers = nil
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (deps *runtimeDependencies, err error) {
	deps = &runtimeDependencies{}
	defer func() {
		if err != nil {
			deps.close(logger)
		}
	}()

	if err := initStorage(ctx, cfg, deps, logger); err != nil {
		return nil, err
	}
	if cfg.SeedFile != "" {
		data, err := loadSeed(ctx, deps.storage, cfg.SeedFile)
		if err != nil {
			return nil, err
		}
		logger.WithFields(log.Fields{
			"products": len(data.Products),
			"carts":    len(data.Carts),
		}).Info("seed data loaded")
	}

	var publisher domain.EventPublisher = events.NewLogPublisher(logger.WithField("component", "events"))
	producer, err := initKafkaProducer(cfg.KafkaBrokers, logger)
	if err == nil && producer != nil {
		deps.closers = append(deps.closers, func() error {
			closeKafka(producer, logger)
			return nil
		})
		publisher = kafka.NewEventPublisher(producer, cfg.KafkaTopic)
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		deps.closers = append(deps.closers, client.Close)
		deps.statsCache = cache.NewStatsCache(client, cfg.StatsTTL)
		if pingErr := deps.statsCache.Ping(ctx); pingErr != nil {
			logger.WithError(pingErr).Warn("redis is not reachable, statistics will be served from storage")
		}
	}

	fulfillmentMetrics := metrics.NewFulfillmentMetrics()
	dispatcherOpts := []events.Option{events.WithPublisher(publisher), events.WithMetrics(fulfillmentMetrics)}
	serviceOpts := []fulfillment.Option{
		fulfillment.WithMetrics(fulfillmentMetrics),
		fulfillment.WithTracer(tracing.Tracer()),
	}
	if deps.statsCache != nil {
		dispatcherOpts = append(dispatcherOpts, events.WithStatsCache(deps.statsCache))
		serviceOpts = append(serviceOpts, fulfillment.WithStatsCache(deps.statsCache))
	}
	dispatcher := events.NewDispatcher(logger.WithField("component", "events"), dispatcherOpts...)
	serviceOpts = append(serviceOpts, fulfillment.WithDispatcher(dispatcher))

	deps.orders = fulfillment.NewService(deps.storage, logger.WithField("component", "fulfillment"), serviceOpts...)

	gatewayCfg := payment.DefaultGatewayConfig()
	gatewayCfg.Timeout = cfg.PaymentTimeout
	gateway := payment.NewGateway(gatewayCfg, map[domain.PaymentMethod]domain.PaymentProvider{
		domain.PaymentMethodStripe: payment.NewMockProvider("stripe"),
		domain.PaymentMethodPayPal: payment.NewMockProvider("paypal"),
	}, logger.WithField("component", "payment-gateway"))
	deps.payments = payment.NewRecorder(deps.storage, gateway, logger.WithField("component", "payment"),
		payment.WithDispatcher(dispatcher),
		payment.WithMetrics(fulfillmentMetrics),
		payment.WithTracer(tracing.Tracer()),
		payment.WithMaxFailedAttempts(cfg.PaymentMaxFailedAttempts),
	)
	return deps, nil
}

// initStorage открывает хранилище по cfg.StorageDriver.
func initStorage(ctx context.Context, cfg Config, deps *runtimeDependencies, logger *log.Entry) error {
	switch cfg.StorageDriver {
	case "", StorageDriverMemory:
		deps.storage = memory.NewStore()
		logger.Info("using in-memory storage")
		return nil
	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return errors.New("postgres storage requires OMS_POSTGRES_DSN")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		deps.closers = append(deps.closers, store.Close)
		if cfg.PostgresAutoMigrate {
			migrateCtx, cancel := context.WithTimeout(ctx, time.Minute)
			defer cancel()
			if err := store.EnsureSchema(migrateCtx); err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}
		}
		deps.storage = store
		deps.storageChecker = store.Ping
		logger.Info("using postgres storage")
		return nil
	default:
		return fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
