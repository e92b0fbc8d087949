package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// StorageDriver — тип хранилища заказов.
type StorageDriver string

const (
	StorageDriverMemory   StorageDriver = "memory"
	StorageDriverPostgres StorageDriver = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       StorageDriver
	PostgresDSN         string
	PostgresAutoMigrate bool
	// SeedFile — JSON с товарами и корзинами, загружается при старте.
	SeedFile string

	KafkaBrokers string
	KafkaTopic   string

	RedisAddr string
	StatsTTL  time.Duration

	JWTSecret string

	PaymentTimeout           time.Duration
	PaymentMaxFailedAttempts int

	OTelEndpoint string
}

// DefaultConfig возвращает конфигурацию для локального запуска.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:                 ":50051",
		MetricsAddr:              ":9090",
		StorageDriver:            StorageDriverMemory,
		PostgresAutoMigrate:      true,
		KafkaTopic:               "order-events",
		StatsTTL:                 time.Minute,
		PaymentTimeout:           10 * time.Second,
		PaymentMaxFailedAttempts: 3,
	}
}

// LoadConfigFromEnv накладывает переменные окружения на DefaultConfig.
// Некорректные значения игнорируются с предупреждением.
func LoadConfigFromEnv(logger *log.Entry) Config {
	if logger == nil {
		logger = log.WithField("component", "config")
	}
	cfg := DefaultConfig()

	stringVar(&cfg.GRPCAddr, "OMS_GRPC_ADDR")
	stringVar(&cfg.MetricsAddr, "OMS_METRICS_ADDR")
	stringVar(&cfg.PostgresDSN, "OMS_POSTGRES_DSN")
	stringVar(&cfg.SeedFile, "OMS_SEED_FILE")
	stringVar(&cfg.KafkaBrokers, "KAFKA_BROKERS")
	stringVar(&cfg.KafkaTopic, "OMS_KAFKA_TOPIC")
	stringVar(&cfg.RedisAddr, "OMS_REDIS_ADDR")
	stringVar(&cfg.JWTSecret, "OMS_JWT_SECRET")
	stringVar(&cfg.OTelEndpoint, "OMS_OTEL_ENDPOINT")

	if v := env("OMS_STORAGE_DRIVER"); v != "" {
		switch driver := StorageDriver(strings.ToLower(v)); driver {
		case StorageDriverMemory, StorageDriverPostgres:
			cfg.StorageDriver = driver
		default:
			logger.WithField("value", v).Warn("unknown OMS_STORAGE_DRIVER, using default")
		}
	}
	if v := env("OMS_POSTGRES_AUTO_MIGRATE"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			logger.WithError(err).Warn("invalid OMS_POSTGRES_AUTO_MIGRATE, using default")
		} else {
			cfg.PostgresAutoMigrate = parsed
		}
	}
	durationVar(logger, &cfg.StatsTTL, "OMS_STATS_TTL")
	durationVar(logger, &cfg.PaymentTimeout, "OMS_PAYMENT_TIMEOUT")
	if v := env("OMS_PAYMENT_MAX_FAILED_ATTEMPTS"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			logger.WithField("value", v).Warn("invalid OMS_PAYMENT_MAX_FAILED_ATTEMPTS, using default")
		} else {
			cfg.PaymentMaxFailedAttempts = parsed
		}
	}
	return cfg
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func stringVar(dst *string, key string) {
	if v := env(key); v != "" {
		*dst = v
	}
}

func durationVar(logger *log.Entry, dst *time.Duration, key string) {
	v := env(key)
	if v == "" {
		return
	}
	parsed, err := time.ParseDuration(v)
	if err != nil || parsed <= 0 {
		logger.WithField("value", v).Warnf("invalid %s, using default", key)
		return
	}
	*dst = parsed
}
