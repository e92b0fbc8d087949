package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// GatewayConfig задаёт таймаут вызова провайдера и параметры circuit breaker.
type GatewayConfig struct {
	Timeout time.Duration
	// BreakerFailures — число подряд идущих ошибок транспорта до размыкания.
	BreakerFailures uint32
	// BreakerCooldown — время в разомкнутом состоянии до пробного запроса.
	BreakerCooldown time.Duration
}

// DefaultGatewayConfig возвращает значения по умолчанию.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		Timeout:         10 * time.Second,
		BreakerFailures: 5,
		BreakerCooldown: 30 * time.Second,
	}
}

// Gateway выбирает провайдера по методу оплаты и вызывает его с ограничением
// по времени. Отказ провайдера не размыкает breaker, только ошибки транспорта.
type Gateway struct {
	providers map[domain.PaymentMethod]domain.PaymentProvider
	breakers  map[domain.PaymentMethod]*gobreaker.CircuitBreaker[domain.ChargeResult]
	timeout   time.Duration
	logger    *log.Entry
}

// NewGateway создаёт шлюз. Для каждого метода заводится отдельный breaker.
func NewGateway(cfg GatewayConfig, providers map[domain.PaymentMethod]domain.PaymentProvider, logger *log.Entry) *Gateway {
	if logger == nil {
		logger = log.New().WithField("component", "payment-gateway")
	}
	defaults := DefaultGatewayConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = defaults.BreakerFailures
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = defaults.BreakerCooldown
	}

	g := &Gateway{
		providers: make(map[domain.PaymentMethod]domain.PaymentProvider, len(providers)),
		breakers:  make(map[domain.PaymentMethod]*gobreaker.CircuitBreaker[domain.ChargeResult], len(providers)),
		timeout:   cfg.Timeout,
		logger:    logger,
	}
	for method, provider := range providers {
		g.providers[method] = provider
		g.breakers[method] = gobreaker.NewCircuitBreaker[domain.ChargeResult](gobreaker.Settings{
			Name:        "payment-" + string(method),
			MaxRequests: 1,
			Timeout:     cfg.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.BreakerFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.WithFields(log.Fields{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("payment circuit breaker state changed")
			},
		})
	}
	return g
}

// Supports сообщает, настроен ли провайдер для метода.
func (g *Gateway) Supports(method domain.PaymentMethod) bool {
	_, ok := g.providers[method]
	return ok
}

// Charge списывает amount через провайдера метода. Ошибка означает, что исход
// неизвестен или провайдер недоступен; явный отказ приходит как Success == false.
func (g *Gateway) Charge(ctx context.Context, method domain.PaymentMethod, amount decimal.Decimal, token string) (domain.ChargeResult, error) {
	provider, ok := g.providers[method]
	if !ok {
		return domain.ChargeResult{}, fmt.Errorf("%w: %q", domain.ErrUnknownPaymentMethod, method)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	result, err := g.breakers[method].Execute(func() (domain.ChargeResult, error) {
		return provider.Charge(ctx, amount, token)
	})
	if err != nil {
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return domain.ChargeResult{}, fmt.Errorf("%s provider unavailable: %w", method, err)
		case errors.Is(err, context.DeadlineExceeded):
			return domain.ChargeResult{}, fmt.Errorf("%s provider timed out after %s: %w", method, g.timeout, err)
		}
		return domain.ChargeResult{}, fmt.Errorf("%s provider: %w", method, err)
	}
	return result, nil
}

// ParseMethod разбирает тег метода оплаты.
func ParseMethod(value string) (domain.PaymentMethod, error) {
	switch m := domain.PaymentMethod(value); m {
	case domain.PaymentMethodStripe, domain.PaymentMethodPayPal:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnknownPaymentMethod, value)
}
