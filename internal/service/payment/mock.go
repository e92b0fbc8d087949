package payment

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// DeclineToken — платёжный токен, который MockProvider всегда отклоняет.
const DeclineToken = "tok_decline"

// MockProvider имитирует внешнего провайдера: выдаёт идентификатор
// транзакции вида <prefix>_<uuid>. Поведение настраивается для тестов.
type MockProvider struct {
	prefix string

	mu      sync.Mutex
	decline string
	err     error
	delay   time.Duration
	calls   int
}

// NewMockProvider создаёт провайдера с успешным сценарием по умолчанию.
func NewMockProvider(prefix string) *MockProvider {
	return &MockProvider{prefix: prefix}
}

// DeclineWith заставляет провайдера отклонять все списания с указанной причиной.
// Пустая строка возвращает успешный сценарий.
func (m *MockProvider) DeclineWith(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decline = reason
}

// FailWith задаёт ошибку транспорта для всех последующих вызовов.
func (m *MockProvider) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetDelay задаёт задержку ответа; задержка прерывается отменой контекста.
func (m *MockProvider) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Calls возвращает количество вызовов Charge.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Charge реализует domain.PaymentProvider.
func (m *MockProvider) Charge(ctx context.Context, amount decimal.Decimal, token string) (domain.ChargeResult, error) {
	m.mu.Lock()
	m.calls++
	decline, failErr, delay := m.decline, m.err, m.delay
	m.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return domain.ChargeResult{}, ctx.Err()
		case <-timer.C:
		}
	}
	if failErr != nil {
		return domain.ChargeResult{}, failErr
	}
	if strings.TrimSpace(token) == "" {
		decline = "payment token is required"
	} else if token == DeclineToken && decline == "" {
		decline = "card declined"
	}

	if decline != "" {
		raw, _ := json.Marshal(map[string]string{"status": "declined", "reason": decline})
		return domain.ChargeResult{Success: false, Reason: decline, Raw: raw}, nil
	}

	txID := m.prefix + "_" + uuid.NewString()
	raw, _ := json.Marshal(map[string]string{
		"transaction_id": txID,
		"amount":         amount.StringFixed(2),
		"status":         "succeeded",
	})
	return domain.ChargeResult{Success: true, TransactionID: txID, Raw: raw}, nil
}

var _ domain.PaymentProvider = (*MockProvider)(nil)
