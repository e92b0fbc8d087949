package postgres

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

var (
	containerOnce sync.Once
	containerDSN  string
	containerErr  error
	container     *tcpostgres.PostgresContainer
)

func TestMain(m *testing.M) {
	code := m.Run()
	if container != nil {
		_ = testcontainers.TerminateContainer(container)
	}
	os.Exit(code)
}

func openPostgresStoreForIntegrationTest(t *testing.T) *Store {
	t.Helper()

	store := openRawPostgresStoreForIntegrationTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := store.MigrateUp(ctx, 0); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	truncateAllTablesForIntegrationTest(t, store)

	return store
}

// openRawPostgresStoreForIntegrationTest сначала пробует DSN из окружения,
// затем поднимает контейнер через testcontainers. Без Docker тест пропускается.
func openRawPostgresStoreForIntegrationTest(t *testing.T) *Store {
	t.Helper()

	if testing.Short() {
		t.Skip("postgres integration tests are skipped in -short mode")
	}

	var openErrs []string
	for _, dsn := range []string{
		strings.TrimSpace(os.Getenv("OMS_POSTGRES_TEST_DSN")),
		strings.TrimSpace(os.Getenv("OMS_POSTGRES_DSN")),
	} {
		if dsn == "" {
			continue
		}
		store, err := openForTest(t, dsn)
		if err == nil {
			return store
		}
		openErrs = append(openErrs, fmt.Sprintf("%s: %v", dsn, err))
	}

	containerOnce.Do(startContainer)
	if containerErr != nil {
		openErrs = append(openErrs, fmt.Sprintf("testcontainers: %v", containerErr))
		t.Skipf("postgres is not available for integration tests: %s", strings.Join(openErrs, " | "))
	}

	store, err := openForTest(t, containerDSN)
	if err != nil {
		t.Fatalf("open container postgres: %v", err)
	}
	return store
}

func startContainer() {
	defer func() {
		// Провайдер Docker может паниковать при отсутствии сокета.
		if r := recover(); r != nil {
			containerErr = fmt.Errorf("docker provider: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	ctr, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("fulfillment"),
		tcpostgres.WithUsername("fulfillment"),
		tcpostgres.WithPassword("fulfillment"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		containerErr = err
		return
	}
	container = ctr

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		containerErr = err
		return
	}
	containerDSN = dsn
}

func openForTest(t *testing.T, dsn string) (*Store, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store, nil
}

func truncateAllTablesForIntegrationTest(t *testing.T, store *Store) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := store.DB().ExecContext(ctx, `
		TRUNCATE TABLE
			order_status_changes,
			payments,
			order_items,
			orders,
			cart_items,
			products
		RESTART IDENTITY CASCADE
	`)
	if err != nil {
		t.Fatalf("truncate integration tables: %v", err)
	}
}

func seedProducts(t *testing.T, repos domain.Repositories, products ...domain.Product) {
	t.Helper()
	for _, p := range products {
		if err := repos.Products.Upsert(context.Background(), p); err != nil {
			t.Fatalf("seed product %s: %v", p.ID, err)
		}
	}
}

func sampleOrder(id, userID string, createdAt time.Time) domain.Order {
	return domain.Order{
		ID:            id,
		UserID:        userID,
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		TotalAmount:   decimal.RequireFromString("25.50"),
		ShippingAddress: domain.ShippingAddress{
			Name: "Ivan", Email: "ivan@example.com", Phone: "1", Address: "Lenina 1",
			City: "Kazan", Country: "RU", PostalCode: "420000",
		},
		Items: []domain.OrderItem{
			{ID: id + "-1", OrderID: id, ProductID: "p1", ProductName: "Keyboard", Quantity: 2,
				UnitPrice: decimal.RequireFromString("10.00"), Subtotal: decimal.RequireFromString("20.00"), CreatedAt: createdAt},
			{ID: id + "-2", OrderID: id, ProductID: "p2", ProductName: "Mouse", Quantity: 1,
				UnitPrice: decimal.RequireFromString("5.50"), Subtotal: decimal.RequireFromString("5.50"), CreatedAt: createdAt},
		},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func sampleCatalog() []domain.Product {
	return []domain.Product{
		{ID: "p1", Name: "Keyboard", Price: decimal.RequireFromString("10.00"), Stock: 10},
		{ID: "p2", Name: "Mouse", Price: decimal.RequireFromString("5.50"), Stock: 3},
	}
}
