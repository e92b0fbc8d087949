package inventory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/storage/memory"
)

func newCatalog(t *testing.T) domain.ProductRepository {
	t.Helper()
	store := memory.NewStore()
	products := store.Repos().Products
	for _, p := range []domain.Product{
		{ID: "p1", Name: "Keyboard", Price: decimal.NewFromInt(10), Stock: 5},
		{ID: "p2", Name: "Mouse", Price: decimal.RequireFromString("5.50"), Stock: 1},
	} {
		if err := products.Upsert(context.Background(), p); err != nil {
			t.Fatalf("seed product: %v", err)
		}
	}
	return products
}

func TestLedger_ReserveAndRelease(t *testing.T) {
	ctx := context.Background()
	products := newCatalog(t)
	ledger := NewLedger(nil, nil)

	if err := ledger.Reserve(ctx, products, "p1", 3); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	err := ledger.Reserve(ctx, products, "p1", 3)
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if !strings.Contains(err.Error(), "Keyboard") {
		t.Fatalf("expected product name in error, got %q", err.Error())
	}

	if err := ledger.Release(ctx, products, "p1", 3); err != nil {
		t.Fatalf("release: %v", err)
	}
	product, _ := products.Get(ctx, "p1")
	if product.Stock != 5 {
		t.Fatalf("expected stock 5 after release, got %d", product.Stock)
	}

	if err := ledger.Reserve(ctx, products, "missing", 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLedger_ReserveLinesStopsAtFirstShortage(t *testing.T) {
	ctx := context.Background()
	products := newCatalog(t)
	ledger := NewLedger(nil, nil)

	err := ledger.ReserveLines(ctx, products, []domain.CartLine{
		{ProductID: "p1", ProductName: "Keyboard", Quantity: 2},
		{ProductID: "p2", ProductName: "Mouse", Quantity: 2},
	})
	if !errors.Is(err, domain.ErrInsufficientStock) || !strings.Contains(err.Error(), "Mouse") {
		t.Fatalf("expected shortage for Mouse, got %v", err)
	}
	mouse, _ := products.Get(ctx, "p2")
	if mouse.Stock != 1 {
		t.Fatalf("expected untouched mouse stock, got %d", mouse.Stock)
	}
}

func TestLedger_ReleaseItemsFailsOnMissingProduct(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	if err := store.Repos().Products.Upsert(ctx, domain.Product{ID: "p2", Name: "Mouse", Price: decimal.RequireFromString("5.50"), Stock: 1}); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	ledger := NewLedger(nil, nil)

	err := store.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		return ledger.ReleaseItems(ctx, repos.Products, []domain.OrderItem{
			{OrderID: "o1", ProductID: "p2", Quantity: 2},
			{OrderID: "o1", ProductID: "gone", Quantity: 1},
		})
	})
	if !errors.Is(err, domain.ErrNotFound) || !strings.Contains(err.Error(), "gone") {
		t.Fatalf("expected ErrNotFound for gone, got %v", err)
	}
	mouse, _ := store.Repos().Products.Get(ctx, "p2")
	if mouse.Stock != 1 {
		t.Fatalf("expected release rolled back, mouse stock %d", mouse.Stock)
	}
}

func TestLedger_CheckAvailability(t *testing.T) {
	ledger := NewLedger(nil, nil)

	ok := domain.CartSnapshot{Lines: []domain.CartLine{{ProductName: "Keyboard", Quantity: 2, Stock: 2}}}
	if err := ledger.CheckAvailability(ok); err != nil {
		t.Fatalf("expected availability, got %v", err)
	}

	short := domain.CartSnapshot{Lines: []domain.CartLine{{ProductName: "Mouse", Quantity: 3, Stock: 1}}}
	err := ledger.CheckAvailability(short)
	if !errors.Is(err, domain.ErrInsufficientStock) || !strings.Contains(err.Error(), "Mouse") {
		t.Fatalf("expected shortage for Mouse, got %v", err)
	}
}
