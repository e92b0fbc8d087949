package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

type seedProduct struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int32           `json:"stock"`
}

type seedCartItem struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

// seedData — содержимое OMS_SEED_FILE.
type seedData struct {
	Products []seedProduct  `json:"products"`
	Carts    []seedCartItem `json:"carts"`
}

// loadSeed загружает каталог и корзины из JSON-файла в хранилище.
func loadSeed(ctx context.Context, storage domain.Storage, path string) (seedData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return seedData{}, fmt.Errorf("read seed file: %w", err)
	}
	var data seedData
	if err := json.Unmarshal(raw, &data); err != nil {
		return seedData{}, fmt.Errorf("decode seed file %s: %w", path, err)
	}

	err = storage.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		for _, p := range data.Products {
			if p.Stock < 0 {
				return fmt.Errorf("seed product %s: negative stock", p.ID)
			}
			err := repos.Products.Upsert(ctx, domain.Product{ID: p.ID, Name: p.Name, Price: p.Price, Stock: p.Stock})
			if err != nil {
				return fmt.Errorf("seed product %s: %w", p.ID, err)
			}
		}
		for _, item := range data.Carts {
			err := repos.Carts.AddItem(ctx, domain.CartItem{UserID: item.UserID, ProductID: item.ProductID, Quantity: item.Quantity})
			if err != nil {
				return fmt.Errorf("seed cart %s/%s: %w", item.UserID, item.ProductID, err)
			}
		}
		return nil
	})
	if err != nil {
		return seedData{}, err
	}
	return data, nil
}
