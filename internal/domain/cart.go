package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product — позиция каталога. Остаток никогда не бывает отрицательным.
type Product struct {
	ID    string
	Name  string
	Price decimal.Decimal
	Stock int32
}

// CartItem — строка корзины в хранилище.
type CartItem struct {
	UserID    string
	ProductID string
	Quantity  int32
}

// CartLine — строка корзины с ценой и названием товара на момент чтения.
type CartLine struct {
	ProductID   string
	ProductName string
	Quantity    int32
	UnitPrice   decimal.Decimal
	// Stock — остаток на момент чтения, используется только для предварительной проверки.
	Stock int32
}

// Subtotal возвращает quantity * unit price.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt32(l.Quantity))
}

// CartSnapshot — согласованный снимок корзины пользователя.
type CartSnapshot struct {
	UserID     string
	Lines      []CartLine
	CapturedAt time.Time
}

// Total суммирует подытоги строк снимка.
func (s CartSnapshot) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range s.Lines {
		total = total.Add(line.Subtotal())
	}
	return total
}
