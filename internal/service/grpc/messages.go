package grpcsvc

import (
	"time"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/fulfillment"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/payment"
)

// Суммы передаются строками с двумя знаками после запятой.

type OrderItem struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int32  `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Subtotal    string `json:"subtotal"`
}

type Order struct {
	ID              string                 `json:"id"`
	UserID          string                 `json:"user_id"`
	Status          string                 `json:"status"`
	PaymentStatus   string                 `json:"payment_status"`
	TotalAmount     string                 `json:"total_amount"`
	Items           []OrderItem            `json:"items"`
	ShippingAddress domain.ShippingAddress `json:"shipping_address"`
	Notes           string                 `json:"notes,omitempty"`
	Version         int64                  `json:"version"`
	ShippedAt       *time.Time             `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time             `json:"delivered_at,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

type Payment struct {
	ID            string    `json:"id"`
	OrderID       string    `json:"order_id"`
	Amount        string    `json:"amount"`
	Method        string    `json:"method"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Status        string    `json:"status"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type StatusChange struct {
	From        string    `json:"from,omitempty"`
	To          string    `json:"to"`
	PaymentFrom string    `json:"payment_from,omitempty"`
	PaymentTo   string    `json:"payment_to"`
	Reason      string    `json:"reason,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

type CreateOrderRequest struct {
	ShippingAddress domain.ShippingAddress `json:"shipping_address"`
	Notes           string                 `json:"notes,omitempty"`
}

type OrderResponse struct {
	Order Order `json:"order"`
}

type GetOrderRequest struct {
	OrderID string `json:"order_id"`
}

type GetOrderResponse struct {
	Order    Order          `json:"order"`
	Payments []Payment      `json:"payments"`
	History  []StatusChange `json:"history"`
}

type ListOrdersRequest struct {
	// UserID пуст для заказов вызывающего; чужие заказы доступны администратору.
	UserID string `json:"user_id,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

type ListOrdersResponse struct {
	Orders []Order `json:"orders"`
}

type CancelOrderRequest struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason,omitempty"`
}

type ProcessRefundRequest struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason,omitempty"`
}

type UpdateOrderStatusRequest struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type RecordPaymentRequest struct {
	OrderID string `json:"order_id"`
	Method  string `json:"method"`
	Token   string `json:"token"`
}

type RecordPaymentResponse struct {
	Payment Payment `json:"payment"`
}

type GetPaymentStatusRequest struct {
	OrderID string `json:"order_id"`
}

type GetPaymentStatusResponse struct {
	OrderID       string   `json:"order_id"`
	PaymentStatus string   `json:"payment_status"`
	Latest        *Payment `json:"latest,omitempty"`
	Attempts      int      `json:"attempts"`
	Message       string   `json:"message,omitempty"`
}

type GetStatisticsRequest struct{}

type GetStatisticsResponse struct {
	TotalOrders       int64  `json:"total_orders"`
	TotalRevenue      string `json:"total_revenue"`
	PendingOrders     int64  `json:"pending_orders"`
	AverageOrderValue string `json:"average_order_value"`
}

func toOrder(o domain.Order) Order {
	items := make([]OrderItem, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItem{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice.StringFixed(2),
			Subtotal:    item.Subtotal.StringFixed(2),
		})
	}
	return Order{
		ID:              o.ID,
		UserID:          o.UserID,
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		TotalAmount:     o.TotalAmount.StringFixed(2),
		Items:           items,
		ShippingAddress: o.ShippingAddress,
		Notes:           o.Notes,
		Version:         o.Version,
		ShippedAt:       o.ShippedAt,
		DeliveredAt:     o.DeliveredAt,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func toPayment(p domain.Payment) Payment {
	return Payment{
		ID:            p.ID,
		OrderID:       p.OrderID,
		Amount:        p.Amount.StringFixed(2),
		Method:        string(p.Method),
		TransactionID: p.TransactionID,
		Status:        string(p.Status),
		Notes:         p.Notes,
		CreatedAt:     p.CreatedAt,
	}
}

func toOrderDetails(d fulfillment.OrderDetails) *GetOrderResponse {
	resp := &GetOrderResponse{
		Order:    toOrder(d.Order),
		Payments: make([]Payment, 0, len(d.Payments)),
		History:  make([]StatusChange, 0, len(d.History)),
	}
	for _, p := range d.Payments {
		resp.Payments = append(resp.Payments, toPayment(p))
	}
	for _, c := range d.History {
		resp.History = append(resp.History, StatusChange{
			From:        string(c.From),
			To:          string(c.To),
			PaymentFrom: string(c.PaymentFrom),
			PaymentTo:   string(c.PaymentTo),
			Reason:      c.Reason,
			OccurredAt:  c.Occurred,
		})
	}
	return resp
}

func toPaymentStatus(v payment.StatusView) *GetPaymentStatusResponse {
	resp := &GetPaymentStatusResponse{
		OrderID:       v.OrderID,
		PaymentStatus: string(v.PaymentStatus),
		Attempts:      v.Attempts,
	}
	if v.Latest == nil {
		resp.Message = "no payment recorded"
		return resp
	}
	latest := toPayment(*v.Latest)
	resp.Latest = &latest
	return resp
}
