package grpcsvc

import (
	"context"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/fulfillment"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/payment"
)

// FulfillmentService адаптирует сервисный слой к gRPC.
type FulfillmentService struct {
	orders   *fulfillment.Service
	payments *payment.Recorder
	logger   *log.Entry
}

var _ FulfillmentServer = (*FulfillmentService)(nil)

func NewFulfillmentService(orders *fulfillment.Service, payments *payment.Recorder, logger *log.Entry) *FulfillmentService {
	if logger == nil {
		logger = log.New().WithField("layer", "grpc")
	}
	return &FulfillmentService{orders: orders, payments: payments, logger: logger}
}

func (s *FulfillmentService) principal(ctx context.Context) (domain.Principal, error) {
	p, ok := PrincipalFrom(ctx)
	if !ok {
		return domain.Principal{}, status.Error(codes.Unauthenticated, "unauthenticated")
	}
	return p, nil
}

func requireOrderID(orderID string) error {
	if orderID == "" {
		return status.Error(codes.InvalidArgument, domain.ErrOrderIDRequired.Error())
	}
	return nil
}

func (s *FulfillmentService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderResponse, error) {
	p, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.CreateOrder(ctx, p, req.ShippingAddress, req.Notes)
	if err != nil {
		return nil, toStatus(s.logger, "CreateOrder", err)
	}
	return &OrderResponse{Order: toOrder(order)}, nil
}

func (s *FulfillmentService) GetOrder(ctx context.Context, req *GetOrderRequest) (*GetOrderResponse, error) {
	p, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireOrderID(req.OrderID); err != nil {
		return nil, err
	}
	details, err := s.orders.GetOrder(ctx, p, req.OrderID)
	if err != nil {
		return nil, toStatus(s.logger, "GetOrder", err)
	}
	return toOrderDetails(details), nil
}

func (s *FulfillmentService) ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error) {
	p, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	userID := req.UserID
	if userID == "" {
		userID = p.UserID
	}
	orders, err := s.orders.ListOrders(ctx, p, userID, req.Limit, req.Offset)
	if err != nil {
		return nil, toStatus(s.logger, "ListOrders", err)
	}
	resp := &ListOrdersResponse{Orders: make([]Order, 0, len(orders))}
	for _, o := range orders {
		resp.Orders = append(resp.Orders, toOrder(o))
	}
	return resp, nil
}

func (s *FulfillmentService) CancelOrder(ctx context.Context, req *CancelOrderRequest) (*OrderResponse, error) {
	p, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireOrderID(req.OrderID); err != nil {
		return nil, err
	}
	order, err := s.orders.CancelOrder(ctx, p, req.OrderID, req.Reason)
	if err != nil {
		return nil, toStatus(s.logger, "CancelOrder", err)
	}
	return &OrderResponse{Order: toOrder(order)}, nil
}

func (s *FulfillmentService) ProcessRefund(ctx context.Context, req *ProcessRefundRequest) (*OrderResponse, error) {
	p, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireOrderID(req.OrderID); err != nil {
		return nil, err
	}
	order, err := s.orders.ProcessRefund(ctx, p, req.OrderID, req.Reason)
	if err != nil {
		return nil, toStatus(s.logger, "ProcessRefund", err)
	}
	return &OrderResponse{Order: toOrder(order)}, nil
}

func (s *FulfillmentService) UpdateOrderStatus(ctx context.Context, req *UpdateOrderStatusRequest) (*OrderResponse, error) {
	p, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireOrderID(req.OrderID); err != nil {
		return nil, err
	}
	order, err := s.orders.UpdateOrderStatus(ctx, p, req.OrderID, req.Status)
	if err != nil {
		return nil, toStatus(s.logger, "UpdateOrderStatus", err)
	}
	return &OrderResponse{Order: toOrder(order)}, nil
}

func (s *FulfillmentService) RecordPayment(ctx context.Context, req *RecordPaymentRequest) (*RecordPaymentResponse, error) {
	p, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireOrderID(req.OrderID); err != nil {
		return nil, err
	}
	method, err := payment.ParseMethod(req.Method)
	if err != nil {
		return nil, toStatus(s.logger, "RecordPayment", err)
	}
	recorded, err := s.payments.RecordPayment(ctx, p, req.OrderID, method, req.Token)
	if err != nil {
		return nil, toStatus(s.logger, "RecordPayment", err)
	}
	return &RecordPaymentResponse{Payment: toPayment(recorded)}, nil
}

func (s *FulfillmentService) GetPaymentStatus(ctx context.Context, req *GetPaymentStatusRequest) (*GetPaymentStatusResponse, error) {
	p, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireOrderID(req.OrderID); err != nil {
		return nil, err
	}
	view, err := s.payments.PaymentStatus(ctx, p, req.OrderID)
	if err != nil {
		return nil, toStatus(s.logger, "GetPaymentStatus", err)
	}
	return toPaymentStatus(view), nil
}

func (s *FulfillmentService) GetStatistics(ctx context.Context, _ *GetStatisticsRequest) (*GetStatisticsResponse, error) {
	p, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	stats, err := s.orders.Statistics(ctx, p)
	if err != nil {
		return nil, toStatus(s.logger, "GetStatistics", err)
	}
	return &GetStatisticsResponse{
		TotalOrders:       stats.TotalOrders,
		TotalRevenue:      stats.TotalRevenue.StringFixed(2),
		PendingOrders:     stats.PendingOrders,
		AverageOrderValue: stats.AverageOrderValue.StringFixed(2),
	}, nil
}
