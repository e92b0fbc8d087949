package grpcsvc

import (
	"context"
	"fmt"
	"runtime/debug"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// Server объединяет gRPC-сервер и его health-сервис.
type Server struct {
	*grpc.Server
	Health *health.Server
}

// NewServerMetrics регистрирует метрики gRPC-сервера. Повторная регистрация
// возвращает уже зарегистрированный коллектор.
func NewServerMetrics(reg prometheus.Registerer, logger *log.Entry) *promgrpc.ServerMetrics {
	metrics := promgrpc.NewServerMetrics()
	if reg == nil {
		return metrics
	}
	if err := reg.Register(metrics); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				return existing
			}
		}
		logger.WithError(err).Warn("failed to register grpc metrics")
	}
	return metrics
}

// NewServer собирает сервер: метрики, трассировка, восстановление после паники, аутентификация.
func NewServer(svc FulfillmentServer, auth *Authenticator, metrics *promgrpc.ServerMetrics, logger *log.Entry) *Server {
	interceptors := []grpc.UnaryServerInterceptor{}
	if metrics != nil {
		interceptors = append(interceptors, metrics.UnaryServerInterceptor())
	}
	interceptors = append(interceptors, recoveryInterceptor(logger), auth.UnaryInterceptor())

	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(interceptors...),
	)
	RegisterFulfillmentServer(srv, svc)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, healthServer)

	reflection.Register(srv)
	if metrics != nil {
		metrics.InitializeMetrics(srv)
	}
	return &Server{Server: srv, Health: healthServer}
}

// Shutdown переводит health в NOT_SERVING перед остановкой сервера.
func (s *Server) Shutdown() {
	s.Health.Shutdown()
}

func recoveryInterceptor(logger *log.Entry) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithFields(log.Fields{
					"method": info.FullMethod,
					"panic":  fmt.Sprint(r),
					"stack":  string(debug.Stack()),
				}).Error("panic in grpc handler")
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}
