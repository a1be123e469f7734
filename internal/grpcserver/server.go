// Package grpcserver serves the standard gRPC health checking protocol,
// reporting the subscriber store as the service's health.
package grpcserver

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/patric-chuzhbe/newsdigest/internal/grpcserver/interceptor"
	"github.com/patric-chuzhbe/newsdigest/internal/logger"
)

// ServiceName is the name clients may ask about besides the empty
// whole-server name.
const ServiceName = "newsdigest"

const healthCheckMethod = "/grpc.health.v1.Health/Check"

type pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	healthpb.UnimplementedHealthServer
	db pinger
}

func NewHealthHandler(db pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if name := req.GetService(); name != "" && name != ServiceName {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", name)
	}

	if err := h.db.Ping(ctx); err != nil {
		logger.Log.Warnw("health check failed", "error", err)
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}

	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}

func newServer(handler *HealthHandler) *grpc.Server {
	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			interceptor.UnaryLoggingInterceptor(healthCheckMethod),
			interceptor.UnaryRecoveryInterceptor(),
		),
	)
	healthpb.RegisterHealthServer(server, handler)

	return server
}

func NewGRPCServer(addr string, db pinger) (*grpc.Server, net.Listener, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}

	return newServer(NewHealthHandler(db)), lis, nil
}
