package grpcapi

import (
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// NewServer builds the gRPC server with PartnerService and the standard
// health service registered. The health server starts as SERVING.
func NewServer(handler PartnerServiceServer, requestTimeout time.Duration, logger *zap.Logger) (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			LoggingInterceptor(logger),
			TimeoutInterceptor(requestTimeout),
		),
	)
	RegisterPartnerServiceServer(srv, handler)

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, healthSrv)

	return srv, healthSrv
}
