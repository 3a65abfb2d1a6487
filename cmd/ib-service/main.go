package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/LavaJover/shvark-ib-service/internal/app/background"
	"github.com/LavaJover/shvark-ib-service/internal/app/setup"
	"github.com/LavaJover/shvark-ib-service/internal/delivery/grpcapi"
	"github.com/LavaJover/shvark-ib-service/internal/delivery/http/handlers"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Init dependencies
	deps, err := setup.InitializeDependencies(ctx)
	if err != nil {
		log.Fatalf("failed to init dependencies: %v", err)
	}
	defer deps.Close()
	logger := deps.Logger
	cfg := deps.Config

	// Init use cases
	uc, err := setup.InitializeUseCases(deps)
	if err != nil {
		logger.Fatal("failed to init use cases", zap.Error(err))
	}

	// Init gRPC server
	partnerHandler := grpcapi.NewPartnerHandler(uc.LedgerUsecase, uc.ReferralUsecase, uc.HierarchyUsecase, logger.Named("grpc"))
	grpcServer, healthServer := grpcapi.NewServer(partnerHandler, cfg.GRPCServer.RequestTimeout, logger.Named("grpc"))

	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%s", cfg.GRPCServer.Host, cfg.GRPCServer.Port))
	if err != nil {
		logger.Fatal("failed to listen", zap.Error(err))
	}

	// Init ops HTTP server
	sqlDB, err := deps.DB.DB()
	if err != nil {
		logger.Fatal("failed to get sql.DB", zap.Error(err))
	}
	opsServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.HTTPServer.Host, cfg.HTTPServer.Port),
		Handler:           handlers.NewOpsRouter(sqlDB, deps.Gatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("grpc server started", zap.String("addr", lis.Addr().String()))
		return grpcServer.Serve(lis)
	})

	g.Go(func() error {
		logger.Info("ops http server started", zap.String("addr", opsServer.Addr))
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Review backlog monitor
	background.NewBackgroundTasks(uc.LedgerUsecase, deps.Metrics, logger.Named("background")).StartAll(gctx)

	// Commission ingestion
	g.Go(func() error {
		return uc.CommissionConsumer.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		healthServer.SetServingStatus(grpcapi.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("ops server shutdown", zap.Error(err))
		}

		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			grpcServer.Stop()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("service stopped with error", zap.Error(err))
	}
}
