// Package api provides the gRPC server for vantage, exposing the backtest
// service and the standard health service.
package api

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"vantage/internal/backtest"
)

// Server hosts the gRPC endpoints.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	log    *slog.Logger
}

// NewServer creates a gRPC server with the Backtester and health services
// registered.
func NewServer(svc *backtest.Service, defaults backtest.Defaults, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "grpc")

	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(log)))
	RegisterBacktesterServer(gs, NewBacktestService(svc, defaults))

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(BacktesterServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)

	return &Server{grpc: gs, health: hs, log: log}
}

// Serve accepts connections on lis until Shutdown is called.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("gRPC listening", "addr", lis.Addr().String())
	return s.grpc.Serve(lis)
}

// Shutdown marks the services as not serving and stops the server, waiting
// for in-flight calls until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.grpc.Stop()
		return ctx.Err()
	}
}

func loggingInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Info("rpc",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration", time.Since(start).Round(time.Microsecond),
		)
		return resp, err
	}
}
