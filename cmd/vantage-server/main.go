package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"vantage/internal/api"
	"vantage/internal/app"
	"vantage/internal/config"
	"vantage/internal/httpapi"
	"vantage/internal/metrics"
	"vantage/internal/util"
)

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	m := metrics.New()
	svc, closer, err := app.NewService(cfg, app.Calendar(), m, logger)
	if err != nil {
		return fmt.Errorf("building service: %w", err)
	}
	defer closer.Close()

	defaults := app.Defaults(cfg)
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           httpapi.NewServer(svc, defaults, cfg.Server.AllowedOrigins, m, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var grpcSrv *api.Server
	var grpcLis net.Listener
	if cfg.Server.GRPCPort > 0 {
		grpcLis, err = net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.GRPCPort))
		if err != nil {
			return fmt.Errorf("listening for gRPC: %w", err)
		}
		grpcSrv = api.NewServer(svc, defaults, logger)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("vantage-server starting", "addr", httpSrv.Addr, "real_source", cfg.Data.RealSource)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})

	if grpcSrv != nil {
		g.Go(func() error {
			if err := grpcSrv.Serve(grpcLis); err != nil {
				return fmt.Errorf("grpc: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if grpcSrv != nil {
			if err := grpcSrv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("grpc shutdown: %w", err))
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}
