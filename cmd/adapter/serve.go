package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/nupi-ai/plugin-spoof-aasist/internal/config"
	"github.com/nupi-ai/plugin-spoof-aasist/internal/metrics"
	"github.com/nupi-ai/plugin-spoof-aasist/internal/server"
)

const (
	healthServiceName = "nupi.spoof.aasist"
	shutdownTimeout   = 5 * time.Second
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP scoring service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *rootOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := loadConfig(opts, os.Stdout)
	if err != nil {
		return err
	}

	logger.Info("starting adapter",
		"adapter", adapterName,
		"version", version,
		"engine_config", cfg.Engine, // configured value, may be "auto"
		"listen_addr", cfg.ListenAddr,
		"health_addr", cfg.HealthAddr,
		"threshold", cfg.Threshold,
	)

	// Bind before loading the model so orchestrators see the port early;
	// requests get 503 until the engine is ready.
	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Error("failed to bind listener", "error", err)
		return err
	}
	defer lis.Close()
	logger.Info("listener bound, port ready", "addr", lis.Addr().String())

	gin.SetMode(gin.ReleaseMode)
	m := metrics.New()
	srv := server.New(cfg, logger, m)
	httpServer := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 2)
	go func() {
		if err := httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	logger.Info("HTTP server started (503 while initializing)")

	healthServer, grpcServer, err := startHealth(cfg, logger, serverErr)
	if err != nil {
		shutdownHTTP(httpServer, logger)
		return err
	}

	eng, err := resolveEngine(cfg, logger)
	if err != nil {
		logger.Error("engine initialization failed, cannot start", "error", err)
		shutdownHTTP(httpServer, logger)
		stopHealth(grpcServer, logger)
		return err
	}
	defer eng.Close()

	p, err := buildPipeline(cfg, eng, m, logger)
	if err != nil {
		logger.Error("pipeline initialization failed", "error", err)
		shutdownHTTP(httpServer, logger)
		stopHealth(grpcServer, logger)
		return err
	}

	srv.SetScorer(p)
	setHealth(healthServer, healthgrpc.HealthCheckResponse_SERVING)
	logger.Info("adapter ready to serve requests",
		"engine", eng.name,
		"frame_length", p.FrameLength(),
	)

	select {
	case err := <-serverErr:
		logger.Error("server terminated with error", "error", err)
		stopHealth(grpcServer, logger)
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown requested, stopping servers")
	setHealth(healthServer, healthgrpc.HealthCheckResponse_NOT_SERVING)
	shutdownHTTP(httpServer, logger)
	stopHealth(grpcServer, logger)
	logger.Info("adapter stopped")
	return nil
}

// startHealth serves grpc.health.v1 on cfg.HealthAddr, starting NOT_SERVING.
// It returns nils when no health address is configured.
func startHealth(cfg config.Config, logger *slog.Logger, serverErr chan<- error) (*health.Server, *grpc.Server, error) {
	if cfg.HealthAddr == "" {
		return nil, nil, nil
	}
	lis, err := net.Listen("tcp", cfg.HealthAddr)
	if err != nil {
		logger.Error("failed to bind health listener", "error", err)
		return nil, nil, err
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthgrpc.RegisterHealthServer(grpcServer, healthServer)
	setHealth(healthServer, healthgrpc.HealthCheckResponse_NOT_SERVING)

	go func() {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serverErr <- err
		}
	}()
	logger.Info("gRPC health server started (NOT_SERVING while initializing)", "addr", lis.Addr().String())
	return healthServer, grpcServer, nil
}

func setHealth(hs *health.Server, status healthgrpc.HealthCheckResponse_ServingStatus) {
	if hs == nil {
		return
	}
	hs.SetServingStatus("", status)
	hs.SetServingStatus(healthServiceName, status)
}

func shutdownHTTP(s *http.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		logger.Warn("graceful HTTP shutdown timed out, forcing close", "error", err)
		s.Close()
	}
}

func stopHealth(s *grpc.Server, logger *slog.Logger) {
	if s == nil {
		return
	}
	stopped := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop timed out, forcing stop")
		s.Stop()
	}
}
