// Package main runs the sweet shop inventory and catalog service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abgdnv/sweetshop/internal/app"
	"github.com/abgdnv/sweetshop/internal/config"
	"github.com/abgdnv/sweetshop/pkg/bootstrap"
	"github.com/abgdnv/sweetshop/pkg/config/configloader"
	"github.com/abgdnv/sweetshop/pkg/telemetry"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName = "sweetshop"
	// healthProbeInterval is how often the store is probed for the gRPC health status.
	healthProbeInterval = 10 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Printf("application run failed: %v", err)
		os.Exit(1)
	}
	log.Println("application stopped gracefully")
}

// run loads the configuration, wires the application and serves HTTP, gRPC and pprof until ctx is done.
func run(ctx context.Context) error {
	cfg, cfgErr := configloader.Load[*config.Config](serviceName)
	if cfgErr != nil {
		return fmt.Errorf("failed to load configuration: %w", cfgErr)
	}
	log.Printf("Configuration loaded: %v", cfg)

	logger := bootstrap.NewLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Telemetry.Traces.Enabled {
		tracerProvider, err := telemetry.NewTracerProvider(ctx, serviceName, cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("failed to create tracer provider: %w", err)
		}
		g.Go(func() error {
			<-gCtx.Done()
			logger.Info("Shutting down tracer provider")
			return shutdownWithin(cfg.Shutdown.Timeout, tracerProvider.Shutdown)
		})
	}

	var metrics *telemetry.Metrics
	if cfg.Telemetry.Metrics.Enabled {
		var err error
		if metrics, err = telemetry.NewMetrics(serviceName); err != nil {
			return fmt.Errorf("failed to create meter provider: %w", err)
		}
		g.Go(func() error {
			<-gCtx.Done()
			return shutdownWithin(cfg.Shutdown.Timeout, metrics.Shutdown)
		})
	}

	st, closeStore, err := app.SetupStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to set up sweet store: %w", err)
	}
	defer closeStore()

	publisher, closePublisher, err := app.SetupPublisher(ctx, cfg.Nats, logger)
	if err != nil {
		return fmt.Errorf("failed to set up event publisher: %w", err)
	}
	defer closePublisher()

	verifier, err := app.SetupVerifier(ctx, cfg.Auth)
	if err != nil {
		return err
	}

	deps := app.SetupDependencies(st, publisher, verifier, metrics, cfg, logger)
	httpServer := app.SetupHttpServer(deps, cfg)
	grpcServer := app.SetupGrpcServer(deps, cfg)

	// Start the HTTP server
	g.Go(func() error {
		logger.Info("HTTP server listening", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	// gracefully shutdown HTTP server on context cancellation
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down HTTP server...")
		return shutdownWithin(cfg.Shutdown.Timeout, httpServer.Shutdown)
	})

	// Start the gRPC server
	g.Go(func() error {
		grpcAddr := ":" + cfg.GrpcServer.Port
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on gRPC port: %w", err)
		}
		logger.Info("gRPC server listening", slog.String("addr", grpcAddr))
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		deps.Health.Watch(gCtx, healthProbeInterval)
		return nil
	})
	// gracefully shutdown gRPC server on context cancellation
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down gRPC server...")
		deps.Health.Shutdown()
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
			logger.Info("gRPC server stopped gracefully.")
			return nil
		case <-time.After(cfg.Shutdown.Timeout):
			logger.Warn("gRPC server graceful stop timed out. Forcing stop.")
			grpcServer.Stop()
			return fmt.Errorf("grpc server graceful stop timed out")
		}
	})

	// Start the pprof server if enabled
	if cfg.PProf.Enabled {
		// http.DefaultServeMux carries the pprof handlers
		pprofServer := &http.Server{Addr: cfg.PProf.Addr, ReadHeaderTimeout: cfg.HTTPServer.Timeout.ReadHeader}
		g.Go(func() error {
			logger.Info("Pprof server listening", slog.String("addr", pprofServer.Addr))
			if err := pprofServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("pprof server failed: %w", err)
			}
			return nil
		})
		// gracefully shutdown pprof server on context cancellation
		g.Go(func() error {
			<-gCtx.Done()
			logger.Info("Shutting down pprof server...")
			return shutdownWithin(cfg.Shutdown.Timeout, pprofServer.Shutdown)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("errgroup encountered an error: %w", err)
	}
	return nil
}

func shutdownWithin(timeout time.Duration, shutdown func(context.Context) error) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return shutdown(shutdownCtx)
}
