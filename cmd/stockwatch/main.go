// Package main runs the stockwatch consumer, which reports sweets that are running low.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/abgdnv/sweetshop/internal/stockwatch"
	"github.com/abgdnv/sweetshop/pkg/bootstrap"
	"github.com/abgdnv/sweetshop/pkg/config/configloader"
	"github.com/abgdnv/sweetshop/pkg/messaging"
	"github.com/abgdnv/sweetshop/pkg/nats"
	"golang.org/x/sync/errgroup"
)

const serviceName = "stockwatch"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Printf("application run failed: %v", err)
		os.Exit(1)
	}
	log.Println("application stopped gracefully")
}

// run starts the JetStream consumer and, if enabled, the pprof server.
func run(ctx context.Context) error {
	cfg, cfgErr := configloader.Load[*stockwatch.Config](serviceName)
	if cfgErr != nil {
		return fmt.Errorf("failed to load configuration: %w", cfgErr)
	}
	log.Printf("Configuration loaded: %v", cfg)

	logger := bootstrap.NewLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	natsConn, err := nats.NewClient(cfg.Nats.Url, cfg.Nats.Timeout)
	if err != nil {
		return fmt.Errorf("failed to create NATS connection: %w", err)
	}
	defer natsConn.Close()
	js, err := nats.NewJetStreamContext(natsConn)
	if err != nil {
		return fmt.Errorf("failed to get JetStream context: %w", err)
	}
	// the consumer cannot be created before the stream exists
	if err := nats.EnsureStream(ctx, js, cfg.Subscriber.Stream, messaging.SweetsSubjects); err != nil {
		return err
	}

	watcher := stockwatch.NewWatcher(cfg.Alert.LowStock, logger)
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Stock watcher started", "subject", cfg.Subscriber.Subject, "low_stock", cfg.Alert.LowStock)
		err := watcher.Start(gCtx, js, cfg.Subscriber)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("stock watcher failed", "error", err)
			return err
		}
		logger.Info("stock watcher stopped gracefully.")
		return nil
	})

	// Start the pprof server if enabled
	if cfg.PProf.Enabled {
		pprofServer := &http.Server{
			Addr: cfg.PProf.Addr,
		}
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
			logger.Info("Shutting down pprof server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
			defer cancel()
			return pprofServer.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("errgroup encountered an error: %w", err)
	}
	return nil
}
