// Package app contains the application setup for the sweet shop service.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/abgdnv/sweetshop/internal/config"
	"github.com/abgdnv/sweetshop/internal/service"
	"github.com/abgdnv/sweetshop/internal/store"
	grpchealth "github.com/abgdnv/sweetshop/internal/transport/grpc"
	"github.com/abgdnv/sweetshop/internal/transport/rest"
	"github.com/abgdnv/sweetshop/pkg/auth"
	"github.com/abgdnv/sweetshop/pkg/bootstrap"
	pkgconfig "github.com/abgdnv/sweetshop/pkg/config"
	"github.com/abgdnv/sweetshop/pkg/messaging"
	pkgnats "github.com/abgdnv/sweetshop/pkg/nats"
	"github.com/abgdnv/sweetshop/pkg/server"
	"github.com/abgdnv/sweetshop/pkg/telemetry"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc"
)

type Dependencies struct {
	Inventory service.Inventory
	Catalog   service.Catalog
	Verifier  auth.Verifier
	AdminRole string
	Health    *grpchealth.Health
	// Metrics is nil when the Prometheus endpoint is disabled.
	Metrics        *telemetry.Metrics
	MetricsPath    string
	AllowedOrigins []string
	Logger         *slog.Logger
}

// SetupStore opens the configured sweet store and wraps it in the circuit breaker when enabled.
// The returned cleanup releases the database pool, if any.
func SetupStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.SweetStore, func(), error) {
	var (
		st      store.SweetStore
		cleanup = func() {}
	)
	switch cfg.Database.Driver {
	case pkgconfig.StoreDriverMemory:
		logger.Warn("Using the in-memory sweet store, data is lost on restart")
		st = store.NewInMemoryStore()
	default:
		if cfg.Database.MigrationsDir != "" {
			if err := bootstrap.RunMigrations(cfg.Database.MigrationsDir, cfg.Database.URL, logger); err != nil {
				return nil, nil, err
			}
		}
		dbPool, err := bootstrap.NewDbPool(ctx, cfg.Database.URL, cfg.Database.Timeout)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Successfully connected to the database!")
		st = store.NewPgStore(dbPool)
		cleanup = dbPool.Close
	}

	if cfg.Inventory.CircuitBreaker.Enabled {
		st = store.NewBreakerStore(st, cfg.Inventory.CircuitBreaker, logger)
	}
	return st, cleanup, nil
}

// SetupPublisher connects to NATS JetStream and makes sure the sweets stream exists.
// A disabled NATS section yields a publisher that drops events.
func SetupPublisher(ctx context.Context, cfg pkgconfig.NATSConfig, logger *slog.Logger) (messaging.Publisher, func(), error) {
	if !cfg.Enabled {
		logger.Info("NATS is disabled, stock events are not published")
		return messaging.NopPublisher{}, func() {}, nil
	}
	nc, err := pkgnats.NewClient(cfg.Url, cfg.Timeout)
	if err != nil {
		return nil, nil, err
	}
	js, err := pkgnats.NewJetStreamContext(nc)
	if err != nil {
		return nil, nil, err
	}
	streamCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := pkgnats.EnsureStream(streamCtx, js, cfg.Stream, messaging.SweetsSubjects); err != nil {
		nc.Close()
		return nil, nil, err
	}
	logger.Info("Connected to NATS", "url", cfg.Url, "stream", cfg.Stream)
	return pkgnats.NewNatsPublisher(js), func() {
		if err := nc.Drain(); err != nil {
			logger.Error("Failed to drain NATS connection", "error", err)
		}
	}, nil
}

func SetupDependencies(st store.SweetStore, publisher messaging.Publisher, verifier auth.Verifier, metrics *telemetry.Metrics, cfg *config.Config, logger *slog.Logger) *Dependencies {
	return &Dependencies{
		Inventory:      service.NewInventoryService(st, publisher, cfg.Inventory.Retry, logger),
		Catalog:        service.NewCatalogService(st),
		Verifier:       verifier,
		AdminRole:      cfg.Auth.AdminRole,
		Health:         grpchealth.NewHealth(storeProbe(st), logger),
		Metrics:        metrics,
		MetricsPath:    cfg.Telemetry.Metrics.Path,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Logger:         logger,
	}
}

// storeProbe issues the cheapest read the store contract offers.
func storeProbe(st store.SweetStore) grpchealth.Probe {
	return func(ctx context.Context) error {
		_, err := st.ExistsByName(ctx, "")
		return err
	}
}

// SetupHttpHandler builds the router with every route and middleware.
// Used by tests to exercise the whole HTTP stack without a listener.
func SetupHttpHandler(deps *Dependencies) http.Handler {
	mux := server.NewChiRouter(deps.Logger, deps.AllowedOrigins...)
	wireRoutes(mux, deps)
	return otelhttp.NewHandler(mux, "sweetshop-http")
}

func wireRoutes(mux *chi.Mux, deps *Dependencies) {
	handler := rest.NewHandler(deps.Inventory, deps.Catalog, deps.Verifier, deps.AdminRole, deps.Logger)
	handler.RegisterRoutes(mux)
	if deps.Metrics != nil {
		mux.Handle(deps.MetricsPath, deps.Metrics.Handler())
	}
}

// SetupHttpServer creates and configures an HTTP server for the sweet shop.
func SetupHttpServer(deps *Dependencies, cfg *config.Config) *http.Server {
	httpCfg := server.HTTPConfig{
		Port:           cfg.HTTPServer.Port,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		ReadTimeout:    cfg.HTTPServer.Timeout.Read,
		WriteTimeout:   cfg.HTTPServer.Timeout.Write,
		IdleTimeout:    cfg.HTTPServer.Timeout.Idle,
		ReadHeader:     cfg.HTTPServer.Timeout.ReadHeader,
	}
	return server.NewHTTPServer(httpCfg, SetupHttpHandler(deps))
}

// SetupGrpcServer creates the operational gRPC server exposing the health service.
func SetupGrpcServer(deps *Dependencies, cfg *config.Config) *grpc.Server {
	return server.NewGRPCServer(deps.Logger, cfg.GrpcServer, deps.Health.Register)
}

// SetupVerifier creates the token verifier, fetching the JWKS once when one is configured.
func SetupVerifier(ctx context.Context, cfg pkgconfig.AuthConfig) (auth.Verifier, error) {
	verifier, err := auth.NewVerifier(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create token verifier: %w", err)
	}
	return verifier, nil
}
